// Package probe defines the unit of work driven by the measurement engine.
//
// A probe is described by a Factory that produces one Task per worker loop
// iteration. A Task reports exactly one terminal outcome through the
// callbacks passed to Start; the callbacks may run on any goroutine,
// including after Start has returned.
//
//	factory := probe.Async(func() error {
//	    resp, err := http.Get("http://localhost:8080/health")
//	    if err != nil {
//	        return err
//	    }
//	    return resp.Body.Close()
//	})
package probe

import (
	"errors"
	"fmt"
)

// ErrNilTask is reported when a Factory returns neither a Task nor an error.
var ErrNilTask = errors.New("probe factory returned a nil task")

// Task is one launched unit of asynchronous work.
type Task interface {
	// Start launches the work. Exactly one of onDone or onFail must be called
	// once the work reaches its terminal state. onFail receives the cause,
	// whose message keys the error table.
	Start(onDone func(), onFail func(err error))
}

// TaskFunc adapts a function to the Task interface.
type TaskFunc func(onDone func(), onFail func(err error))

// Start calls f.
func (f TaskFunc) Start(onDone func(), onFail func(err error)) {
	f(onDone, onFail)
}

// Factory produces one Task per invocation. A returned error is a launch
// failure: it is recorded like a completion failure carrying the same message.
type Factory func() (Task, error)

// Async returns a Factory whose tasks run fn on a new goroutine.
func Async(fn func() error) Factory {
	return func() (Task, error) {
		return TaskFunc(func(onDone func(), onFail func(err error)) {
			go settle(fn, onDone, onFail)
		}), nil
	}
}

// Sync returns a Factory whose tasks run fn on the goroutine calling Start,
// so the outcome is known when Start returns.
func Sync(fn func() error) Factory {
	return func() (Task, error) {
		return TaskFunc(func(onDone func(), onFail func(err error)) {
			settle(fn, onDone, onFail)
		}), nil
	}
}

// Failing returns a Factory whose tasks always fail with err. It is mostly
// useful to probe the error-reporting path.
func Failing(err error) Factory {
	return Sync(func() error {
		return err
	})
}

func settle(fn func() error, onDone func(), onFail func(err error)) {
	defer func() {
		if r := recover(); r != nil {
			onFail(NewPanicError(r))
		}
	}()

	if err := fn(); err != nil {
		onFail(err)
		return
	}
	onDone()
}

// PanicError wraps a value recovered from a panicking probe.
type PanicError struct {
	Value any
}

// NewPanicError wraps r, returning r itself when it already is an error
// so that the message matches the one a returned error would carry.
func NewPanicError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return &PanicError{Value: r}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
