// Package executor runs the probe worker loops of a measurement run.
package executor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wesleyorama2/throughput/perf/probe"
	"github.com/wesleyorama2/throughput/perf/rate"
	"github.com/wesleyorama2/throughput/perf/stats"
)

// Discipline selects how a worker treats the task it launched.
type Discipline string

const (
	// Stress launches each task without waiting for it. The worker becomes a
	// pure request generator and outcomes are recorded from the callbacks.
	Stress Discipline = "stress"

	// Blocking waits for each task's outcome before the next iteration, so
	// the worker count bounds the probe's concurrency exactly.
	Blocking Discipline = "blocking"
)

// ParseDiscipline parses "stress" or "blocking".
func ParseDiscipline(s string) (Discipline, error) {
	switch Discipline(s) {
	case Stress, Blocking:
		return Discipline(s), nil
	default:
		return "", fmt.Errorf("unknown discipline: %s", s)
	}
}

// Config contains configuration for a Pool.
type Config struct {
	// Workers is the number of concurrent worker loops
	Workers int

	// Discipline is stress or blocking
	Discipline Discipline

	// Limiter optionally paces dispatches across all workers
	Limiter *rate.LeakyBucket
}

// Pool runs Workers independent loops driving a probe factory.
//
// Workers never coordinate with each other: the only shared state is the
// Aggregator and the run State. Cancellation is cooperative: a worker
// observes State at the end of each iteration, and no in-flight task is
// aborted. A worker waiting for a rate slot when the run stops exits without
// launching.
type Pool struct {
	config  Config
	factory probe.Factory
	stats   *stats.Aggregator
	state   *State

	group    *errgroup.Group
	ctx      context.Context
	cancel   context.CancelFunc
	inflight sync.WaitGroup
	pending  atomic.Int64
	started  atomic.Bool
}

// NewPool creates a pool. Call Start to launch the workers.
func NewPool(config Config, factory probe.Factory, aggregator *stats.Aggregator, state *State) *Pool {
	if config.Workers < 1 {
		config.Workers = 1
	}
	if config.Discipline == "" {
		config.Discipline = Stress
	}

	return &Pool{
		config:  config,
		factory: factory,
		stats:   aggregator,
		state:   state,
	}
}

// Start launches the worker goroutines. It returns immediately; calling it
// more than once has no effect.
func (p *Pool) Start(ctx context.Context) {
	if !p.started.CompareAndSwap(false, true) {
		return
	}

	ctx, p.cancel = context.WithCancel(ctx)
	go func() {
		select {
		case <-p.state.Done():
			p.cancel()
		case <-ctx.Done():
		}
	}()

	p.group, p.ctx = errgroup.WithContext(ctx)
	for i := 0; i < p.config.Workers; i++ {
		p.group.Go(func() error {
			p.runWorker()
			return nil
		})
	}
}

// Wait blocks until every worker has exited its loop.
func (p *Pool) Wait() error {
	if !p.started.Load() {
		return nil
	}
	defer p.cancel()
	return p.group.Wait()
}

// Drain waits up to timeout for launched stress tasks to settle. It must be
// called after Wait. It returns false if tasks were still in flight.
func (p *Pool) Drain(timeout time.Duration) bool {
	if p.pending.Load() == 0 {
		return true
	}

	done := make(chan struct{})
	go func() {
		p.inflight.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

// InFlight returns the number of launched tasks that have not settled.
func (p *Pool) InFlight() int64 {
	return p.pending.Load()
}

// runWorker is the worker loop. It runs at least one iteration and then
// continues while the run state says so. With a limiter the rate slot is
// awaited first, and a slot granted after the stop is not used.
func (p *Pool) runWorker() {
	for {
		if p.config.Limiter != nil {
			if err := p.config.Limiter.Wait(p.ctx); err != nil {
				return
			}
			if !p.state.Running() {
				return
			}
		}

		start := time.Now()
		sample := p.iterate(start)
		p.stats.ObserveLoop(start, sample)

		if !p.state.Running() {
			return
		}
	}
}

// iterate obtains and launches one task. Failures while obtaining or
// launching it are recorded against the same start and never escape.
func (p *Pool) iterate(start time.Time) (sample time.Duration) {
	var o *outcome

	defer func() {
		if r := recover(); r != nil {
			err := probe.NewPanicError(r)
			if o != nil {
				o.fail(err)
			} else {
				p.stats.RecordFailure(start, err)
			}
			sample = time.Since(start)
		}
	}()

	task, err := p.factory()
	if err == nil && task == nil {
		err = probe.ErrNilTask
	}
	if err != nil {
		p.stats.RecordFailure(start, err)
		return time.Since(start)
	}

	o = p.newOutcome(start)

	switch p.config.Discipline {
	case Blocking:
		task.Start(o.done, o.fail)
		<-o.settled
	default:
		p.track(o)
		task.Start(o.done, o.fail)
	}

	return time.Since(start)
}

// track registers o as in flight until it settles.
func (p *Pool) track(o *outcome) {
	p.inflight.Add(1)
	p.pending.Add(1)
	o.release = func() {
		p.pending.Add(-1)
		p.inflight.Done()
	}
}

func (p *Pool) newOutcome(start time.Time) *outcome {
	return &outcome{
		start:   start,
		stats:   p.stats,
		settled: make(chan struct{}),
	}
}

// outcome records the single terminal result of one task. Extra callbacks
// from a misbehaving task are ignored.
type outcome struct {
	start   time.Time
	stats   *stats.Aggregator
	once    atomic.Bool
	settled chan struct{}
	release func()
}

func (o *outcome) done() {
	if !o.once.CompareAndSwap(false, true) {
		return
	}
	o.stats.RecordCompletion(o.start)
	o.finish()
}

func (o *outcome) fail(err error) {
	if !o.once.CompareAndSwap(false, true) {
		return
	}
	o.stats.RecordFailure(o.start, err)
	o.finish()
}

func (o *outcome) finish() {
	close(o.settled)
	if o.release != nil {
		o.release()
	}
}
