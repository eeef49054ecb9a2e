// Package executor runs the worker loops that drive a probe.
//
// A Pool starts N workers. Each worker loops until the shared State is
// stopped: it waits on the optional limiter, asks the probe factory for a
// task, starts it, and records the loop time. At least one iteration runs
// per worker, even when the state is stopped before it starts.
//
// # Disciplines
//
// Stress: the worker starts a task and moves on. Completions are recorded
// from the task's callbacks on whatever goroutine the task uses, so offered
// load does not depend on completion latency. Use Drain to wait for
// outstanding tasks at the end of a run.
//
// Blocking: the worker waits for the task's outcome before looping, so the
// worker count bounds the number of tasks in flight.
//
// In both disciplines a task settles once. A factory error, a panic, or a
// failure callback records a failure; repeated callbacks are ignored.
//
// # Example
//
//	state := executor.NewState()
//	pool := executor.NewPool(executor.Config{
//	    Workers:    8,
//	    Discipline: executor.Blocking,
//	    Limiter:    rate.NewLeakyBucket(200),
//	}, factory, aggregator, state)
//
//	pool.Start(ctx)
//	time.Sleep(30 * time.Second)
//	state.Stop()
//	err := pool.Wait()
package executor
