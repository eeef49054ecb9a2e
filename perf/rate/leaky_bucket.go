// Package rate paces probe dispatch across the workers of a run.
package rate

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// LeakyBucket spaces dispatches evenly at a fixed rate.
//
// The bucket keeps a virtual "drip" time that advances by 1/rate per
// dispatch. Next returns when the caller may dispatch; when the caller is
// behind schedule the returned time is now and the dispatch runs at once.
// All workers of a run share one bucket, so the rate is a global cap on
// offered load rather than a per-worker one.
//
// # Thread Safety
//
// LeakyBucket is safe for concurrent use from multiple goroutines.
type LeakyBucket struct {
	rate        float64 // dispatches per second
	lastDrip    time.Time
	accumulated float64 // fractional dispatches owed
	mu          sync.Mutex

	dispatched atomic.Int64
	waited     atomic.Int64 // nanoseconds
}

// NewLeakyBucket creates a bucket dispatching rate times per second with no
// bursting. A non-positive rate is treated as 1/s.
func NewLeakyBucket(rate float64) *LeakyBucket {
	if rate <= 0 {
		rate = 1.0
	}
	return &LeakyBucket{
		rate:        rate,
		lastDrip:    time.Now(),
		accumulated: 1.0, // first dispatch is immediate
	}
}

// Next reserves the next dispatch slot and returns when it starts.
func (lb *LeakyBucket) Next() time.Time {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(lb.lastDrip).Seconds()
	if elapsed < 0 {
		// lastDrip is a reserved slot in the future
		elapsed = 0
	}

	lb.accumulated += elapsed * lb.rate
	if lb.accumulated > 1.0 {
		lb.accumulated = 1.0
	}

	lb.dispatched.Add(1)

	if lb.accumulated >= 1.0 {
		lb.accumulated -= 1.0
		lb.lastDrip = now
		return now
	}

	wait := time.Duration((1.0 - lb.accumulated) / lb.rate * float64(time.Second))
	lb.accumulated = 0

	// anchor at the reserved slot so waking up there does not earn a second dispatch
	next := now.Add(wait)
	if lb.lastDrip.After(now) {
		next = lb.lastDrip.Add(wait)
	}
	lb.lastDrip = next
	lb.waited.Add(int64(next.Sub(now)))

	return next
}

// Wait blocks until the next dispatch slot or until ctx is done.
func (lb *LeakyBucket) Wait(ctx context.Context) error {
	wait := time.Until(lb.Next())
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Rate returns the target dispatches per second.
func (lb *LeakyBucket) Rate() float64 {
	return lb.rate
}

// Stats returns statistics about the bucket's operation. Dispatched counts
// reserved slots, including ones abandoned when a Wait was cancelled.
func (lb *LeakyBucket) Stats() Stats {
	return Stats{
		Rate:       lb.Rate(),
		Dispatched: lb.dispatched.Load(),
		Waited:     time.Duration(lb.waited.Load()),
	}
}

// Stats contains statistics about a LeakyBucket.
type Stats struct {
	Rate       float64       `json:"rate"`
	Dispatched int64         `json:"dispatched"`
	Waited     time.Duration `json:"waited"`
}
