// Package rate paces worker dispatches.
//
// The LeakyBucket hands out evenly spaced slots: Wait blocks until the next
// slot rather than counting available tokens, so a run at 100/s dispatches
// every 10ms instead of in bursts. One bucket is shared by all workers of a
// run, making the rate a global cap.
//
// # Basic Usage
//
//	limiter := rate.NewLeakyBucket(100.0) // 100 dispatches per second
//
//	for {
//	    if err := limiter.Wait(ctx); err != nil {
//	        break // Context cancelled
//	    }
//	    // Start a task
//	}
//
// Stats reports the configured rate, the slots handed out and the total
// time callers were told to wait.
//
// # Thread Safety
//
// All methods on LeakyBucket are safe for concurrent use from multiple goroutines.
package rate
