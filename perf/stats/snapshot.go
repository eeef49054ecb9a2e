package stats

import (
	"time"
)

// Snapshot contains a point-in-time view of the aggregate counters.
type Snapshot struct {
	// RequestCount is the number of successful completions.
	RequestCount int64 `json:"requestCount"`

	// LoopCount is the number of worker loop iterations.
	LoopCount int64 `json:"loopCount"`

	// ErrorCount is the number of failures, launch and completion alike.
	ErrorCount int64 `json:"errorCount"`

	TotalRequestTime time.Duration `json:"totalRequestTime"`
	TotalLoopTime    time.Duration `json:"totalLoopTime"`
	MaxRequestTime   time.Duration `json:"maxRequestTime"`

	// Late is the number of records dropped after the run was sealed.
	Late int64 `json:"late,omitempty"`
}

// AvgRequestMs returns the mean completion latency in milliseconds.
// It is NaN until the first completion is recorded.
func (s Snapshot) AvgRequestMs() float64 {
	return ms(s.TotalRequestTime) / float64(s.RequestCount)
}

// AvgLoopMs returns the mean loop duration in milliseconds over all terminal
// outcomes (completions plus failures).
func (s Snapshot) AvgLoopMs() float64 {
	return ms(s.TotalLoopTime) / float64(s.RequestCount+s.ErrorCount)
}

// MaxRequestMs returns the max latency in milliseconds.
func (s Snapshot) MaxRequestMs() float64 {
	return ms(s.MaxRequestTime)
}

// TotalRequestMs returns the summed completion latency in milliseconds.
func (s Snapshot) TotalRequestMs() int64 {
	return s.TotalRequestTime.Milliseconds()
}

// TotalLoopMs returns the summed loop time in milliseconds.
func (s Snapshot) TotalLoopMs() int64 {
	return s.TotalLoopTime.Milliseconds()
}

// ErrorEntry is one row of the error table.
type ErrorEntry struct {
	// Message is the error message, "" for a nil cause.
	Message string `json:"message"`

	// Count is how many failures carried this message.
	Count int64 `json:"count"`

	// Cause is the first error seen with this message.
	Cause error `json:"-"`
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
