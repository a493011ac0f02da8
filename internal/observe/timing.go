package observe

import "time"

// Timing records start/end timestamps only
type Timing struct {
	StartedAt   time.Time
	CompletedAt time.Time
}

// NewTiming starts a timing now.
func NewTiming() *Timing {
	return &Timing{StartedAt: time.Now()}
}

// Complete records completion time. Only the first call counts.
func (t *Timing) Complete() {
	if !t.Completed() {
		t.CompletedAt = time.Now()
	}
}

func (t *Timing) Completed() bool {
	return !t.CompletedAt.IsZero()
}

// Duration is the elapsed time so far, or the final span once completed.
func (t *Timing) Duration() time.Duration {
	if !t.Completed() {
		return time.Since(t.StartedAt)
	}
	return t.CompletedAt.Sub(t.StartedAt)
}
