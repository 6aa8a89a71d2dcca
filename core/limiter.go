package core

import (
	"fmt"
	"sync/atomic"
)

// ModelLimiter caps how many model calls a single run may issue. Flows share
// one limiter per run, including any sub-agent runs spawned via agent tools,
// so a runaway tool loop cannot burn budget indefinitely. A max of zero
// disables the cap.
type ModelLimiter struct {
	max   int64
	calls atomic.Int64
}

// NewModelLimiter returns a limiter that allows up to max calls.
func NewModelLimiter(max int) *ModelLimiter {
	return &ModelLimiter{max: int64(max)}
}

// Increment records one model call, failing once the budget is spent.
func (l *ModelLimiter) Increment() error {
	n := l.calls.Add(1)
	if l.max > 0 && n > l.max {
		return fmt.Errorf("exceeded max model calls: %d", l.max)
	}
	return nil
}

// Count reports how many calls have been recorded so far.
func (l *ModelLimiter) Count() int {
	return int(l.calls.Load())
}

// Remaining reports the unused budget, or -1 when the limiter is uncapped.
func (l *ModelLimiter) Remaining() int {
	if l.max == 0 {
		return -1
	}
	return int(l.max - l.calls.Load())
}
