package coordinator

import (
	"context"
	"time"
)

// Scheduler runs a function after a delay. Retries are delayed
// re-executions, not busy waits; fakes in tests fire immediately and record
// the requested delays.
type Scheduler interface {
	Schedule(ctx context.Context, delay time.Duration, fn func())
}

// TimerScheduler fires on a real timer, dropping the callback when the
// context ends first.
type TimerScheduler struct{}

// Schedule implements Scheduler.
func (TimerScheduler) Schedule(ctx context.Context, delay time.Duration, fn func()) {
	go func() {
		if delay <= 0 {
			fn()
			return
		}
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
			fn()
		}
	}()
}
