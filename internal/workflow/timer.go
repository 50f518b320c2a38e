package workflow

import (
	"context"
	"sync"
	"time"
)

// Timer is a one-shot callback that is guaranteed not to run once Cancel
// has returned, unless it had already started.
type Timer struct {
	mu        sync.Mutex
	t         *time.Timer
	cancelled bool
}

// After schedules fn to run once after d.
func After(d time.Duration, fn func()) *Timer {
	tm := &Timer{}
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.t = time.AfterFunc(d, func() {
		tm.mu.Lock()
		if tm.cancelled {
			tm.mu.Unlock()
			return
		}
		tm.cancelled = true
		tm.mu.Unlock()
		fn()
	})
	return tm
}

// Cancel stops the timer. It reports whether the callback was prevented.
func (t *Timer) Cancel() bool {
	if t == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelled {
		return false
	}
	t.cancelled = true
	t.t.Stop()
	return true
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// WaitFloor sleeps out whatever remains of floor since start.
func WaitFloor(ctx context.Context, start time.Time, floor time.Duration) error {
	return Sleep(ctx, floor-time.Since(start))
}
