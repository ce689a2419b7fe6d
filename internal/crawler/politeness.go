package crawler

import (
	"context"
	"time"
)

// politePause holds a worker for delay after a fetch. It reports false when
// ctx ended first.
func politePause(ctx context.Context, delay time.Duration) bool {
	if delay <= 0 {
		return true
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
