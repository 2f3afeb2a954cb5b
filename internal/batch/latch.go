package batch

import (
	"context"
	"sync"
)

// latch opens once count calls to Done have been made.
type latch struct {
	mu        sync.Mutex
	remaining int
	open      chan struct{}
}

func newLatch(count int) *latch {
	l := &latch{remaining: count, open: make(chan struct{})}
	if count <= 0 {
		close(l.open)
	}
	return l
}

func (l *latch) Done() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.remaining <= 0 {
		return
	}
	l.remaining--
	if l.remaining == 0 {
		close(l.open)
	}
}

func (l *latch) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.remaining
}

func (l *latch) Wait(ctx context.Context) error {
	select {
	case <-l.open:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
