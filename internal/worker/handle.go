package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"songlens/internal/logging"
)

// Program is the body of a worker. It receives messages from inbox until the
// inbox closes or ctx is cancelled, and answers through post.
type Program func(ctx context.Context, inbox <-chan Message, post func(Message))

// Handle is the owner's side of a running worker.
type Handle struct {
	name   string
	logger *slog.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	inCancel context.CancelFunc
	inbox    *Mailbox[Message]
	outbox   *Mailbox[Message]
	done     chan struct{}
	once     sync.Once
}

// Spawn starts program on its own goroutine.
func Spawn(name string, program Program, logger *slog.Logger) *Handle {
	if logger == nil {
		logger = logging.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	inCtx, inCancel := context.WithCancel(ctx)
	h := &Handle{
		name:     name,
		logger:   logger.With(logging.String("worker", name)),
		ctx:      ctx,
		cancel:   cancel,
		inCancel: inCancel,
		outbox:   NewMailbox[Message](ctx.Done()),
		done:     make(chan struct{}),
	}
	// The inbox also stops when the program returns so unread requests do
	// not pin its goroutine.
	h.inbox = NewMailbox[Message](inCtx.Done())
	go h.run(program)
	return h
}

func (h *Handle) run(program Program) {
	defer close(h.done)
	defer h.outbox.Close()
	defer h.inCancel()
	defer h.inbox.Close()
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("worker %s crashed: %v", h.name, r)
			h.logger.Error("worker program panicked",
				logging.String(logging.FieldEventType, "worker_crash"),
				logging.String(logging.FieldErrorHint, "inspect the worker program for unchecked input"),
				logging.Error(err),
			)
			h.outbox.Push(ErrorMessage(NoSong, "", err))
		}
	}()
	program(h.ctx, h.inbox.C(), func(msg Message) {
		h.outbox.Push(msg)
	})
}

// Name returns the worker name given at spawn.
func (h *Handle) Name() string {
	return h.name
}

// Post queues msg for the worker. It never blocks and reports false once the
// worker has been terminated or has exited.
func (h *Handle) Post(msg Message) bool {
	if h == nil {
		return false
	}
	select {
	case <-h.ctx.Done():
		return false
	default:
	}
	return h.inbox.Push(msg)
}

// Messages delivers the worker's replies. The channel closes when the worker
// exits or is terminated; replies still queued at termination are dropped.
func (h *Handle) Messages() <-chan Message {
	return h.outbox.C()
}

// Terminate stops the worker. Safe to call more than once.
func (h *Handle) Terminate() {
	if h == nil {
		return
	}
	h.once.Do(func() {
		h.cancel()
		h.inbox.Close()
	})
}

// Done is closed once the program has returned.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}
