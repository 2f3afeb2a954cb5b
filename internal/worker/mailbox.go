package worker

import "sync"

// Mailbox is an unbounded FIFO drained onto a channel by its own goroutine.
// Push never blocks.
type Mailbox[T any] struct {
	mu     sync.Mutex
	queue  []T
	closed bool
	notify chan struct{}
	out    chan T
}

// NewMailbox starts a mailbox whose delivery goroutine exits when abort is
// closed or, after Close, once every queued message has been delivered.
func NewMailbox[T any](abort <-chan struct{}) *Mailbox[T] {
	m := &Mailbox[T]{
		notify: make(chan struct{}, 1),
		out:    make(chan T),
	}
	go m.pump(abort)
	return m
}

// Push queues v and reports false once the mailbox is closed.
func (m *Mailbox[T]) Push(v T) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.queue = append(m.queue, v)
	m.mu.Unlock()
	m.signal()
	return true
}

// C returns the delivery channel. It closes after Close drains the queue or
// when the abort channel fires.
func (m *Mailbox[T]) C() <-chan T {
	return m.out
}

// Close stops accepting messages. Already queued messages are still delivered
// unless the abort channel fires first.
func (m *Mailbox[T]) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.signal()
}

func (m *Mailbox[T]) signal() {
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

func (m *Mailbox[T]) pump(abort <-chan struct{}) {
	defer close(m.out)
	for {
		m.mu.Lock()
		if len(m.queue) == 0 {
			closed := m.closed
			m.mu.Unlock()
			if closed {
				return
			}
			select {
			case <-m.notify:
				continue
			case <-abort:
				return
			}
		}
		v := m.queue[0]
		var zero T
		m.queue[0] = zero
		m.queue = m.queue[1:]
		m.mu.Unlock()

		select {
		case m.out <- v:
		case <-abort:
			return
		}
	}
}
