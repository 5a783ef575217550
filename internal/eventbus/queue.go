package eventbus

import "sync"

// Queue is an unbounded subscriber. Push never blocks and never drops, so
// consumers that must see every event (the scheduler, the audit recorder)
// subscribe with a Queue instead of a channel.
type Queue struct {
	mu     sync.Mutex
	items  []Event
	ready  chan struct{}
	closed bool
}

func newQueue() *Queue {
	return &Queue{ready: make(chan struct{}, 1)}
}

func (q *Queue) push(e Event) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, e)
	select {
	case q.ready <- struct{}{}:
	default:
	}
	q.mu.Unlock()
}

// Ready is signalled whenever events are waiting. It is closed when the
// queue is closed.
func (q *Queue) Ready() <-chan struct{} { return q.ready }

// Drain returns and clears the pending events in publish order.
func (q *Queue) Drain() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	return out
}

// Len returns the number of pending events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.ready)
}
