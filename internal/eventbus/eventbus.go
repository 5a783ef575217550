package eventbus

import "sync"

// Event represents an arbitrary event passed on the bus.
type Event interface{}

// EventBus implements a simple publish/subscribe event bus.
type EventBus interface {
	Publish(Event)
	Subscribe() <-chan Event
	Unsubscribe(<-chan Event)
	SubscribeQueue() *Queue
	UnsubscribeQueue(*Queue)
	Close()
}

// Bus is the default EventBus implementation using fan-out channels.
type Bus struct {
	mu     sync.RWMutex
	subs   []chan Event
	queues []*Queue
	closed bool
}

// New creates a new Bus.
func New() *Bus { return &Bus{} }

// Publish sends the event to all subscribers. Delivery is non-blocking:
// channel subscribers that are full miss the event, queues always get it.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
	for _, q := range b.queues {
		q.push(e)
	}
}

// Subscribe registers a new subscriber and returns its channel.
func (b *Bus) Subscribe() <-chan Event {
	ch := make(chan Event, 8)
	b.mu.Lock()
	if b.closed {
		close(ch)
	} else {
		b.subs = append(b.subs, ch)
	}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the subscriber and closes its channel.
func (b *Bus) Unsubscribe(sub <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, ch := range b.subs {
		if ch == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			if !b.closed {
				close(ch)
			}
			return
		}
	}
}

// SubscribeQueue registers an unbounded subscriber.
func (b *Bus) SubscribeQueue() *Queue {
	q := newQueue()
	b.mu.Lock()
	if b.closed {
		q.close()
	} else {
		b.queues = append(b.queues, q)
	}
	b.mu.Unlock()
	return q
}

// UnsubscribeQueue removes q and closes it.
func (b *Bus) UnsubscribeQueue(q *Queue) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, cur := range b.queues {
		if cur == q {
			b.queues = append(b.queues[:i], b.queues[i+1:]...)
			q.close()
			return
		}
	}
}

// Close closes all subscriber channels and clears the list.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	for _, q := range b.queues {
		q.close()
	}
	b.subs = nil
	b.queues = nil
	b.mu.Unlock()
}
