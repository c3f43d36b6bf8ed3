// Package eventbus is a bounded multi-producer broadcast with
// drop-oldest semantics and per-subscriber lag detection, covering the
// three topics the rest of the system wakes up on: state_changed,
// state_updated, command_added.
package eventbus

import "sync"

// Topic names the three broadcast channels the spec defines.
type Topic string

const (
	StateChanged Topic = "state_changed"
	StateUpdated Topic = "state_updated"
	CommandAdded Topic = "command_added"
)

// Event is the payload published on any topic; Key is the tag/target the
// event concerns and Lag counts the dropped events this one took the
// place of (0 when none were dropped); summed over every delivered event
// it equals the number of events this subscriber missed.
type Event struct {
	Topic Topic
	Key   string
	Lag   int
}

const defaultBufferSize = 256

// Bus keeps, per topic, a list of subscribers guarded by a mutex, each
// with its own bounded buffered channel; a slow subscriber observes
// Lag > 0 rather than silently missing events — it must treat that as a
// hint to re-read state from the store, not assume delivery.
type Bus struct {
	mu          sync.Mutex
	bufferSize  int
	subscribers map[Topic][]*subscription
}

type subscription struct {
	ch     chan Event
	mu     sync.Mutex
	closed bool
}

func New() *Bus {
	return &Bus{bufferSize: defaultBufferSize, subscribers: make(map[Topic][]*subscription)}
}

// Subscribe returns a channel of events for topic. The channel is never
// closed and the subscription is never removed; callers select on it
// alongside their context and stop reading once the context is done.
func (b *Bus) Subscribe(topic Topic) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub := &subscription{ch: make(chan Event, b.bufferSize)}
	b.subscribers[topic] = append(b.subscribers[topic], sub)
	return sub.ch
}

// Publish fans key out to every subscriber of topic. A subscriber whose
// buffer is full has its oldest buffered event dropped to make room
// (drop-oldest), and the event being published carries the dropped
// event's Lag plus one.
func (b *Bus) Publish(topic Topic, key string) {
	b.mu.Lock()
	subs := append([]*subscription(nil), b.subscribers[topic]...)
	b.mu.Unlock()

	for _, sub := range subs {
		sub.send(Event{Topic: topic, Key: key})
	}
}

func (s *subscription) send(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- ev:
		return
	default:
	}
	// buffer full: drop the oldest buffered event, tag the next delivery
	// with the accrued lag.
	select {
	case dropped := <-s.ch:
		ev.Lag = dropped.Lag + 1
	default:
	}
	select {
	case s.ch <- ev:
	default:
	}
}
