package events

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrScopeReleased is returned when subscribing through a released Scope.
var ErrScopeReleased = errors.New("event scope released")

// Handler receives one event.
type Handler func(Payload)

// Unsubscribe revokes one subscription. Calling it more than once is harmless.
type Unsubscribe func()

// Source is anything handlers can subscribe to.
type Source interface {
	Subscribe(topic Topic, handler Handler) Unsubscribe
}

// Publisher delivers events to subscribers.
type Publisher interface {
	Publish(event Payload)
}

type subscription struct {
	id      uint64
	handler Handler
	active  atomic.Bool
}

// Bus is an in-process event dispatcher. Publish runs handlers one at a time, in
// subscription order, and never concurrently with another Publish. Handlers must not
// call Publish on the same bus.
type Bus struct {
	dispatch sync.Mutex

	mu     sync.Mutex
	nextID uint64
	subs   map[Topic][]*subscription
}

func NewBus() *Bus {
	return &Bus{subs: make(map[Topic][]*subscription)}
}

// Subscribe registers handler for topic. A subscription revoked while a Publish is in
// flight receives no further events.
func (b *Bus) Subscribe(topic Topic, handler Handler) Unsubscribe {
	b.mu.Lock()
	b.nextID++
	sub := &subscription{id: b.nextID, handler: handler}
	sub.active.Store(true)
	b.subs[topic] = append(b.subs[topic], sub)
	b.mu.Unlock()

	return func() {
		if !sub.active.CompareAndSwap(true, false) {
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[topic]
		for i, candidate := range list {
			if candidate.id == sub.id {
				b.subs[topic] = append(list[:i:i], list[i+1:]...)
				break
			}
		}
		if len(b.subs[topic]) == 0 {
			delete(b.subs, topic)
		}
	}
}

// Publish delivers event to every active subscriber of its topic.
func (b *Bus) Publish(event Payload) {
	if event == nil {
		return
	}

	b.dispatch.Lock()
	defer b.dispatch.Unlock()

	b.mu.Lock()
	subs := append([]*subscription(nil), b.subs[event.Topic()]...)
	b.mu.Unlock()

	for _, sub := range subs {
		if !sub.active.Load() {
			continue
		}
		sub.handler(event)
	}
}

// Subscribers reports the number of live subscriptions for topic.
func (b *Bus) Subscribers(topic Topic) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[topic])
}

// ForSession wraps handler so it only sees events for sessionID.
func ForSession(sessionID string, handler Handler) Handler {
	return func(event Payload) {
		if event.Session() != sessionID {
			return
		}
		handler(event)
	}
}

// Scope groups subscriptions so they can be revoked with one call.
type Scope struct {
	source Source

	mu       sync.Mutex
	released bool
	unsubs   []Unsubscribe
}

func NewScope(source Source) *Scope {
	return &Scope{source: source}
}

// Subscribe registers handler through the scope.
func (s *Scope) Subscribe(topic Topic, handler Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return ErrScopeReleased
	}
	s.unsubs = append(s.unsubs, s.source.Subscribe(topic, handler))
	return nil
}

// Release revokes every subscription made through the scope. It is idempotent.
func (s *Scope) Release() {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}
	s.released = true
	unsubs := s.unsubs
	s.unsubs = nil
	s.mu.Unlock()

	for i := len(unsubs) - 1; i >= 0; i-- {
		unsubs[i]()
	}
}

// Released reports whether Release has been called.
func (s *Scope) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}
