// Package realtime fans out row changes to in-process subscribers.
package realtime

import (
	"context"
	"errors"
	"slices"
	"sync"
)

type Table string

const (
	TableNewsItems      Table = "news_items"
	TableUserReadItems  Table = "user_read_items"
	TableUserSavedItems Table = "user_saved_items"
	TablePanes          Table = "panes"
)

type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// Event is one committed row change. Record holds the typed row.
type Event struct {
	Table  Table
	Type   EventType
	Record any
}

// Topic selects events on one table. An empty Types list selects all types.
type Topic struct {
	Table Table
	Types []EventType
}

func (t Topic) matches(evt Event) bool {
	return t.Table == evt.Table && (len(t.Types) == 0 || slices.Contains(t.Types, evt.Type))
}

var ErrClosed = errors.New("subscription closed")

// Hub delivers every published event to each matching open subscription.
// Delivery never drops: each subscription queues until its reader catches up.
type Hub struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[*Subscription]struct{})}
}

func (h *Hub) Subscribe(topics ...Topic) *Subscription {
	sub := &Subscription{
		hub:    h,
		topics: topics,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	return sub
}

func (h *Hub) Publish(evt Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs {
		if sub.wants(evt) {
			sub.enqueue(evt)
		}
	}
}

func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
}

type Subscription struct {
	hub    *Hub
	topics []Topic

	mu     sync.Mutex
	queue  []Event
	closed bool

	notify    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func (s *Subscription) wants(evt Event) bool {
	for _, t := range s.topics {
		if t.matches(evt) {
			return true
		}
	}
	return false
}

func (s *Subscription) enqueue(evt Event) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, evt)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Next blocks until an event is available, the context ends or the
// subscription is closed. After Close it always returns ErrClosed, even if
// events were still queued.
func (s *Subscription) Next(ctx context.Context) (Event, error) {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return Event{}, ErrClosed
		}
		if len(s.queue) > 0 {
			evt := s.queue[0]
			s.queue[0] = Event{}
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return evt, nil
		}
		s.mu.Unlock()

		select {
		case <-s.notify:
		case <-s.done:
			return Event{}, ErrClosed
		case <-ctx.Done():
			return Event{}, ctx.Err()
		}
	}
}

// Close stops delivery. It is safe to call more than once.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.hub.remove(s)

		s.mu.Lock()
		s.closed = true
		s.queue = nil
		s.mu.Unlock()

		close(s.done)
	})
}
