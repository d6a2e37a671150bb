package app

import "time"

// EventKind classifies store notifications.
type EventKind string

// EventKind values published by Store.
const (
	EventChanged      EventKind = "changed"
	EventLoaded       EventKind = "loaded"
	EventLoadFailed   EventKind = "load_failed"
	EventSynced       EventKind = "synced"
	EventSyncFailed   EventKind = "sync_failed"
	EventMirrorFailed EventKind = "mirror_failed"
)

// Event is one store notification delivered to subscribers.
type Event struct {
	Kind   EventKind
	TaskID int64
	Op     string
	OpID   string
	Err    error
	At     time.Time
}

// subscriberBuffer bounds each subscriber channel; slow readers miss events.
const subscriberBuffer = 32

// Subscribe registers an observer. The returned func unregisters it and
// closes the channel.
func (s *Store) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subsMu.Unlock()

	return ch, func() {
		s.subsMu.Lock()
		defer s.subsMu.Unlock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
	}
}

func (s *Store) publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = s.clock().UTC()
	}
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
