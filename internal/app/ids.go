package app

import (
	"sync"
	"time"
)

// IDSequence hands out strictly increasing task ids seeded from the clock.
type IDSequence struct {
	mu    sync.Mutex
	last  int64
	clock Clock
}

// NewIDSequence constructs a sequence that starts at the current unix milli.
func NewIDSequence(clock Clock) *IDSequence {
	if clock == nil {
		clock = time.Now
	}
	return &IDSequence{clock: clock}
}

// Next returns an id greater than every id handed out or observed so far.
func (s *IDSequence) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	candidate := s.clock().UnixMilli()
	if candidate <= s.last {
		candidate = s.last + 1
	}
	s.last = candidate
	return candidate
}

// Observe records an externally assigned id so Next never collides with it.
func (s *IDSequence) Observe(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id > s.last {
		s.last = id
	}
}
