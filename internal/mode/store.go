package mode

import (
	"errors"
	"fmt"
	"sync"
)

// ErrInvalidMode is returned for values outside the Mode enum.
var ErrInvalidMode = errors.New("invalid mode")

// Store is a guarded cell holding the current mode. Reads never block each
// other; a Set is visible to the very next Current call.
type Store struct {
	mu       sync.RWMutex
	current  Mode
	onChange []func(from, to Mode)
}

// NewStore creates a store starting at initial, or Normal when initial is not valid.
func NewStore(initial Mode) *Store {
	if !initial.Valid() {
		initial = Normal
	}
	return &Store{current: initial}
}

// Current returns the live mode.
func (s *Store) Current() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Set replaces the live mode.
func (s *Store) Set(m Mode) error {
	if !m.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidMode, string(m))
	}

	s.mu.Lock()
	from := s.current
	s.current = m
	listeners := append([]func(from, to Mode){}, s.onChange...)
	s.mu.Unlock()

	if from != m {
		for _, fn := range listeners {
			fn(from, m)
		}
	}
	return nil
}

// Cycle advances to the next mode and returns it.
func (s *Store) Cycle() Mode {
	s.mu.Lock()
	from := s.current
	s.current = from.Next()
	to := s.current
	listeners := append([]func(from, to Mode){}, s.onChange...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(from, to)
	}
	return to
}

// OnChange registers a listener called after every effective mode change.
func (s *Store) OnChange(fn func(from, to Mode)) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

var global = NewStore(Normal)

// Global returns the process-wide store.
func Global() *Store {
	return global
}

// Current returns the process-wide mode.
func Current() Mode {
	return global.Current()
}

// Set replaces the process-wide mode.
func Set(m Mode) error {
	return global.Set(m)
}
