package adapter

import "sync"

// Sequencer hands out increasing request ids per key. A response may only update the
// cache if its id is still the latest issued for the key, so a slow response cannot
// overwrite the result of a newer request.
type Sequencer struct {
	mu     sync.Mutex
	latest map[string]uint64
}

// NewSequencer creates an empty sequencer.
func NewSequencer() *Sequencer {
	return &Sequencer{latest: make(map[string]uint64)}
}

// Next issues a new request id for key.
func (s *Sequencer) Next(key string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest[key]++
	return s.latest[key]
}

// IsLatest reports whether id is the most recent id issued for key.
func (s *Sequencer) IsLatest(key string, id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest[key] == id
}
