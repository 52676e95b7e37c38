package game

import (
	"sync"

	"github.com/pawtap/server/internal/domain"
)

// Change is delivered to subscribers after every accepted dispatch.
type Change struct {
	Action   Action
	State    domain.PlayerState
	Revision int64
}

// Store owns one PlayerState and serializes every mutation through Reduce.
type Store struct {
	mu       sync.Mutex
	state    domain.PlayerState
	rules    Rules
	revision int64

	subMu  sync.RWMutex
	subs   map[int]func(Change)
	nextID int
}

// NewStore creates a store seeded with initial.
func NewStore(initial domain.PlayerState, rules Rules) *Store {
	return NewStoreAt(initial, rules, 0)
}

// NewStoreAt creates a store whose revision continues from a persisted snapshot, so
// snapshots written by this store outrank the one it was loaded from.
func NewStoreAt(initial domain.PlayerState, rules Rules, revision int64) *Store {
	return &Store{
		state:    initial.Normalize(),
		rules:    rules,
		revision: revision,
		subs:     make(map[int]func(Change)),
	}
}

// Dispatch reduces a into the current state. Rejected actions leave the state and revision
// untouched and return the rejection.
func (s *Store) Dispatch(a Action) (domain.PlayerState, error) {
	s.mu.Lock()
	next, err := Reduce(s.state, a, s.rules)
	if err != nil {
		cur := s.state
		s.mu.Unlock()
		return cur, err
	}
	s.state = next
	s.revision++
	change := Change{Action: a, State: next, Revision: s.revision}
	s.mu.Unlock()

	s.notify(change)
	return next, nil
}

// State returns a copy of the current state.
func (s *Store) State() domain.PlayerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns the state together with its revision.
func (s *Store) Snapshot() (domain.PlayerState, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.revision
}

// Revision counts accepted dispatches on top of the starting revision.
func (s *Store) Revision() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision
}

// Rules returns the rules the store reduces with.
func (s *Store) Rules() Rules {
	return s.rules
}

// Subscribe registers fn for changes. Subscribers run outside the store lock, so two
// concurrent dispatches may be delivered out of order; use Change.Revision to drop stale ones.
func (s *Store) Subscribe(fn func(Change)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify(c Change) {
	s.subMu.RLock()
	fns := make([]func(Change), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.RUnlock()

	for _, fn := range fns {
		fn(c)
	}
}
