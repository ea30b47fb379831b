package token

import (
	"errors"
	"sync"
)

// ErrNotFound is returned when no credentials are stored.
var ErrNotFound = errors.New("token: credentials not found")

// Pair is the bearer credential pair issued by the backend.
type Pair struct {
	Access  string `json:"access_token"`
	Refresh string `json:"refresh_token"`
}

// Store persists the credential pair across restarts. The fetch adapter's
// refresh path is the only writer of SetAccess; login and logout flows own
// SetPair and Clear.
type Store interface {
	Get() (Pair, error)
	SetPair(p Pair) error
	SetAccess(access string) error
	Clear() error
}

// MemoryStore is an in-process Store used by tests.
type MemoryStore struct {
	mu   sync.Mutex
	pair Pair
	set  bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Get() (Pair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.set {
		return Pair{}, ErrNotFound
	}
	return s.pair, nil
}

func (s *MemoryStore) SetPair(p Pair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = p
	s.set = true
	return nil
}

func (s *MemoryStore) SetAccess(access string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.set {
		return ErrNotFound
	}
	s.pair.Access = access
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = Pair{}
	s.set = false
	return nil
}
