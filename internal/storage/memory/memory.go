// Package memory is an in-process storage.Store used for tests and single-node development.
package memory

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/memohai/msgbridge/internal/storage"
)

// Event is a tracked event.
type Event struct {
	UserID     string
	Event      string
	Properties map[string]any
	CreatedAt  time.Time
}

// Store keeps users, variables and events in maps guarded by one mutex.
type Store struct {
	mu     sync.RWMutex
	users  map[string]storage.User
	kv     map[string]map[string]string
	events []Event
	now    func() time.Time
}

var _ storage.Store = (*Store)(nil)

// New creates an empty Store.
func New() *Store {
	return &Store{
		users: map[string]storage.User{},
		kv:    map[string]map[string]string{},
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) MergeUser(_ context.Context, userID string, profile storage.Profile) (storage.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	user, ok := s.users[userID]
	if !ok {
		user = storage.User{ID: userID, CreatedAt: now}
	}
	profile.Apply(&user)
	user.UpdatedAt = now
	s.users[userID] = user
	return cloneUser(user), nil
}

func (s *Store) GetUser(_ context.Context, userID string) (storage.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[userID]
	if !ok {
		return storage.User{}, storage.ErrNotFound
	}
	return cloneUser(user), nil
}

func (s *Store) SetKV(_ context.Context, userID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	vars, ok := s.kv[userID]
	if !ok {
		vars = map[string]string{}
		s.kv[userID] = vars
	}
	vars[key] = value
	return nil
}

func (s *Store) GetKV(_ context.Context, userID, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.kv[userID][key]
	if !ok {
		return "", storage.ErrNotFound
	}
	return value, nil
}

func (s *Store) Track(_ context.Context, userID, event string, properties map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, Event{
		UserID:     userID,
		Event:      event,
		Properties: maps.Clone(properties),
		CreatedAt:  s.now(),
	})
	return nil
}

// Events returns a copy of every tracked event in insertion order.
func (s *Store) Events() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// Writes reports how many users and variables are stored. Tests use it to assert that a
// filtered request left storage untouched.
func (s *Store) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.users) + len(s.events)
	for _, vars := range s.kv {
		n += len(vars)
	}
	return n
}

func cloneUser(u storage.User) storage.User {
	u.Metadata = maps.Clone(u.Metadata)
	return u
}
