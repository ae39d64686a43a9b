// Package memory provides an in-process store used in development and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/khata-app/khata/internal/auth"
	"github.com/khata-app/khata/internal/khata"
	"github.com/khata-app/khata/internal/shared"
)

// Store keeps sessions and users in maps guarded by a single mutex. Every value
// crossing the API boundary is copied.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*khata.Session
	users    map[string]*auth.User
	byEmail  map[string]string
}

// New constructs an empty Store.
func New() *Store {
	return &Store{
		sessions: make(map[string]*khata.Session),
		users:    make(map[string]*auth.User),
		byEmail:  make(map[string]string),
	}
}

// Insert stores a new session.
func (s *Store) Insert(_ context.Context, sess *khata.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess.Clone()
	return nil
}

// Get returns one session owned by ownerID.
func (s *Store) Get(_ context.Context, ownerID, id string) (*khata.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok || sess.OwnerID != ownerID {
		return nil, khata.ErrSessionNotFound
	}
	return sess.Clone(), nil
}

// List returns the owner's sessions, newest first.
func (s *Store) List(_ context.Context, ownerID string) ([]khata.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]khata.Session, 0)
	for _, sess := range s.sessions {
		if sess.OwnerID == ownerID {
			out = append(out, *sess.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Update applies fn to a copy of the session and stores it only when fn succeeds.
func (s *Store) Update(_ context.Context, ownerID, id string, fn func(*khata.Session) error) (*khata.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.sessions[id]
	if !ok || current.OwnerID != ownerID {
		return nil, khata.ErrSessionNotFound
	}
	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	s.sessions[id] = next
	return next.Clone(), nil
}

// Delete removes a session owned by ownerID.
func (s *Store) Delete(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok || sess.OwnerID != ownerID {
		return khata.ErrSessionNotFound
	}
	delete(s.sessions, id)
	return nil
}

// CreateUser stores a user, rejecting duplicate emails.
func (s *Store) CreateUser(_ context.Context, user *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byEmail[user.Email]; taken {
		return shared.ErrEmailTaken
	}
	u := *user
	s.users[u.ID] = &u
	s.byEmail[u.Email] = u.ID
	return nil
}

// FindByEmail fetches a user by email.
func (s *Store) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[email]
	if !ok {
		return nil, shared.ErrNotFound
	}
	u := *s.users[id]
	return &u, nil
}

// FindByID fetches a user by ID.
func (s *Store) FindByID(_ context.Context, id string) (*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	u := *user
	return &u, nil
}

var (
	_ khata.Repository = (*Store)(nil)
	_ auth.Repository  = (*Store)(nil)
)
