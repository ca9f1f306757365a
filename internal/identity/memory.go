package identity

import (
	"context"
	"sync"
	"time"

	"signon.org/internal/ids"
)

// InMemory implements Store with in-process concurrency safety. Used by
// tests and for local runs without a database DSN.
type InMemory struct {
	mu      sync.RWMutex
	byID    map[string]*Identity
	byEmail map[string]string // email -> id
}

var _ Store = (*InMemory)(nil)

// NewInMemory creates an empty identity store.
func NewInMemory() *InMemory {
	return &InMemory{
		byID:    make(map[string]*Identity),
		byEmail: make(map[string]string),
	}
}

func (s *InMemory) Create(ctx context.Context, ident *Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[ident.Email]; exists {
		return ErrEmailTaken
	}
	if ident.ID == "" {
		ident.ID = ids.New()
	}
	now := time.Now().UTC()
	if ident.CreatedAt.IsZero() {
		ident.CreatedAt = now
	}
	if ident.UpdatedAt.IsZero() {
		ident.UpdatedAt = now
	}
	cp := *ident
	s.byID[cp.ID] = &cp
	s.byEmail[cp.Email] = cp.ID
	return nil
}

func (s *InMemory) FindByID(ctx context.Context, id string) (*Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ident, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *ident
	return &cp, nil
}

func (s *InMemory) FindByEmail(ctx context.Context, email string) (*Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s.byID[id]
	return &cp, nil
}

func (s *InMemory) UpdatePassword(ctx context.Context, id, passwordHash string) (*Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ident, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	ident.PasswordHash = passwordHash
	ident.UpdatedAt = time.Now().UTC()
	cp := *ident
	return &cp, nil
}

// Count reports the number of stored identities for the given email.
func (s *InMemory) Count(email string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, ident := range s.byID {
		if ident.Email == email {
			n++
		}
	}
	return n
}
