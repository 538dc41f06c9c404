package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryUserStore is the in-process UserStore. The SQL-backed store is
// the production counterpart; this one backs tests and single-node use.
type MemoryUserStore struct {
	mu    sync.RWMutex
	users map[string]Principal
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: map[string]Principal{}}
}

func (s *MemoryUserStore) Save(_ context.Context, principal Principal) (Principal, error) {
	if s == nil {
		return Principal{}, fmt.Errorf("core: user store is not configured")
	}
	if err := principal.Validate(); err != nil {
		return Principal{}, err
	}

	s.mu.Lock()
	s.users[principal.ID] = principal
	s.mu.Unlock()

	return principal, nil
}

func (s *MemoryUserStore) Get(_ context.Context, id string) (Principal, error) {
	if s == nil {
		return Principal{}, fmt.Errorf("core: user store is not configured")
	}
	id = strings.TrimSpace(id)

	s.mu.RLock()
	principal, ok := s.users[id]
	s.mu.RUnlock()

	if !ok {
		return Principal{}, fmt.Errorf("%w: %q", ErrPrincipalNotFound, id)
	}
	return principal, nil
}

func (s *MemoryUserStore) FindByCharacter(_ context.Context, characterID int64) (Principal, bool, error) {
	if s == nil {
		return Principal{}, false, fmt.Errorf("core: user store is not configured")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, principal := range s.users {
		if principal.CharacterID != 0 && principal.CharacterID == characterID {
			return principal, true, nil
		}
	}
	return Principal{}, false, nil
}

func (s *MemoryUserStore) List(_ context.Context) ([]Principal, error) {
	if s == nil {
		return nil, fmt.Errorf("core: user store is not configured")
	}

	s.mu.RLock()
	out := make([]Principal, 0, len(s.users))
	for _, principal := range s.users {
		out = append(out, principal)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryUserStore) SetActive(_ context.Context, id string, active bool) error {
	if s == nil {
		return fmt.Errorf("core: user store is not configured")
	}
	id = strings.TrimSpace(id)

	s.mu.Lock()
	defer s.mu.Unlock()
	principal, ok := s.users[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrPrincipalNotFound, id)
	}
	principal.Active = active
	s.users[id] = principal
	return nil
}

func (s *MemoryUserStore) Delete(_ context.Context, id string) error {
	if s == nil {
		return fmt.Errorf("core: user store is not configured")
	}
	id = strings.TrimSpace(id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return fmt.Errorf("%w: %q", ErrPrincipalNotFound, id)
	}
	delete(s.users, id)
	return nil
}

var _ UserStore = (*MemoryUserStore)(nil)
