package core

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// MemorySessionStore holds the single current principal. It starts
// empty and is passed explicitly to consumers; there is no package-level
// instance.
type MemorySessionStore struct {
	mu      sync.RWMutex
	current *Principal
	now     func() time.Time
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Login replaces the current principal. The store enforces only the
// shape invariant: a stored principal always carries a resolved,
// non-empty permission set. Authorization is the caller's duty.
func (s *MemorySessionStore) Login(principal Principal) error {
	if s == nil {
		return fmt.Errorf("core: session store is not configured")
	}
	if err := principal.Validate(); err != nil {
		return err
	}
	if principal.Permissions.IsZero() {
		return fmt.Errorf("core: principal %q has an empty permission set", principal.ID)
	}
	principal.LastLoginAt = s.now()
	principal.Active = true

	s.mu.Lock()
	clone := principal
	s.current = &clone
	s.mu.Unlock()
	return nil
}

// Logout clears the current principal. Always safe, including when no
// one is logged in.
func (s *MemorySessionStore) Logout() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
}

func (s *MemorySessionStore) Current() (Principal, bool) {
	if s == nil {
		return Principal{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return Principal{}, false
	}
	return *s.current, true
}

// UpdateRole re-resolves the stored principal's permissions for the new
// role. The caller must have permission-checked the acting principal
// before invoking this.
func (s *MemorySessionStore) UpdateRole(principalID string, role Role) (Principal, error) {
	if s == nil {
		return Principal{}, fmt.Errorf("core: session store is not configured")
	}
	if err := role.Validate(); err != nil {
		return Principal{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil || strings.TrimSpace(principalID) == "" || s.current.ID != principalID {
		return Principal{}, fmt.Errorf("%w: %q", ErrPrincipalNotFound, principalID)
	}
	permissions, err := PermissionsFor(role)
	if err != nil {
		return Principal{}, err
	}
	if permissions.IsZero() {
		return Principal{}, fmt.Errorf("core: role %q resolves to an empty permission set", role)
	}
	s.current.Role = role
	s.current.Permissions = permissions
	return *s.current, nil
}

var _ SessionStore = (*MemorySessionStore)(nil)
