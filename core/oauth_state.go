package core

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"
)

const defaultLoginStateTTL = 15 * time.Minute

// LoginStateRecord is the anti-forgery token minted when a login
// redirect is issued. Consume is single-use: a replayed state fails.
type LoginStateRecord struct {
	State           string
	RedirectURI     string
	RequestedScopes []string
	CreatedAt       time.Time
	ExpiresAt       time.Time
}

type LoginStateStore interface {
	Save(ctx context.Context, record LoginStateRecord) error
	Consume(ctx context.Context, state string) (LoginStateRecord, error)
}

type MemoryLoginStateStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]LoginStateRecord
}

func NewMemoryLoginStateStore(ttl time.Duration) *MemoryLoginStateStore {
	if ttl <= 0 {
		ttl = defaultLoginStateTTL
	}
	return &MemoryLoginStateStore{
		ttl:     ttl,
		entries: map[string]LoginStateRecord{},
	}
}

func (s *MemoryLoginStateStore) Save(_ context.Context, record LoginStateRecord) error {
	if s == nil {
		return fmt.Errorf("core: login state store is not configured")
	}
	state := strings.TrimSpace(record.State)
	if state == "" {
		return fmt.Errorf("core: login state is required")
	}

	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.ExpiresAt.IsZero() {
		record.ExpiresAt = record.CreatedAt.Add(s.ttl)
	}

	s.mu.Lock()
	s.entries[state] = cloneLoginStateRecord(record)
	s.mu.Unlock()

	return nil
}

func (s *MemoryLoginStateStore) Consume(_ context.Context, state string) (LoginStateRecord, error) {
	if s == nil {
		return LoginStateRecord{}, fmt.Errorf("core: login state store is not configured")
	}
	state = strings.TrimSpace(state)
	if state == "" {
		return LoginStateRecord{}, fmt.Errorf("core: login state is required")
	}

	s.mu.Lock()
	record, ok := s.entries[state]
	if ok {
		delete(s.entries, state)
	}
	s.mu.Unlock()

	if !ok {
		return LoginStateRecord{}, fmt.Errorf("core: login state not found")
	}
	if !record.ExpiresAt.IsZero() && time.Now().UTC().After(record.ExpiresAt) {
		return LoginStateRecord{}, fmt.Errorf("core: login state expired")
	}

	return cloneLoginStateRecord(record), nil
}

func generateLoginState() (string, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("core: generate login state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func cloneLoginStateRecord(record LoginStateRecord) LoginStateRecord {
	cloned := record
	cloned.RequestedScopes = append([]string(nil), record.RequestedScopes...)
	return cloned
}
