package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryCredentialRegistry is the default registry when no persistent
// store is wired. Writes are serialized; the single-writer invariant is
// preserved under real threads by the mutex.
type MemoryCredentialRegistry struct {
	mu      sync.RWMutex
	records map[int64]OrgCredential
	now     func() time.Time
}

func NewMemoryCredentialRegistry() *MemoryCredentialRegistry {
	return &MemoryCredentialRegistry{
		records: map[int64]OrgCredential{},
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryCredentialRegistry) Register(_ context.Context, in RegisterOrgInput) (OrgCredential, error) {
	if r == nil {
		return OrgCredential{}, fmt.Errorf("core: credential registry is not configured")
	}
	if in.OrganizationID == 0 {
		return OrgCredential{}, fmt.Errorf("core: organization id is required")
	}
	scopes := normalizeScopes(in.Scopes)
	if len(scopes) == 0 {
		return OrgCredential{}, fmt.Errorf("%w: organization %d", ErrScopesEmpty, in.OrganizationID)
	}
	if strings.TrimSpace(in.RefreshToken) == "" {
		return OrgCredential{}, fmt.Errorf("core: refresh token is required")
	}

	record := OrgCredential{
		OrganizationID:   in.OrganizationID,
		OrganizationName: strings.TrimSpace(in.OrganizationName),
		Ticker:           strings.TrimSpace(in.Ticker),
		ClientIDOverride: strings.TrimSpace(in.ClientIDOverride),
		RefreshToken:     strings.TrimSpace(in.RefreshToken),
		Scopes:           scopes,
		RegisteredBy:     strings.TrimSpace(in.RegisteredBy),
		RegisteredAt:     r.now(),
		Active:           true,
	}

	r.mu.Lock()
	r.records[in.OrganizationID] = record
	r.mu.Unlock()

	return cloneOrgCredential(record), nil
}

func (r *MemoryCredentialRegistry) Get(_ context.Context, organizationID int64) (OrgCredential, bool, error) {
	if r == nil {
		return OrgCredential{}, false, fmt.Errorf("core: credential registry is not configured")
	}
	r.mu.RLock()
	record, ok := r.records[organizationID]
	r.mu.RUnlock()
	if !ok {
		return OrgCredential{}, false, nil
	}
	return cloneOrgCredential(record), true, nil
}

func (r *MemoryCredentialRegistry) ListActive(_ context.Context) ([]OrgCredential, error) {
	if r == nil {
		return nil, fmt.Errorf("core: credential registry is not configured")
	}
	r.mu.RLock()
	out := make([]OrgCredential, 0, len(r.records))
	for _, record := range r.records {
		if record.Configured() {
			out = append(out, cloneOrgCredential(record))
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].OrganizationID < out[j].OrganizationID
	})
	return out, nil
}

// SetActive toggles usability without losing registration history.
func (r *MemoryCredentialRegistry) SetActive(_ context.Context, organizationID int64, active bool) error {
	if r == nil {
		return fmt.Errorf("core: credential registry is not configured")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[organizationID]
	if !ok {
		return fmt.Errorf("%w: organization %d", ErrOrganizationNotRegistered, organizationID)
	}
	record.Active = active
	r.records[organizationID] = record
	return nil
}

// Remove hard-deletes a record. Administrative cleanup only; normal
// deactivation goes through SetActive.
func (r *MemoryCredentialRegistry) Remove(_ context.Context, organizationID int64) error {
	if r == nil {
		return fmt.Errorf("core: credential registry is not configured")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[organizationID]; !ok {
		return fmt.Errorf("%w: organization %d", ErrOrganizationNotRegistered, organizationID)
	}
	delete(r.records, organizationID)
	return nil
}

func (r *MemoryCredentialRegistry) IsConfigured(_ context.Context, organizationID int64) (bool, error) {
	if r == nil {
		return false, fmt.Errorf("core: credential registry is not configured")
	}
	r.mu.RLock()
	record, ok := r.records[organizationID]
	r.mu.RUnlock()
	if !ok {
		return false, nil
	}
	return record.Configured(), nil
}

func (r *MemoryCredentialRegistry) RecordRefresh(_ context.Context, in RefreshOrgInput) error {
	if r == nil {
		return fmt.Errorf("core: credential registry is not configured")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[in.OrganizationID]
	if !ok {
		return fmt.Errorf("%w: organization %d", ErrOrganizationNotRegistered, in.OrganizationID)
	}
	if token := strings.TrimSpace(in.RefreshToken); token != "" {
		record.RefreshToken = token
	}
	if in.MemberCount > 0 {
		record.MemberCount = in.MemberCount
	}
	refreshedAt := in.RefreshedAt
	if refreshedAt.IsZero() {
		refreshedAt = r.now()
	}
	record.LastRefreshAt = refreshedAt
	r.records[in.OrganizationID] = record
	return nil
}

func normalizeScopes(input []string) []string {
	if len(input) == 0 {
		return []string{}
	}
	seen := map[string]struct{}{}
	out := make([]string, 0, len(input))
	for _, scope := range input {
		scope = strings.TrimSpace(scope)
		if scope == "" {
			continue
		}
		if _, ok := seen[scope]; ok {
			continue
		}
		seen[scope] = struct{}{}
		out = append(out, scope)
	}
	sort.Strings(out)
	return out
}

func cloneOrgCredential(record OrgCredential) OrgCredential {
	cloned := record
	cloned.Scopes = append([]string(nil), record.Scopes...)
	return cloned
}

var _ CredentialRegistry = (*MemoryCredentialRegistry)(nil)
