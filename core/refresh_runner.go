package core

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	defaultRefreshMaxAttempts    = 5
	defaultRefreshInitialBackoff = 2 * time.Second
	defaultRefreshMaxBackoff     = 2 * time.Minute
	defaultRefreshLockTTL        = 90 * time.Second
)

// LockHandle releases a held refresh lock. Release is idempotent.
type LockHandle interface {
	Release(ctx context.Context) error
}

// RegistryLocker serializes refresh work per organization so two
// workers never spend the same single-use refresh token.
type RegistryLocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (LockHandle, error)
}

// RefreshBackoffScheduler decides how long to wait before the next
// refresh attempt. Attempt numbering starts at 1.
type RefreshBackoffScheduler interface {
	NextDelay(attempt int) time.Duration
}

// MemberCounter is an optional extension of IdentityResolver. When the
// configured resolver implements it, scheduled refreshes also update
// the organization's member headcount.
type MemberCounter interface {
	MemberCount(ctx context.Context, organizationID int64) (int, error)
}

type memoryLockEntry struct {
	expiresAt time.Time
}

// MemoryRegistryLocker is the in-process RegistryLocker. Expired
// holds are reclaimed on the next Acquire.
type MemoryRegistryLocker struct {
	mu    sync.Mutex
	locks map[string]memoryLockEntry
	now   func() time.Time
}

func NewMemoryRegistryLocker() *MemoryRegistryLocker {
	return &MemoryRegistryLocker{
		locks: map[string]memoryLockEntry{},
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (l *MemoryRegistryLocker) Acquire(_ context.Context, key string, ttl time.Duration) (LockHandle, error) {
	if l == nil {
		return nil, fmt.Errorf("core: registry locker is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("core: lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultRefreshLockTTL
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if entry, held := l.locks[key]; held && now.Before(entry.expiresAt) {
		return nil, fmt.Errorf("core: refresh already in progress for %q", key)
	}
	l.locks[key] = memoryLockEntry{expiresAt: now.Add(ttl)}
	return &memoryLockHandle{locker: l, key: key}, nil
}

type memoryLockHandle struct {
	locker   *MemoryRegistryLocker
	key      string
	released bool
	mu       sync.Mutex
}

func (h *memoryLockHandle) Release(_ context.Context) error {
	if h == nil || h.locker == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return nil
	}
	h.released = true
	h.locker.mu.Lock()
	delete(h.locker.locks, h.key)
	h.locker.mu.Unlock()
	return nil
}

// ExponentialBackoffScheduler doubles the delay per attempt with a
// small jitter, capped at Max.
type ExponentialBackoffScheduler struct {
	Initial time.Duration
	Max     time.Duration
}

func (s ExponentialBackoffScheduler) NextDelay(attempt int) time.Duration {
	initial := s.Initial
	if initial <= 0 {
		initial = defaultRefreshInitialBackoff
	}
	max := s.Max
	if max <= 0 {
		max = defaultRefreshMaxBackoff
	}
	if attempt < 1 {
		attempt = 1
	}

	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			delay = max
			break
		}
	}
	jitter := time.Duration(rand.Int63n(int64(delay)/4 + 1))
	if delay+jitter > max {
		return max
	}
	return delay + jitter
}

// RefreshOrganization renews one registered organization's credential
// with the provider, retrying transient failures with backoff. On an
// unrecoverable failure, or once attempts are exhausted, the record is
// deactivated so operators can see it needs re-registration.
func (s *Service) RefreshOrganization(ctx context.Context, organizationID int64) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"organization_id": organizationID}
	defer func() {
		s.observeOperation(ctx, startedAt, "refresh_organization", err, fields)
	}()

	if s.exchange == nil {
		err = s.mapError(fmt.Errorf("core: exchange provider is required"))
		return err
	}

	lockKey := fmt.Sprintf("org-refresh:%d", organizationID)
	handle, lockErr := s.registryLocker.Acquire(ctx, lockKey, defaultRefreshLockTTL)
	if lockErr != nil {
		err = s.mapError(lockErr)
		return err
	}
	defer func() {
		_ = handle.Release(ctx)
	}()

	record, found, getErr := s.registry.Get(ctx, organizationID)
	if getErr != nil {
		err = s.mapError(getErr)
		return err
	}
	if !found {
		err = s.mapError(fmt.Errorf("%w: organization %d", ErrOrganizationNotRegistered, organizationID))
		return err
	}

	refreshToken, revealErr := s.revealRefreshToken(ctx, record.RefreshToken)
	if revealErr != nil {
		err = s.mapError(revealErr)
		return err
	}

	maxAttempts := s.config.Refresh.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultRefreshMaxAttempts
	}

	var credential ExchangedCredential
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		credential, err = s.exchange.Refresh(ctx, refreshToken, record.Scopes)
		if err == nil {
			break
		}
		if isUnrecoverableRefreshError(err) {
			s.logError(ctx, "credential refresh rejected", map[string]any{
				"organization_id": organizationID,
				"attempt":         attempt,
				"error":           err.Error(),
			})
			if parkErr := s.registry.SetActive(ctx, organizationID, false); parkErr != nil {
				err = s.mapError(parkErr)
				return err
			}
			err = s.mapError(err)
			return err
		}
		if attempt == maxAttempts {
			if parkErr := s.registry.SetActive(ctx, organizationID, false); parkErr != nil {
				err = s.mapError(parkErr)
				return err
			}
			err = s.mapError(fmt.Errorf("core: refresh for organization %d failed after %d attempts: %w", organizationID, maxAttempts, err))
			return err
		}
		delay := s.refreshScheduler.NextDelay(attempt)
		s.logInfo(ctx, "credential refresh retry scheduled", map[string]any{
			"organization_id": organizationID,
			"attempt":         attempt,
			"delay_ms":        delay.Milliseconds(),
		})
		if waitErr := waitWithContext(ctx, delay); waitErr != nil {
			err = s.mapError(waitErr)
			return err
		}
	}

	memberCount := record.MemberCount
	if counter, ok := s.identity.(MemberCounter); ok {
		if count, countErr := counter.MemberCount(ctx, organizationID); countErr == nil {
			memberCount = count
		} else {
			s.logInfo(ctx, "member count refresh skipped", map[string]any{
				"organization_id": organizationID,
				"error":           countErr.Error(),
			})
		}
	}

	nextToken := refreshToken
	if strings.TrimSpace(credential.RefreshToken) != "" {
		nextToken = credential.RefreshToken
	}
	protected, protectErr := s.protectRefreshToken(ctx, nextToken)
	if protectErr != nil {
		err = s.mapError(protectErr)
		return err
	}

	if err = s.registry.RecordRefresh(ctx, RefreshOrgInput{
		OrganizationID: organizationID,
		RefreshToken:   protected,
		MemberCount:    memberCount,
		RefreshedAt:    time.Now().UTC(),
	}); err != nil {
		err = s.mapError(err)
		return err
	}
	return nil
}

// RefreshAllOrganizations walks every active registration. Failures
// are collected so one broken credential does not starve the rest.
func (s *Service) RefreshAllOrganizations(ctx context.Context) error {
	records, err := s.registry.ListActive(ctx)
	if err != nil {
		return s.mapError(err)
	}
	var failed []error
	for _, record := range records {
		if refreshErr := s.RefreshOrganization(ctx, record.OrganizationID); refreshErr != nil {
			failed = append(failed, fmt.Errorf("organization %d: %w", record.OrganizationID, refreshErr))
		}
	}
	if len(failed) > 0 {
		return s.mapError(errors.Join(failed...))
	}
	return nil
}

func isUnrecoverableRefreshError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrProviderDenied) || errors.Is(err, ErrInsufficientPrivilege) {
		return true
	}
	var richErr *goerrors.Error
	if errors.As(err, &richErr) {
		switch richErr.Category {
		case goerrors.CategoryAuth, goerrors.CategoryAuthz, goerrors.CategoryBadInput:
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "invalid_grant") || strings.Contains(msg, "invalid_token")
}

func waitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
