package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRefreshOrganizationRotatesToken(t *testing.T) {
	fixture := newServiceFixture(t, WithSecretProvider(staticSecretProvider{prefix: "enc:"}))
	fixture.exchange.refreshed = ExchangedCredential{
		AccessToken:  "new-access",
		RefreshToken: "rotated-token",
		Scopes:       []string{"publicData"},
	}
	if _, err := fixture.registry.Register(context.Background(), RegisterOrgInput{
		OrganizationID: 98000001,
		RefreshToken:   "enc:stored-token",
		Scopes:         []string{"publicData"},
	}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if err := fixture.service.RefreshOrganization(context.Background(), 98000001); err != nil {
		t.Fatalf("RefreshOrganization() error = %v", err)
	}

	record, _, _ := fixture.registry.Get(context.Background(), 98000001)
	if record.RefreshToken != "enc:rotated-token" {
		t.Fatalf("expected rotated protected token, got %q", record.RefreshToken)
	}
	if record.LastRefreshAt.IsZero() {
		t.Fatalf("expected refresh timestamp")
	}
}

func TestRefreshOrganizationKeepsTokenWhenProviderOmitsIt(t *testing.T) {
	fixture := newServiceFixture(t)
	fixture.exchange.refreshed = ExchangedCredential{AccessToken: "new-access"}
	registerFixtureOrg(t, fixture.registry, 98000001)

	if err := fixture.service.RefreshOrganization(context.Background(), 98000001); err != nil {
		t.Fatalf("RefreshOrganization() error = %v", err)
	}

	record, _, _ := fixture.registry.Get(context.Background(), 98000001)
	if record.RefreshToken != "refresh-token" {
		t.Fatalf("expected original token to survive, got %q", record.RefreshToken)
	}
}

func TestRefreshOrganizationRetriesTransientFailures(t *testing.T) {
	fixture := newServiceFixture(t)
	fixture.exchange.refreshErrs = []error{
		errors.New("upstream timeout"),
		errors.New("upstream timeout"),
		nil,
	}
	fixture.exchange.refreshed = ExchangedCredential{RefreshToken: "rotated-token"}
	registerFixtureOrg(t, fixture.registry, 98000001)

	if err := fixture.service.RefreshOrganization(context.Background(), 98000001); err != nil {
		t.Fatalf("RefreshOrganization() error = %v", err)
	}
	if fixture.exchange.refreshCalls != 3 {
		t.Fatalf("expected 3 attempts, got %d", fixture.exchange.refreshCalls)
	}
}

func TestRefreshOrganizationParksAfterUnrecoverableError(t *testing.T) {
	fixture := newServiceFixture(t)
	fixture.exchange.refreshErr = errors.New("invalid_grant: token revoked")
	registerFixtureOrg(t, fixture.registry, 98000001)

	if err := fixture.service.RefreshOrganization(context.Background(), 98000001); err == nil {
		t.Fatalf("expected error")
	}
	if fixture.exchange.refreshCalls != 1 {
		t.Fatalf("expected no retry on revocation, got %d attempts", fixture.exchange.refreshCalls)
	}

	configured, _ := fixture.registry.IsConfigured(context.Background(), 98000001)
	if configured {
		t.Fatalf("expected parked record to read unconfigured")
	}
	if _, found, _ := fixture.registry.Get(context.Background(), 98000001); !found {
		t.Fatalf("parked record must still exist for re-registration")
	}
}

func TestRefreshOrganizationParksAfterExhaustedAttempts(t *testing.T) {
	fixture := newServiceFixture(t)
	fixture.exchange.refreshErr = errors.New("upstream timeout")
	registerFixtureOrg(t, fixture.registry, 98000001)

	if err := fixture.service.RefreshOrganization(context.Background(), 98000001); err == nil {
		t.Fatalf("expected error")
	}
	if fixture.exchange.refreshCalls != defaultRefreshMaxAttempts {
		t.Fatalf("expected %d attempts, got %d", defaultRefreshMaxAttempts, fixture.exchange.refreshCalls)
	}
	if configured, _ := fixture.registry.IsConfigured(context.Background(), 98000001); configured {
		t.Fatalf("expected parked record after exhausted attempts")
	}
}

func TestRefreshOrganizationUnknownOrganization(t *testing.T) {
	fixture := newServiceFixture(t)
	if err := fixture.service.RefreshOrganization(context.Background(), 404); err == nil {
		t.Fatalf("expected unknown organization error")
	}
}

func TestRefreshOrganizationUpdatesMemberCount(t *testing.T) {
	counting := &countingIdentityResolver{memberCount: 57}
	counting.identity = leaderIdentity()
	fixture := newServiceFixture(t, WithIdentityResolver(counting))
	fixture.exchange.refreshed = ExchangedCredential{RefreshToken: "rotated-token"}
	registerFixtureOrg(t, fixture.registry, 98000001)

	if err := fixture.service.RefreshOrganization(context.Background(), 98000001); err != nil {
		t.Fatalf("RefreshOrganization() error = %v", err)
	}
	record, _, _ := fixture.registry.Get(context.Background(), 98000001)
	if record.MemberCount != 57 {
		t.Fatalf("expected member count 57, got %d", record.MemberCount)
	}
}

func TestRefreshAllOrganizationsCollectsFailures(t *testing.T) {
	fixture := newServiceFixture(t)
	fixture.exchange.refreshed = ExchangedCredential{RefreshToken: "rotated-token"}
	registerFixtureOrg(t, fixture.registry, 98000001)
	registerFixtureOrg(t, fixture.registry, 98000002)

	if err := fixture.service.RefreshAllOrganizations(context.Background()); err != nil {
		t.Fatalf("RefreshAllOrganizations() error = %v", err)
	}

	fixture.exchange.refreshErr = errors.New("invalid_grant")
	if err := fixture.service.RefreshAllOrganizations(context.Background()); err == nil {
		t.Fatalf("expected aggregated failure")
	}
}

func TestMemoryRegistryLocker(t *testing.T) {
	locker := NewMemoryRegistryLocker()
	ctx := context.Background()

	handle, err := locker.Acquire(ctx, "org-refresh:98000001", time.Minute)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if _, err := locker.Acquire(ctx, "org-refresh:98000001", time.Minute); err == nil {
		t.Fatalf("expected contention error")
	}
	if _, err := locker.Acquire(ctx, "org-refresh:98000002", time.Minute); err != nil {
		t.Fatalf("expected independent keys, got %v", err)
	}

	if err := handle.Release(ctx); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if err := handle.Release(ctx); err != nil {
		t.Fatalf("second Release() error = %v", err)
	}
	if _, err := locker.Acquire(ctx, "org-refresh:98000001", time.Minute); err != nil {
		t.Fatalf("expected reacquire after release, got %v", err)
	}
}

func TestMemoryRegistryLockerReclaimsExpiredHold(t *testing.T) {
	locker := NewMemoryRegistryLocker()
	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	locker.now = func() time.Time { return current }
	ctx := context.Background()

	if _, err := locker.Acquire(ctx, "org-refresh:98000001", time.Minute); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	current = current.Add(2 * time.Minute)
	if _, err := locker.Acquire(ctx, "org-refresh:98000001", time.Minute); err != nil {
		t.Fatalf("expected expired hold to be reclaimed, got %v", err)
	}
}

func TestExponentialBackoffScheduler(t *testing.T) {
	scheduler := ExponentialBackoffScheduler{Initial: time.Second, Max: 8 * time.Second}

	previous := time.Duration(0)
	for attempt := 1; attempt <= 6; attempt++ {
		delay := scheduler.NextDelay(attempt)
		if delay <= 0 {
			t.Fatalf("attempt %d: expected positive delay", attempt)
		}
		if delay > 8*time.Second {
			t.Fatalf("attempt %d: delay %v exceeds cap", attempt, delay)
		}
		if attempt <= 3 && delay < previous {
			t.Fatalf("attempt %d: expected non-decreasing base delay", attempt)
		}
		previous = delay
	}
}

func TestIsUnrecoverableRefreshError(t *testing.T) {
	if isUnrecoverableRefreshError(nil) {
		t.Fatalf("nil is recoverable")
	}
	if isUnrecoverableRefreshError(errors.New("upstream timeout")) {
		t.Fatalf("transient failure must be retried")
	}
	if !isUnrecoverableRefreshError(errors.New("invalid_grant: revoked")) {
		t.Fatalf("revocation must not be retried")
	}
	if !isUnrecoverableRefreshError(ErrProviderDenied) {
		t.Fatalf("denial must not be retried")
	}
}

func TestWaitWithContext(t *testing.T) {
	if err := waitWithContext(context.Background(), 0); err != nil {
		t.Fatalf("zero delay error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := waitWithContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}
