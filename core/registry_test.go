package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRegisterAndIsConfigured(t *testing.T) {
	registry := NewMemoryCredentialRegistry()
	ctx := context.Background()

	configured, err := registry.IsConfigured(ctx, 98000001)
	if err != nil {
		t.Fatalf("IsConfigured() error = %v", err)
	}
	if configured {
		t.Fatalf("expected unknown organization to be unconfigured")
	}

	record, err := registry.Register(ctx, RegisterOrgInput{
		OrganizationID:   98000001,
		OrganizationName: "Calm Horizons",
		Ticker:           "CALM",
		RefreshToken:     "refresh-token",
		Scopes:           []string{"esi-assets.read_corporation_assets.v1", "publicData"},
		RegisteredBy:     "char-90000001",
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if !record.Active || record.RegisteredAt.IsZero() {
		t.Fatalf("unexpected record %+v", record)
	}

	configured, err = registry.IsConfigured(ctx, 98000001)
	if err != nil || !configured {
		t.Fatalf("IsConfigured() = (%v, %v)", configured, err)
	}
}

func TestRegisterRejectsEmptyScopes(t *testing.T) {
	registry := NewMemoryCredentialRegistry()
	ctx := context.Background()

	cases := [][]string{nil, {}, {"", "  "}}
	for _, scopes := range cases {
		_, err := registry.Register(ctx, RegisterOrgInput{
			OrganizationID: 98000001,
			RefreshToken:   "refresh-token",
			Scopes:         scopes,
		})
		if !errors.Is(err, ErrScopesEmpty) {
			t.Fatalf("Register(%v) error = %v, want ErrScopesEmpty", scopes, err)
		}
	}

	// A rejected write leaves nothing behind.
	if _, found, _ := registry.Get(ctx, 98000001); found {
		t.Fatalf("expected no record after rejected registration")
	}
}

func TestRegisterOverwritesExistingRecord(t *testing.T) {
	registry := NewMemoryCredentialRegistry()
	ctx := context.Background()

	if _, err := registry.Register(ctx, RegisterOrgInput{
		OrganizationID: 98000001,
		RefreshToken:   "old-token",
		Scopes:         []string{"publicData"},
	}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := registry.SetActive(ctx, 98000001, false); err != nil {
		t.Fatalf("SetActive() error = %v", err)
	}

	record, err := registry.Register(ctx, RegisterOrgInput{
		OrganizationID: 98000001,
		RefreshToken:   "new-token",
		Scopes:         []string{"publicData"},
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if record.RefreshToken != "new-token" || !record.Active {
		t.Fatalf("expected re-registration to replace and reactivate, got %+v", record)
	}
}

func TestSetActiveControlsIsConfigured(t *testing.T) {
	registry := NewMemoryCredentialRegistry()
	ctx := context.Background()

	if _, err := registry.Register(ctx, RegisterOrgInput{
		OrganizationID: 98000001,
		RefreshToken:   "refresh-token",
		Scopes:         []string{"publicData"},
	}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := registry.SetActive(ctx, 98000001, false); err != nil {
		t.Fatalf("SetActive() error = %v", err)
	}

	configured, err := registry.IsConfigured(ctx, 98000001)
	if err != nil {
		t.Fatalf("IsConfigured() error = %v", err)
	}
	if configured {
		t.Fatalf("deactivated record must read unconfigured")
	}
	if _, found, _ := registry.Get(ctx, 98000001); !found {
		t.Fatalf("deactivated record must still exist")
	}

	if err := registry.SetActive(ctx, 98000001, true); err != nil {
		t.Fatalf("SetActive(true) error = %v", err)
	}
	if configured, _ = registry.IsConfigured(ctx, 98000001); !configured {
		t.Fatalf("expected reactivated record to be configured")
	}
}

func TestSetActiveUnknownOrganization(t *testing.T) {
	registry := NewMemoryCredentialRegistry()
	if err := registry.SetActive(context.Background(), 404, false); !errors.Is(err, ErrOrganizationNotRegistered) {
		t.Fatalf("expected ErrOrganizationNotRegistered, got %v", err)
	}
}

func TestListActiveSkipsUnconfigured(t *testing.T) {
	registry := NewMemoryCredentialRegistry()
	ctx := context.Background()

	for _, organizationID := range []int64{98000003, 98000001, 98000002} {
		if _, err := registry.Register(ctx, RegisterOrgInput{
			OrganizationID: organizationID,
			RefreshToken:   "refresh-token",
			Scopes:         []string{"publicData"},
		}); err != nil {
			t.Fatalf("Register(%d) error = %v", organizationID, err)
		}
	}
	if err := registry.SetActive(ctx, 98000002, false); err != nil {
		t.Fatalf("SetActive() error = %v", err)
	}

	records, err := registry.ListActive(ctx)
	if err != nil {
		t.Fatalf("ListActive() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 active records, got %d", len(records))
	}
	if records[0].OrganizationID != 98000001 || records[1].OrganizationID != 98000003 {
		t.Fatalf("expected stable ordering, got %+v", records)
	}
}

func TestRemove(t *testing.T) {
	registry := NewMemoryCredentialRegistry()
	ctx := context.Background()

	if err := registry.Remove(ctx, 98000001); !errors.Is(err, ErrOrganizationNotRegistered) {
		t.Fatalf("expected ErrOrganizationNotRegistered, got %v", err)
	}

	if _, err := registry.Register(ctx, RegisterOrgInput{
		OrganizationID: 98000001,
		RefreshToken:   "refresh-token",
		Scopes:         []string{"publicData"},
	}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := registry.Remove(ctx, 98000001); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, found, _ := registry.Get(ctx, 98000001); found {
		t.Fatalf("expected record to be gone")
	}
}

func TestRecordRefresh(t *testing.T) {
	registry := NewMemoryCredentialRegistry()
	ctx := context.Background()

	if _, err := registry.Register(ctx, RegisterOrgInput{
		OrganizationID: 98000001,
		RefreshToken:   "old-token",
		Scopes:         []string{"publicData"},
	}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	refreshedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := registry.RecordRefresh(ctx, RefreshOrgInput{
		OrganizationID: 98000001,
		RefreshToken:   "rotated-token",
		MemberCount:    42,
		RefreshedAt:    refreshedAt,
	}); err != nil {
		t.Fatalf("RecordRefresh() error = %v", err)
	}

	record, found, err := registry.Get(ctx, 98000001)
	if err != nil || !found {
		t.Fatalf("Get() = (%v, %v)", found, err)
	}
	if record.RefreshToken != "rotated-token" {
		t.Fatalf("expected rotated token, got %q", record.RefreshToken)
	}
	if record.MemberCount != 42 {
		t.Fatalf("expected member count 42, got %d", record.MemberCount)
	}
	if !record.LastRefreshAt.Equal(refreshedAt) {
		t.Fatalf("expected refresh timestamp %v, got %v", refreshedAt, record.LastRefreshAt)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	registry := NewMemoryCredentialRegistry()
	ctx := context.Background()

	if _, err := registry.Register(ctx, RegisterOrgInput{
		OrganizationID: 98000001,
		RefreshToken:   "refresh-token",
		Scopes:         []string{"publicData"},
	}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	record, _, _ := registry.Get(ctx, 98000001)
	record.Scopes[0] = "mutated"

	reread, _, _ := registry.Get(ctx, 98000001)
	if reread.Scopes[0] != "publicData" {
		t.Fatalf("expected stored record to be isolated from caller mutation")
	}
}
