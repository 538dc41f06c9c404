package core

import (
	"context"
	"testing"
	"time"
)

func TestLoginStateRoundTrip(t *testing.T) {
	store := NewMemoryLoginStateStore(0)
	ctx := context.Background()

	record := LoginStateRecord{
		State:           "state-1",
		RedirectURI:     "https://dashboard.example.test/callback",
		RequestedScopes: []string{"publicData"},
	}
	if err := store.Save(ctx, record); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Consume(ctx, "state-1")
	if err != nil {
		t.Fatalf("Consume() error = %v", err)
	}
	if got.RedirectURI != record.RedirectURI {
		t.Fatalf("unexpected record %+v", got)
	}
	if got.CreatedAt.IsZero() || got.ExpiresAt.IsZero() {
		t.Fatalf("expected stamped lifetimes, got %+v", got)
	}
}

func TestConsumeIsSingleUse(t *testing.T) {
	store := NewMemoryLoginStateStore(0)
	ctx := context.Background()

	if err := store.Save(ctx, LoginStateRecord{State: "state-1"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := store.Consume(ctx, "state-1"); err != nil {
		t.Fatalf("first Consume() error = %v", err)
	}
	if _, err := store.Consume(ctx, "state-1"); err == nil {
		t.Fatalf("expected replay rejection")
	}
}

func TestConsumeRejectsExpiredState(t *testing.T) {
	store := NewMemoryLoginStateStore(0)
	ctx := context.Background()

	if err := store.Save(ctx, LoginStateRecord{
		State:     "state-old",
		CreatedAt: time.Now().UTC().Add(-time.Hour),
		ExpiresAt: time.Now().UTC().Add(-30 * time.Minute),
	}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := store.Consume(ctx, "state-old"); err == nil {
		t.Fatalf("expected expiry rejection")
	}
}

func TestSaveRequiresState(t *testing.T) {
	store := NewMemoryLoginStateStore(0)
	if err := store.Save(context.Background(), LoginStateRecord{State: "  "}); err == nil {
		t.Fatalf("expected blank state rejection")
	}
}

func TestGenerateLoginStateIsUnique(t *testing.T) {
	seen := map[string]struct{}{}
	for i := 0; i < 64; i++ {
		state, err := generateLoginState()
		if err != nil {
			t.Fatalf("generateLoginState() error = %v", err)
		}
		if state == "" {
			t.Fatalf("expected non-empty state")
		}
		if _, dup := seen[state]; dup {
			t.Fatalf("expected unique states, got duplicate %q", state)
		}
		seen[state] = struct{}{}
	}
}
