package core

import (
	"errors"
	"testing"
	"time"
)

func TestCallbackTransitions(t *testing.T) {
	cases := []struct {
		name    string
		from    CallbackState
		to      CallbackState
		allowed bool
	}{
		{name: "processing to success", from: CallbackStateProcessing, to: CallbackStateSuccess, allowed: true},
		{name: "processing to error", from: CallbackStateProcessing, to: CallbackStateError, allowed: true},
		{name: "processing to registration", from: CallbackStateProcessing, to: CallbackStateRegistrationRequired, allowed: true},
		{name: "registration to success", from: CallbackStateRegistrationRequired, to: CallbackStateSuccess, allowed: true},
		{name: "registration to error", from: CallbackStateRegistrationRequired, to: CallbackStateError, allowed: true},
		{name: "success is terminal", from: CallbackStateSuccess, to: CallbackStateError, allowed: false},
		{name: "error is terminal", from: CallbackStateError, to: CallbackStateSuccess, allowed: false},
		{name: "no reentry to processing", from: CallbackStateRegistrationRequired, to: CallbackStateProcessing, allowed: false},
	}
	now := time.Now().UTC()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tx := &CallbackTransaction{State: tc.from}
			err := tx.TransitionTo(tc.to, "", now)
			if tc.allowed && err != nil {
				t.Fatalf("TransitionTo() error = %v", err)
			}
			if !tc.allowed {
				if !errors.Is(err, ErrInvalidCallbackTransition) {
					t.Fatalf("expected ErrInvalidCallbackTransition, got %v", err)
				}
				if tx.State != tc.from {
					t.Fatalf("rejected transition must not change state")
				}
			}
		})
	}
}

func TestTransitionStampsResolution(t *testing.T) {
	now := time.Now().UTC()
	tx := &CallbackTransaction{State: CallbackStateProcessing, StartedAt: now}

	if err := tx.TransitionTo(CallbackStateRegistrationRequired, "organization is not registered", now); err != nil {
		t.Fatalf("TransitionTo() error = %v", err)
	}
	if !tx.ResolvedAt.IsZero() {
		t.Fatalf("registration_required is not a resolution")
	}
	if tx.Terminal() {
		t.Fatalf("registration_required must stay open")
	}

	if err := tx.TransitionTo(CallbackStateSuccess, "", now); err != nil {
		t.Fatalf("TransitionTo() error = %v", err)
	}
	if tx.ResolvedAt.IsZero() || !tx.Terminal() {
		t.Fatalf("expected resolved terminal transaction, got %+v", tx)
	}
}

func TestConfigured(t *testing.T) {
	var nilRecord *OrgCredential
	if nilRecord.Configured() {
		t.Fatalf("nil record must not be configured")
	}

	record := &OrgCredential{
		OrganizationID: 98000001,
		Scopes:         []string{"publicData"},
		Active:         true,
	}
	if !record.Configured() {
		t.Fatalf("expected configured record")
	}

	record.Active = false
	if record.Configured() {
		t.Fatalf("inactive record must not be configured")
	}

	record.Active = true
	record.Scopes = nil
	if record.Configured() {
		t.Fatalf("scopeless record must not be configured")
	}
}

func TestProvisionalRole(t *testing.T) {
	identity := CharacterIdentity{}
	if role := identity.ProvisionalRole(); role != RoleOrgMember {
		t.Fatalf("expected org-member, got %q", role)
	}

	identity.IsOrgOfficer = true
	if role := identity.ProvisionalRole(); role != RoleOrgDirector {
		t.Fatalf("expected org-director, got %q", role)
	}

	identity.IsOrgLeader = true
	if role := identity.ProvisionalRole(); role != RoleOrgAdmin {
		t.Fatalf("expected org-admin for leader, got %q", role)
	}
}

func TestCharacterIdentityValidate(t *testing.T) {
	valid := CharacterIdentity{
		CharacterID:    90000001,
		CharacterName:  "Avi Sable",
		OrganizationID: 98000001,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	missingCharacter := valid
	missingCharacter.CharacterID = 0
	if err := missingCharacter.Validate(); err == nil {
		t.Fatalf("expected character id rejection")
	}

	missingName := valid
	missingName.CharacterName = "   "
	if err := missingName.Validate(); err == nil {
		t.Fatalf("expected character name rejection")
	}

	missingOrg := valid
	missingOrg.OrganizationID = 0
	if err := missingOrg.Validate(); err == nil {
		t.Fatalf("expected organization id rejection")
	}
}
