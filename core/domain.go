package core

import (
	"fmt"
	"strings"
	"time"
)

// AuthMethod records how a principal was provisioned. SSO principals are
// deactivated rather than deleted; local ones may be hard-deleted.
type AuthMethod string

const (
	AuthMethodExternalSSO     AuthMethod = "external-sso"
	AuthMethodLocalCredential AuthMethod = "local-credential"
)

func (m AuthMethod) Validate() error {
	switch m {
	case AuthMethodExternalSSO, AuthMethodLocalCredential:
		return nil
	}
	return fmt.Errorf("core: invalid auth method %q", string(m))
}

// Principal is the authenticated actor. The session store owns the
// single current principal; OrganizationID is a non-owning reference
// into the credential registry.
type Principal struct {
	ID               string
	DisplayName      string
	CharacterID      int64
	OrganizationID   int64
	OrganizationName string
	AllianceName     string
	AuthMethod       AuthMethod
	Role             Role
	Permissions      PermissionSet
	IsOrgLeader      bool
	IsOrgOfficer     bool
	LastLoginAt      time.Time
	Active           bool
}

func (p *Principal) Validate() error {
	if p == nil {
		return fmt.Errorf("core: principal is required")
	}
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("core: principal id is required")
	}
	if err := p.AuthMethod.Validate(); err != nil {
		return err
	}
	return p.Role.Validate()
}

// OrgCredential is one corporation's registered SSO credential. At most
// one record exists per organization id; a record with no scopes is
// treated as not configured even while present.
type OrgCredential struct {
	OrganizationID   int64
	OrganizationName string
	Ticker           string
	ClientIDOverride string
	RefreshToken     string
	Scopes           []string
	RegisteredBy     string
	RegisteredAt     time.Time
	LastRefreshAt    time.Time
	Active           bool
	MemberCount      int
}

// Configured reports whether the record can serve logins: active with a
// non-empty scope list.
func (c *OrgCredential) Configured() bool {
	return c != nil && c.Active && len(c.Scopes) > 0
}

// CallbackState is the callback transaction's phase. A transaction is
// ephemeral; it resolves into a session update, a registry update, or
// nothing.
type CallbackState string

const (
	CallbackStateProcessing           CallbackState = "processing"
	CallbackStateSuccess              CallbackState = "success"
	CallbackStateError                CallbackState = "error"
	CallbackStateRegistrationRequired CallbackState = "registration_required"
)

func callbackTransitionAllowed(current, next CallbackState) bool {
	allowed := map[CallbackState]map[CallbackState]struct{}{
		CallbackStateProcessing: {
			CallbackStateSuccess:              {},
			CallbackStateError:                {},
			CallbackStateRegistrationRequired: {},
		},
		CallbackStateRegistrationRequired: {
			CallbackStateSuccess: {},
			CallbackStateError:   {},
		},
		CallbackStateSuccess: {},
		CallbackStateError:   {},
	}
	_, ok := allowed[current][next]
	return ok
}

// CallbackTransaction carries one redirect's worth of state, including
// the prospective identity and the exchange's refresh token so a later
// registration does not have to re-derive either.
type CallbackTransaction struct {
	State      CallbackState
	StateToken string
	Identity   CharacterIdentity
	Credential ExchangedCredential
	Reason     string
	StartedAt  time.Time
	ResolvedAt time.Time
}

func (t *CallbackTransaction) TransitionTo(state CallbackState, reason string, now time.Time) error {
	if t == nil {
		return nil
	}
	if t.State == state {
		if strings.TrimSpace(reason) != "" {
			t.Reason = strings.TrimSpace(reason)
		}
		return nil
	}
	if !callbackTransitionAllowed(t.State, state) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidCallbackTransition, t.State, state)
	}
	t.State = state
	if strings.TrimSpace(reason) != "" {
		t.Reason = strings.TrimSpace(reason)
	}
	if state == CallbackStateSuccess || state == CallbackStateError {
		t.ResolvedAt = now
	}
	return nil
}

// Terminal reports whether the transaction can no longer move.
func (t *CallbackTransaction) Terminal() bool {
	if t == nil {
		return true
	}
	return t.State == CallbackStateSuccess || t.State == CallbackStateError
}

// CharacterIdentity is the verified payload returned by the exchange:
// who the character is and where they stand in their corporation.
type CharacterIdentity struct {
	CharacterID      int64
	CharacterName    string
	OrganizationID   int64
	OrganizationName string
	AllianceName     string
	GrantedScopes    []string
	IsOrgLeader      bool
	IsOrgOfficer     bool
}

func (i CharacterIdentity) Validate() error {
	if i.CharacterID == 0 {
		return fmt.Errorf("core: character id is required")
	}
	if strings.TrimSpace(i.CharacterName) == "" {
		return fmt.Errorf("core: character name is required")
	}
	if i.OrganizationID == 0 {
		return fmt.Errorf("core: organization id is required")
	}
	return nil
}

// ProvisionalRole derives the first-login role from in-game standing.
// Explicit role changes by an admin take precedence afterwards.
func (i CharacterIdentity) ProvisionalRole() Role {
	switch {
	case i.IsOrgLeader:
		return RoleOrgAdmin
	case i.IsOrgOfficer:
		return RoleOrgDirector
	default:
		return RoleOrgMember
	}
}

// ExchangedCredential is the token material returned by the SSO token
// endpoint for one authorization code.
type ExchangedCredential struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Scopes       []string
	ExpiresAt    time.Time
}
