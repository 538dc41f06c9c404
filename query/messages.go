package query

import (
	"fmt"
	"strings"
	"time"

	"github.com/dstevens79/eve-corp-auth/core"
)

const (
	TypeGetUser             = "auth.query.user.get"
	TypeListUsers           = "auth.query.user.list"
	TypeFindUserByCharacter = "auth.query.user.find_by_character"
	TypeGetOrganization     = "auth.query.organization.get"
	TypeListOrganizations   = "auth.query.organization.list"
	TypeCheckPermission     = "auth.query.permission.check"
)

type GetUserMessage struct {
	PrincipalID string
}

func (GetUserMessage) Type() string { return TypeGetUser }

func (m GetUserMessage) Validate() error {
	if strings.TrimSpace(m.PrincipalID) == "" {
		return fmt.Errorf("query: principal id is required")
	}
	return nil
}

type ListUsersMessage struct{}

func (ListUsersMessage) Type() string { return TypeListUsers }

type FindUserByCharacterMessage struct {
	CharacterID int64
}

func (FindUserByCharacterMessage) Type() string { return TypeFindUserByCharacter }

func (m FindUserByCharacterMessage) Validate() error {
	if m.CharacterID <= 0 {
		return fmt.Errorf("query: character id is required")
	}
	return nil
}

type GetOrganizationMessage struct {
	OrganizationID int64
}

func (GetOrganizationMessage) Type() string { return TypeGetOrganization }

func (m GetOrganizationMessage) Validate() error {
	if m.OrganizationID <= 0 {
		return fmt.Errorf("query: organization id is required")
	}
	return nil
}

type ListOrganizationsMessage struct{}

func (ListOrganizationsMessage) Type() string { return TypeListOrganizations }

type CheckPermissionMessage struct {
	Actor      core.Principal
	Capability core.Capability
}

func (CheckPermissionMessage) Type() string { return TypeCheckPermission }

func (m CheckPermissionMessage) Validate() error {
	if strings.TrimSpace(string(m.Capability)) == "" {
		return fmt.Errorf("query: capability is required")
	}
	return nil
}

// OrganizationView is the read-side projection of a registry record.
// Sealed refresh tokens never leave the store through queries.
type OrganizationView struct {
	OrganizationID   int64
	OrganizationName string
	Ticker           string
	Scopes           []string
	Active           bool
	Configured       bool
	MemberCount      int
	RegisteredBy     string
	RegisteredAt     time.Time
	LastRefreshAt    time.Time
}

func organizationView(record core.OrgCredential) OrganizationView {
	return OrganizationView{
		OrganizationID:   record.OrganizationID,
		OrganizationName: record.OrganizationName,
		Ticker:           record.Ticker,
		Scopes:           append([]string(nil), record.Scopes...),
		Active:           record.Active,
		Configured:       record.Configured(),
		MemberCount:      record.MemberCount,
		RegisteredBy:     record.RegisteredBy,
		RegisteredAt:     record.RegisteredAt,
		LastRefreshAt:    record.LastRefreshAt,
	}
}

type PermissionDecision struct {
	Allowed    bool
	Capability core.Capability
	Reason     string
}
