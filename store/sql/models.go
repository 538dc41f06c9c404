package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type orgCredentialRecord struct {
	bun.BaseModel `bun:"table:corp_credentials,alias:cc"`

	ID               string     `bun:"id,pk"`
	OrganizationID   int64      `bun:"organization_id,notnull"`
	OrganizationName string     `bun:"organization_name,notnull"`
	Ticker           string     `bun:"ticker"`
	ClientIDOverride string     `bun:"client_id_override"`
	RefreshToken     string     `bun:"refresh_token,notnull"`
	Scopes           []string   `bun:"scopes,type:jsonb,notnull"`
	RegisteredBy     string     `bun:"registered_by"`
	RegisteredAt     time.Time  `bun:"registered_at,nullzero,notnull"`
	LastRefreshAt    *time.Time `bun:"last_refresh_at,nullzero"`
	Active           bool       `bun:"active,notnull"`
	MemberCount      int        `bun:"member_count,notnull,default:0"`
	CreatedAt        time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt        time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type userRecord struct {
	bun.BaseModel `bun:"table:auth_users,alias:au"`

	ID               string     `bun:"id,pk"`
	DisplayName      string     `bun:"display_name,notnull"`
	CharacterID      int64      `bun:"character_id"`
	OrganizationID   int64      `bun:"organization_id"`
	OrganizationName string     `bun:"organization_name"`
	AllianceName     string     `bun:"alliance_name"`
	AuthMethod       string     `bun:"auth_method,notnull"`
	Role             string     `bun:"role,notnull"`
	IsOrgLeader      bool       `bun:"is_org_leader,notnull"`
	IsOrgOfficer     bool       `bun:"is_org_officer,notnull"`
	LastLoginAt      *time.Time `bun:"last_login_at,nullzero"`
	Active           bool       `bun:"active,notnull"`
	CreatedAt        time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt        time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
