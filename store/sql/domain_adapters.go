package sqlstore

import (
	"sort"
	"strings"
	"time"

	"github.com/dstevens79/eve-corp-auth/core"
)

func (r *orgCredentialRecord) toDomain() core.OrgCredential {
	if r == nil {
		return core.OrgCredential{}
	}
	out := core.OrgCredential{
		OrganizationID:   r.OrganizationID,
		OrganizationName: r.OrganizationName,
		Ticker:           r.Ticker,
		ClientIDOverride: r.ClientIDOverride,
		RefreshToken:     r.RefreshToken,
		Scopes:           append([]string(nil), r.Scopes...),
		RegisteredBy:     r.RegisteredBy,
		RegisteredAt:     r.RegisteredAt,
		Active:           r.Active,
		MemberCount:      r.MemberCount,
	}
	if r.LastRefreshAt != nil {
		out.LastRefreshAt = r.LastRefreshAt.UTC()
	}
	return out
}

func (r *userRecord) toDomain() core.Principal {
	if r == nil {
		return core.Principal{}
	}
	role := core.Role(r.Role)
	// An unknown role in the row yields the zero set, which denies
	// everything downstream.
	permissions, _ := core.PermissionsFor(role)
	out := core.Principal{
		ID:               r.ID,
		DisplayName:      r.DisplayName,
		CharacterID:      r.CharacterID,
		OrganizationID:   r.OrganizationID,
		OrganizationName: r.OrganizationName,
		AllianceName:     r.AllianceName,
		AuthMethod:       core.AuthMethod(r.AuthMethod),
		Role:             role,
		Permissions:      permissions,
		IsOrgLeader:      r.IsOrgLeader,
		IsOrgOfficer:     r.IsOrgOfficer,
		Active:           r.Active,
	}
	if r.LastLoginAt != nil {
		out.LastLoginAt = r.LastLoginAt.UTC()
	}
	return out
}

func newUserRecord(principal core.Principal, now time.Time) *userRecord {
	record := &userRecord{
		ID:               strings.TrimSpace(principal.ID),
		DisplayName:      strings.TrimSpace(principal.DisplayName),
		CharacterID:      principal.CharacterID,
		OrganizationID:   principal.OrganizationID,
		OrganizationName: strings.TrimSpace(principal.OrganizationName),
		AllianceName:     strings.TrimSpace(principal.AllianceName),
		AuthMethod:       string(principal.AuthMethod),
		Role:             string(principal.Role),
		IsOrgLeader:      principal.IsOrgLeader,
		IsOrgOfficer:     principal.IsOrgOfficer,
		Active:           principal.Active,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if !principal.LastLoginAt.IsZero() {
		lastLogin := principal.LastLoginAt.UTC()
		record.LastLoginAt = &lastLogin
	}
	return record
}

func normalizeScopeList(input []string) []string {
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
