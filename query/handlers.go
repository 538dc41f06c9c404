package query

import (
	"context"

	"github.com/dstevens79/eve-corp-auth/core"
)

type UserReader interface {
	Get(ctx context.Context, id string) (core.Principal, error)
	FindByCharacter(ctx context.Context, characterID int64) (core.Principal, bool, error)
	List(ctx context.Context) ([]core.Principal, error)
}

type OrganizationReader interface {
	Get(ctx context.Context, organizationID int64) (core.OrgCredential, bool, error)
	ListActive(ctx context.Context) ([]core.OrgCredential, error)
}

type GetUserQuery struct {
	reader UserReader
}

func NewGetUserQuery(reader UserReader) *GetUserQuery {
	return &GetUserQuery{reader: reader}
}

func (q *GetUserQuery) Query(ctx context.Context, msg GetUserMessage) (core.Principal, error) {
	if q == nil || q.reader == nil {
		return core.Principal{}, queryDependencyError("query: user reader is required")
	}
	if err := msg.Validate(); err != nil {
		return core.Principal{}, queryWrapValidation(err, "query: get user")
	}
	return q.reader.Get(ctx, msg.PrincipalID)
}

type ListUsersQuery struct {
	reader UserReader
}

func NewListUsersQuery(reader UserReader) *ListUsersQuery {
	return &ListUsersQuery{reader: reader}
}

func (q *ListUsersQuery) Query(ctx context.Context, _ ListUsersMessage) ([]core.Principal, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: user reader is required")
	}
	return q.reader.List(ctx)
}

type FindUserByCharacterQuery struct {
	reader UserReader
}

func NewFindUserByCharacterQuery(reader UserReader) *FindUserByCharacterQuery {
	return &FindUserByCharacterQuery{reader: reader}
}

func (q *FindUserByCharacterQuery) Query(ctx context.Context, msg FindUserByCharacterMessage) (core.Principal, error) {
	if q == nil || q.reader == nil {
		return core.Principal{}, queryDependencyError("query: user reader is required")
	}
	if err := msg.Validate(); err != nil {
		return core.Principal{}, queryWrapValidation(err, "query: find user by character")
	}
	principal, found, err := q.reader.FindByCharacter(ctx, msg.CharacterID)
	if err != nil {
		return core.Principal{}, err
	}
	if !found {
		return core.Principal{}, queryNotFoundError("query: no user for character", core.AuthErrorUserNotFound)
	}
	return principal, nil
}

type GetOrganizationQuery struct {
	reader OrganizationReader
}

func NewGetOrganizationQuery(reader OrganizationReader) *GetOrganizationQuery {
	return &GetOrganizationQuery{reader: reader}
}

func (q *GetOrganizationQuery) Query(ctx context.Context, msg GetOrganizationMessage) (OrganizationView, error) {
	if q == nil || q.reader == nil {
		return OrganizationView{}, queryDependencyError("query: organization reader is required")
	}
	if err := msg.Validate(); err != nil {
		return OrganizationView{}, queryWrapValidation(err, "query: get organization")
	}
	record, found, err := q.reader.Get(ctx, msg.OrganizationID)
	if err != nil {
		return OrganizationView{}, err
	}
	if !found {
		return OrganizationView{}, queryNotFoundError("query: organization is not registered", core.AuthErrorOrgNotRegistered)
	}
	return organizationView(record), nil
}

type ListOrganizationsQuery struct {
	reader OrganizationReader
}

func NewListOrganizationsQuery(reader OrganizationReader) *ListOrganizationsQuery {
	return &ListOrganizationsQuery{reader: reader}
}

func (q *ListOrganizationsQuery) Query(ctx context.Context, _ ListOrganizationsMessage) ([]OrganizationView, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: organization reader is required")
	}
	records, err := q.reader.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]OrganizationView, 0, len(records))
	for _, record := range records {
		views = append(views, organizationView(record))
	}
	return views, nil
}

type CheckPermissionQuery struct {
	roles *core.RoleResolver
}

func NewCheckPermissionQuery(roles *core.RoleResolver) *CheckPermissionQuery {
	if roles == nil {
		roles = core.NewRoleResolver()
	}
	return &CheckPermissionQuery{roles: roles}
}

func (q *CheckPermissionQuery) Query(_ context.Context, msg CheckPermissionMessage) (PermissionDecision, error) {
	if q == nil || q.roles == nil {
		return PermissionDecision{}, queryDependencyError("query: role resolver is required")
	}
	if err := msg.Validate(); err != nil {
		return PermissionDecision{}, queryWrapValidation(err, "query: check permission")
	}
	actor := msg.Actor
	decision := PermissionDecision{Capability: msg.Capability}
	switch {
	case !actor.Active:
		decision.Reason = "principal is inactive"
	case q.roles.HasPermission(&actor, msg.Capability):
		decision.Allowed = true
	default:
		decision.Reason = "capability not granted to role"
	}
	return decision, nil
}
