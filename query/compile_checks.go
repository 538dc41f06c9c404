package query

import (
	gocmd "github.com/goliatone/go-command"

	"github.com/dstevens79/eve-corp-auth/core"
)

var (
	_ gocmd.Querier[GetUserMessage, core.Principal]             = (*GetUserQuery)(nil)
	_ gocmd.Querier[ListUsersMessage, []core.Principal]         = (*ListUsersQuery)(nil)
	_ gocmd.Querier[FindUserByCharacterMessage, core.Principal] = (*FindUserByCharacterQuery)(nil)
	_ gocmd.Querier[GetOrganizationMessage, OrganizationView]   = (*GetOrganizationQuery)(nil)
	_ gocmd.Querier[ListOrganizationsMessage, []OrganizationView] = (*ListOrganizationsQuery)(nil)
	_ gocmd.Querier[CheckPermissionMessage, PermissionDecision]   = (*CheckPermissionQuery)(nil)

	_ UserReader         = (core.UserStore)(nil)
	_ OrganizationReader = (core.CredentialRegistry)(nil)
)
