package corpauth

import (
	"fmt"

	authcommand "github.com/dstevens79/eve-corp-auth/command"
	"github.com/dstevens79/eve-corp-auth/core"
	authquery "github.com/dstevens79/eve-corp-auth/query"
)

type Commands struct {
	BeginLogin           *authcommand.BeginLoginCommand
	HandleCallback       *authcommand.HandleCallbackCommand
	CompleteRegistration *authcommand.CompleteRegistrationCommand
	AbandonRegistration  *authcommand.AbandonRegistrationCommand
	UpdateUserRole       *authcommand.UpdateUserRoleCommand
	SetUserActive        *authcommand.SetUserActiveCommand
	DeleteUser           *authcommand.DeleteUserCommand
	RemoveOrganization   *authcommand.RemoveOrganizationCommand
	RefreshOrganization  *authcommand.RefreshOrganizationCommand
}

type Queries struct {
	GetUser             *authquery.GetUserQuery
	ListUsers           *authquery.ListUsersQuery
	FindUserByCharacter *authquery.FindUserByCharacterQuery
	GetOrganization     *authquery.GetOrganizationQuery
	ListOrganizations   *authquery.ListOrganizationsQuery
	CheckPermission     *authquery.CheckPermissionQuery
}

// Facade bundles the command and query handlers a host application
// registers against its dispatcher.
type Facade struct {
	service  core.AuthService
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	userReader         authquery.UserReader
	organizationReader authquery.OrganizationReader
	roles              *core.RoleResolver
}

func WithUserReader(reader authquery.UserReader) FacadeOption {
	return func(options *facadeOptions) {
		options.userReader = reader
	}
}

func WithOrganizationReader(reader authquery.OrganizationReader) FacadeOption {
	return func(options *facadeOptions) {
		options.organizationReader = reader
	}
}

func WithRoleResolver(roles *core.RoleResolver) FacadeOption {
	return func(options *facadeOptions) {
		options.roles = roles
	}
}

func NewFacade(service core.AuthService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("corpauth: auth service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	userReader := cfg.userReader
	if userReader == nil {
		userReader = resolveUserReader(service)
	}
	organizationReader := cfg.organizationReader
	if organizationReader == nil {
		organizationReader = resolveOrganizationReader(service)
	}
	roles := cfg.roles
	if roles == nil {
		roles = resolveRoleResolver(service)
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		BeginLogin:           authcommand.NewBeginLoginCommand(service),
		HandleCallback:       authcommand.NewHandleCallbackCommand(service),
		CompleteRegistration: authcommand.NewCompleteRegistrationCommand(service),
		AbandonRegistration:  authcommand.NewAbandonRegistrationCommand(service),
		UpdateUserRole:       authcommand.NewUpdateUserRoleCommand(service),
		SetUserActive:        authcommand.NewSetUserActiveCommand(service),
		DeleteUser:           authcommand.NewDeleteUserCommand(service),
		RemoveOrganization:   authcommand.NewRemoveOrganizationCommand(service),
		RefreshOrganization:  authcommand.NewRefreshOrganizationCommand(service),
	}
	facade.queries = Queries{
		GetUser:             authquery.NewGetUserQuery(userReader),
		ListUsers:           authquery.NewListUsersQuery(userReader),
		FindUserByCharacter: authquery.NewFindUserByCharacterQuery(userReader),
		GetOrganization:     authquery.NewGetOrganizationQuery(organizationReader),
		ListOrganizations:   authquery.NewListOrganizationsQuery(organizationReader),
		CheckPermission:     authquery.NewCheckPermissionQuery(roles),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() core.AuthService {
	if f == nil {
		return nil
	}
	return f.service
}

// Read-side collaborators come from the service's own stores when the
// host does not supply them. *core.Service exposes both accessors;
// custom services may expose either.
func resolveUserReader(service core.AuthService) authquery.UserReader {
	if provider, ok := service.(interface{ Users() core.UserStore }); ok {
		if store := provider.Users(); store != nil {
			return store
		}
	}
	if reader, ok := service.(authquery.UserReader); ok {
		return reader
	}
	return nil
}

func resolveOrganizationReader(service core.AuthService) authquery.OrganizationReader {
	if provider, ok := service.(interface{ Registry() core.CredentialRegistry }); ok {
		if registry := provider.Registry(); registry != nil {
			return registry
		}
	}
	if reader, ok := service.(authquery.OrganizationReader); ok {
		return reader
	}
	return nil
}

func resolveRoleResolver(service core.AuthService) *core.RoleResolver {
	if provider, ok := service.(interface{ Roles() *core.RoleResolver }); ok {
		if roles := provider.Roles(); roles != nil {
			return roles
		}
	}
	return core.NewRoleResolver()
}
