package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"

	"github.com/dstevens79/eve-corp-auth/core"
)

type BeginLoginCommand struct {
	service core.AuthService
}

func NewBeginLoginCommand(service core.AuthService) *BeginLoginCommand {
	return &BeginLoginCommand{service: service}
}

func (c *BeginLoginCommand) Execute(ctx context.Context, msg BeginLoginMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: auth service is required")
	}
	out, err := c.service.BeginLogin(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type HandleCallbackCommand struct {
	service core.AuthService
}

func NewHandleCallbackCommand(service core.AuthService) *HandleCallbackCommand {
	return &HandleCallbackCommand{service: service}
}

// Execute stores the callback result even when the flow resolves to the
// error state, since the transport renders that result to the user.
func (c *HandleCallbackCommand) Execute(ctx context.Context, msg HandleCallbackMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: auth service is required")
	}
	out, err := c.service.HandleCallback(ctx, msg.Request)
	storeResult(ctx, out)
	return err
}

type CompleteRegistrationCommand struct {
	service core.AuthService
}

func NewCompleteRegistrationCommand(service core.AuthService) *CompleteRegistrationCommand {
	return &CompleteRegistrationCommand{service: service}
}

func (c *CompleteRegistrationCommand) Execute(ctx context.Context, msg CompleteRegistrationMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: auth service is required")
	}
	out, err := c.service.CompleteRegistration(ctx, msg.Request)
	storeResult(ctx, out)
	return err
}

type AbandonRegistrationCommand struct {
	service core.AuthService
}

func NewAbandonRegistrationCommand(service core.AuthService) *AbandonRegistrationCommand {
	return &AbandonRegistrationCommand{service: service}
}

func (c *AbandonRegistrationCommand) Execute(ctx context.Context, msg AbandonRegistrationMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: auth service is required")
	}
	return c.service.AbandonRegistration(ctx, msg.StateToken)
}

type UpdateUserRoleCommand struct {
	service core.AuthService
}

func NewUpdateUserRoleCommand(service core.AuthService) *UpdateUserRoleCommand {
	return &UpdateUserRoleCommand{service: service}
}

func (c *UpdateUserRoleCommand) Execute(ctx context.Context, msg UpdateUserRoleMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: auth service is required")
	}
	out, err := c.service.UpdateUserRole(ctx, msg.Actor, msg.PrincipalID, msg.Role)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type SetUserActiveCommand struct {
	service core.AuthService
}

func NewSetUserActiveCommand(service core.AuthService) *SetUserActiveCommand {
	return &SetUserActiveCommand{service: service}
}

func (c *SetUserActiveCommand) Execute(ctx context.Context, msg SetUserActiveMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: auth service is required")
	}
	return c.service.SetUserActive(ctx, msg.Actor, msg.PrincipalID, msg.Active)
}

type DeleteUserCommand struct {
	service core.AuthService
}

func NewDeleteUserCommand(service core.AuthService) *DeleteUserCommand {
	return &DeleteUserCommand{service: service}
}

func (c *DeleteUserCommand) Execute(ctx context.Context, msg DeleteUserMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: auth service is required")
	}
	return c.service.DeleteUser(ctx, msg.Actor, msg.PrincipalID)
}

type RemoveOrganizationCommand struct {
	service core.AuthService
}

func NewRemoveOrganizationCommand(service core.AuthService) *RemoveOrganizationCommand {
	return &RemoveOrganizationCommand{service: service}
}

func (c *RemoveOrganizationCommand) Execute(ctx context.Context, msg RemoveOrganizationMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: auth service is required")
	}
	return c.service.RemoveOrganization(ctx, msg.Actor, msg.OrganizationID)
}

type RefreshOrganizationCommand struct {
	service core.AuthService
}

func NewRefreshOrganizationCommand(service core.AuthService) *RefreshOrganizationCommand {
	return &RefreshOrganizationCommand{service: service}
}

func (c *RefreshOrganizationCommand) Execute(ctx context.Context, msg RefreshOrganizationMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: auth service is required")
	}
	return c.service.RefreshOrganization(ctx, msg.OrganizationID)
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
