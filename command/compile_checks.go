package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[BeginLoginMessage]           = (*BeginLoginCommand)(nil)
	_ gocmd.Commander[HandleCallbackMessage]       = (*HandleCallbackCommand)(nil)
	_ gocmd.Commander[CompleteRegistrationMessage] = (*CompleteRegistrationCommand)(nil)
	_ gocmd.Commander[AbandonRegistrationMessage]  = (*AbandonRegistrationCommand)(nil)
	_ gocmd.Commander[UpdateUserRoleMessage]       = (*UpdateUserRoleCommand)(nil)
	_ gocmd.Commander[SetUserActiveMessage]        = (*SetUserActiveCommand)(nil)
	_ gocmd.Commander[DeleteUserMessage]           = (*DeleteUserCommand)(nil)
	_ gocmd.Commander[RemoveOrganizationMessage]   = (*RemoveOrganizationCommand)(nil)
	_ gocmd.Commander[RefreshOrganizationMessage]  = (*RefreshOrganizationCommand)(nil)
)
