package command

import (
	"fmt"
	"strings"

	"github.com/dstevens79/eve-corp-auth/core"
)

const (
	TypeBeginLogin           = "auth.command.login.begin"
	TypeHandleCallback       = "auth.command.callback.handle"
	TypeCompleteRegistration = "auth.command.registration.complete"
	TypeAbandonRegistration  = "auth.command.registration.abandon"
	TypeUpdateUserRole       = "auth.command.user.update_role"
	TypeSetUserActive        = "auth.command.user.set_active"
	TypeDeleteUser           = "auth.command.user.delete"
	TypeRemoveOrganization   = "auth.command.organization.remove"
	TypeRefreshOrganization  = "auth.command.organization.refresh"
)

type BeginLoginMessage struct {
	Request core.BeginAuthRequest
}

func (BeginLoginMessage) Type() string { return TypeBeginLogin }

func (m BeginLoginMessage) Validate() error {
	if strings.TrimSpace(m.Request.RedirectURI) == "" {
		return fmt.Errorf("command: redirect uri is required")
	}
	return nil
}

type HandleCallbackMessage struct {
	Request core.CallbackRequest
}

func (HandleCallbackMessage) Type() string { return TypeHandleCallback }

// Validate accepts error-only callbacks; the service turns missing
// code/state into its own typed failure.
func (m HandleCallbackMessage) Validate() error {
	if strings.TrimSpace(m.Request.Code) == "" &&
		strings.TrimSpace(m.Request.State) == "" &&
		strings.TrimSpace(m.Request.ErrorCode) == "" {
		return fmt.Errorf("command: callback carries no parameters")
	}
	return nil
}

type CompleteRegistrationMessage struct {
	Request core.CompleteRegistrationRequest
}

func (CompleteRegistrationMessage) Type() string { return TypeCompleteRegistration }

func (m CompleteRegistrationMessage) Validate() error {
	if strings.TrimSpace(m.Request.StateToken) == "" {
		return fmt.Errorf("command: state token is required")
	}
	return nil
}

type AbandonRegistrationMessage struct {
	StateToken string
}

func (AbandonRegistrationMessage) Type() string { return TypeAbandonRegistration }

func (m AbandonRegistrationMessage) Validate() error {
	if strings.TrimSpace(m.StateToken) == "" {
		return fmt.Errorf("command: state token is required")
	}
	return nil
}

type UpdateUserRoleMessage struct {
	Actor       core.Principal
	PrincipalID string
	Role        core.Role
}

func (UpdateUserRoleMessage) Type() string { return TypeUpdateUserRole }

func (m UpdateUserRoleMessage) Validate() error {
	if strings.TrimSpace(m.PrincipalID) == "" {
		return fmt.Errorf("command: principal id is required")
	}
	if err := m.Role.Validate(); err != nil {
		return fmt.Errorf("command: %w", err)
	}
	return nil
}

type SetUserActiveMessage struct {
	Actor       core.Principal
	PrincipalID string
	Active      bool
}

func (SetUserActiveMessage) Type() string { return TypeSetUserActive }

func (m SetUserActiveMessage) Validate() error {
	if strings.TrimSpace(m.PrincipalID) == "" {
		return fmt.Errorf("command: principal id is required")
	}
	return nil
}

type DeleteUserMessage struct {
	Actor       core.Principal
	PrincipalID string
}

func (DeleteUserMessage) Type() string { return TypeDeleteUser }

func (m DeleteUserMessage) Validate() error {
	if strings.TrimSpace(m.PrincipalID) == "" {
		return fmt.Errorf("command: principal id is required")
	}
	return nil
}

type RemoveOrganizationMessage struct {
	Actor          core.Principal
	OrganizationID int64
}

func (RemoveOrganizationMessage) Type() string { return TypeRemoveOrganization }

func (m RemoveOrganizationMessage) Validate() error {
	if m.OrganizationID == 0 {
		return fmt.Errorf("command: organization id is required")
	}
	return nil
}

type RefreshOrganizationMessage struct {
	OrganizationID int64
}

func (RefreshOrganizationMessage) Type() string { return TypeRefreshOrganization }

func (m RefreshOrganizationMessage) Validate() error {
	if m.OrganizationID == 0 {
		return fmt.Errorf("command: organization id is required")
	}
	return nil
}
