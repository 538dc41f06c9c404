package core

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Sentinels for the callback/authorization path. Callers branch on these
// with errors.Is; no error is ever detected by matching message text.
var (
	ErrMissingParameters         = errors.New("core: missing authentication parameters")
	ErrProviderDenied            = errors.New("core: authentication was cancelled by user")
	ErrExchangeFailed            = errors.New("core: token exchange failed")
	ErrOrganizationNotRegistered = errors.New("core: organization is not registered")
	ErrInsufficientPrivilege     = errors.New("core: insufficient privilege to register organization")
	ErrInvalidRole               = errors.New("core: invalid role")
	ErrScopesEmpty               = errors.New("core: scope list is empty")
	ErrCallbackInFlight          = errors.New("core: a callback is already in flight")
	ErrInvalidCallbackTransition = errors.New("core: invalid callback state transition")
	ErrNotAuthenticated          = errors.New("core: no authenticated principal")
	ErrPrincipalNotFound         = errors.New("core: principal not found")
)

const (
	AuthErrorBadInput              = "AUTH_BAD_INPUT"
	AuthErrorMissingParameters     = "AUTH_MISSING_PARAMETERS"
	AuthErrorProviderDenied        = "AUTH_PROVIDER_DENIED"
	AuthErrorExchangeFailed        = "AUTH_EXCHANGE_FAILED"
	AuthErrorOrgNotRegistered      = "AUTH_ORG_NOT_REGISTERED"
	AuthErrorUserNotFound          = "AUTH_USER_NOT_FOUND"
	AuthErrorInsufficientPrivilege = "AUTH_INSUFFICIENT_PRIVILEGE"
	AuthErrorInvalidRole           = "AUTH_INVALID_ROLE"
	AuthErrorScopesEmpty           = "AUTH_SCOPES_EMPTY"
	AuthErrorCallbackInFlight      = "AUTH_CALLBACK_IN_FLIGHT"
	AuthErrorIdentityRejected      = "AUTH_IDENTITY_REJECTED"
	AuthErrorStateInvalid          = "AUTH_STATE_INVALID"
	AuthErrorInternal              = "AUTH_INTERNAL_ERROR"
)

func authErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureAuthErrorEnvelope(richErr)
	}

	switch {
	case errors.Is(err, ErrMissingParameters):
		return newAuthError(err.Error(), goerrors.CategoryBadInput, AuthErrorMissingParameters)
	case errors.Is(err, ErrProviderDenied):
		return newAuthError(err.Error(), goerrors.CategoryAuth, AuthErrorProviderDenied)
	case errors.Is(err, ErrOrganizationNotRegistered):
		return newAuthError(err.Error(), goerrors.CategoryNotFound, AuthErrorOrgNotRegistered)
	case errors.Is(err, ErrInsufficientPrivilege):
		return newAuthError(err.Error(), goerrors.CategoryAuthz, AuthErrorInsufficientPrivilege)
	case errors.Is(err, ErrInvalidRole):
		return newAuthError(err.Error(), goerrors.CategoryInternal, AuthErrorInvalidRole)
	case errors.Is(err, ErrScopesEmpty):
		return newAuthError(err.Error(), goerrors.CategoryValidation, AuthErrorScopesEmpty)
	case errors.Is(err, ErrCallbackInFlight):
		return newAuthError(err.Error(), goerrors.CategoryConflict, AuthErrorCallbackInFlight)
	case errors.Is(err, ErrExchangeFailed):
		return newAuthError(err.Error(), goerrors.CategoryExternal, AuthErrorExchangeFailed)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "callback state"), strings.Contains(msg, "login state"):
		return newAuthError(err.Error(), goerrors.CategoryAuth, AuthErrorStateInvalid)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "mismatch"):
		return newAuthError(err.Error(), goerrors.CategoryBadInput, AuthErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureAuthErrorEnvelope(mapped)
}

func newAuthError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureAuthErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureAuthErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = authHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultAuthTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultAuthTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return AuthErrorBadInput
	case goerrors.CategoryNotFound:
		return AuthErrorOrgNotRegistered
	case goerrors.CategoryAuth:
		return AuthErrorProviderDenied
	case goerrors.CategoryAuthz:
		return AuthErrorInsufficientPrivilege
	case goerrors.CategoryConflict:
		return AuthErrorCallbackInFlight
	case goerrors.CategoryExternal, goerrors.CategoryOperation:
		return AuthErrorExchangeFailed
	default:
		return AuthErrorInternal
	}
}

func authHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
