package corpauth

import "github.com/dstevens79/eve-corp-auth/core"

type Config = core.Config

type SSOConfig = core.SSOConfig

type RefreshConfig = core.RefreshConfig

type Option = core.Option

type Service = core.Service

type Principal = core.Principal
type Role = core.Role
type Capability = core.Capability
type PermissionSet = core.PermissionSet
type OrgCredential = core.OrgCredential
type CharacterIdentity = core.CharacterIdentity
type CallbackResult = core.CallbackResult
type CallbackState = core.CallbackState
type PendingRegistration = core.PendingRegistration

type BeginAuthRequest = core.BeginAuthRequest
type BeginAuthResponse = core.BeginAuthResponse
type CallbackRequest = core.CallbackRequest
type CompleteRegistrationRequest = core.CompleteRegistrationRequest
type RegisterOrgInput = core.RegisterOrgInput

type ExchangeProvider = core.ExchangeProvider
type IdentityResolver = core.IdentityResolver
type CredentialRegistry = core.CredentialRegistry
type UserStore = core.UserStore
type SessionStore = core.SessionStore
type SecretProvider = core.SecretProvider
type StoreProvider = core.StoreProvider
type LoginStateStore = core.LoginStateStore
type RegistryLocker = core.RegistryLocker
type RefreshBackoffScheduler = core.RefreshBackoffScheduler

const (
	RoleSuperAdmin  = core.RoleSuperAdmin
	RoleOrgAdmin    = core.RoleOrgAdmin
	RoleOrgDirector = core.RoleOrgDirector
	RoleOrgManager  = core.RoleOrgManager
	RoleOrgMember   = core.RoleOrgMember
	RoleGuest       = core.RoleGuest

	CallbackStateProcessing           = core.CallbackStateProcessing
	CallbackStateSuccess              = core.CallbackStateSuccess
	CallbackStateError                = core.CallbackStateError
	CallbackStateRegistrationRequired = core.CallbackStateRegistrationRequired
)

var (
	WithLogger                  = core.WithLogger
	WithLoggerProvider          = core.WithLoggerProvider
	WithMetricsRecorder         = core.WithMetricsRecorder
	WithErrorFactory            = core.WithErrorFactory
	WithErrorMapper             = core.WithErrorMapper
	WithSecretProvider          = core.WithSecretProvider
	WithConfigProvider          = core.WithConfigProvider
	WithOptionsResolver         = core.WithOptionsResolver
	WithLoginStateStore         = core.WithLoginStateStore
	WithRegistryLocker          = core.WithRegistryLocker
	WithRefreshBackoffScheduler = core.WithRefreshBackoffScheduler
	WithExchangeProvider        = core.WithExchangeProvider
	WithIdentityResolver        = core.WithIdentityResolver
	WithCredentialRegistry      = core.WithCredentialRegistry
	WithUserStore               = core.WithUserStore
	WithSessionStore            = core.WithSessionStore
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}
