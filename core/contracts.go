package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// BeginAuthRequest asks the SSO provider for an authorize URL. State is
// generated when empty.
type BeginAuthRequest struct {
	RedirectURI     string
	State           string
	RequestedScopes []string
}

type BeginAuthResponse struct {
	URL             string
	State           string
	RequestedScopes []string
}

// ExchangeProvider is the external SSO collaborator. Exchange either
// returns a usable credential or a typed failure; it never signals
// registration status, which is the registry's concern.
type ExchangeProvider interface {
	BeginAuth(ctx context.Context, req BeginAuthRequest) (BeginAuthResponse, error)
	Exchange(ctx context.Context, code string) (ExchangedCredential, error)
	Refresh(ctx context.Context, refreshToken string, scopes []string) (ExchangedCredential, error)
}

// IdentityResolver turns an exchanged credential into a verified
// character identity with corporation standing.
type IdentityResolver interface {
	Resolve(ctx context.Context, cred ExchangedCredential) (CharacterIdentity, error)
}

type RegisterOrgInput struct {
	OrganizationID   int64
	OrganizationName string
	Ticker           string
	ClientIDOverride string
	RefreshToken     string
	Scopes           []string
	RegisteredBy     string
}

type RefreshOrgInput struct {
	OrganizationID int64
	RefreshToken   string
	MemberCount    int
	RefreshedAt    time.Time
}

// CredentialRegistry owns all corporation credential records, keyed by
// organization id. IsConfigured is the single branch predicate the
// callback flow consults.
type CredentialRegistry interface {
	Register(ctx context.Context, in RegisterOrgInput) (OrgCredential, error)
	Get(ctx context.Context, organizationID int64) (OrgCredential, bool, error)
	ListActive(ctx context.Context) ([]OrgCredential, error)
	SetActive(ctx context.Context, organizationID int64, active bool) error
	Remove(ctx context.Context, organizationID int64) error
	IsConfigured(ctx context.Context, organizationID int64) (bool, error)
	RecordRefresh(ctx context.Context, in RefreshOrgInput) error
}

// UserStore persists principals across sessions. Delete is restricted to
// manually provisioned accounts; SSO accounts deactivate instead.
type UserStore interface {
	Save(ctx context.Context, principal Principal) (Principal, error)
	Get(ctx context.Context, id string) (Principal, error)
	FindByCharacter(ctx context.Context, characterID int64) (Principal, bool, error)
	List(ctx context.Context) ([]Principal, error)
	SetActive(ctx context.Context, id string, active bool) error
	Delete(ctx context.Context, id string) error
}

// StoreProvider bundles the persistent stores a deployment wires in.
type StoreProvider interface {
	CredentialRegistry() CredentialRegistry
	UserStore() UserStore
}

// SessionStore holds the single current principal. It enforces the
// shape invariant (non-empty permission set) but not authorization.
type SessionStore interface {
	Login(principal Principal) error
	Logout()
	Current() (Principal, bool)
	UpdateRole(principalID string, role Role) (Principal, error)
}

type SecretProvider interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
	Metadata() (keyID string, version int)
}

// CallbackRequest mirrors the redirect's query parameters.
type CallbackRequest struct {
	Code             string
	State            string
	ErrorCode        string
	ErrorDescription string
}

// PendingRegistration is what the UI needs to render the registration
// screen after a RegistrationRequired outcome. The refresh token stays
// server-side in the retained transaction, never in this view.
type PendingRegistration struct {
	StateToken       string
	CharacterID      int64
	CharacterName    string
	OrganizationID   int64
	OrganizationName string
	AllianceName     string
	GrantedScopes    []string
	CanRegister      bool
}

type CallbackResult struct {
	State        CallbackState
	Message      string
	Principal    *Principal
	Registration *PendingRegistration
}

type CompleteRegistrationRequest struct {
	StateToken string
	Ticker     string
}

type JobExecutionMessage struct {
	JobID          string
	ScriptPath     string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}

type CommandMessage interface {
	Type() string
}

type CommandDispatcher interface {
	Dispatch(ctx context.Context, msg CommandMessage) error
}

// AuthService is the surface the dashboard's transport layer programs
// against.
type AuthService interface {
	BeginLogin(ctx context.Context, req BeginAuthRequest) (BeginAuthResponse, error)
	HandleCallback(ctx context.Context, req CallbackRequest) (CallbackResult, error)
	CompleteRegistration(ctx context.Context, req CompleteRegistrationRequest) (CallbackResult, error)
	AbandonRegistration(ctx context.Context, stateToken string) error
	UpdateUserRole(ctx context.Context, actor Principal, principalID string, role Role) (Principal, error)
	SetUserActive(ctx context.Context, actor Principal, principalID string, active bool) error
	DeleteUser(ctx context.Context, actor Principal, principalID string) error
	RemoveOrganization(ctx context.Context, actor Principal, organizationID int64) error
	RefreshOrganization(ctx context.Context, organizationID int64) error
}
