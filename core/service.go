package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

// Service drives the SSO callback flow and the administrative mutations
// around it. Each redirect is single-shot: a failed callback is retried
// only by starting a fresh login at the provider.
type Service struct {
	config           Config
	logger           Logger
	loggerProvider   LoggerProvider
	metricsRecorder  MetricsRecorder
	errorFactory     ErrorFactory
	errorMapper      ErrorMapper
	secretProvider   SecretProvider
	configProvider   ConfigProvider
	optionsResolver  OptionsResolver
	loginStateStore  LoginStateStore
	registryLocker   RegistryLocker
	refreshScheduler RefreshBackoffScheduler
	exchange         ExchangeProvider
	identity         IdentityResolver
	registry         CredentialRegistry
	users            UserStore
	sessions         SessionStore
	roles            *RoleResolver

	mu       sync.Mutex
	inFlight bool
	pending  map[string]*CallbackTransaction
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("corp-auth", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("corp-auth"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.loginStateStore == nil {
		builder.loginStateStore = NewMemoryLoginStateStore(defaultLoginStateTTL)
	}
	if builder.registryLocker == nil {
		builder.registryLocker = NewMemoryRegistryLocker()
	}
	if builder.refreshScheduler == nil {
		builder.refreshScheduler = ExponentialBackoffScheduler{
			Initial: defaultRefreshInitialBackoff,
			Max:     defaultRefreshMaxBackoff,
		}
	}
	if builder.credentialRegistry == nil {
		builder.credentialRegistry = NewMemoryCredentialRegistry()
	}
	if builder.userStore == nil {
		builder.userStore = NewMemoryUserStore()
	}
	if builder.sessionStore == nil {
		builder.sessionStore = NewMemorySessionStore()
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	return &Service{
		config:           finalConfig,
		logger:           logger,
		loggerProvider:   provider,
		metricsRecorder:  builder.metricsRecorder,
		errorFactory:     builder.errorFactory,
		errorMapper:      builder.errorMapper,
		secretProvider:   builder.secretProvider,
		configProvider:   builder.configProvider,
		optionsResolver:  builder.optionsResolver,
		loginStateStore:  builder.loginStateStore,
		registryLocker:   builder.registryLocker,
		refreshScheduler: builder.refreshScheduler,
		exchange:         builder.exchangeProvider,
		identity:         builder.identityResolver,
		registry:         builder.credentialRegistry,
		users:            builder.userStore,
		sessions:         builder.sessionStore,
		roles:            NewRoleResolver(),
		pending:          map[string]*CallbackTransaction{},
	}, nil
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Sessions() SessionStore {
	if s == nil {
		return nil
	}
	return s.sessions
}

func (s *Service) Registry() CredentialRegistry {
	if s == nil {
		return nil
	}
	return s.registry
}

func (s *Service) Users() UserStore {
	if s == nil {
		return nil
	}
	return s.users
}

func (s *Service) Roles() *RoleResolver {
	if s == nil {
		return nil
	}
	return s.roles
}

// BeginLogin builds the provider authorize URL and records the
// anti-forgery state for the returning redirect.
func (s *Service) BeginLogin(ctx context.Context, req BeginAuthRequest) (response BeginAuthResponse, err error) {
	startedAt := time.Now().UTC()
	defer func() {
		s.observeOperation(ctx, startedAt, "begin_login", err, map[string]any{})
	}()

	if s.exchange == nil {
		err = s.mapError(fmt.Errorf("core: exchange provider is required"))
		return BeginAuthResponse{}, err
	}
	state := strings.TrimSpace(req.State)
	if state == "" {
		generated, generateErr := generateLoginState()
		if generateErr != nil {
			err = s.mapError(generateErr)
			return BeginAuthResponse{}, err
		}
		state = generated
	}
	scopes := req.RequestedScopes
	if len(scopes) == 0 {
		scopes = append([]string(nil), s.config.SSO.DefaultScopes...)
	}

	response, err = s.exchange.BeginAuth(ctx, BeginAuthRequest{
		RedirectURI:     req.RedirectURI,
		State:           state,
		RequestedScopes: scopes,
	})
	if err != nil {
		err = s.mapError(err)
		return BeginAuthResponse{}, err
	}
	if strings.TrimSpace(response.State) == "" {
		response.State = state
	}

	if s.loginStateStore != nil {
		saveErr := s.loginStateStore.Save(ctx, LoginStateRecord{
			State:           response.State,
			RedirectURI:     req.RedirectURI,
			RequestedScopes: append([]string(nil), scopes...),
			CreatedAt:       time.Now().UTC(),
		})
		if saveErr != nil {
			err = s.mapError(saveErr)
			return BeginAuthResponse{}, err
		}
	}

	return response, nil
}

// HandleCallback runs the redirect through the state machine:
// Processing then exactly one of Success, Error, RegistrationRequired.
// Error outcomes return both a renderable result and the mapped error.
func (s *Service) HandleCallback(ctx context.Context, req CallbackRequest) (result CallbackResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		fields["callback_state"] = string(result.State)
		s.observeOperation(ctx, startedAt, "handle_callback", err, fields)
	}()

	if acquireErr := s.beginCallback(); acquireErr != nil {
		err = s.mapError(acquireErr)
		return CallbackResult{State: CallbackStateError, Message: "another sign-in is already in progress"}, err
	}
	defer s.endCallback()

	now := time.Now().UTC()
	tx := &CallbackTransaction{State: CallbackStateProcessing, StartedAt: now}

	if errorCode := strings.TrimSpace(req.ErrorCode); errorCode != "" {
		message := "authentication error: " + errorCode
		cause := fmt.Errorf("%w: %s", ErrExchangeFailed, errorCode)
		if errorCode == "access_denied" {
			message = "Authentication was cancelled by user"
			cause = ErrProviderDenied
		}
		_ = tx.TransitionTo(CallbackStateError, message, now)
		err = s.mapError(cause)
		return CallbackResult{State: CallbackStateError, Message: message}, err
	}

	code := strings.TrimSpace(req.Code)
	state := strings.TrimSpace(req.State)
	if code == "" || state == "" {
		// Rejected before any network call is attempted.
		message := "missing authentication parameters"
		_ = tx.TransitionTo(CallbackStateError, message, now)
		err = s.mapError(ErrMissingParameters)
		return CallbackResult{State: CallbackStateError, Message: message}, err
	}
	tx.StateToken = state

	if s.loginStateStore != nil {
		if _, consumeErr := s.loginStateStore.Consume(ctx, state); consumeErr != nil {
			_ = tx.TransitionTo(CallbackStateError, consumeErr.Error(), now)
			err = s.mapError(consumeErr)
			return CallbackResult{State: CallbackStateError, Message: "sign-in session is no longer valid"}, err
		}
	}

	if s.exchange == nil || s.identity == nil {
		err = s.mapError(fmt.Errorf("core: exchange provider and identity resolver are required"))
		return CallbackResult{State: CallbackStateError, Message: "authentication is not configured"}, err
	}

	credential, exchangeErr := s.exchange.Exchange(ctx, code)
	if exchangeErr != nil {
		_ = tx.TransitionTo(CallbackStateError, exchangeErr.Error(), time.Now().UTC())
		err = s.mapError(fmt.Errorf("%w: %s", ErrExchangeFailed, exchangeErr.Error()))
		return CallbackResult{State: CallbackStateError, Message: "token exchange failed"}, err
	}
	tx.Credential = credential

	prospective, resolveErr := s.identity.Resolve(ctx, credential)
	if resolveErr != nil {
		_ = tx.TransitionTo(CallbackStateError, resolveErr.Error(), time.Now().UTC())
		err = s.mapError(fmt.Errorf("%w: %s", ErrExchangeFailed, resolveErr.Error()))
		return CallbackResult{State: CallbackStateError, Message: "identity verification failed"}, err
	}
	if validateErr := prospective.Validate(); validateErr != nil {
		_ = tx.TransitionTo(CallbackStateError, validateErr.Error(), time.Now().UTC())
		err = s.mapError(validateErr)
		return CallbackResult{State: CallbackStateError, Message: "identity verification failed"}, err
	}
	tx.Identity = prospective
	fields["character_id"] = prospective.CharacterID
	fields["organization_id"] = prospective.OrganizationID

	configured, configuredErr := s.registry.IsConfigured(ctx, prospective.OrganizationID)
	if configuredErr != nil {
		_ = tx.TransitionTo(CallbackStateError, configuredErr.Error(), time.Now().UTC())
		err = s.mapError(configuredErr)
		return CallbackResult{State: CallbackStateError, Message: "registry lookup failed"}, err
	}

	if !configured {
		// The refresh token rides inside the retained transaction so a
		// later CompleteRegistration does not lose it.
		if transitionErr := tx.TransitionTo(CallbackStateRegistrationRequired, "organization is not registered", time.Now().UTC()); transitionErr != nil {
			err = s.mapError(transitionErr)
			return CallbackResult{State: CallbackStateError, Message: "callback state error"}, err
		}
		s.retainPending(tx)
		return CallbackResult{
			State:        CallbackStateRegistrationRequired,
			Message:      "organization is not registered",
			Registration: s.pendingView(tx),
		}, nil
	}

	principal, loginErr := s.finalizeLogin(ctx, prospective)
	if loginErr != nil {
		_ = tx.TransitionTo(CallbackStateError, loginErr.Error(), time.Now().UTC())
		err = s.mapError(loginErr)
		return CallbackResult{State: CallbackStateError, Message: "sign-in failed"}, err
	}
	_ = tx.TransitionTo(CallbackStateSuccess, "", time.Now().UTC())
	fields["principal_id"] = principal.ID
	return CallbackResult{State: CallbackStateSuccess, Principal: &principal}, nil
}

// CompleteRegistration promotes a retained RegistrationRequired
// transaction to Success. The acting prospective principal must hold
// the SSO configuration capability; members are told to escalate.
func (s *Service) CompleteRegistration(ctx context.Context, req CompleteRegistrationRequest) (result CallbackResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		fields["callback_state"] = string(result.State)
		s.observeOperation(ctx, startedAt, "complete_registration", err, fields)
	}()

	tx, found := s.takePending(req.StateToken)
	if !found {
		err = s.mapError(fmt.Errorf("core: registration transaction not found or expired"))
		return CallbackResult{State: CallbackStateError, Message: "registration session expired; sign in again"}, err
	}
	fields["organization_id"] = tx.Identity.OrganizationID

	prospective := s.buildPrincipal(tx.Identity)
	if attachErr := s.roles.Attach(&prospective); attachErr != nil {
		err = s.mapError(attachErr)
		return CallbackResult{State: CallbackStateError, Message: "role resolution failed"}, err
	}
	if !s.roles.HasPermission(&prospective, CapConfigureSSO) {
		// Non-terminal: put the transaction back so a privileged
		// character can still complete with the same token.
		s.retainPending(tx)
		err = s.mapError(fmt.Errorf("%w: character %q", ErrInsufficientPrivilege, tx.Identity.CharacterName))
		return CallbackResult{
			State:        CallbackStateRegistrationRequired,
			Message:      "a director or CEO must register this organization",
			Registration: s.pendingView(tx),
		}, err
	}

	refreshToken, encryptErr := s.protectRefreshToken(ctx, tx.Credential.RefreshToken)
	if encryptErr != nil {
		err = s.mapError(encryptErr)
		return CallbackResult{State: CallbackStateError, Message: "credential protection failed"}, err
	}

	if _, registerErr := s.registry.Register(ctx, RegisterOrgInput{
		OrganizationID:   tx.Identity.OrganizationID,
		OrganizationName: tx.Identity.OrganizationName,
		Ticker:           strings.TrimSpace(req.Ticker),
		RefreshToken:     refreshToken,
		Scopes:           append([]string(nil), tx.Credential.Scopes...),
		RegisteredBy:     prospective.ID,
	}); registerErr != nil {
		err = s.mapError(registerErr)
		return CallbackResult{State: CallbackStateError, Message: "registration failed"}, err
	}

	principal, loginErr := s.finalizeLogin(ctx, tx.Identity)
	if loginErr != nil {
		err = s.mapError(loginErr)
		return CallbackResult{State: CallbackStateError, Message: "sign-in failed"}, err
	}
	_ = tx.TransitionTo(CallbackStateSuccess, "", time.Now().UTC())
	fields["principal_id"] = principal.ID
	return CallbackResult{State: CallbackStateSuccess, Principal: &principal}, nil
}

// AbandonRegistration discards a retained transaction: the terminal
// exit back to the login screen. Safe to call for unknown tokens.
func (s *Service) AbandonRegistration(_ context.Context, stateToken string) error {
	if s == nil {
		return nil
	}
	tx, found := s.takePending(stateToken)
	if !found {
		return nil
	}
	_ = tx.TransitionTo(CallbackStateError, "registration abandoned", time.Now().UTC())
	return nil
}

// UpdateUserRole changes a persisted user's role and re-resolves the
// stored permission set. The actor needs user management capability.
func (s *Service) UpdateUserRole(ctx context.Context, actor Principal, principalID string, role Role) (principal Principal, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"principal_id": principalID}
	defer func() {
		s.observeOperation(ctx, startedAt, "update_user_role", err, fields)
	}()

	if !s.roles.HasPermission(&actor, CapManageUsers) {
		err = s.mapError(fmt.Errorf("%w: user management", ErrInsufficientPrivilege))
		return Principal{}, err
	}
	if err = role.Validate(); err != nil {
		err = s.mapError(err)
		return Principal{}, err
	}
	if s.users == nil {
		err = s.mapError(fmt.Errorf("core: user store is required"))
		return Principal{}, err
	}

	principal, err = s.users.Get(ctx, principalID)
	if err != nil {
		err = s.mapError(err)
		return Principal{}, err
	}
	principal.Role = role
	if attachErr := s.roles.Attach(&principal); attachErr != nil {
		err = s.mapError(attachErr)
		return Principal{}, err
	}
	principal, err = s.users.Save(ctx, principal)
	if err != nil {
		err = s.mapError(err)
		return Principal{}, err
	}

	if current, ok := s.sessions.Current(); ok && current.ID == principal.ID {
		if _, sessionErr := s.sessions.UpdateRole(principal.ID, role); sessionErr != nil {
			err = s.mapError(sessionErr)
			return Principal{}, err
		}
	}
	return principal, nil
}

// SetUserActive toggles the deactivation flag. Deactivation, not
// deletion, is how SSO-provisioned accounts leave the dashboard.
func (s *Service) SetUserActive(ctx context.Context, actor Principal, principalID string, active bool) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"principal_id": principalID}
	defer func() {
		s.observeOperation(ctx, startedAt, "set_user_active", err, fields)
	}()

	if !s.roles.HasPermission(&actor, CapManageUsers) {
		err = s.mapError(fmt.Errorf("%w: user management", ErrInsufficientPrivilege))
		return err
	}
	if s.users == nil {
		err = s.mapError(fmt.Errorf("core: user store is required"))
		return err
	}
	if err = s.users.SetActive(ctx, principalID, active); err != nil {
		err = s.mapError(err)
		return err
	}
	if !active {
		if current, ok := s.sessions.Current(); ok && current.ID == principalID {
			s.sessions.Logout()
		}
	}
	return nil
}

// DeleteUser hard-deletes a manually provisioned account. Accounts that
// came in through SSO keep their audit trail and can only deactivate.
func (s *Service) DeleteUser(ctx context.Context, actor Principal, principalID string) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"principal_id": principalID}
	defer func() {
		s.observeOperation(ctx, startedAt, "delete_user", err, fields)
	}()

	if !s.roles.HasPermission(&actor, CapManageUsers) || !s.roles.HasPermission(&actor, CapDelete) {
		err = s.mapError(fmt.Errorf("%w: user deletion", ErrInsufficientPrivilege))
		return err
	}
	if s.users == nil {
		err = s.mapError(fmt.Errorf("core: user store is required"))
		return err
	}
	principal, getErr := s.users.Get(ctx, principalID)
	if getErr != nil {
		err = s.mapError(getErr)
		return err
	}
	if principal.AuthMethod != AuthMethodLocalCredential {
		err = s.mapError(fmt.Errorf("core: SSO account %q can only be deactivated", principalID))
		return err
	}
	if err = s.users.Delete(ctx, principalID); err != nil {
		err = s.mapError(err)
		return err
	}
	return nil
}

// RemoveOrganization hard-deletes a registry record. Administrative
// cleanup; day-to-day disabling goes through the registry's SetActive.
func (s *Service) RemoveOrganization(ctx context.Context, actor Principal, organizationID int64) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"organization_id": organizationID}
	defer func() {
		s.observeOperation(ctx, startedAt, "remove_organization", err, fields)
	}()

	if !s.roles.HasPermission(&actor, CapConfigureSSO) {
		err = s.mapError(fmt.Errorf("%w: SSO configuration", ErrInsufficientPrivilege))
		return err
	}
	if err = s.registry.Remove(ctx, organizationID); err != nil {
		err = s.mapError(err)
		return err
	}
	return nil
}

func (s *Service) finalizeLogin(ctx context.Context, identity CharacterIdentity) (Principal, error) {
	principal := s.buildPrincipal(identity)

	if s.users != nil {
		existing, found, findErr := s.users.FindByCharacter(ctx, identity.CharacterID)
		if findErr != nil {
			return Principal{}, findErr
		}
		if found {
			// An explicitly assigned role survives re-login; only the
			// identity fields refresh.
			principal.ID = existing.ID
			principal.Role = existing.Role
			if !existing.Active {
				return Principal{}, fmt.Errorf("core: account %q is deactivated", existing.ID)
			}
		}
	}

	if err := s.roles.Attach(&principal); err != nil {
		return Principal{}, err
	}
	principal.Active = true
	principal.LastLoginAt = time.Now().UTC()

	if s.users != nil {
		saved, saveErr := s.users.Save(ctx, principal)
		if saveErr != nil {
			return Principal{}, saveErr
		}
		principal = saved
	}
	if err := s.sessions.Login(principal); err != nil {
		return Principal{}, err
	}
	current, _ := s.sessions.Current()
	return current, nil
}

func (s *Service) buildPrincipal(identity CharacterIdentity) Principal {
	return Principal{
		ID:               fmt.Sprintf("char-%d", identity.CharacterID),
		DisplayName:      identity.CharacterName,
		CharacterID:      identity.CharacterID,
		OrganizationID:   identity.OrganizationID,
		OrganizationName: identity.OrganizationName,
		AllianceName:     identity.AllianceName,
		AuthMethod:       AuthMethodExternalSSO,
		Role:             identity.ProvisionalRole(),
		IsOrgLeader:      identity.IsOrgLeader,
		IsOrgOfficer:     identity.IsOrgOfficer,
		Active:           true,
	}
}

func (s *Service) pendingView(tx *CallbackTransaction) *PendingRegistration {
	if tx == nil {
		return nil
	}
	prospective := s.buildPrincipal(tx.Identity)
	canRegister := false
	if err := s.roles.Attach(&prospective); err == nil {
		canRegister = prospective.Permissions.ConfigureSSO
	}
	return &PendingRegistration{
		StateToken:       tx.StateToken,
		CharacterID:      tx.Identity.CharacterID,
		CharacterName:    tx.Identity.CharacterName,
		OrganizationID:   tx.Identity.OrganizationID,
		OrganizationName: tx.Identity.OrganizationName,
		AllianceName:     tx.Identity.AllianceName,
		GrantedScopes:    append([]string(nil), tx.Credential.Scopes...),
		CanRegister:      canRegister,
	}
}

func (s *Service) protectRefreshToken(ctx context.Context, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", fmt.Errorf("core: refresh token is required")
	}
	if s.secretProvider == nil {
		return token, nil
	}
	protected, err := s.secretProvider.Encrypt(ctx, []byte(token))
	if err != nil {
		return "", err
	}
	return string(protected), nil
}

func (s *Service) revealRefreshToken(ctx context.Context, stored string) (string, error) {
	if s.secretProvider == nil {
		return stored, nil
	}
	plain, err := s.secretProvider.Decrypt(ctx, []byte(stored))
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func (s *Service) beginCallback() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		return ErrCallbackInFlight
	}
	s.inFlight = true
	return nil
}

func (s *Service) endCallback() {
	s.mu.Lock()
	s.inFlight = false
	s.mu.Unlock()
}

func (s *Service) retainPending(tx *CallbackTransaction) {
	if s == nil || tx == nil || strings.TrimSpace(tx.StateToken) == "" {
		return
	}
	s.mu.Lock()
	s.pending[tx.StateToken] = tx
	s.mu.Unlock()
}

// takePending consumes a retained transaction: a state token can be
// taken exactly once, so concurrent completes race for one winner.
// Transactions older than the login-state TTL are evicted instead of
// returned; the raw refresh token must not outlive the sign-in window.
func (s *Service) takePending(stateToken string) (*CallbackTransaction, bool) {
	stateToken = strings.TrimSpace(stateToken)
	if s == nil || stateToken == "" {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.pending[stateToken]
	if !ok {
		return nil, false
	}
	delete(s.pending, stateToken)
	if !tx.StartedAt.IsZero() && time.Now().UTC().After(tx.StartedAt.Add(defaultLoginStateTTL)) {
		return nil, false
	}
	return tx, true
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

var _ AuthService = (*Service)(nil)
