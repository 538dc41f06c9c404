package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeExchangeProvider struct {
	mu            sync.Mutex
	beginResponse BeginAuthResponse
	beginErr      error
	credential    ExchangedCredential
	exchangeErr   error
	refreshed     ExchangedCredential
	refreshErr    error
	refreshErrs   []error
	exchangeCalls int
	refreshCalls  int
}

func (f *fakeExchangeProvider) BeginAuth(_ context.Context, req BeginAuthRequest) (BeginAuthResponse, error) {
	if f.beginErr != nil {
		return BeginAuthResponse{}, f.beginErr
	}
	response := f.beginResponse
	if response.URL == "" {
		response.URL = "https://sso.example.test/authorize?state=" + req.State
	}
	if response.State == "" {
		response.State = req.State
	}
	if len(response.RequestedScopes) == 0 {
		response.RequestedScopes = req.RequestedScopes
	}
	return response, nil
}

func (f *fakeExchangeProvider) Exchange(context.Context, string) (ExchangedCredential, error) {
	f.mu.Lock()
	f.exchangeCalls++
	f.mu.Unlock()
	if f.exchangeErr != nil {
		return ExchangedCredential{}, f.exchangeErr
	}
	return f.credential, nil
}

func (f *fakeExchangeProvider) Refresh(context.Context, string, []string) (ExchangedCredential, error) {
	f.mu.Lock()
	call := f.refreshCalls
	f.refreshCalls++
	f.mu.Unlock()
	if call < len(f.refreshErrs) {
		if err := f.refreshErrs[call]; err != nil {
			return ExchangedCredential{}, err
		}
		return f.refreshed, nil
	}
	if f.refreshErr != nil {
		return ExchangedCredential{}, f.refreshErr
	}
	return f.refreshed, nil
}

func (f *fakeExchangeProvider) exchangeCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exchangeCalls
}

type fakeIdentityResolver struct {
	identity CharacterIdentity
	err      error
}

func (f *fakeIdentityResolver) Resolve(context.Context, ExchangedCredential) (CharacterIdentity, error) {
	if f.err != nil {
		return CharacterIdentity{}, f.err
	}
	return f.identity, nil
}

type countingIdentityResolver struct {
	fakeIdentityResolver
	memberCount    int
	memberCountErr error
}

func (f *countingIdentityResolver) MemberCount(context.Context, int64) (int, error) {
	if f.memberCountErr != nil {
		return 0, f.memberCountErr
	}
	return f.memberCount, nil
}

type failingRegistry struct {
	CredentialRegistry
	isConfiguredErr error
}

func (f *failingRegistry) IsConfigured(ctx context.Context, organizationID int64) (bool, error) {
	if f.isConfiguredErr != nil {
		return false, f.isConfiguredErr
	}
	return f.CredentialRegistry.IsConfigured(ctx, organizationID)
}

type staticSecretProvider struct {
	prefix string
}

func (p staticSecretProvider) Encrypt(_ context.Context, plaintext []byte) ([]byte, error) {
	return []byte(p.prefix + string(plaintext)), nil
}

func (p staticSecretProvider) Decrypt(_ context.Context, ciphertext []byte) ([]byte, error) {
	raw := string(ciphertext)
	if len(raw) < len(p.prefix) || raw[:len(p.prefix)] != p.prefix {
		return nil, fmt.Errorf("unexpected ciphertext %q", raw)
	}
	return []byte(raw[len(p.prefix):]), nil
}

func (p staticSecretProvider) Metadata() (string, int) {
	return "static", 1
}

type immediateBackoff struct{}

func (immediateBackoff) NextDelay(int) time.Duration { return 0 }

func leaderIdentity() CharacterIdentity {
	return CharacterIdentity{
		CharacterID:      90000001,
		CharacterName:    "Avi Sable",
		OrganizationID:   98000001,
		OrganizationName: "Calm Horizons",
		AllianceName:     "Quiet Accord",
		GrantedScopes:    []string{"esi-corporations.read_corporation_membership.v1"},
		IsOrgLeader:      true,
	}
}

func memberIdentity() CharacterIdentity {
	identity := leaderIdentity()
	identity.CharacterID = 90000002
	identity.CharacterName = "Ren Okel"
	identity.IsOrgLeader = false
	return identity
}

func exchangedCredential() ExchangedCredential {
	return ExchangedCredential{
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
		TokenType:    "Bearer",
		Scopes:       []string{"esi-corporations.read_corporation_membership.v1"},
		ExpiresAt:    time.Now().UTC().Add(20 * time.Minute),
	}
}

type serviceFixture struct {
	service  *Service
	exchange *fakeExchangeProvider
	identity *fakeIdentityResolver
	registry *MemoryCredentialRegistry
	users    *MemoryUserStore
	sessions *MemorySessionStore
	states   *MemoryLoginStateStore
}

func newServiceFixture(t *testing.T, extra ...Option) *serviceFixture {
	t.Helper()

	exchange := &fakeExchangeProvider{credential: exchangedCredential()}
	identity := &fakeIdentityResolver{identity: leaderIdentity()}
	registry := NewMemoryCredentialRegistry()
	users := NewMemoryUserStore()
	sessions := NewMemorySessionStore()
	states := NewMemoryLoginStateStore(0)

	options := []Option{
		WithExchangeProvider(exchange),
		WithIdentityResolver(identity),
		WithCredentialRegistry(registry),
		WithUserStore(users),
		WithSessionStore(sessions),
		WithLoginStateStore(states),
		WithRefreshBackoffScheduler(immediateBackoff{}),
	}
	options = append(options, extra...)

	service, err := NewService(Config{}, options...)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return &serviceFixture{
		service:  service,
		exchange: exchange,
		identity: identity,
		registry: registry,
		users:    users,
		sessions: sessions,
		states:   states,
	}
}

func (f *serviceFixture) primeState(t *testing.T, state string) {
	t.Helper()
	if err := f.states.Save(context.Background(), LoginStateRecord{State: state}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
}

func registerFixtureOrg(t *testing.T, registry *MemoryCredentialRegistry, organizationID int64) OrgCredential {
	t.Helper()
	record, err := registry.Register(context.Background(), RegisterOrgInput{
		OrganizationID:   organizationID,
		OrganizationName: "Calm Horizons",
		Ticker:           "CALM",
		RefreshToken:     "refresh-token",
		Scopes:           []string{"esi-corporations.read_corporation_membership.v1"},
		RegisteredBy:     "char-90000001",
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	return record
}
