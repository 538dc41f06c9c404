package adapters_test

import (
	"context"
	"testing"

	"github.com/goliatone/go-command"
	job "github.com/goliatone/go-job"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/dstevens79/eve-corp-auth/adapters/gocommand"
	"github.com/dstevens79/eve-corp-auth/adapters/gojob"
	"github.com/dstevens79/eve-corp-auth/adapters/gologger"
	authcommand "github.com/dstevens79/eve-corp-auth/command"
	"github.com/dstevens79/eve-corp-auth/core"
)

func TestRuntimeCompatibility_GoJobGoCommandGoLogger(t *testing.T) {
	ctx := context.Background()

	logger := &compatLogger{}
	provider := &compatProvider{logger: logger}

	_, _, jobProvider, jobLogger := gologger.ResolveForJob("auth", provider, nil)
	if jobProvider == nil || jobLogger == nil {
		t.Fatalf("expected go-job logger bridges")
	}

	enqueueProbe := &compatEnqueuer{}
	enqueueAdapter := gojob.NewEnqueuerAdapter(enqueueProbe)
	if err := enqueueAdapter.Enqueue(ctx, core.BuildRefreshJobMessage(98000001)); err != nil {
		t.Fatalf("enqueue via gojob adapter: %v", err)
	}
	if enqueueProbe.last == nil || enqueueProbe.last.JobID != gojob.JobIDRefresh {
		t.Fatalf("expected go-job message mapping through enqueuer adapter")
	}

	queueRegistry := jobqueuecommand.NewRegistry()
	commandAdapter := gocommand.NewRegistryAdapter(command.NewRegistry())
	if err := commandAdapter.AddQueueResolver("queue", queueRegistry); err != nil {
		t.Fatalf("add queue resolver: %v", err)
	}
	if err := commandAdapter.RegisterCommand(command.CommandFunc[compatMessage](func(context.Context, compatMessage) error {
		return nil
	})); err != nil {
		t.Fatalf("register command: %v", err)
	}
	if err := commandAdapter.Initialize(); err != nil {
		t.Fatalf("initialize command registry: %v", err)
	}
	if _, ok := queueRegistry.Get("auth.compat.command"); !ok {
		t.Fatalf("expected command resolver hook to mirror command into go-job queue registry")
	}
}

func TestRuntimeCompatibility_AuthCommandsDispatchIntoService(t *testing.T) {
	svc := &compatAuthService{}
	adapter := gocommand.NewRegistryAdapter(command.NewRegistry())

	subscriptions, err := gocommand.SubscribeAuthCommands(adapter, svc)
	if err != nil {
		t.Fatalf("subscribe auth commands: %v", err)
	}
	defer func() {
		for _, subscription := range subscriptions {
			subscription.Unsubscribe()
		}
	}()
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize adapter: %v", err)
	}

	if err := gocommand.Dispatch(context.Background(), authcommand.SetUserActiveMessage{
		Actor:       adminActor(),
		PrincipalID: "char-90000001",
		Active:      false,
	}); err != nil {
		t.Fatalf("dispatch set user active: %v", err)
	}
	if svc.setActiveCalls != 1 || svc.lastPrincipalID != "char-90000001" || svc.lastActive {
		t.Fatalf("expected deactivation to reach the service, got %+v", svc)
	}

	if err := gocommand.Dispatch(context.Background(), authcommand.RemoveOrganizationMessage{
		Actor:          adminActor(),
		OrganizationID: 98000001,
	}); err != nil {
		t.Fatalf("dispatch remove organization: %v", err)
	}
	if svc.removedOrg != 98000001 {
		t.Fatalf("expected organization removal, got %d", svc.removedOrg)
	}
}

func adminActor() core.Principal {
	permissions, _ := core.PermissionsFor(core.RoleSuperAdmin)
	return core.Principal{
		ID:          "char-90000000",
		DisplayName: "Ops Admin",
		CharacterID: 90000000,
		Role:        core.RoleSuperAdmin,
		Permissions: permissions,
		Active:      true,
	}
}

type compatMessage struct{}

func (compatMessage) Type() string { return "auth.compat.command" }

type compatEnqueuer struct {
	last *job.ExecutionMessage
}

func (e *compatEnqueuer) Enqueue(_ context.Context, msg *job.ExecutionMessage) error {
	e.last = msg
	return nil
}

type compatProvider struct {
	logger glog.Logger
}

func (p *compatProvider) GetLogger(string) glog.Logger {
	if p == nil || p.logger == nil {
		return glog.Nop()
	}
	return p.logger
}

type compatLogger struct{}

func (compatLogger) Trace(string, ...any)                    {}
func (compatLogger) Debug(string, ...any)                    {}
func (compatLogger) Info(string, ...any)                     {}
func (compatLogger) Warn(string, ...any)                     {}
func (compatLogger) Error(string, ...any)                    {}
func (compatLogger) Fatal(string, ...any)                    {}
func (compatLogger) WithContext(context.Context) glog.Logger { return compatLogger{} }

type compatAuthService struct {
	setActiveCalls  int
	lastPrincipalID string
	lastActive      bool
	removedOrg      int64
}

func (s *compatAuthService) BeginLogin(context.Context, core.BeginAuthRequest) (core.BeginAuthResponse, error) {
	return core.BeginAuthResponse{}, nil
}

func (s *compatAuthService) HandleCallback(context.Context, core.CallbackRequest) (core.CallbackResult, error) {
	return core.CallbackResult{}, nil
}

func (s *compatAuthService) CompleteRegistration(context.Context, core.CompleteRegistrationRequest) (core.CallbackResult, error) {
	return core.CallbackResult{}, nil
}

func (s *compatAuthService) AbandonRegistration(context.Context, string) error { return nil }

func (s *compatAuthService) UpdateUserRole(_ context.Context, _ core.Principal, principalID string, role core.Role) (core.Principal, error) {
	return core.Principal{ID: principalID, Role: role}, nil
}

func (s *compatAuthService) SetUserActive(_ context.Context, _ core.Principal, principalID string, active bool) error {
	s.setActiveCalls++
	s.lastPrincipalID = principalID
	s.lastActive = active
	return nil
}

func (s *compatAuthService) DeleteUser(context.Context, core.Principal, string) error { return nil }

func (s *compatAuthService) RemoveOrganization(_ context.Context, _ core.Principal, organizationID int64) error {
	s.removedOrg = organizationID
	return nil
}

func (s *compatAuthService) RefreshOrganization(context.Context, int64) error { return nil }
