package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/tenant-session/internal/domain"
	"github.com/spec-kit/tenant-session/internal/events"
	"github.com/spec-kit/tenant-session/internal/session"
	"github.com/spec-kit/tenant-session/pkg/util/errorutil"
)

func TestLoginRedirectsByRole(t *testing.T) {
	tests := []struct {
		role     domain.Role
		redirect string
	}{
		{role: domain.RoleSuperAdmin, redirect: "/super-admin/dashboard"},
		{role: domain.RoleEmployer, redirect: "/employer/dashboard"},
		{role: domain.RoleEmployee, redirect: "/employee/dashboard"},
		{role: domain.RoleContractor, redirect: "/contractor/dashboard"},
		{role: domain.RoleUnassigned, redirect: ""},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			h := newHarness(t)
			h.init(t)
			h.provider.addAccount("user@acme.test", "pw", "u1")
			h.resolver.setRole("u1", tt.role)

			result := h.controller.Login(context.Background(), "user@acme.test", "pw")
			assert.Equal(t, LoginResult{Success: true, RedirectTo: tt.redirect}, result)

			h.settle(t, 1)
			assert.Equal(t, Status{Phase: PhaseAuthenticated, Role: tt.role}, h.controller.Status())
			assert.True(t, h.controller.IsAuthenticated())
			assert.False(t, h.controller.IsLoading())
			assert.Equal(t, "u1", h.controller.User().ID)
		})
	}
}

func TestLoginInvalidCredentialsLeavesStateUntouched(t *testing.T) {
	h := newHarness(t)
	h.init(t)
	h.provider.addAccount("boss@acme.test", "pw", "u1")
	before := h.store.Generation()

	result := h.controller.Login(context.Background(), "boss@acme.test", "wrong")

	assert.False(t, result.Success)
	assert.Equal(t, "Invalid login credentials", result.Error)
	assert.Empty(t, result.RedirectTo)
	assert.Equal(t, before, h.store.Generation())
	assert.Equal(t, session.State{}, h.controller.State())
	assert.Zero(t, h.resolver.callCount("u1"))
}

func TestLoginProfileFailure(t *testing.T) {
	h := newHarness(t)
	h.init(t)
	h.provider.addAccount("boss@acme.test", "pw", "u1")
	h.resolver.setErr(errorutil.NewProfileUnavailable(errors.New("db gone")))

	result := h.controller.Login(context.Background(), "boss@acme.test", "pw")

	assert.Equal(t, LoginResult{Error: "Failed to fetch user profile"}, result)
	h.settle(t, 1)
	assert.Nil(t, h.controller.User())
	assert.Nil(t, h.controller.Session())
	assert.Equal(t, PhaseAnonymous, h.controller.Status().Phase)
}

func TestLoginSupersededBySignOut(t *testing.T) {
	h := newHarness(t)
	h.init(t)
	h.provider.addAccount("boss@acme.test", "pw", "u1")
	h.resolver.setRole("u1", domain.RoleEmployer)
	h.provider.silentSignIn = true
	discarded := h.metrics.Snapshot().StaleDiscarded

	release := h.resolver.gate("u1")
	done := make(chan LoginResult, 1)
	go func() { done <- h.controller.Login(context.Background(), "boss@acme.test", "pw") }()
	h.awaitStarted(t, "u1")

	h.provider.emit(events.SignedOut())
	h.settle(t, 1)
	release()

	result := <-done
	assert.False(t, result.Success)
	assert.Equal(t, msgLoginSuperseded, result.Error)
	assert.Empty(t, result.RedirectTo)
	assert.Equal(t, session.State{}, h.controller.State())
	assert.Equal(t, Status{Phase: PhaseAnonymous}, h.controller.Status())
	assert.Equal(t, discarded+1, h.metrics.Snapshot().StaleDiscarded)
}

func TestLoginSupersededByNewerSignIn(t *testing.T) {
	h := newHarness(t)
	h.init(t)
	h.provider.addAccount("boss@acme.test", "pw", "u1")
	h.resolver.setRole("u1", domain.RoleEmployer)
	h.resolver.setRole("u2", domain.RoleContractor)
	h.provider.silentSignIn = true

	release := h.resolver.gate("u1")
	done := make(chan LoginResult, 1)
	go func() { done <- h.controller.Login(context.Background(), "boss@acme.test", "pw") }()
	h.awaitStarted(t, "u1")

	other := domain.Principal{ID: "u2", Email: "other@acme.test"}
	h.provider.emit(events.SignedIn(domain.Session{ID: "sess-other", AccessToken: "access-other"}, other))
	h.settle(t, 1)
	release()

	result := <-done
	assert.Equal(t, LoginResult{Error: msgLoginSuperseded}, result)
	assert.Equal(t, Status{Phase: PhaseAuthenticated, Role: domain.RoleContractor}, h.controller.Status())
	assert.Equal(t, "sess-other", h.controller.Session().ID)
}

func TestLoginBeforeInit(t *testing.T) {
	h := newHarness(t)
	h.provider.addAccount("boss@acme.test", "pw", "u1")

	result := h.controller.Login(context.Background(), "boss@acme.test", "pw")
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
	assert.Equal(t, PhaseUninitialized, h.controller.Status().Phase)
}

func TestLogoutClearsEvenWhenRemoteFails(t *testing.T) {
	h := newHarness(t)
	h.init(t)
	h.provider.addAccount("boss@acme.test", "pw", "u1")
	h.resolver.setRole("u1", domain.RoleEmployer)
	require.True(t, h.controller.Login(context.Background(), "boss@acme.test", "pw").Success)
	h.settle(t, 1)

	h.provider.signOutErr = errors.New("network unreachable")
	h.controller.Logout(context.Background())

	assert.Nil(t, h.controller.User())
	assert.Nil(t, h.controller.Session())
	assert.False(t, h.controller.IsAuthenticated())
	assert.Equal(t, 1, h.provider.signOutCalls)

	h.settle(t, 2)
	assert.Equal(t, PhaseAnonymous, h.controller.Status().Phase)
}

func TestRefreshSessionReResolves(t *testing.T) {
	h := newHarness(t)
	h.init(t)
	h.provider.addAccount("boss@acme.test", "pw", "u1")
	h.resolver.setRole("u1", domain.RoleEmployee)
	require.True(t, h.controller.Login(context.Background(), "boss@acme.test", "pw").Success)
	h.settle(t, 1)
	before := h.controller.Session()

	h.resolver.setRole("u1", domain.RoleEmployer)
	result := h.controller.RefreshSession(context.Background())

	assert.Equal(t, RefreshResult{Success: true}, result)
	h.settle(t, 2)
	after := h.controller.State()
	assert.Equal(t, before.ID, after.Session.ID)
	assert.NotEqual(t, before.AccessToken, after.Session.AccessToken)
	assert.Equal(t, domain.RoleEmployer, after.User.Role)
}

func TestRefreshSessionFailureLeavesStateUnchanged(t *testing.T) {
	h := newHarness(t)
	h.init(t)
	h.provider.addAccount("boss@acme.test", "pw", "u1")
	h.resolver.setRole("u1", domain.RoleEmployer)
	require.True(t, h.controller.Login(context.Background(), "boss@acme.test", "pw").Success)
	h.settle(t, 1)
	before := h.controller.State()

	t.Run("provider failure", func(t *testing.T) {
		h.provider.refreshErr = errorutil.NewSessionExpired(errors.New("refresh token revoked"))

		result := h.controller.RefreshSession(context.Background())
		assert.False(t, result.Success)
		assert.Equal(t, "session expired", result.Error)
		assert.Equal(t, before, h.controller.State())
		h.provider.refreshErr = nil
	})

	t.Run("resolution failure", func(t *testing.T) {
		h.provider.silentRefresh = true
		h.resolver.setErr(errorutil.NewProfileUnavailable(context.Canceled))

		result := h.controller.RefreshSession(context.Background())
		assert.Equal(t, RefreshResult{Error: "Failed to fetch user profile"}, result)
		assert.Equal(t, before, h.controller.State())
	})
}

func TestRefreshSessionDiscardedAfterSignOut(t *testing.T) {
	h := newHarness(t)
	h.init(t)
	h.provider.addAccount("boss@acme.test", "pw", "u1")
	require.True(t, h.controller.Login(context.Background(), "boss@acme.test", "pw").Success)
	h.settle(t, 1)
	h.provider.silentRefresh = true
	discarded := h.metrics.Snapshot().StaleDiscarded

	release := h.resolver.gate("u1")
	done := make(chan RefreshResult, 1)
	go func() { done <- h.controller.RefreshSession(context.Background()) }()
	h.awaitStarted(t, "u1")

	h.provider.emit(events.SignedOut())
	h.settle(t, 2)
	release()

	result := <-done
	assert.Equal(t, RefreshResult{Error: msgSessionChanged}, result)
	assert.Equal(t, session.State{}, h.controller.State())
	assert.Equal(t, discarded+1, h.metrics.Snapshot().StaleDiscarded)
}

func TestInitWithExistingSession(t *testing.T) {
	h := newHarness(t)
	h.provider.addAccount("boss@acme.test", "pw", "u1")
	_, err := h.provider.SignInWithPassword(context.Background(), "boss@acme.test", "pw")
	require.NoError(t, err)
	h.resolver.setRole("u1", domain.RoleContractor)

	assert.Equal(t, PhaseUninitialized, h.controller.Status().Phase)
	h.init(t)

	assert.Equal(t, Status{Phase: PhaseAuthenticated, Role: domain.RoleContractor}, h.controller.Status())
	assert.Equal(t, "u1", h.controller.User().ID)
}

func TestInitWithoutSession(t *testing.T) {
	h := newHarness(t)
	h.init(t)

	assert.Equal(t, Status{Phase: PhaseAnonymous}, h.controller.Status())
	assert.False(t, h.controller.IsLoading())
}

func TestInitProviderFailureIsAnonymous(t *testing.T) {
	h := newHarness(t)
	h.provider.getErr = errors.New("provider offline")

	require.NoError(t, h.controller.Init(context.Background()))
	assert.Equal(t, PhaseAnonymous, h.controller.Status().Phase)
}

func TestInitShowsPersistedUserWhileResolving(t *testing.T) {
	h := newHarness(t)
	h.provider.addAccount("boss@acme.test", "pw", "u1")
	grant, err := h.provider.SignInWithPassword(context.Background(), "boss@acme.test", "pw")
	require.NoError(t, err)

	persisted := session.State{
		Session: &grant.Session,
		User:    &domain.AuthUser{ID: "u1", Email: "boss@acme.test", Role: domain.RoleEmployer},
	}
	store := session.NewStore(session.WithPersister(&staticPersister{state: &persisted}))
	h.store = store
	h.controller = NewAuthController(AuthDependencies{Provider: h.provider, Resolver: h.resolver, Store: store})
	h.resolver.setRole("u1", domain.RoleEmployee)
	release := h.resolver.gate("u1")

	done := make(chan error, 1)
	go func() { done <- h.controller.Init(context.Background()) }()
	h.awaitStarted(t, "u1")

	assert.True(t, h.controller.IsLoading())
	assert.Equal(t, PhaseInitializing, h.controller.Status().Phase)
	require.NotNil(t, h.controller.User())
	assert.Equal(t, domain.RoleEmployer, h.controller.User().Role)

	release()
	require.NoError(t, <-done)
	assert.Equal(t, Status{Phase: PhaseAuthenticated, Role: domain.RoleEmployee}, h.controller.Status())
}

func TestInitTwiceAndAfterDispose(t *testing.T) {
	h := newHarness(t)
	h.init(t)

	assert.ErrorIs(t, h.controller.Init(context.Background()), ErrAlreadyInitialized)

	h.controller.Dispose()
	h.controller.Dispose()
	assert.Equal(t, PhaseTerminated, h.controller.Status().Phase)
	assert.ErrorIs(t, h.controller.Init(context.Background()), ErrDisposed)
	assert.False(t, h.controller.RefreshSession(context.Background()).Success)
}

func TestDisposeDiscardsInflightResolution(t *testing.T) {
	h := newHarness(t)
	h.init(t)
	release := h.resolver.gate("u1")

	h.provider.emit(events.SignedIn(domain.Session{ID: "s1", AccessToken: "a1"}, domain.Principal{ID: "u1"}))
	h.awaitStarted(t, "u1")

	h.controller.Dispose()
	release()
	h.controller.waitIdle()

	assert.Nil(t, h.controller.User())
	assert.Equal(t, PhaseTerminated, h.controller.Status().Phase)
	assert.Equal(t, int64(1), h.metrics.Snapshot().StaleDiscarded)
}

type staticPersister struct {
	state *session.State
}

func (p *staticPersister) Save(context.Context, session.State) error { return nil }
func (p *staticPersister) Load(context.Context) (*session.State, error) {
	if p.state == nil {
		return nil, nil
	}
	st := p.state.Clone()
	return &st, nil
}
func (p *staticPersister) Clear(context.Context) error { return nil }
