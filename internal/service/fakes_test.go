package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/tenant-session/internal/domain"
	"github.com/spec-kit/tenant-session/internal/events"
	"github.com/spec-kit/tenant-session/internal/observability"
	"github.com/spec-kit/tenant-session/internal/session"
	"github.com/spec-kit/tenant-session/pkg/util/errorutil"
)

type fakeAccount struct {
	password  string
	principal domain.Principal
}

// fakeProvider is an in-memory identity provider with injectable failures.
type fakeProvider struct {
	dispatcher events.Dispatcher

	mu            sync.Mutex
	accounts      map[string]fakeAccount
	current       *domain.Grant
	seq           int
	signOutErr    error
	refreshErr    error
	getErr        error
	silentSignIn  bool
	silentRefresh bool
	signOutCalls  int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		dispatcher: events.NewInMemoryDispatcher(),
		accounts:   map[string]fakeAccount{},
	}
}

func (f *fakeProvider) addAccount(email, password, id string) domain.Principal {
	p := domain.Principal{ID: id, Email: email}
	f.accounts[email] = fakeAccount{password: password, principal: p}
	return p
}

func (f *fakeProvider) issue(sessionID string) domain.Session {
	f.seq++
	if sessionID == "" {
		sessionID = fmt.Sprintf("sess-%d", f.seq)
	}
	now := time.Now().UTC().Truncate(time.Second)
	return domain.Session{
		ID:           sessionID,
		AccessToken:  fmt.Sprintf("access-%d", f.seq),
		RefreshToken: fmt.Sprintf("refresh-%d", f.seq),
		TokenType:    "Bearer",
		IssuedAt:     now,
		ExpiresAt:    now.Add(time.Hour),
	}
}

func (f *fakeProvider) SignInWithPassword(ctx context.Context, email, password string) (domain.Grant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	account, ok := f.accounts[email]
	if !ok || account.password != password {
		return domain.Grant{}, errorutil.NewCredentialError("Invalid login credentials")
	}
	grant := domain.Grant{Session: f.issue(""), Principal: account.principal}
	f.current = &grant
	if !f.silentSignIn {
		_ = f.dispatcher.Publish(ctx, events.SignedIn(grant.Session, grant.Principal))
	}
	return grant, nil
}

func (f *fakeProvider) SignOut(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signOutCalls++
	f.current = nil
	_ = f.dispatcher.Publish(ctx, events.SignedOut())
	return f.signOutErr
}

func (f *fakeProvider) RefreshSession(ctx context.Context) (domain.Grant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refreshErr != nil {
		return domain.Grant{}, f.refreshErr
	}
	if f.current == nil {
		return domain.Grant{}, errorutil.NewSessionExpired(nil)
	}
	grant := domain.Grant{Session: f.issue(f.current.Session.ID), Principal: f.current.Principal}
	f.current = &grant
	if !f.silentRefresh {
		_ = f.dispatcher.Publish(ctx, events.TokenRefreshed(grant.Session))
	}
	return grant, nil
}

func (f *fakeProvider) GetSession(context.Context) (*domain.Grant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.current == nil {
		return nil, nil
	}
	g := *f.current
	return &g, nil
}

func (f *fakeProvider) Subscribe() *events.Subscription {
	return f.dispatcher.Subscribe()
}

func (f *fakeProvider) emit(e events.Event) {
	_ = f.dispatcher.Publish(context.Background(), e)
}

// fakeResolver maps principals to roles, optionally holding a resolution
// until its gate is released.
type fakeResolver struct {
	mu      sync.Mutex
	roles   map[string]domain.Role
	gates   map[string]chan struct{}
	err     error
	calls   map[string]int
	started chan string
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		roles:   map[string]domain.Role{},
		gates:   map[string]chan struct{}{},
		calls:   map[string]int{},
		started: make(chan string, 16),
	}
}

// gate holds the next resolutions of principalID until the returned func
// is called. Earlier start notifications are dropped.
func (r *fakeResolver) gate(principalID string) func() {
	for drained := false; !drained; {
		select {
		case <-r.started:
		default:
			drained = true
		}
	}
	ch := make(chan struct{})
	r.mu.Lock()
	r.gates[principalID] = ch
	r.mu.Unlock()
	return func() { close(ch) }
}

func (r *fakeResolver) setRole(principalID string, role domain.Role) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roles[principalID] = role
}

func (r *fakeResolver) setErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *fakeResolver) callCount(principalID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[principalID]
}

func (r *fakeResolver) Resolve(ctx context.Context, p domain.Principal) (*domain.AuthUser, error) {
	r.mu.Lock()
	r.calls[p.ID]++
	gate := r.gates[p.ID]
	r.mu.Unlock()

	select {
	case r.started <- p.ID:
	default:
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, errorutil.NewProfileUnavailable(ctx.Err())
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	user := domain.NewAuthUser(p, nil, nil)
	if role, ok := r.roles[p.ID]; ok {
		user.Role = role
	}
	return user, nil
}

type harness struct {
	controller *AuthController
	provider   *fakeProvider
	resolver   *fakeResolver
	store      *session.Store
	metrics    *observability.Metrics
}

func newHarness(t *testing.T, opts ...session.Option) *harness {
	t.Helper()
	h := &harness{
		provider: newFakeProvider(),
		resolver: newFakeResolver(),
		store:    session.NewStore(opts...),
		metrics:  observability.NewMetrics(),
	}
	h.controller = NewAuthController(AuthDependencies{
		Provider: h.provider,
		Resolver: h.resolver,
		Store:    h.store,
		Metrics:  h.metrics,
	})
	t.Cleanup(func() {
		h.controller.Dispose()
		h.controller.waitIdle()
		h.store.Close()
	})
	return h
}

func (h *harness) init(t *testing.T) {
	t.Helper()
	require.NoError(t, h.controller.Init(context.Background()))
}

// settle waits until n provider events were handled and every resolution
// they started has finished.
func (h *harness) settle(t *testing.T, n uint64) {
	t.Helper()
	require.Eventually(t, func() bool {
		h.controller.mu.Lock()
		sub := h.controller.subscriber
		h.controller.mu.Unlock()
		return sub != nil && sub.handled.Load() >= n
	}, time.Second, 5*time.Millisecond)
	h.controller.waitIdle()
}

func (h *harness) awaitStarted(t *testing.T, principalID string) {
	t.Helper()
	for {
		select {
		case id := <-h.resolver.started:
			if id == principalID {
				return
			}
		case <-time.After(time.Second):
			t.Fatalf("resolution for %s never started", principalID)
		}
	}
}
