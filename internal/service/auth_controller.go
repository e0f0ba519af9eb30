package service

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/tenant-session/internal/domain"
	"github.com/spec-kit/tenant-session/internal/identity"
	"github.com/spec-kit/tenant-session/internal/observability"
	"github.com/spec-kit/tenant-session/internal/resolver"
	"github.com/spec-kit/tenant-session/internal/session"
	"github.com/spec-kit/tenant-session/pkg/util/errorutil"
)

const (
	msgSessionChanged  = "Session changed during refresh"
	msgLoginSuperseded = "Session changed during login"
	msgNotRunning      = "Authentication is not available"
)

var (
	// ErrAlreadyInitialized is returned by a second Init.
	ErrAlreadyInitialized = errors.New("auth controller already initialized")
	// ErrDisposed is returned by Init after Dispose.
	ErrDisposed = errors.New("auth controller disposed")
)

type lifecycle int

const (
	lifecycleNew lifecycle = iota
	lifecycleRunning
	lifecycleDisposed
)

// LoginResult is returned by Login. Error is set only on failure.
type LoginResult struct {
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
	RedirectTo string `json:"redirectTo,omitempty"`
}

// RefreshResult is returned by RefreshSession.
type RefreshResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// AuthController owns the session lifecycle: it reacts to provider events,
// performs login, logout and refresh, and exposes read-only selectors.
type AuthController struct {
	provider  identity.Provider
	resolver  resolver.Resolver
	store     *session.Store
	redirects domain.RedirectMap
	logger    *zap.Logger
	metrics   *observability.Metrics

	mu         sync.Mutex
	lifecycle  lifecycle
	subscriber *EventSubscriber

	inflight sync.WaitGroup
}

// AuthDependencies groups the collaborators of an AuthController.
type AuthDependencies struct {
	Provider  identity.Provider
	Resolver  resolver.Resolver
	Store     *session.Store
	Redirects domain.RedirectMap
	Logger    *zap.Logger
	Metrics   *observability.Metrics
}

// NewAuthController builds a controller. It does nothing until Init.
func NewAuthController(deps AuthDependencies) *AuthController {
	c := &AuthController{
		provider:  deps.Provider,
		resolver:  deps.Resolver,
		store:     deps.Store,
		redirects: deps.Redirects,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
	}
	if c.store == nil {
		c.store = session.NewStore()
	}
	if c.redirects == nil {
		c.redirects = domain.DefaultRedirects()
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// Init subscribes to provider events and loads any existing session. The
// subscription is opened before the session is read so no event between
// the two is missed.
func (c *AuthController) Init(ctx context.Context) error {
	c.mu.Lock()
	switch c.lifecycle {
	case lifecycleRunning:
		c.mu.Unlock()
		return ErrAlreadyInitialized
	case lifecycleDisposed:
		c.mu.Unlock()
		return ErrDisposed
	}
	gen := c.store.Begin(session.State{Loading: true})
	c.subscriber = newEventSubscriber(c, c.provider.Subscribe())
	c.lifecycle = lifecycleRunning
	c.mu.Unlock()

	grant, err := c.provider.GetSession(ctx)
	if err != nil {
		c.logger.Warn("existing session unavailable", zap.Error(err))
		c.commit(gen, func(session.State) session.State { return session.State{} })
		return nil
	}
	if grant == nil {
		c.commit(gen, func(session.State) session.State { return session.State{} })
		return nil
	}

	pending := session.State{Session: &grant.Session, Loading: true}
	if last := c.lastKnownUser(ctx, *grant); last != nil {
		pending.User = last
	}
	c.commit(gen, func(session.State) session.State { return pending })

	user, err := c.resolver.Resolve(ctx, grant.Principal)
	if err != nil {
		c.logger.Warn("existing session not resolved", zap.String("principal_id", grant.Principal.ID), zap.Error(err))
		c.commit(gen, func(session.State) session.State { return session.State{} })
		return err
	}
	c.commit(gen, func(cur session.State) session.State {
		return session.State{Session: cur.Session, User: user}
	})
	return nil
}

// Dispose unsubscribes from provider events. In-flight resolutions run to
// completion but their results are discarded.
func (c *AuthController) Dispose() {
	c.mu.Lock()
	if c.lifecycle == lifecycleDisposed {
		c.mu.Unlock()
		return
	}
	sub := c.subscriber
	c.lifecycle = lifecycleDisposed
	c.mu.Unlock()

	if sub != nil {
		sub.Close()
	}
	c.store.Invalidate()
}

// Login exchanges credentials with the provider and resolves the principal.
func (c *AuthController) Login(ctx context.Context, email, password string) LoginResult {
	if !c.running() {
		return LoginResult{Error: msgNotRunning}
	}

	grant, err := c.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		return LoginResult{Error: errorutil.ToDomainError(err).Message}
	}

	gen := c.store.Begin(session.State{Session: &grant.Session, Loading: true})
	user, err := c.resolver.Resolve(ctx, grant.Principal)
	if err != nil {
		c.logger.Warn("profile unavailable after sign-in", zap.String("principal_id", grant.Principal.ID), zap.Error(err))
		c.commit(gen, func(session.State) session.State { return session.State{} })
		return LoginResult{Error: errorutil.ProfileUnavailableMessage}
	}
	if !c.commit(gen, func(cur session.State) session.State {
		return session.State{Session: cur.Session, User: user}
	}) {
		c.logger.Info("login superseded by a newer session change", zap.String("principal_id", user.ID))
		return LoginResult{Error: msgLoginSuperseded}
	}

	result := LoginResult{Success: true}
	if path, ok := c.redirects.PathFor(user.Role); ok {
		result.RedirectTo = path
	}
	c.logger.Info("login succeeded", zap.String("principal_id", user.ID), zap.String("role", string(user.Role)))
	return result
}

// Logout clears local state unconditionally. A failing remote sign-out is
// logged and otherwise ignored.
func (c *AuthController) Logout(ctx context.Context) {
	c.store.Clear()
	if err := c.provider.SignOut(ctx); err != nil {
		c.logger.Warn("remote sign-out failed", zap.Error(err))
	}
}

// RefreshSession obtains new tokens and re-resolves the principal. On any
// failure the current state is left exactly as it was.
func (c *AuthController) RefreshSession(ctx context.Context) RefreshResult {
	if !c.running() {
		return RefreshResult{Error: msgNotRunning}
	}

	gen := c.store.Generation()
	grant, err := c.provider.RefreshSession(ctx)
	if err != nil {
		return RefreshResult{Error: errorutil.ToDomainError(err).Message}
	}

	user, err := c.resolver.Resolve(ctx, grant.Principal)
	if err != nil {
		c.logger.Warn("profile unavailable after refresh", zap.String("principal_id", grant.Principal.ID), zap.Error(err))
		return RefreshResult{Error: errorutil.ProfileUnavailableMessage}
	}

	if !c.commit(gen, func(session.State) session.State {
		return session.State{Session: &grant.Session, User: user}
	}) {
		return RefreshResult{Error: msgSessionChanged}
	}
	return RefreshResult{Success: true}
}

// State returns a copy of the full state.
func (c *AuthController) State() session.State {
	return c.store.Snapshot()
}

// User returns the resolved user, or nil.
func (c *AuthController) User() *domain.AuthUser {
	return c.store.Snapshot().User
}

// Session returns the held session, or nil.
func (c *AuthController) Session() *domain.Session {
	return c.store.Snapshot().Session
}

// IsLoading reports whether a resolution is pending.
func (c *AuthController) IsLoading() bool {
	return c.store.Snapshot().Loading
}

// IsAuthenticated reports whether both a session and a user are held.
func (c *AuthController) IsAuthenticated() bool {
	st := c.store.Snapshot()
	return st.Session != nil && st.User != nil
}

// Status derives the lifecycle status from the controller and store.
func (c *AuthController) Status() Status {
	c.mu.Lock()
	lc := c.lifecycle
	c.mu.Unlock()
	return deriveStatus(lc, c.store.Snapshot())
}

func (c *AuthController) running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lifecycle == lifecycleRunning
}

// commit applies fn under gen and counts discarded writes.
func (c *AuthController) commit(gen uint64, fn func(session.State) session.State) bool {
	if c.store.Apply(gen, fn) {
		return true
	}
	c.metrics.RecordStaleDiscard()
	c.logger.Debug("stale session write discarded", zap.Uint64("generation", gen))
	return false
}

// resolveAsync resolves principal off the event loop and commits the user
// under gen, keeping whatever session is current at that point.
func (c *AuthController) resolveAsync(gen uint64, principal domain.Principal) {
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()

		user, err := c.resolver.Resolve(context.Background(), principal)
		if err != nil {
			c.logger.Warn("signed-in principal not resolved", zap.String("principal_id", principal.ID), zap.Error(err))
			c.commit(gen, func(session.State) session.State { return session.State{} })
			return
		}
		c.commit(gen, func(cur session.State) session.State {
			return session.State{Session: cur.Session, User: user}
		})
	}()
}

// lastKnownUser returns the persisted user for the same session, shown while
// the session is re-resolved.
func (c *AuthController) lastKnownUser(ctx context.Context, grant domain.Grant) *domain.AuthUser {
	persisted, err := c.store.Persisted(ctx)
	if err != nil {
		c.logger.Debug("persisted session state unavailable", zap.Error(err))
		return nil
	}
	if persisted == nil || persisted.Session == nil || persisted.User == nil {
		return nil
	}
	if persisted.Session.ID != grant.Session.ID || persisted.User.ID != grant.Principal.ID {
		return nil
	}
	return persisted.User
}

// waitIdle blocks until every background resolution has finished.
func (c *AuthController) waitIdle() {
	c.inflight.Wait()
}
