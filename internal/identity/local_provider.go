package identity

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/tenant-session/internal/auth"
	"github.com/spec-kit/tenant-session/internal/domain"
	"github.com/spec-kit/tenant-session/internal/events"
	"github.com/spec-kit/tenant-session/internal/repository"
	"github.com/spec-kit/tenant-session/pkg/util/errorutil"
)

const (
	msgMissingCredentials = "Email and password are required"
	msgInvalidCredentials = "Invalid login credentials"
	msgAccountSuspended   = "Account is suspended"
)

// ErrNoSession is wrapped in the SessionExpired error returned by
// RefreshSession when nothing is signed in.
var ErrNoSession = errors.New("no active session")

// LocalProvider signs accounts in against the users table and issues
// self-signed token pairs. It holds at most one grant at a time.
type LocalProvider struct {
	accounts   repository.AccountRepository
	passwords  *auth.PasswordHasher
	tokens     *auth.TokenManager
	dispatcher events.Dispatcher
	grants     GrantStore
	revoked    *RevocationList
	logger     *zap.Logger

	mu      sync.Mutex
	current *domain.Grant
}

// LocalProviderDeps groups the collaborators of a LocalProvider.
type LocalProviderDeps struct {
	Accounts   repository.AccountRepository
	Passwords  *auth.PasswordHasher
	Tokens     *auth.TokenManager
	Dispatcher events.Dispatcher
	Grants     GrantStore
	Revoked    *RevocationList
	Logger     *zap.Logger
}

// NewLocalProvider wires a provider. Grants default to process memory.
func NewLocalProvider(deps LocalProviderDeps) *LocalProvider {
	p := &LocalProvider{
		accounts:   deps.Accounts,
		passwords:  deps.Passwords,
		tokens:     deps.Tokens,
		dispatcher: deps.Dispatcher,
		grants:     deps.Grants,
		revoked:    deps.Revoked,
		logger:     deps.Logger,
	}
	if p.grants == nil {
		p.grants = NewMemoryGrantStore()
	}
	if p.revoked == nil {
		p.revoked = NewRevocationList(0, 0)
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	if p.dispatcher == nil {
		p.dispatcher = events.NewInMemoryDispatcher()
	}
	return p
}

func (p *LocalProvider) Subscribe() *events.Subscription {
	return p.dispatcher.Subscribe()
}

func (p *LocalProvider) SignInWithPassword(ctx context.Context, email, password string) (domain.Grant, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return domain.Grant{}, errorutil.NewCredentialError(msgMissingCredentials)
	}

	account, err := p.accounts.GetByEmail(ctx, email)
	if errors.Is(err, pgx.ErrNoRows) {
		p.passwords.VerifyUnknown(password)
		return domain.Grant{}, errorutil.NewCredentialError(msgInvalidCredentials)
	}
	if err != nil {
		return domain.Grant{}, errorutil.NewInternalError(err)
	}

	if err := p.passwords.Verify(account.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return domain.Grant{}, errorutil.NewCredentialError(msgInvalidCredentials)
		}
		return domain.Grant{}, errorutil.NewInternalError(err)
	}
	if account.Status != domain.AccountStatusActive {
		return domain.Grant{}, errorutil.NewCredentialError(msgAccountSuspended)
	}

	principal := account.Principal()
	session, err := p.tokens.IssueSession(principal, "")
	if err != nil {
		return domain.Grant{}, errorutil.NewInternalError(err)
	}
	grant := domain.Grant{Session: session, Principal: principal}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.revokeLocked(p.current)
	p.holdLocked(ctx, grant)
	p.publish(ctx, events.SignedIn(session, principal))

	p.logger.Info("signed in", zap.String("principal_id", principal.ID), zap.String("session_id", session.ID))
	return grant, nil
}

// SignOut drops the held grant locally and then removes it from the grant
// store. The returned error only reports the remote step.
func (p *LocalProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.revokeLocked(p.current)
	p.current = nil
	p.publish(ctx, events.SignedOut())

	if err := p.grants.Delete(ctx); err != nil {
		return errorutil.NewInternalError(err)
	}
	return nil
}

func (p *LocalProvider) RefreshSession(ctx context.Context) (domain.Grant, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil {
		return domain.Grant{}, errorutil.NewSessionExpired(ErrNoSession)
	}

	claims, err := p.validRefreshLocked(p.current.Session.RefreshToken)
	if err != nil {
		p.expireLocked(ctx, err)
		return domain.Grant{}, errorutil.NewSessionExpired(err)
	}

	account, err := p.accounts.GetByID(ctx, claims.Subject)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && account.Status != domain.AccountStatusActive) {
		p.expireLocked(ctx, ErrNoSession)
		return domain.Grant{}, errorutil.NewSessionExpired(ErrNoSession)
	}
	if err != nil {
		return domain.Grant{}, errorutil.NewInternalError(err)
	}

	principal := account.Principal()
	session, err := p.tokens.IssueSession(principal, p.current.Session.ID)
	if err != nil {
		return domain.Grant{}, errorutil.NewInternalError(err)
	}
	grant := domain.Grant{Session: session, Principal: principal}

	p.revoked.Revoke(claims.ID)
	p.holdLocked(ctx, grant)
	p.publish(ctx, events.TokenRefreshed(session))
	return grant, nil
}

// GetSession returns the held grant, restoring it from the grant store after
// a restart when its refresh token is still usable.
func (p *LocalProvider) GetSession(ctx context.Context) (*domain.Grant, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current != nil {
		g := *p.current
		return &g, nil
	}

	stored, err := p.grants.Load(ctx)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, nil
	}
	if _, err := p.validRefreshLocked(stored.Session.RefreshToken); err != nil {
		p.logger.Info("discarding stored grant", zap.Error(err))
		if err := p.grants.Delete(ctx); err != nil {
			p.logger.Warn("stored grant not deleted", zap.Error(err))
		}
		return nil, nil
	}

	p.current = stored
	g := *stored
	return &g, nil
}

func (p *LocalProvider) validRefreshLocked(token string) (*auth.Claims, error) {
	claims, err := p.tokens.ParseToken(token, auth.TokenRefresh)
	if err != nil {
		return nil, err
	}
	if p.revoked.Revoked(claims.ID) {
		return nil, auth.ErrTokenInvalid
	}
	return claims, nil
}

// expireLocked drops the grant and announces the expiry.
func (p *LocalProvider) expireLocked(ctx context.Context, cause error) {
	p.logger.Info("session expired", zap.Error(cause))
	p.revokeLocked(p.current)
	p.current = nil
	if err := p.grants.Delete(ctx); err != nil {
		p.logger.Warn("stored grant not deleted", zap.Error(err))
	}
	p.publish(ctx, events.SessionExpired())
}

func (p *LocalProvider) holdLocked(ctx context.Context, grant domain.Grant) {
	p.current = &grant
	if err := p.grants.Save(ctx, grant); err != nil {
		p.logger.Warn("grant not persisted", zap.Error(err))
	}
}

func (p *LocalProvider) revokeLocked(grant *domain.Grant) {
	if grant == nil {
		return
	}
	claims, err := p.tokens.ParseToken(grant.Session.RefreshToken, auth.TokenRefresh)
	if err != nil {
		return
	}
	p.revoked.Revoke(claims.ID)
}

func (p *LocalProvider) publish(ctx context.Context, event events.Event) {
	if err := p.dispatcher.Publish(ctx, event); err != nil {
		p.logger.Warn("event not published", zap.String("type", string(event.Type)), zap.Error(err))
	}
}
