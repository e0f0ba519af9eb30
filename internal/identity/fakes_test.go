package identity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/tenant-session/internal/auth"
	"github.com/spec-kit/tenant-session/internal/config"
	"github.com/spec-kit/tenant-session/internal/domain"
	"github.com/spec-kit/tenant-session/internal/events"
)

type fakeAccounts struct {
	mu      sync.Mutex
	byEmail map[string]*domain.Account
	getErr  error
}

func (f *fakeAccounts) Create(_ context.Context, a *domain.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byEmail[a.Email] = a
	return nil
}

func (f *fakeAccounts) GetByID(_ context.Context, id string) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, a := range f.byEmail {
		if a.ID == id {
			c := *a
			return &c, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeAccounts) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	a, ok := f.byEmail[email]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	c := *a
	return &c, nil
}

type failingGrants struct {
	*MemoryGrantStore
	deleteErr error
}

func (f failingGrants) Delete(ctx context.Context) error {
	_ = f.MemoryGrantStore.Delete(ctx)
	return f.deleteErr
}

type harness struct {
	provider   *LocalProvider
	accounts   *fakeAccounts
	grants     GrantStore
	dispatcher events.Dispatcher
	tokens     *auth.TokenManager
	revoked    *RevocationList
	sub        *events.Subscription
}

var testAuth = config.AuthConfig{
	JWTSecret:             "identity-secret-identity-secret-0123",
	Issuer:                "identity-test",
	AccessTokenTTLMinutes: 15,
	RefreshTokenTTLHours:  1,
}

func newHarness(t *testing.T, grants GrantStore) *harness {
	t.Helper()
	hasher := auth.NewPasswordHasher(bcrypt.MinCost)
	hash, err := hasher.Hash("s3cret!")
	require.NoError(t, err)

	accounts := &fakeAccounts{byEmail: map[string]*domain.Account{
		"boss@acme.test": {ID: "u-boss", Email: "boss@acme.test", DisplayName: "Boss", PasswordHash: hash, Status: domain.AccountStatusActive},
		"gone@acme.test": {ID: "u-gone", Email: "gone@acme.test", PasswordHash: hash, Status: domain.AccountStatusSuspended},
	}}
	if grants == nil {
		grants = NewMemoryGrantStore()
	}
	h := &harness{
		accounts:   accounts,
		grants:     grants,
		dispatcher: events.NewInMemoryDispatcher(),
		tokens:     auth.NewTokenManager(testAuth),
		revoked:    NewRevocationList(16, time.Hour),
	}
	h.provider = h.build()
	h.sub = h.provider.Subscribe()
	t.Cleanup(h.sub.Close)
	return h
}

func (h *harness) build() *LocalProvider {
	return NewLocalProvider(LocalProviderDeps{
		Accounts:   h.accounts,
		Passwords:  auth.NewPasswordHasher(bcrypt.MinCost),
		Tokens:     h.tokens,
		Dispatcher: h.dispatcher,
		Grants:     h.grants,
		Revoked:    h.revoked,
	})
}

func (h *harness) next(t *testing.T) events.Event {
	t.Helper()
	select {
	case e := <-h.sub.C:
		return e
	case <-time.After(time.Second):
		t.Fatal("no event")
		return events.Event{}
	}
}

func (h *harness) none(t *testing.T) {
	t.Helper()
	select {
	case e := <-h.sub.C:
		t.Fatalf("unexpected event %s", e.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

var errDB = errors.New("db unavailable")
