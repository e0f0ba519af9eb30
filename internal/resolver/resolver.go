// Package resolver maps an authenticated principal to exactly one tenant role.
// It is the only place where identity-to-role mapping lives.
package resolver

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"

	"github.com/spec-kit/tenant-session/internal/domain"
	"github.com/spec-kit/tenant-session/internal/observability"
	"github.com/spec-kit/tenant-session/pkg/util/errorutil"
)

// Match is a role record found by a probe together with its joined company.
type Match struct {
	Record  domain.RoleRecord
	Company *domain.CompanySummary
}

// Probe looks up one role tier for a principal. A nil match with a nil
// error means the principal holds no record at this tier.
type Probe interface {
	Role() domain.Role
	Lookup(ctx context.Context, principalID string) (*Match, error)
}

// ProbeFunc adapts a function to the Probe interface.
type ProbeFunc struct {
	Tier domain.Role
	Fn   func(ctx context.Context, principalID string) (*Match, error)
}

func (p ProbeFunc) Role() domain.Role { return p.Tier }

func (p ProbeFunc) Lookup(ctx context.Context, principalID string) (*Match, error) {
	return p.Fn(ctx, principalID)
}

// Resolver is the RoleResolver contract.
type Resolver interface {
	Resolve(ctx context.Context, principal domain.Principal) (*domain.AuthUser, error)
}

// ErrEmptyPrincipal is returned for a principal without an id.
var ErrEmptyPrincipal = errors.New("principal id is required")

type roleResolver struct {
	probes   []Probe
	fallback domain.Role
	logger   *zap.Logger
	metrics  *observability.Metrics
}

// Option configures a resolver.
type Option func(*roleResolver)

// WithFallbackRole assigns role to principals no probe matched, instead of
// leaving them unassigned. The user carries no company.
func WithFallbackRole(role domain.Role) Option {
	return func(r *roleResolver) { r.fallback = role }
}

// WithMetrics records resolutions and probe failures.
func WithMetrics(m *observability.Metrics) Option {
	return func(r *roleResolver) { r.metrics = m }
}

// WithProbes appends probes in the given order.
func WithProbes(probes ...Probe) Option {
	return func(r *roleResolver) { r.probes = append(r.probes, probes...) }
}

// New builds a resolver that tries probes in the order given.
func New(logger *zap.Logger, opts ...Option) Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &roleResolver{logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewDefault builds a resolver whose probes are ordered by role priority,
// whatever order they are passed in.
func NewDefault(logger *zap.Logger, probes []Probe, opts ...Option) Resolver {
	ordered := append([]Probe(nil), probes...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Role().Rank() < ordered[j].Role().Rank()
	})
	return New(logger, append([]Option{WithProbes(ordered...)}, opts...)...)
}

// Resolve tries each probe in order and returns the first match. A failing
// probe is logged and treated as no match at that tier.
func (r *roleResolver) Resolve(ctx context.Context, principal domain.Principal) (*domain.AuthUser, error) {
	if principal.ID == "" {
		return nil, errorutil.NewProfileUnavailable(ErrEmptyPrincipal)
	}

	for _, probe := range r.probes {
		if err := ctx.Err(); err != nil {
			return nil, errorutil.NewProfileUnavailable(err)
		}

		match, err := probe.Lookup(ctx, principal.ID)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, errorutil.NewProfileUnavailable(ctxErr)
			}
			lookupErr := errorutil.NewLookupFailure(string(probe.Role()), err)
			r.logger.Warn("role lookup failed",
				zap.String("tier", string(probe.Role())),
				zap.String("principal_id", principal.ID),
				zap.Error(lookupErr),
			)
			r.metrics.RecordProbeFailure(string(probe.Role()))
			continue
		}
		if match == nil || match.Record == nil {
			continue
		}

		user := domain.NewAuthUser(principal, match.Record, match.Company)
		r.metrics.RecordResolution(string(user.Role))
		return user, nil
	}

	user := domain.NewAuthUser(principal, nil, nil)
	if r.fallback != "" {
		user.Role = r.fallback
	}
	r.logger.Info("no role record for principal",
		zap.String("principal_id", principal.ID),
		zap.String("role", string(user.Role)),
	)
	r.metrics.RecordResolution(string(user.Role))
	return user, nil
}
