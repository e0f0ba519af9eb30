package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/tenant-session/internal/domain"
)

const persistTimeout = 3 * time.Second

// State is the authentication state visible to consumers. Session and User
// are written and cleared together.
type State struct {
	Session *domain.Session  `json:"session"`
	User    *domain.AuthUser `json:"user"`
	Loading bool             `json:"loading"`
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	out := State{Loading: s.Loading, User: s.User.Clone()}
	if s.Session != nil {
		sess := *s.Session
		out.Session = &sess
	}
	return out
}

// Persister mirrors committed state outside the process.
type Persister interface {
	Save(ctx context.Context, state State) error
	Load(ctx context.Context) (*State, error)
	Clear(ctx context.Context) error
}

// Store owns the authentication state and its generation counter. Every
// write replaces the whole state; writes tagged with an older generation
// are discarded.
type Store struct {
	mu     sync.Mutex
	state  State
	gen    uint64
	subs   map[int]chan State
	nextID int

	persister Persister
	persistCh chan State
	stop      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
	logger    *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithPersister mirrors committed state through p.
func WithPersister(p Persister) Option {
	return func(s *Store) { s.persister = p }
}

// WithLogger sets the logger used for persistence failures.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		subs:   make(map[int]chan State),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.persister != nil {
		s.persistCh = make(chan State, 1)
		s.stop = make(chan struct{})
		s.stopped = make(chan struct{})
		go s.persistLoop()
	}
	return s
}

// Begin advances the generation and replaces the state with next. The
// returned generation tags the writes that complete this transition.
func (s *Store) Begin(next State) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.commitLocked(next)
	return s.gen
}

// Apply replaces the state with fn(current) only if gen is still current.
func (s *Store) Apply(gen uint64, fn func(State) State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return false
	}
	s.commitLocked(fn(s.state.Clone()))
	return true
}

// Clear advances the generation and empties the state.
func (s *Store) Clear() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.commitLocked(State{})
	return s.gen
}

// Invalidate advances the generation without touching the state, so every
// pending write is discarded.
func (s *Store) Invalidate() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	return s.gen
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Generation returns the current generation.
func (s *Store) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// Subscribe returns a channel that always holds the latest state after a
// change. Intermediate states may be skipped by slow readers.
func (s *Store) Subscribe() (<-chan State, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	ch := make(chan State, 1)
	s.subs[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// Persisted returns the last mirrored state, if any.
func (s *Store) Persisted(ctx context.Context) (*State, error) {
	if s.persister == nil {
		return nil, nil
	}
	return s.persister.Load(ctx)
}

// Close stops the persistence loop after flushing the last committed state.
func (s *Store) Close() {
	if s.persister == nil {
		return
	}
	s.closeOnce.Do(func() {
		close(s.stop)
		<-s.stopped
	})
}

func (s *Store) commitLocked(next State) {
	s.state = next.Clone()
	for _, ch := range s.subs {
		offerLatest(ch, s.state.Clone())
	}
	if s.persistCh != nil && !s.state.Loading {
		offerLatest(s.persistCh, s.state.Clone())
	}
}

func offerLatest(ch chan State, st State) {
	for {
		select {
		case ch <- st:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func (s *Store) persistLoop() {
	defer close(s.stopped)
	for {
		select {
		case st := <-s.persistCh:
			s.persist(st)
		case <-s.stop:
			select {
			case st := <-s.persistCh:
				s.persist(st)
			default:
			}
			return
		}
	}
}

func (s *Store) persist(st State) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	var err error
	if st.Session == nil {
		err = s.persister.Clear(ctx)
	} else {
		err = s.persister.Save(ctx, st)
	}
	if err != nil {
		s.logger.Warn("session state not persisted", zap.Error(err))
	}
}
