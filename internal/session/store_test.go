package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/tenant-session/internal/domain"
)

type fakePersister struct {
	mu      sync.Mutex
	saved   []State
	cleared int
	saveErr error
	loaded  *State
}

func (f *fakePersister) Save(_ context.Context, st State) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, st)
	return nil
}

func (f *fakePersister) Load(context.Context) (*State, error) {
	return f.loaded, nil
}

func (f *fakePersister) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared++
	return nil
}

func authenticated(id string) State {
	return State{
		Session: &domain.Session{ID: "s-" + id, AccessToken: "tok-" + id},
		User:    &domain.AuthUser{ID: id, Role: domain.RoleEmployee},
	}
}

func TestApplyDiscardsStaleGeneration(t *testing.T) {
	s := NewStore()

	first := s.Begin(State{Session: &domain.Session{ID: "s1"}, Loading: true})
	s.Clear()

	ok := s.Apply(first, func(State) State { return authenticated("u1") })
	assert.False(t, ok)
	assert.Equal(t, State{}, s.Snapshot())
}

func TestApplyCommitsCurrentGeneration(t *testing.T) {
	s := NewStore()

	gen := s.Begin(State{Session: &domain.Session{ID: "s1"}, Loading: true})
	ok := s.Apply(gen, func(cur State) State {
		cur.User = &domain.AuthUser{ID: "u1", Role: domain.RoleEmployer}
		cur.Loading = false
		return cur
	})

	require.True(t, ok)
	st := s.Snapshot()
	assert.Equal(t, "s1", st.Session.ID)
	assert.Equal(t, domain.RoleEmployer, st.User.Role)
	assert.False(t, st.Loading)
	assert.Equal(t, gen, s.Generation(), "apply must not advance the generation")
}

func TestGenerationIsMonotonic(t *testing.T) {
	s := NewStore()
	a := s.Begin(State{Loading: true})
	b := s.Clear()
	c := s.Invalidate()
	d := s.Begin(State{})

	assert.True(t, a < b && b < c && c < d)
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	s := NewStore()
	s.Begin(authenticated("u1"))

	snap := s.Snapshot()
	snap.Session.AccessToken = "mutated"
	snap.User.Role = domain.RoleSuperAdmin

	again := s.Snapshot()
	assert.Equal(t, "tok-u1", again.Session.AccessToken)
	assert.Equal(t, domain.RoleEmployee, again.User.Role)
}

func TestBeginCopiesInput(t *testing.T) {
	s := NewStore()
	in := authenticated("u1")
	s.Begin(in)
	in.User.Role = domain.RoleSuperAdmin

	assert.Equal(t, domain.RoleEmployee, s.Snapshot().User.Role)
}

func TestSubscribeDeliversLatestState(t *testing.T) {
	s := NewStore()
	ch, cancel := s.Subscribe()
	defer cancel()

	s.Begin(State{Loading: true})
	s.Begin(authenticated("u1"))

	select {
	case st := <-ch:
		require.NotNil(t, st.User)
		assert.Equal(t, "u1", st.User.ID)
	case <-time.After(time.Second):
		t.Fatal("no notification")
	}
}

func TestPersisterReceivesCommittedStatesOnly(t *testing.T) {
	p := &fakePersister{}
	s := NewStore(WithPersister(p))

	s.Begin(State{Session: &domain.Session{ID: "s1"}, Loading: true})
	s.Close()

	assert.Empty(t, p.saved)
	assert.Zero(t, p.cleared)

	p2 := &fakePersister{}
	s2 := NewStore(WithPersister(p2))
	s2.Begin(authenticated("u1"))
	s2.Close()

	require.NotEmpty(t, p2.saved)
	assert.Equal(t, "u1", p2.saved[len(p2.saved)-1].User.ID)
}

func TestPersisterClearOnSignOut(t *testing.T) {
	p := &fakePersister{}
	s := NewStore(WithPersister(p))
	s.Clear()
	s.Close()

	assert.Equal(t, 1, p.cleared)
}

func TestPersistFailureDoesNotAffectState(t *testing.T) {
	p := &fakePersister{saveErr: errors.New("redis down")}
	s := NewStore(WithPersister(p))
	s.Begin(authenticated("u1"))
	s.Close()

	assert.Equal(t, "u1", s.Snapshot().User.ID)
}

func TestPersistedReturnsStoredState(t *testing.T) {
	stored := authenticated("u9")
	s := NewStore(WithPersister(&fakePersister{loaded: &stored}))
	defer s.Close()

	got, err := s.Persisted(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "u9", got.User.ID)

	none, err := NewStore().Persisted(context.Background())
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestConcurrentApplyAndClear(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			gen := s.Begin(State{Session: &domain.Session{ID: "s"}, Loading: true})
			s.Apply(gen, func(cur State) State {
				cur.User = &domain.AuthUser{ID: "u"}
				cur.Loading = false
				return cur
			})
		}()
		go func() {
			defer wg.Done()
			s.Clear()
		}()
	}
	wg.Wait()

	st := s.Snapshot()
	if st.Session == nil {
		assert.Nil(t, st.User)
	}
	if st.User != nil {
		assert.NotNil(t, st.Session)
	}
}
