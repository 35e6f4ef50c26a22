package gateway_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/rolo/internal/domain"
	"github.com/mmcdole/rolo/internal/gateway"
	"github.com/mmcdole/rolo/internal/log"
	"github.com/mmcdole/rolo/internal/session"
	"github.com/mmcdole/rolo/internal/store"
)

// fakeAuth renews to a fixed session, or fails, after an optional gate
type fakeAuth struct {
	calls   atomic.Int32
	gate    chan struct{}
	next    domain.Session
	failure error
}

func (f *fakeAuth) Refresh(ctx context.Context, refreshToken string) (domain.Session, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if f.failure != nil {
		return domain.Session{}, f.failure
	}
	return f.next, nil
}

// server accepts exactly one access token
type server struct {
	mu    sync.Mutex
	valid string
	seen  []gateway.Attempt
}

func (s *server) call(ctx context.Context, a gateway.Attempt) error {
	s.mu.Lock()
	s.seen = append(s.seen, a)
	valid := s.valid
	s.mu.Unlock()
	if a.AccessToken != valid {
		return domain.ErrUnauthorized
	}
	return nil
}

type fixture struct {
	auth    *fakeAuth
	store   *store.TokenStore
	manager *session.Manager
	gw      *gateway.Gateway
}

func newFixture(t *testing.T, auth *fakeAuth) *fixture {
	t.Helper()
	st, err := store.NewTokenStore("")
	require.NoError(t, err)
	m := session.NewManager(auth, st, log.NullLogger())
	m.Begin(domain.Session{AccessToken: "a1", RefreshToken: "r1"})
	return &fixture{auth: auth, store: st, manager: m, gw: gateway.New(m, log.NullLogger())}
}

func TestExecuteAttachesCurrentToken(t *testing.T) {
	f := newFixture(t, &fakeAuth{})
	srv := &server{valid: "a1"}

	require.NoError(t, f.gw.Execute(context.Background(), "list", srv.call))

	require.Len(t, srv.seen, 1)
	assert.Equal(t, 1, srv.seen[0].Number)
	assert.Equal(t, "a1", srv.seen[0].AccessToken)
	assert.NotEmpty(t, srv.seen[0].RequestID)
	assert.Zero(t, f.auth.calls.Load())
}

func TestExecuteRefreshesAndRetriesOnce(t *testing.T) {
	f := newFixture(t, &fakeAuth{next: domain.Session{AccessToken: "a2", RefreshToken: "r2"}})
	srv := &server{valid: "a2"}

	require.NoError(t, f.gw.Execute(context.Background(), "get", srv.call))

	require.Len(t, srv.seen, 2)
	assert.Equal(t, 2, srv.seen[1].Number)
	assert.Equal(t, "a2", srv.seen[1].AccessToken)
	assert.Equal(t, srv.seen[0].RequestID, srv.seen[1].RequestID)
	assert.Equal(t, int32(1), f.auth.calls.Load())
}

func TestExecuteRejectedRetryIsNotRetriedAgain(t *testing.T) {
	f := newFixture(t, &fakeAuth{next: domain.Session{AccessToken: "a2", RefreshToken: "r2"}})
	srv := &server{valid: "never"}

	err := f.gw.Execute(context.Background(), "get", srv.call)

	require.ErrorIs(t, err, domain.ErrAuthRejected)
	assert.Equal(t, domain.KindAuthRejected, domain.Classify(err))
	assert.Len(t, srv.seen, 2)
	assert.Equal(t, int32(1), f.auth.calls.Load())

	// The renewed session stays in place
	tok, ok := f.manager.AccessToken()
	require.True(t, ok)
	assert.Equal(t, "a2", tok)
}

func TestExecuteRefreshFailureEndsSession(t *testing.T) {
	f := newFixture(t, &fakeAuth{failure: domain.ErrUnauthorized})
	srv := &server{valid: "a2"}

	err := f.gw.Execute(context.Background(), "get", srv.call)

	require.ErrorIs(t, err, domain.ErrAuthExpired)
	assert.Len(t, srv.seen, 1)
	_, ok := f.manager.AccessToken()
	assert.False(t, ok)
	_, stored, _ := f.store.Load()
	assert.False(t, stored)
}

func TestExecuteDoesNotRetryOtherFailures(t *testing.T) {
	f := newFixture(t, &fakeAuth{})

	for _, failure := range []error{
		domain.ErrNetwork,
		&domain.ValidationError{Field: "name", Reason: "required"},
		context.DeadlineExceeded,
		errors.New("boom"),
	} {
		calls := 0
		err := f.gw.Execute(context.Background(), "create", func(ctx context.Context, a gateway.Attempt) error {
			calls++
			return failure
		})
		assert.ErrorIs(t, err, failure)
		assert.Equal(t, 1, calls)
	}
	assert.Zero(t, f.auth.calls.Load())
}

func TestExecuteWithoutSessionSendsUnauthenticated(t *testing.T) {
	auth := &fakeAuth{}
	gw := gateway.New(session.NewManager(auth, nil, log.NullLogger()), log.NullLogger())
	srv := &server{valid: ""}

	require.NoError(t, gw.Execute(context.Background(), "public", srv.call))
	assert.Equal(t, "", srv.seen[0].AccessToken)

	srv.valid = "something"
	err := gw.Execute(context.Background(), "private", srv.call)
	assert.ErrorIs(t, err, domain.ErrAuthExpired)
	assert.Zero(t, auth.calls.Load())
}

func TestConcurrentRejectionsShareOneRefresh(t *testing.T) {
	const ops = 10

	f := newFixture(t, &fakeAuth{
		next: domain.Session{AccessToken: "a2", RefreshToken: "r2"},
		gate: make(chan struct{}),
	})
	srv := &server{valid: "a2"}

	var wg sync.WaitGroup
	errs := make([]error, ops)
	for i := 0; i < ops; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = f.gw.Execute(context.Background(), "list", srv.call)
		}(i)
	}

	time.Sleep(30 * time.Millisecond)
	close(f.auth.gate)
	wg.Wait()

	assert.Equal(t, int32(1), f.auth.calls.Load())
	for _, err := range errs {
		assert.NoError(t, err)
	}
}

func TestQueuedOperationsAllExpireWhenRefreshFails(t *testing.T) {
	f := newFixture(t, &fakeAuth{
		failure: errors.New("refresh token expired"),
		gate:    make(chan struct{}),
	})
	srv := &server{valid: "a2"}

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = f.gw.Execute(context.Background(), "list", srv.call)
		}(i)
	}

	time.Sleep(30 * time.Millisecond)
	close(f.auth.gate)
	wg.Wait()

	assert.Equal(t, int32(1), f.auth.calls.Load())
	for _, err := range errs {
		assert.ErrorIs(t, err, domain.ErrAuthExpired)
	}
	_, stored, err := f.store.Load()
	require.NoError(t, err)
	assert.False(t, stored)
}

func TestCallReturnsValue(t *testing.T) {
	f := newFixture(t, &fakeAuth{next: domain.Session{AccessToken: "a2", RefreshToken: "r2"}})

	attempts := 0
	got, err := gateway.Call(context.Background(), f.gw, "count", func(ctx context.Context, a gateway.Attempt) (int, error) {
		attempts++
		assert.Equal(t, a.RequestID, gateway.RequestID(ctx))
		if a.AccessToken != "a2" {
			return 0, domain.ErrUnauthorized
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 2, attempts)
}
