package session_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openkcm/session-client/internal/credential"
	credentialmock "github.com/openkcm/session-client/internal/credential/mock"
	"github.com/openkcm/session-client/internal/failure"
	"github.com/openkcm/session-client/internal/serviceerr"
	"github.com/openkcm/session-client/internal/session"
	sessionmock "github.com/openkcm/session-client/internal/session/mock"
	"github.com/openkcm/session-client/internal/token"
)

var creds = session.Credentials{EmailOrUserName: "mehmet", Password: "secret"}

func TestMachine_InitialState(t *testing.T) {
	f := newFixture(sessionmock.NewRequester())

	snap := f.machine.Snapshot()
	assert.Equal(t, session.StatusAnonymous, snap.Status)
	assert.False(t, snap.IsAuthenticated())
	assert.False(t, f.machine.IsAuthenticated(t.Context()))
}

func TestMachine_Login(t *testing.T) {
	unauthorized := failure.FromResponse(http.MethodPost, "Auth/Login", http.StatusUnauthorized, "Unauthorized",
		[]byte(`{"message":"Kullanıcı adı veya şifre hatalı"}`))
	badRequest := failure.FromResponse(http.MethodPost, "Auth/Login", http.StatusBadRequest, "Bad Request",
		[]byte(`{"message":"invalid","ErrorMessages":["Şifre gerekli"]}`))

	tests := []struct {
		name        string
		requester   func(t *testing.T) *sessionmock.Requester
		backend     []credentialmock.BackendOption
		want        session.Snapshot
		wantToken   bool
		wantStored  bool
		wantDeletes int

		// set when the error text is not known up front
		wantErrContains string
	}{
		{
			name: "success",
			requester: func(t *testing.T) *sessionmock.Requester {
				return sessionmock.NewRequester(sessionmock.WithToken(mintToken(t, testNow.Add(time.Hour))))
			},
			want:       session.Snapshot{Status: session.StatusAuthenticated, User: testUser},
			wantToken:  true,
			wantStored: true,
		},
		{
			name: "unauthorized",
			requester: func(*testing.T) *sessionmock.Requester {
				return sessionmock.NewRequester(sessionmock.WithError(unauthorized))
			},
			want: session.Snapshot{
				Status: session.StatusAnonymous,
				Err: &session.Error{
					Message:       "Kullanıcı adı veya şifre hatalı",
					Status:        http.StatusUnauthorized,
					ErrorMessages: []string{"Kullanıcı adı veya şifre hatalı"},
				},
			},
		},
		{
			name: "bad request keeps the server list",
			requester: func(*testing.T) *sessionmock.Requester {
				return sessionmock.NewRequester(sessionmock.WithError(badRequest))
			},
			want: session.Snapshot{
				Status: session.StatusAnonymous,
				Err: &session.Error{
					Message:       "invalid",
					Status:        http.StatusBadRequest,
					ErrorMessages: []string{"Şifre gerekli"},
				},
			},
		},
		{
			name: "request failure leaves the store untouched",
			requester: func(*testing.T) *sessionmock.Requester {
				return sessionmock.NewRequester(sessionmock.WithError(unauthorized))
			},
			backend: []credentialmock.BackendOption{credentialmock.WithToken("previous")},
			want:    session.Snapshot{
				Status: session.StatusAnonymous,
				Err: &session.Error{
					Message:       "Kullanıcı adı veya şifre hatalı",
					Status:        http.StatusUnauthorized,
					ErrorMessages: []string{"Kullanıcı adı veya şifre hatalı"},
				},
			},
			wantStored: true,
		},
		{
			name: "empty token",
			requester: func(*testing.T) *sessionmock.Requester {
				return sessionmock.NewRequester()
			},
			want: session.Snapshot{
				Status: session.StatusAnonymous,
				Err: &session.Error{
					Message:       "Token alınamadı",
					ErrorMessages: []string{"Token alınamadı"},
				},
			},
		},
		{
			name: "undecodable token clears the store",
			requester: func(*testing.T) *sessionmock.Requester {
				return sessionmock.NewRequester(sessionmock.WithToken("not-a-token"))
			},
			backend:         []credentialmock.BackendOption{credentialmock.WithToken("previous")},
			want:            session.Snapshot{Status: session.StatusAnonymous},
			wantDeletes:     1,
			wantErrContains: serviceerr.ErrDecode.Error(),
		},
		{
			name: "already expired token",
			requester: func(t *testing.T) *sessionmock.Requester {
				return sessionmock.NewRequester(sessionmock.WithToken(mintToken(t, testNow.Add(-time.Second))))
			},
			want: session.Snapshot{
				Status: session.StatusAnonymous,
				Err: &session.Error{
					Message:       "token expired",
					ErrorMessages: []string{"token expired"},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(tt.requester(t), tt.backend...)

			err := f.machine.Login(t.Context(), creds)
			snap := f.machine.Snapshot()

			if tt.want.Status == session.StatusAuthenticated {
				require.NoError(t, err)
			} else {
				var sessErr *session.Error
				require.ErrorAs(t, err, &sessErr)
				assert.Same(t, snap.Err, sessErr)
			}

			if tt.wantErrContains != "" {
				assert.Equal(t, tt.want.Status, snap.Status)
				require.NotNil(t, snap.Err)
				assert.Contains(t, snap.Err.Message, tt.wantErrContains)
			} else {
				assert.Empty(t, cmp.Diff(tt.want, snap, cmp.FilterPath(func(p cmp.Path) bool {
					return p.Last().String() == ".Token"
				}, cmp.Ignore())))
			}

			assert.Equal(t, tt.wantToken, snap.Token != "")
			assert.Equal(t, tt.wantStored, f.backend.Token() != "")
			assert.Equal(t, tt.wantDeletes, f.backend.Deletes)
			assert.Equal(t, []any{creds}, f.requester.Calls())
		})
	}
}

func TestMachine_LoginPersistsToken(t *testing.T) {
	raw := mintToken(t, testNow.Add(time.Hour))
	f := newFixture(sessionmock.NewRequester(sessionmock.WithToken(raw)))

	require.NoError(t, f.machine.Login(t.Context(), creds))

	assert.Equal(t, raw, f.backend.Token())
	assert.Equal(t, raw, f.machine.Snapshot().Token)
	assert.True(t, f.machine.Snapshot().IsAuthenticated())
	assert.True(t, f.machine.IsAuthenticated(t.Context()))
}

func TestMachine_LoginClearsPreviousError(t *testing.T) {
	f := newFixture(sessionmock.NewRequester(sessionmock.WithError(errors.New("boom"))))
	ctx := t.Context()

	require.Error(t, f.machine.Login(ctx, creds))
	require.NotNil(t, f.machine.Snapshot().Err)

	var seen []session.Snapshot
	f.machine.Subscribe(func(_ context.Context, snap session.Snapshot) {
		seen = append(seen, snap)
	})

	require.Error(t, f.machine.Login(ctx, creds))

	require.Len(t, seen, 2)
	assert.Equal(t, session.Snapshot{Status: session.StatusPending}, seen[0])
	assert.Equal(t, "boom", seen[1].Err.Message)
}

func TestMachine_DuplicateLoginRejected(t *testing.T) {
	gate := make(chan struct{})
	raw := mintToken(t, testNow.Add(time.Hour))
	f := newFixture(sessionmock.NewRequester(sessionmock.WithToken(raw), sessionmock.WithGate(gate)))
	ctx := t.Context()

	done := make(chan error, 1)
	go func() { done <- f.machine.Login(ctx, creds) }()
	<-f.requester.Started()

	assert.Equal(t, session.StatusPending, f.machine.Snapshot().Status)
	assert.ErrorIs(t, f.machine.Login(ctx, creds), serviceerr.ErrLoginInProgress)

	close(gate)
	require.NoError(t, <-done)
	assert.Equal(t, session.StatusAuthenticated, f.machine.Snapshot().Status)
	assert.Len(t, f.requester.Calls(), 1)
}

func TestMachine_LogoutSupersedesPendingLogin(t *testing.T) {
	gate := make(chan struct{})
	raw := mintToken(t, testNow.Add(time.Hour))
	f := newFixture(sessionmock.NewRequester(sessionmock.WithToken(raw), sessionmock.WithGate(gate)))
	ctx := t.Context()

	done := make(chan error, 1)
	go func() { done <- f.machine.Login(ctx, creds) }()
	<-f.requester.Started()

	f.machine.Logout(ctx)
	close(gate)

	require.ErrorIs(t, <-done, serviceerr.ErrSuperseded)
	assert.Equal(t, session.Snapshot{Status: session.StatusAnonymous}, f.machine.Snapshot())
	assert.Empty(t, f.backend.Token())
}

func TestMachine_CancelledLogin(t *testing.T) {
	gate := make(chan struct{})
	f := newFixture(sessionmock.NewRequester(sessionmock.WithGate(gate)))

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- f.machine.Login(ctx, creds) }()
	<-f.requester.Started()
	cancel()

	err := <-done
	var sessErr *session.Error
	require.ErrorAs(t, err, &sessErr)
	assert.Equal(t, session.StatusAnonymous, f.machine.Snapshot().Status)

	// a new login is accepted once the cancelled one settled
	close(gate)
	assert.NotErrorIs(t, f.machine.Login(t.Context(), creds), serviceerr.ErrLoginInProgress)
}

func TestMachine_Logout(t *testing.T) {
	raw := mintToken(t, testNow.Add(time.Hour))
	f := newFixture(sessionmock.NewRequester(), credentialmock.WithToken(raw))
	ctx := t.Context()

	f.machine.Restore(ctx)
	require.True(t, f.machine.Snapshot().IsAuthenticated())

	f.machine.Logout(ctx)
	once := f.machine.Snapshot()

	f.machine.Logout(ctx)
	twice := f.machine.Snapshot()

	assert.Equal(t, session.Snapshot{Status: session.StatusAnonymous}, once)
	assert.Equal(t, once, twice)
	assert.Empty(t, f.backend.Token())
	assert.False(t, f.machine.IsAuthenticated(ctx))
}

func TestMachine_Restore(t *testing.T) {
	tests := []struct {
		name        string
		stored      func(t *testing.T) string
		want        session.Snapshot
		wantCleared bool
	}{
		{
			name:   "nothing stored",
			stored: func(*testing.T) string { return "" },
			want:   session.Snapshot{Status: session.StatusAnonymous},
		},
		{
			name:   "valid token",
			stored: func(t *testing.T) string { return mintToken(t, testNow.Add(time.Hour)) },
			want:   session.Snapshot{Status: session.StatusAuthenticated, User: testUser},
		},
		{
			name:        "undecodable token",
			stored:      func(*testing.T) string { return "garbage" },
			want:        session.Snapshot{Status: session.StatusAnonymous},
			wantCleared: true,
		},
		{
			name:        "expired token",
			stored:      func(t *testing.T) string { return mintToken(t, testNow.Add(-time.Minute)) },
			want:        session.Snapshot{Status: session.StatusAnonymous},
			wantCleared: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stored := tt.stored(t)
			f := newFixture(sessionmock.NewRequester(), credentialmock.WithToken(stored))

			snap := f.machine.Restore(t.Context())

			assert.Empty(t, cmp.Diff(tt.want, snap, cmp.FilterPath(func(p cmp.Path) bool {
				return p.Last().String() == ".Token"
			}, cmp.Ignore())))
			assert.Equal(t, snap, f.machine.Snapshot())
			if tt.want.Status == session.StatusAuthenticated {
				assert.Equal(t, stored, snap.Token)
			}
			assert.Equal(t, tt.wantCleared, f.backend.Deletes == 1)
		})
	}
}

func TestMachine_ExpiryDuringSession(t *testing.T) {
	raw := mintToken(t, testNow.Add(10*time.Minute))
	f := newFixture(sessionmock.NewRequester(sessionmock.WithToken(raw)))
	ctx := t.Context()

	require.NoError(t, f.machine.Login(ctx, creds))
	assert.True(t, f.machine.IsAuthenticated(ctx))

	f.clock.now = testNow.Add(10 * time.Minute)
	assert.True(t, f.machine.IsAuthenticated(ctx), "exactly at expiry the token is still valid")

	f.clock.now = testNow.Add(10*time.Minute + time.Second)
	assert.False(t, f.machine.IsAuthenticated(ctx))
	assert.Equal(t, session.Snapshot{Status: session.StatusAnonymous}, f.machine.Snapshot())
	assert.Empty(t, f.backend.Token())
}

func TestMachine_IsAuthenticatedFollowsStore(t *testing.T) {
	raw := mintToken(t, testNow.Add(time.Hour))
	f := newFixture(sessionmock.NewRequester(), credentialmock.WithToken(raw))
	ctx := t.Context()

	// another writer put a token in the shared store
	assert.True(t, f.machine.IsAuthenticated(ctx))
	assert.Equal(t, testUser, f.machine.Snapshot().User)

	require.NoError(t, f.backend.Delete(ctx))
	assert.False(t, f.machine.IsAuthenticated(ctx))
	assert.Equal(t, session.StatusAnonymous, f.machine.Snapshot().Status)
}

func TestMachine_ClearError(t *testing.T) {
	f := newFixture(sessionmock.NewRequester(sessionmock.WithError(errors.New("boom"))))
	ctx := t.Context()

	require.Error(t, f.machine.Login(ctx, creds))
	require.NotNil(t, f.machine.Snapshot().Err)

	f.machine.ClearError(ctx)
	assert.Equal(t, session.Snapshot{Status: session.StatusAnonymous}, f.machine.Snapshot())
}

func TestMachine_Subscribe(t *testing.T) {
	raw := mintToken(t, testNow.Add(time.Hour))
	f := newFixture(sessionmock.NewRequester(sessionmock.WithToken(raw)))
	ctx := t.Context()

	var mu sync.Mutex
	var statuses []session.Status
	unsubscribe := f.machine.Subscribe(func(_ context.Context, snap session.Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		statuses = append(statuses, snap.Status)
	})

	require.NoError(t, f.machine.Login(ctx, creds))
	f.machine.Logout(ctx)
	unsubscribe()
	f.machine.Logout(ctx)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []session.Status{
		session.StatusPending,
		session.StatusAuthenticated,
		session.StatusAnonymous,
	}, statuses)
}

func TestMachine_NoDurableStorage(t *testing.T) {
	raw := mintToken(t, testNow.Add(time.Hour))
	requester := sessionmock.NewRequester(sessionmock.WithToken(raw))
	c := &clock{now: testNow}
	m := session.NewMachine(requester, credential.NewStore(nil), token.NewCodec(), session.WithClock(c.Now))
	ctx := t.Context()

	assert.Equal(t, session.StatusAnonymous, m.Restore(ctx).Status)

	require.NoError(t, m.Login(ctx, creds))
	assert.True(t, m.Snapshot().IsAuthenticated())
	// nothing was persisted, so the live check sees no session
	assert.False(t, m.IsAuthenticated(ctx))
	assert.Equal(t, session.StatusAnonymous, m.Snapshot().Status)
}
