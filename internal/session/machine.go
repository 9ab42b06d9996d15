// Package session holds the authentication state of the client runtime.
//
// All state changes go through a Machine transition. The token store is the
// durable source of truth; the Machine's cached state can always be rebuilt
// from it with Restore.
package session

import (
	"context"
	"sync"
	"time"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/session-client/internal/dispatch"
	"github.com/openkcm/session-client/internal/serviceerr"
	"github.com/openkcm/session-client/internal/token"
)

const defaultLoginPath = "Auth/Login"

type Requester interface {
	Post(ctx context.Context, path string, body, out any) (*dispatch.Response, error)
}

type TokenStore interface {
	Get(ctx context.Context) (string, bool)
	Set(ctx context.Context, token string)
	Clear(ctx context.Context)
}

type Decoder interface {
	Decode(raw string) (token.Claims, error)
}

// Listener is called with the new state after every transition.
type Listener func(ctx context.Context, snap Snapshot)

type Option func(*Machine)

// WithClock replaces time.Now for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

func WithLoginPath(path string) Option {
	return func(m *Machine) {
		if path != "" {
			m.loginPath = path
		}
	}
}

type Machine struct {
	requester Requester
	store     TokenStore
	decoder   Decoder
	loginPath string
	now       func() time.Time

	mu    sync.Mutex
	state Snapshot
	// generation is bumped by every transition that invalidates an
	// in-flight login.
	generation uint64
	pendingGen uint64

	listeners    map[uint64]Listener
	nextListener uint64
}

func NewMachine(requester Requester, store TokenStore, decoder Decoder, opts ...Option) *Machine {
	m := &Machine{
		requester: requester,
		store:     store,
		decoder:   decoder,
		loginPath: defaultLoginPath,
		now:       time.Now,
		state:     Snapshot{Status: StatusAnonymous},
		listeners: make(map[uint64]Listener),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Subscribe registers l for transition updates and returns a func removing it.
func (m *Machine) Subscribe(l Listener) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextListener++
	id := m.nextListener
	m.listeners[id] = l

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Login exchanges the credentials for a token. On failure the returned
// error is a *Error also attached to the snapshot, except for
// serviceerr.ErrLoginInProgress and serviceerr.ErrSuperseded which leave
// the state alone.
func (m *Machine) Login(ctx context.Context, creds Credentials) error {
	m.mu.Lock()
	if m.pendingGen != 0 {
		m.mu.Unlock()
		return serviceerr.ErrLoginInProgress
	}
	m.generation++
	gen := m.generation
	m.pendingGen = gen
	m.state = Snapshot{Status: StatusPending}
	m.publishLocked(ctx)

	slogctx.Info(ctx, "Logging in", "user", creds.EmailOrUserName)

	var envelope loginEnvelope
	_, err := m.requester.Post(ctx, m.loginPath, creds, &envelope)

	m.mu.Lock()
	if m.pendingGen == gen {
		m.pendingGen = 0
	}
	if gen != m.generation {
		m.mu.Unlock()
		slogctx.Info(ctx, "Discarding a login response superseded by a newer transition")
		return serviceerr.ErrSuperseded
	}

	if err != nil {
		return m.failLocked(ctx, errorFrom(err))
	}

	raw := envelope.Data.Token
	if raw == "" {
		return m.failLocked(ctx, &Error{
			Message:       serviceerr.ErrMissingToken.Error(),
			ErrorMessages: []string{serviceerr.ErrMissingToken.Error()},
		})
	}

	claims, err := m.decoder.Decode(raw)
	if err != nil {
		m.store.Clear(ctx)
		return m.failLocked(ctx, errorFrom(err))
	}

	if token.IsExpired(claims, m.now()) {
		return m.failLocked(ctx, errorFrom(serviceerr.ErrTokenExpired))
	}

	m.store.Set(ctx, raw)
	m.state = Snapshot{
		Status: StatusAuthenticated,
		Token:  raw,
		User:   userFromClaims(claims),
	}
	m.publishLocked(ctx)

	slogctx.Info(ctx, "Logged in", "userID", claims.ID)

	return nil
}

// failLocked ends a login as anonymous with e attached, releasing the lock.
func (m *Machine) failLocked(ctx context.Context, e *Error) error {
	m.state = Snapshot{Status: StatusAnonymous, Err: e}
	m.publishLocked(ctx)

	slogctx.Warn(ctx, "Login failed", "status", e.Status, "error", e.Message)

	return e
}

// Logout ends the session locally. It is idempotent.
func (m *Machine) Logout(ctx context.Context) {
	m.mu.Lock()
	m.logoutLocked(ctx)
	m.publishLocked(ctx)

	slogctx.Info(ctx, "Logged out")
}

func (m *Machine) logoutLocked(ctx context.Context) {
	m.generation++
	m.pendingGen = 0
	m.store.Clear(ctx)
	m.state = Snapshot{Status: StatusAnonymous}
}

// Restore rebuilds the state from the store. A stored token that cannot be
// decoded or has expired is removed.
func (m *Machine) Restore(ctx context.Context) Snapshot {
	m.mu.Lock()
	m.generation++
	m.pendingGen = 0

	raw, ok := m.store.Get(ctx)
	if !ok {
		m.state = Snapshot{Status: StatusAnonymous}
		return m.publishLocked(ctx)
	}

	claims, err := m.checkLocked(raw)
	if err != nil {
		slogctx.Info(ctx, "Discarding the stored token", "error", err)
		m.store.Clear(ctx)
		m.state = Snapshot{Status: StatusAnonymous}
		return m.publishLocked(ctx)
	}

	m.state = Snapshot{
		Status: StatusAuthenticated,
		Token:  raw,
		User:   userFromClaims(claims),
	}
	slogctx.Info(ctx, "Restored session", "userID", claims.ID)

	return m.publishLocked(ctx)
}

// IsAuthenticated checks the stored token live. An undecodable or expired
// token ends the session as a side effect.
func (m *Machine) IsAuthenticated(ctx context.Context) bool {
	m.mu.Lock()

	raw, ok := m.store.Get(ctx)
	if !ok {
		if m.state.Status == StatusAuthenticated {
			m.state = Snapshot{Status: StatusAnonymous}
			m.publishLocked(ctx)
			return false
		}
		m.mu.Unlock()
		return false
	}

	claims, err := m.checkLocked(raw)
	if err != nil {
		slogctx.Info(ctx, "Session ended", "error", err)
		m.logoutLocked(ctx)
		m.publishLocked(ctx)
		return false
	}

	if m.state.Status != StatusPending && m.state.Token != raw {
		m.state = Snapshot{
			Status: StatusAuthenticated,
			Token:  raw,
			User:   userFromClaims(claims),
		}
		m.publishLocked(ctx)
		return true
	}

	m.mu.Unlock()
	return true
}

// ClearError drops the error attached to the current state.
func (m *Machine) ClearError(ctx context.Context) {
	m.mu.Lock()
	if m.state.Err == nil {
		m.mu.Unlock()
		return
	}
	m.state.Err = nil
	m.publishLocked(ctx)
}

func (m *Machine) checkLocked(raw string) (token.Claims, error) {
	claims, err := m.decoder.Decode(raw)
	if err != nil {
		return token.Claims{}, err
	}
	if token.IsExpired(claims, m.now()) {
		return token.Claims{}, serviceerr.ErrTokenExpired
	}
	return claims, nil
}

// publishLocked releases the lock and hands the new state to every listener.
func (m *Machine) publishLocked(ctx context.Context) Snapshot {
	snap := m.state
	listeners := make([]Listener, 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	m.mu.Unlock()

	for _, l := range listeners {
		l(ctx, snap)
	}

	return snap
}
