// Package credential persists the raw session token for the client runtime.
//
// A Store never fails: backend errors are logged and reported as an absent
// token, so a broken or missing storage degrades to "no session".
package credential

import (
	"context"
	"errors"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/session-client/internal/serviceerr"
)

// Backend is a durable key holding one raw token.
// Load returns serviceerr.ErrNotFound when no token is stored.
type Backend interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	Delete(ctx context.Context) error
}

type Store struct {
	backend Backend
}

// NewStore wraps the backend. A nil backend yields a store that behaves as
// if no durable storage were available.
func NewStore(backend Backend) *Store {
	return &Store{backend: backend}
}

// Available reports whether the store is backed by durable storage.
func (s *Store) Available() bool {
	return s != nil && s.backend != nil
}

func (s *Store) Get(ctx context.Context) (string, bool) {
	if !s.Available() {
		return "", false
	}

	token, err := s.backend.Load(ctx)
	if err != nil {
		if !errors.Is(err, serviceerr.ErrNotFound) {
			slogctx.Warn(ctx, "Could not read the stored token",
				"error", errors.Join(serviceerr.ErrStorageUnavailable, err))
		}
		return "", false
	}

	if token == "" {
		return "", false
	}

	return token, true
}

// Set persists the token. An empty token clears the store.
func (s *Store) Set(ctx context.Context, token string) {
	if !s.Available() {
		return
	}

	if token == "" {
		s.Clear(ctx)
		return
	}

	if err := s.backend.Save(ctx, token); err != nil {
		slogctx.Warn(ctx, "Could not persist the token",
			"error", errors.Join(serviceerr.ErrStorageUnavailable, err))
	}
}

func (s *Store) Clear(ctx context.Context) {
	if !s.Available() {
		return
	}

	if err := s.backend.Delete(ctx); err != nil {
		slogctx.Warn(ctx, "Could not clear the stored token",
			"error", errors.Join(serviceerr.ErrStorageUnavailable, err))
	}
}
