package credentialmock

import (
	"context"
	"sync"

	"github.com/openkcm/session-client/internal/credential"
	"github.com/openkcm/session-client/internal/serviceerr"
)

type BackendOption func(*Backend)

type Backend struct {
	mu    sync.Mutex
	token string

	loadErr, saveErr, deleteErr error

	Saves, Deletes int
}

func WithToken(token string) BackendOption {
	return func(b *Backend) { b.token = token }
}
func WithLoadError(err error) BackendOption {
	return func(b *Backend) { b.loadErr = err }
}
func WithSaveError(err error) BackendOption {
	return func(b *Backend) { b.saveErr = err }
}
func WithDeleteError(err error) BackendOption {
	return func(b *Backend) { b.deleteErr = err }
}

var _ = credential.Backend(&Backend{})

func NewInMemBackend(opts ...BackendOption) *Backend {
	b := &Backend{}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Backend) Load(_ context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.loadErr != nil {
		return "", b.loadErr
	}
	if b.token == "" {
		return "", serviceerr.ErrNotFound
	}
	return b.token, nil
}

func (b *Backend) Save(_ context.Context, token string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.saveErr != nil {
		return b.saveErr
	}
	b.Saves++
	b.token = token
	return nil
}

func (b *Backend) Delete(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.deleteErr != nil {
		return b.deleteErr
	}
	b.Deletes++
	b.token = ""
	return nil
}

// Token returns the raw stored value, bypassing error injection.
func (b *Backend) Token() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.token
}
