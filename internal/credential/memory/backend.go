// Package credentialmemory keeps the token in process memory. It does not
// survive restarts and is meant for tests and short-lived tools.
package credentialmemory

import (
	"context"

	"github.com/patrickmn/go-cache"

	"github.com/openkcm/session-client/internal/credential"
	"github.com/openkcm/session-client/internal/serviceerr"
)

type Backend struct {
	cache *cache.Cache
	key   string
}

var _ = credential.Backend(&Backend{})

func NewBackend(key string) *Backend {
	return &Backend{
		cache: cache.New(cache.NoExpiration, 0),
		key:   key,
	}
}

func (b *Backend) Load(_ context.Context) (string, error) {
	v, ok := b.cache.Get(b.key)
	if !ok {
		return "", serviceerr.ErrNotFound
	}

	token, ok := v.(string)
	if !ok || token == "" {
		return "", serviceerr.ErrNotFound
	}

	return token, nil
}

func (b *Backend) Save(_ context.Context, token string) error {
	b.cache.Set(b.key, token, cache.NoExpiration)
	return nil
}

func (b *Backend) Delete(_ context.Context) error {
	b.cache.Delete(b.key)
	return nil
}
