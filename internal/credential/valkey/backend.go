package credentialvalkey

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/valkey-io/valkey-go"

	"github.com/openkcm/session-client/internal/credential"
	"github.com/openkcm/session-client/internal/serviceerr"
)

const objectTypeToken = "token"

// Backend stores the token under "<prefix>:token:<id>". The id scopes the
// key to one client runtime when several share a Valkey instance.
type Backend struct {
	valkey valkey.Client
	prefix string
	id     string
}

var _ = credential.Backend(&Backend{})

func NewBackend(valkeyClient valkey.Client, prefix, id string) *Backend {
	return &Backend{
		valkey: valkeyClient,
		prefix: strings.TrimSuffix(prefix, ":"),
		id:     id,
	}
}

func (b *Backend) Load(ctx context.Context) (string, error) {
	token, err := b.valkey.Do(ctx, b.valkey.B().Get().Key(b.key()).Build()).ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return "", errors.Join(err, serviceerr.ErrNotFound)
		}

		return "", fmt.Errorf("executing get command: %w", err)
	}

	if token == "" {
		return "", serviceerr.ErrNotFound
	}

	return token, nil
}

func (b *Backend) Save(ctx context.Context, token string) error {
	if err := b.valkey.Do(ctx, b.valkey.B().Set().Key(b.key()).Value(token).Build()).Error(); err != nil {
		return fmt.Errorf("executing set command: %w", err)
	}

	return nil
}

func (b *Backend) Delete(ctx context.Context) error {
	if err := b.valkey.Do(ctx, b.valkey.B().Del().Key(b.key()).Build()).Error(); err != nil {
		return fmt.Errorf("executing del command: %w", err)
	}

	return nil
}

func (b *Backend) key() string {
	return fmt.Sprintf("%s:%s:%s", b.prefix, objectTypeToken, b.id)
}
