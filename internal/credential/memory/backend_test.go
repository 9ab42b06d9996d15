package credentialmemory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	credentialmemory "github.com/openkcm/session-client/internal/credential/memory"
	"github.com/openkcm/session-client/internal/serviceerr"
)

func TestBackend(t *testing.T) {
	ctx := t.Context()
	b := credentialmemory.NewBackend("token")

	_, err := b.Load(ctx)
	assert.ErrorIs(t, err, serviceerr.ErrNotFound)

	require.NoError(t, b.Save(ctx, "raw-token"))
	got, err := b.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "raw-token", got)

	require.NoError(t, b.Delete(ctx))
	_, err = b.Load(ctx)
	assert.ErrorIs(t, err, serviceerr.ErrNotFound)

	require.NoError(t, b.Delete(ctx))
}

func TestBackend_KeysAreIsolated(t *testing.T) {
	ctx := t.Context()
	a := credentialmemory.NewBackend("a")
	b := credentialmemory.NewBackend("b")

	require.NoError(t, a.Save(ctx, "token-a"))

	_, err := b.Load(ctx)
	assert.ErrorIs(t, err, serviceerr.ErrNotFound)
}
