// Package credentialfile keeps the session token in a single file, so it
// survives restarts of the client process.
package credentialfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/openkcm/session-client/internal/credential"
	"github.com/openkcm/session-client/internal/serviceerr"
)

const (
	dirPerm  = 0o700
	filePerm = 0o600
)

type Backend struct {
	path string
	mu   sync.RWMutex
}

var _ = credential.Backend(&Backend{})

func NewBackend(path string) *Backend {
	return &Backend{path: path}
}

func (b *Backend) Load(_ context.Context) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, err := os.ReadFile(b.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", serviceerr.ErrNotFound
		}
		return "", fmt.Errorf("reading token file: %w", err)
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", serviceerr.ErrNotFound
	}

	return token, nil
}

// Save replaces the file atomically: the token is written to a temporary
// file in the same directory and renamed over the target.
func (b *Backend) Save(_ context.Context, token string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".token-*")
	if err != nil {
		return fmt.Errorf("creating temporary token file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(filePerm); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("setting token file permissions: %w", err)
	}

	if _, err := tmp.WriteString(token); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing token file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing token file: %w", err)
	}

	if err := os.Rename(tmpName, b.path); err != nil {
		return fmt.Errorf("replacing token file: %w", err)
	}

	return nil
}

func (b *Backend) Delete(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := os.Remove(b.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing token file: %w", err)
	}

	return nil
}
