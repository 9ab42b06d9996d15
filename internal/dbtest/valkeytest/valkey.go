package valkeytest

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/valkey-io/valkey-go"
)

// Start runs an in-process Valkey-compatible server and returns a client
// connected to it. Both are shut down when the test finishes.
func Start(tb testing.TB) (valkey.Client, *miniredis.Miniredis) {
	tb.Helper()

	server := miniredis.RunT(tb)

	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress:  []string{server.Addr()},
		DisableCache: true,
	})
	if err != nil {
		tb.Fatalf("failed to initialise a valkey client: %s", err)
	}
	tb.Cleanup(client.Close)

	return client, server
}
