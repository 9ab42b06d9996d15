package business

import (
	"context"
	"fmt"
	"net/http"

	"github.com/valkey-io/valkey-go"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/session-client/internal/config"
	"github.com/openkcm/session-client/internal/credential"
	credentialfile "github.com/openkcm/session-client/internal/credential/file"
	credentialmemory "github.com/openkcm/session-client/internal/credential/memory"
	credentialvalkey "github.com/openkcm/session-client/internal/credential/valkey"
	"github.com/openkcm/session-client/internal/dispatch"
	"github.com/openkcm/session-client/internal/guard"
	"github.com/openkcm/session-client/internal/notify"
	"github.com/openkcm/session-client/internal/session"
	"github.com/openkcm/session-client/internal/token"
)

// Runtime holds the one instance of every session component of the process.
type Runtime struct {
	Store      *credential.Store
	Codec      *token.Codec
	Hub        *notify.Hub
	Dispatcher *dispatch.Dispatcher
	Machine    *session.Machine
	Guard      *guard.Guard
}

// initRuntime wires the components and restores the session from the store
// before returning, so nothing observes the machine before its first state.
func initRuntime(ctx context.Context, cfg *config.Config) (*Runtime, func(), error) {
	backend, closeFn, err := newBackend(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("initialising the credential backend: %w", err)
	}
	store := credential.NewStore(backend)
	if !store.Available() {
		slogctx.Warn(ctx, "No durable credential storage configured, sessions will not survive")
	}

	catalog, err := loadCatalog(cfg.Notify)
	if err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("loading the notification catalog: %w", err)
	}
	hub := notify.NewHub(catalog)

	dispatcher, err := dispatch.New(dispatch.Config{
		BaseURL:    cfg.API.BaseURL,
		HTTPClient: &http.Client{Timeout: cfg.API.Timeout},
		Tokens:     store,
		Reporter:   hub,
	})
	if err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("creating the request dispatcher: %w", err)
	}

	codec := token.NewCodec(cfg.Token.SignatureAlgorithms...)
	machine := session.NewMachine(dispatcher, store, codec, session.WithLoginPath(cfg.API.LoginPath))

	snap := machine.Restore(ctx)
	slogctx.Debug(ctx, "Session restored", "status", snap.Status)

	return &Runtime{
		Store:      store,
		Codec:      codec,
		Hub:        hub,
		Dispatcher: dispatcher,
		Machine:    machine,
		Guard: guard.New(guard.Config{
			LoginPath:   cfg.Guard.LoginPath,
			HomePath:    cfg.Guard.HomePath,
			PublicPaths: cfg.Guard.PublicPaths,
		}),
	}, closeFn, nil
}

func newBackend(cfg *config.Config) (credential.Backend, func(), error) {
	noop := func() {}

	switch cfg.Storage.Backend {
	case config.StorageBackendFile, "":
		return credentialfile.NewBackend(cfg.Storage.File.ExpandedPath()), noop, nil
	case config.StorageBackendMemory:
		return credentialmemory.NewBackend(cfg.Storage.Key), noop, nil
	case config.StorageBackendNone:
		return nil, noop, nil
	case config.StorageBackendValKey:
		valkeyOpts, err := config.MakeValKeyOptions(cfg.Storage.ValKey)
		if err != nil {
			return nil, nil, fmt.Errorf("making valkey options from config: %w", err)
		}

		valkeyClient, err := valkey.NewClient(valkeyOpts)
		if err != nil {
			return nil, nil, fmt.Errorf("creating a new valkey client: %w", err)
		}

		return credentialvalkey.NewBackend(valkeyClient, cfg.Storage.ValKey.Prefix, cfg.Storage.Key), valkeyClient.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func loadCatalog(cfg config.Notify) (*notify.Catalog, error) {
	catalog := notify.DefaultCatalog()
	if cfg.CatalogPath != "" {
		var err error
		catalog, err = notify.LoadCatalog(cfg.CatalogPath)
		if err != nil {
			return nil, err
		}
	}
	if cfg.Life > 0 {
		catalog.Life = cfg.Life
	}

	return catalog, nil
}
