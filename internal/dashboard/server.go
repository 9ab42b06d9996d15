package dashboard

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/samber/oops"

	slogctx "github.com/veqryn/slog-context"
)

func (s *Server) httpServer() *http.Server {
	return &http.Server{
		Addr:    s.cfg.HTTP.Address,
		Handler: s.Handler(),
	}
}

// Start serves the dashboard until ctx is cancelled, then shuts down
// gracefully within the configured timeout.
func (s *Server) Start(ctx context.Context) error {
	server := s.httpServer()

	slogctx.Info(ctx, "Starting a listener", "address", server.Addr)

	// Parse network if the address is provided in the format of network://address.
	// Otherwise use tcp network by default.
	network := "tcp"
	if idx := strings.IndexRune(server.Addr, ':'); idx != -1 && len(server.Addr) > idx+3 && server.Addr[idx:idx+3] == "://" {
		network = server.Addr[:idx]
		server.Addr = server.Addr[idx+3:]
	}

	listener, err := new(net.ListenConfig).Listen(ctx, network, server.Addr)
	if err != nil {
		return oops.In("Dashboard").
			WithContext(ctx).
			Wrapf(err, "Failed to create a listener")
	}

	slogctx.Info(ctx, "A listener started", "address", listener.Addr().String())

	go func() {
		slogctx.Info(ctx, "Serving the dashboard", "address", listener.Addr().String())
		err := server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slogctx.Error(ctx, "Failed to serve the dashboard", "error", err)
		}

		slogctx.Info(ctx, "Stopped the dashboard")
	}()

	<-ctx.Done()

	shutdownCtx, shutdownRelease := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.HTTP.ShutdownTimeout)
	defer shutdownRelease()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return oops.In("Dashboard").
			WithContext(ctx).
			Wrapf(err, "Failed shutting down the dashboard")
	}

	slogctx.Info(ctx, "Completed graceful shutdown of the dashboard")

	return nil
}
