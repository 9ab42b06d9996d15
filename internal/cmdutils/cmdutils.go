package cmdutils

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"syscall"
	"time"

	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"github.com/openkcm/common-sdk/pkg/health"
	"github.com/openkcm/common-sdk/pkg/logger"
	"github.com/openkcm/common-sdk/pkg/otlp"
	"github.com/openkcm/common-sdk/pkg/status"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/session-client/internal/config"
)

const (
	healthStatusTimeout = 5 * time.Second

	// ConfigDirEnv names a directory searched for config.yaml before the
	// default locations.
	ConfigDirEnv = "SESSION_CLIENT_CONFIG_DIR"
)

var defaultConfigDirs = []string{
	"/etc/session-client",
	"$HOME/.session-client",
	".",
}

// Invocation carries what a command was called with.
type Invocation struct {
	Args []string
	In   io.Reader
	Out  io.Writer
}

// Runner prepares the process for fn and runs it.
type Runner func(ctx context.Context, fn func(context.Context, *config.Config) error, cfg *config.Config) error

func CobraCommand(use, short, long, buildInfo string, runner Runner, businessFunc func(context.Context, *config.Config, Invocation) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Long:  long,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(buildInfo)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			inv := Invocation{
				Args: args,
				In:   cmd.InOrStdin(),
				Out:  cmd.OutOrStdout(),
			}

			ctx := slogctx.With(cmd.Context(), "command", cmd.Name())
			err = runner(ctx, func(ctx context.Context, cfg *config.Config) error {
				return businessFunc(ctx, cfg, inv)
			}, cfg)
			if err != nil {
				return fmt.Errorf("running %s: %w", cmd.Name(), err)
			}

			return nil
		},
	}
}

// mode selects what the process sets up besides logging.
type mode struct {
	telemetry    bool
	statusServer bool
}

var (
	jobMode     = mode{}
	serviceMode = mode{telemetry: true, statusServer: true}
)

// RunAsService is for long running commands: the dashboard gets telemetry
// and a status server next to it.
func RunAsService(ctx context.Context, fn func(context.Context, *config.Config) error, cfg *config.Config) error {
	return run(ctx, serviceMode, fn, cfg)
}

// RunAsJob is for one-shot session commands. Only logging is set up.
func RunAsJob(ctx context.Context, fn func(context.Context, *config.Config) error, cfg *config.Config) error {
	return run(ctx, jobMode, fn, cfg)
}

func run(ctx context.Context, m mode, fn func(context.Context, *config.Config) error, cfg *config.Config) error {
	err := logger.InitAsDefault(cfg.Logger, cfg.Application)
	if err != nil {
		return oops.In("main").Wrapf(err, "Failed to initialise the logger")
	}
	slogctx.Debug(ctx, "Starting the session client",
		slog.String("storage", string(cfg.Storage.Backend)),
		slog.String("api", cfg.API.BaseURL),
		slog.Bool("service", m.statusServer),
	)

	if m.telemetry {
		err = otlp.Init(ctx, &cfg.Application, &cfg.Telemetry, &cfg.Logger)
		if err != nil {
			return oops.In("main").Wrapf(err, "Failed to load the telemetry")
		}
	}

	if m.statusServer {
		go func() {
			err := startStatusServer(ctx, cfg)
			if err != nil {
				slogctx.Error(ctx, "Failure on the status server", "error", err)
				_ = syscall.Kill(syscall.Getpid(), syscall.SIGTERM)
			}
		}()
	}

	err = fn(ctx, cfg)
	if err != nil {
		return oops.In("main").With("storage", cfg.Storage.Backend).Wrapf(err, "Session command failed")
	}

	return nil
}

// configDirs lists where config.yaml is looked up, most specific first.
func configDirs() []string {
	dirs := make([]string, 0, len(defaultConfigDirs)+1)
	if dir := os.Getenv(ConfigDirEnv); dir != "" {
		dirs = append(dirs, dir)
	}
	return append(dirs, defaultConfigDirs...)
}

func loadConfig(buildInfo string) (*config.Config, error) {
	cfg := &config.Config{}

	err := commoncfg.LoadConfig(cfg, map[string]any{}, configDirs()...)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	err = commoncfg.UpdateConfigVersion(&cfg.BaseConfig, buildInfo)
	if err != nil {
		return nil, fmt.Errorf("updating the version configuration: %w", err)
	}

	return cfg, nil
}

func statusListener(ctx context.Context, state health.State) {
	attrs := make([]any, 0, 2+2*len(state.CheckState))
	attrs = append(attrs, "status", state.Status)
	for name, check := range state.CheckState {
		attrs = append(attrs, name, check.Status)
	}
	slogctx.Info(ctx, "Dashboard readiness changed", attrs...)
}

// startStatusServer exposes liveness and readiness for the dashboard.
// Neither registers checks; the login page is served without the API.
func startStatusServer(ctx context.Context, cfg *config.Config) error {
	liveness := status.WithLiveness(
		health.NewHandler(
			health.NewChecker(health.WithDisabledAutostart()),
		),
	)
	readiness := status.WithReadiness(
		health.NewHandler(
			health.NewChecker(
				health.WithDisabledAutostart(),
				health.WithTimeout(healthStatusTimeout),
				health.WithStatusListener(statusListener),
			),
		),
	)

	err := status.Start(ctx, &cfg.BaseConfig, liveness, readiness)
	if err != nil {
		return fmt.Errorf("starting status server: %w", err)
	}

	return nil
}
