package serve

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/openkcm/session-client/internal/business"
	"github.com/openkcm/session-client/internal/cmdutils"
	"github.com/openkcm/session-client/internal/config"
)

func Cmd(buildInfo string) *cobra.Command {
	cmd := cmdutils.CobraCommand(
		"serve",
		"Host the local dashboard",
		"Hosts the dashboard shell behind the route guard, together with the status server and telemetry.",
		buildInfo,
		cmdutils.RunAsService,
		func(ctx context.Context, cfg *config.Config, _ cmdutils.Invocation) error {
			return business.ServeMain(ctx, cfg)
		},
	)
	cmd.Args = cobra.NoArgs

	return cmd
}
