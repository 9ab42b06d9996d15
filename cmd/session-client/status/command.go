package status

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/openkcm/session-client/internal/business"
	"github.com/openkcm/session-client/internal/cmdutils"
	"github.com/openkcm/session-client/internal/config"
)

func Cmd(buildInfo string) *cobra.Command {
	cmd := cmdutils.CobraCommand(
		"status",
		"Show the current session",
		"Prints whether the stored token still authenticates the user, who the user is and when the token expires.",
		buildInfo,
		cmdutils.RunAsJob,
		func(ctx context.Context, cfg *config.Config, inv cmdutils.Invocation) error {
			return business.StatusMain(ctx, cfg, inv.Out)
		},
	)
	cmd.Args = cobra.NoArgs

	return cmd
}
