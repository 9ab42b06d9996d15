package logout

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/openkcm/session-client/internal/business"
	"github.com/openkcm/session-client/internal/cmdutils"
	"github.com/openkcm/session-client/internal/config"
)

func Cmd(buildInfo string) *cobra.Command {
	cmd := cmdutils.CobraCommand(
		"logout",
		"Sign out and forget the stored token",
		"Ends the local session. Signing out twice has the same effect as signing out once.",
		buildInfo,
		cmdutils.RunAsJob,
		func(ctx context.Context, cfg *config.Config, inv cmdutils.Invocation) error {
			return business.LogoutMain(ctx, cfg, inv.Out)
		},
	)
	cmd.Args = cobra.NoArgs

	return cmd
}
