package login

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/openkcm/session-client/internal/business"
	"github.com/openkcm/session-client/internal/cmdutils"
	"github.com/openkcm/session-client/internal/config"
)

func Cmd(buildInfo string) *cobra.Command {
	cmd := cmdutils.CobraCommand(
		"login <email-or-username>",
		"Sign in to the dashboard API",
		"Signs in with the given user and the password read from the first line of stdin, "+
			"and keeps the token in the configured credential storage.",
		buildInfo,
		cmdutils.RunAsJob,
		func(ctx context.Context, cfg *config.Config, inv cmdutils.Invocation) error {
			return business.LoginMain(ctx, cfg, inv.In, inv.Out, inv.Args[0])
		},
	)
	cmd.Args = cobra.ExactArgs(1)

	return cmd
}
