package call

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/openkcm/session-client/internal/business"
	"github.com/openkcm/session-client/internal/cmdutils"
	"github.com/openkcm/session-client/internal/config"
)

func Cmd(buildInfo string) *cobra.Command {
	cmd := cmdutils.CobraCommand(
		"call <method> <path> [json-body]",
		"Send an authenticated request to the dashboard API",
		"Sends one request relative to the configured API base URL, with the stored token as bearer, "+
			"and prints the response. Failures are printed the way the dashboard shows them.",
		buildInfo,
		cmdutils.RunAsJob,
		func(ctx context.Context, cfg *config.Config, inv cmdutils.Invocation) error {
			var body string
			if len(inv.Args) > 2 {
				body = inv.Args[2]
			}
			return business.CallMain(ctx, cfg, inv.Out, inv.Args[0], inv.Args[1], body)
		},
	)
	cmd.Args = cobra.RangeArgs(2, 3)

	return cmd
}
