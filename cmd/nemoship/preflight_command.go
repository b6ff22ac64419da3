package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"nemoship/internal/cloud"
	"nemoship/internal/preflight"
	"nemoship/internal/services"
)

func newPreflightCommand(ctx *commandContext) *cobra.Command {
	var skipAWS bool

	cmd := &cobra.Command{
		Use:   "preflight",
		Short: "Check directories, disk space, cached archive and AWS credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			var identity cloud.STSAPI
			var awsResult *preflight.Result
			if !skipAWS {
				clients, err := ctx.awsClients(cmd.Context())
				if err != nil {
					awsResult = &preflight.Result{Name: "AWS credentials", Detail: err.Error()}
				} else {
					identity = clients.STS
				}
			}

			results := preflight.RunAll(cmd.Context(), cfg, identity)
			if awsResult != nil {
				results = append(results, *awsResult)
			}
			printPreflight(cmd.OutOrStdout(), results)

			if failed := preflight.Failed(results); len(failed) > 0 {
				return services.Wrap(services.ErrValidation, "preflight", "", fmt.Sprintf("%d check(s) failed", len(failed)), nil)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipAWS, "skip-aws", false, "Skip the AWS credential check")
	return cmd
}

func printPreflight(out io.Writer, results []preflight.Result) {
	colorize := shouldColorize(out)
	fmt.Fprintln(out, renderSectionHeader("Preflight", colorize))
	for _, r := range results {
		kind := statusOK
		switch {
		case !r.Passed && r.Optional:
			kind = statusWarn
		case !r.Passed:
			kind = statusError
		}
		fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
	}
}
