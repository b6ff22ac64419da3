package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"nemoship/internal/fileutil"
	"nemoship/internal/logs"
	"nemoship/internal/services"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool

	cmd := &cobra.Command{
		Use:       "logs [nemoship|nemoshipd]",
		Short:     "Show the tail of a nemoship log file",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"nemoship", "nemoshipd"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			name := "nemoship"
			if len(args) == 1 {
				name = args[0]
			}
			if name != "nemoship" && name != "nemoshipd" {
				return services.Wrap(services.ErrValidation, "logs", "select log", fmt.Sprintf("unknown log %q", name), nil)
			}

			path := filepath.Join(cfg.Paths.LogDir, name+".log")
			out := cmd.OutOrStdout()
			if !fileutil.Exists(path) && !follow {
				fmt.Fprintf(out, "No log file at %s (set logging.to_file = true)\n", path)
				return nil
			}

			tail, offset, err := logs.Last(path, lines)
			if err != nil {
				return err
			}
			for _, line := range tail {
				fmt.Fprintln(out, line)
			}
			if !follow {
				return nil
			}
			return logs.Follow(cmd.Context(), path, offset, logs.DefaultPoll, func(line string) {
				fmt.Fprintln(out, line)
			})
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines")
	return cmd
}
