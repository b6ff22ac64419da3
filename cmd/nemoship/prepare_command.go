package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"nemoship/internal/deploy"
)

func newPrepareCommand(ctx *commandContext) *cobra.Command {
	var rebuild bool

	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "Fetch the checkpoint if needed and package it as a model archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger(cmd)
			if err != nil {
				return err
			}
			if rebuild {
				cfg.Model.RevalidateCached = true
			}

			store, err := ctx.openLedger()
			if err != nil {
				return err
			}
			defer store.Close()

			previous, err := store.LatestArtifact(cmd.Context(), cfg.Model.ArchivePath)
			if err != nil {
				return err
			}

			prepared, err := newPreparer(cfg, logger).PrepareDetailed(cmd.Context(), cfg.Model.CheckpointPath, cfg.Model.ID, cfg.Model.ArchivePath)
			if err != nil {
				return err
			}
			record, err := deploy.RecordArtifact(cmd.Context(), store, cfg, prepared)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Archive:  %s\n", prepared.ArchivePath)
			fmt.Fprintf(out, "SHA-256:  %s\n", record.ArchiveSHA256)
			fmt.Fprintf(out, "Size:     %d bytes\n", record.ArchiveBytes)
			fmt.Fprintf(out, "Reused:   %s\n", yesNo(prepared.Reused))
			fmt.Fprintf(out, "Fetched:  %s\n", yesNo(prepared.Fetched))
			if prepared.Rebuilt {
				fmt.Fprintln(out, "Rebuilt:  yes (cached archive failed validation)")
			}
			if previous != nil {
				fmt.Fprintf(out, "Changed:  %s (since record %d)\n", yesNo(previous.ArchiveSHA256 != record.ArchiveSHA256), previous.ID)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&rebuild, "revalidate", false, "Validate a cached archive and rebuild it when invalid")
	return cmd
}
