package main

import (
	"archive/tar"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"nemoship/internal/archive"
	"nemoship/internal/config"
	"nemoship/internal/services"
)

type inspectEntry struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Size    int64  `json:"size"`
	Mode    string `json:"mode"`
	UID     int    `json:"uid"`
	GID     int    `json:"gid"`
	ModTime string `json:"mtime"`
}

type inspectReport struct {
	Path    string         `json:"path"`
	Valid   bool           `json:"valid"`
	Entry   string         `json:"canonical_entry"`
	Entries []inspectEntry `json:"entries"`
}

func newInspectCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "inspect [archive]",
		Short: "List the entries of a model archive and validate it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := cfg.Model.ArchivePath
			if len(args) == 1 {
				if path, err = config.ExpandPath(args[0]); err != nil {
					return err
				}
			}

			entries, err := archive.Inspect(path)
			if err != nil {
				return fmt.Errorf("inspect %s: %w", path, err)
			}
			report := inspectReport{
				Path:  path,
				Valid: archive.ValidateEntry(path, cfg.Model.CanonicalName),
				Entry: cfg.Model.CanonicalName,
			}
			for _, e := range entries {
				report.Entries = append(report.Entries, inspectEntry{
					Name:    e.Name,
					Type:    entryType(e),
					Size:    e.Size,
					Mode:    fmt.Sprintf("%04o", e.Mode),
					UID:     e.UID,
					GID:     e.GID,
					ModTime: time.Unix(e.ModUnix, 0).UTC().Format(time.RFC3339),
				})
			}

			if jsonOut {
				return writeJSON(cmd, report)
			}

			rows := make([][]string, 0, len(report.Entries))
			for _, e := range report.Entries {
				rows = append(rows, []string{
					e.Name, e.Type, strconv.FormatInt(e.Size, 10), e.Mode,
					fmt.Sprintf("%d:%d", e.UID, e.GID), e.ModTime,
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(path,
				[]string{"Name", "Type", "Size", "Mode", "Owner", "Modified"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
			))
			kind := statusOK
			detail := fmt.Sprintf("contains non-empty %s", report.Entry)
			if !report.Valid {
				kind = statusError
				detail = fmt.Sprintf("missing or empty %s", report.Entry)
			}
			fmt.Fprintln(out, renderStatusLine("Valid", kind, detail, shouldColorize(out)))
			if !report.Valid {
				return services.Wrap(services.ErrValidation, "inspect", "", path+" is not a valid model archive", nil)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func entryType(e archive.Entry) string {
	switch {
	case e.Regular():
		return "file"
	case e.Type == tar.TypeDir:
		return "dir"
	case e.Type == tar.TypeSymlink:
		return "symlink"
	default:
		return fmt.Sprintf("type %c", e.Type)
	}
}
