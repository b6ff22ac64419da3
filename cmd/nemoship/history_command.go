package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"nemoship/internal/ledger"
	"nemoship/internal/services"
)

type historyView struct {
	Schema      string           `json:"schema_version"`
	Deployments []deploymentView `json:"deployments"`
	Artifacts   []artifactView   `json:"artifacts"`
}

type deploymentView struct {
	ID           int64  `json:"id"`
	ArtifactID   int64  `json:"artifact_id,omitempty"`
	Endpoint     string `json:"endpoint"`
	Model        string `json:"model,omitempty"`
	Action       string `json:"action,omitempty"`
	Status       string `json:"status"`
	Error        string `json:"error,omitempty"`
	StartedAt    string `json:"started_at"`
	DurationSecs int64  `json:"duration_seconds,omitempty"`
	Config       string `json:"endpoint_config,omitempty"`
	ModelData    string `json:"model_data_url,omitempty"`
	Role         string `json:"role_arn,omitempty"`
	Image        string `json:"image_uri,omitempty"`
	Instance     string `json:"instance_type,omitempty"`
}

type artifactView struct {
	ID        int64  `json:"id"`
	ModelID   string `json:"model_id"`
	Archive   string `json:"archive"`
	SHA256    string `json:"sha256"`
	Bytes     int64  `json:"bytes"`
	Reused    bool   `json:"reused"`
	CreatedAt string `json:"created_at"`
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOut bool
	var deploymentID int64

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded deployments and prepared archives",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openLedger()
			if err != nil {
				return err
			}
			defer store.Close()

			if deploymentID > 0 {
				return showDeployment(cmd, store, deploymentID, jsonOut)
			}

			deployments, err := store.ListDeployments(cmd.Context(), limit)
			if err != nil {
				return err
			}
			artifacts, err := store.ListArtifacts(cmd.Context(), limit)
			if err != nil {
				return err
			}
			view := buildHistoryView(deployments, artifacts)
			if view.Schema, err = store.SchemaVersion(cmd.Context()); err != nil {
				return err
			}

			if jsonOut {
				return writeJSON(cmd, view)
			}

			out := cmd.OutOrStdout()
			if len(view.Deployments) == 0 && len(view.Artifacts) == 0 {
				fmt.Fprintln(out, "No deployments or archives recorded yet")
				return nil
			}
			if len(view.Deployments) > 0 {
				rows := make([][]string, 0, len(view.Deployments))
				for _, d := range view.Deployments {
					duration := ""
					if d.DurationSecs > 0 {
						duration = (time.Duration(d.DurationSecs) * time.Second).String()
					}
					rows = append(rows, []string{
						strconv.FormatInt(d.ID, 10), d.Endpoint, d.Model, d.Action, d.Status, d.StartedAt, duration, truncate(d.Error, 48),
					})
				}
				fmt.Fprintln(out, renderTable("Deployments",
					[]string{"ID", "Endpoint", "Model", "Action", "Status", "Started", "Took", "Error"},
					rows,
					[]columnAlignment{alignRight},
				))
			}
			if len(view.Artifacts) > 0 {
				rows := make([][]string, 0, len(view.Artifacts))
				for _, a := range view.Artifacts {
					rows = append(rows, []string{
						strconv.FormatInt(a.ID, 10), a.ModelID, truncate(a.SHA256, 12), strconv.FormatInt(a.Bytes, 10), yesNo(a.Reused), a.CreatedAt,
					})
				}
				fmt.Fprintln(out, renderTable("Archives",
					[]string{"ID", "Model", "SHA-256", "Bytes", "Reused", "Recorded"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight},
				))
			}
			fmt.Fprintf(out, "Ledger: %s (schema %s)\n", store.Path(), view.Schema)
			return nil
		},
	}
	cmd.Flags().Int64VarP(&deploymentID, "deployment", "d", 0, "Show every recorded field of one deployment")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum rows per table")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func showDeployment(cmd *cobra.Command, store *ledger.Store, id int64, jsonOut bool) error {
	d, err := store.GetDeployment(cmd.Context(), id)
	if err != nil {
		return err
	}
	if d == nil {
		return services.Wrap(services.ErrNotFound, "history", "get deployment", fmt.Sprintf("no deployment with id %d", id), nil)
	}
	view := newDeploymentView(*d)
	if jsonOut {
		return writeJSON(cmd, view)
	}

	out := cmd.OutOrStdout()
	fields := [][2]string{
		{"Endpoint", view.Endpoint},
		{"Status", view.Status},
		{"Action", view.Action},
		{"Model", view.Model},
		{"Config", view.Config},
		{"Model data", view.ModelData},
		{"Role", view.Role},
		{"Image", view.Image},
		{"Instance", view.Instance},
		{"Started", view.StartedAt},
		{"Error", view.Error},
	}
	fmt.Fprintf(out, "Deployment %d\n", view.ID)
	for _, f := range fields {
		value := f[1]
		if value == "" {
			value = emptyCell
		}
		fmt.Fprintf(out, "  %-11s %s\n", f[0]+":", value)
	}
	if view.DurationSecs > 0 {
		fmt.Fprintf(out, "  %-11s %s\n", "Took:", time.Duration(view.DurationSecs)*time.Second)
	}
	return nil
}

func newDeploymentView(d ledger.Deployment) deploymentView {
	return deploymentView{
		ID:           d.ID,
		ArtifactID:   d.ArtifactID,
		Endpoint:     d.EndpointName,
		Model:        d.ModelName,
		Action:       d.Action,
		Status:       string(d.Status),
		Error:        d.ErrorMessage,
		StartedAt:    d.StartedAt.UTC().Format(time.RFC3339),
		DurationSecs: int64(d.Duration().Round(time.Second) / time.Second),
		Config:       d.EndpointConfigName,
		ModelData:    d.ModelDataURL,
		Role:         d.RoleARN,
		Image:        d.ImageURI,
		Instance:     d.InstanceType,
	}
}

func buildHistoryView(deployments []ledger.Deployment, artifacts []ledger.Artifact) historyView {
	view := historyView{
		Deployments: make([]deploymentView, 0, len(deployments)),
		Artifacts:   make([]artifactView, 0, len(artifacts)),
	}
	for _, d := range deployments {
		view.Deployments = append(view.Deployments, newDeploymentView(d))
	}
	for _, a := range artifacts {
		view.Artifacts = append(view.Artifacts, artifactView{
			ID:        a.ID,
			ModelID:   a.ModelID,
			Archive:   a.ArchivePath,
			SHA256:    a.ArchiveSHA256,
			Bytes:     a.ArchiveBytes,
			Reused:    a.Reused,
			CreatedAt: a.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return view
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
