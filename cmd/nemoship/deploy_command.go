package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"nemoship/internal/cloud"
	"nemoship/internal/deploy"
	"nemoship/internal/notifications"
	"nemoship/internal/preflight"
	"nemoship/internal/services"
)

func newDeployCommand(ctx *commandContext) *cobra.Command {
	var noWait bool
	var skipPreflight bool
	var imageURI string
	var endpoint string

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Package, upload and deploy the model to a SageMaker endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if v := strings.TrimSpace(imageURI); v != "" {
				cfg.Deploy.ImageURI = v
			}
			if v := strings.TrimSpace(endpoint); v != "" {
				cfg.Deploy.EndpointName = v
			}
			if noWait {
				cfg.Deploy.Wait = false
			}
			if err := cfg.ValidateForDeploy(); err != nil {
				return services.Wrap(services.ErrConfiguration, "deploy", "validate config", "", err)
			}

			logger, err := ctx.logger(cmd)
			if err != nil {
				return err
			}
			clients, err := ctx.awsClients(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !skipPreflight {
				results := preflight.RunAll(cmd.Context(), cfg, clients.STS)
				if failed := preflight.Failed(results); len(failed) > 0 {
					printPreflight(out, results)
					return services.Wrap(services.ErrValidation, "deploy", "preflight",
						fmt.Sprintf("%d check(s) failed", len(failed)), nil)
				}
			}

			store, err := ctx.openLedger()
			if err != nil {
				return err
			}
			defer store.Close()

			orch, err := deploy.New(cfg, deploy.Dependencies{
				Ledger:   store,
				Preparer: newPreparer(cfg, logger),
				Roles:    cloud.NewRoleProvisioner(clients.IAM, logger),
				Storage:  cloud.NewStorage(clients.S3, clients.Uploader(), cfg.AWS.Region, logger),
				Platform: cloud.NewPlatform(clients.SageMaker, logger),
				Identity: clients.STS,
				Notifier: notifications.NewService(cfg),
			}, logger)
			if err != nil {
				return err
			}

			result, err := orch.Run(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "Endpoint:    %s (%s)\n", result.EndpointName, result.Action)
			fmt.Fprintf(out, "Model:       %s\n", result.ModelName)
			fmt.Fprintf(out, "Config:      %s\n", result.EndpointConfigName)
			fmt.Fprintf(out, "Model data:  %s\n", result.ModelDataURL)
			fmt.Fprintf(out, "Role:        %s\n", result.RoleARN)
			fmt.Fprintf(out, "In service:  %s\n", yesNo(result.InService))
			fmt.Fprintf(out, "Elapsed:     %s\n", result.Elapsed.Round(time.Second))
			return nil
		},
	}
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "Return once the endpoint operation is accepted")
	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Skip readiness checks")
	cmd.Flags().StringVar(&imageURI, "image", "", "Serving image URI (overrides deploy.image_uri)")
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "Endpoint name (overrides deploy.endpoint_name)")
	return cmd
}
