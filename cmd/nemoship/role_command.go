package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"nemoship/internal/cloud"
)

func newRoleCommand(ctx *commandContext) *cobra.Command {
	roleCmd := &cobra.Command{
		Use:   "role",
		Short: "Manage the SageMaker execution role",
	}
	roleCmd.AddCommand(newRoleEnsureCommand(ctx))
	return roleCmd
}

func newRoleEnsureCommand(ctx *commandContext) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "ensure",
		Short: "Create the execution role if missing and print its ARN",
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
			clients, err := ctx.awsClients(cmd.Context())
			if err != nil {
				return err
			}

			roleName := strings.TrimSpace(name)
			if roleName == "" {
				roleName = cfg.AWS.RoleName
			}
			role, err := cloud.NewRoleProvisioner(clients.IAM, logger).Ensure(cmd.Context(), roleName)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			state := "existing"
			if role.Created {
				state = "created"
			}
			fmt.Fprintf(out, "Role %s (%s)\n", role.Name, state)
			fmt.Fprintln(out, role.ARN)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Role name (defaults to aws.role_name)")
	return cmd
}
