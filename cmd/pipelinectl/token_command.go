package main

import (
	"fmt"

	"video_pipeline_service/pkg/token"

	"github.com/spf13/cobra"
)

func newTokenCommand(ctx *commandContext) *cobra.Command {
	var role string
	var issuer string

	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Sign a JWT with the configured jwt_secret, for local testing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cfg.JWTSecret == "" {
				return fmt.Errorf("jwt_secret is not configured")
			}
			token.SetSecret(cfg.JWTSecret)

			signed, err := token.GenerateJWT(args[0], role, issuer)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), signed)
			return nil
		},
	}

	cmd.Flags().StringVar(&role, "role", string(token.RoleUser), "Role claim (user or admin)")
	cmd.Flags().StringVar(&issuer, "issuer", "pipelinectl", "Issuer claim")
	return cmd
}
