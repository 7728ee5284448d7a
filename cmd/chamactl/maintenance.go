package main

import (
	"context"
	"fmt"

	"chamahub/internal/bootstrap"
	"chamahub/internal/config"
	"chamahub/internal/core/services"

	"github.com/spf13/cobra"
)

func maintenanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "maintenance",
		Short: "Run scheduled jobs once, outside the server",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "expire-swaps",
		Short: "Expire pending swap requests older than SWAP_REQUEST_TTL",
		RunE: withCron(func(ctx context.Context, cron *services.CronService) error {
			return cron.RunExpireSwaps(ctx)
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "purge-tokens",
		Short: "Delete refresh tokens that expired more than 7 days ago",
		RunE: withCron(func(ctx context.Context, cron *services.CronService) error {
			return cron.RunPurgeTokens(ctx)
		}),
	})

	return cmd
}

func withCron(fn func(ctx context.Context, cron *services.CronService) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		rt, err := bootstrap.New(cfg)
		if err != nil {
			return err
		}
		defer rt.Close()

		if err := fn(cmd.Context(), rt.Cron); err != nil {
			return fmt.Errorf("%s: %w", cmd.Name(), err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s completed\n", cmd.Name())
		return nil
	}
}
