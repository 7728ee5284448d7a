package main

import (
	"database/sql"
	"fmt"

	"chamahub/internal/config"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply, roll back or inspect database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		RunE:  withSQLDB(config.MigrateUp),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		RunE:  withSQLDB(config.MigrateDown),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the applied state of each migration",
		RunE:  withSQLDB(config.MigrateStatus),
	})

	return cmd
}

// withSQLDB connects using the server's configuration and runs fn on the pool
func withSQLDB(fn func(db *sql.DB) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		db, err := config.ConnectDatabase(cfg)
		if err != nil {
			return err
		}
		defer config.CloseDatabase(db)

		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("failed to get sql.DB: %w", err)
		}
		return fn(sqlDB)
	}
}
