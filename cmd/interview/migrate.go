package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/meikuraledutech/interview/postgres"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the Postgres schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd.Context(), func(store *postgres.PGStore) error {
			if err := store.Migrate(cmd.Context()); err != nil {
				return err
			}
			logger.Info("migrations applied")
			return nil
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the last applied migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd.Context(), func(store *postgres.PGStore) error {
			if err := store.Rollback(cmd.Context()); err != nil {
				return err
			}
			logger.Info("migration rolled back")
			return nil
		})
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show migration status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd.Context(), func(store *postgres.PGStore) error {
			records, err := store.MigrationStatus(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, r := range records {
				applied := "pending"
				if r.Applied && r.AppliedAt != nil {
					applied = "applied " + r.AppliedAt.Format("2006-01-02 15:04:05")
				}
				fmt.Fprintf(out, "%-28s %s\n", r.Name, applied)
			}
			return nil
		})
	},
}

func withStore(ctx context.Context, fn func(*postgres.PGStore) error) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must be set")
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer pool.Close()
	return fn(postgres.New(pool))
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd)
	rootCmd.AddCommand(migrateCmd)
}
