package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/cartsync/config"
	"github.com/shashiranjanraj/cartsync/internal/app"
	"github.com/shashiranjanraj/cartsync/pkg/migration"
)

// withMigrator boots the SQL ledger and hands its migration runner to fn.
func withMigrator(ctx context.Context, fn func(*migration.Runner) error) error {
	config.Set("LEDGER_DRIVER", "sql")
	a, err := app.Boot(ctx, app.Options{Ledger: true})
	if err != nil {
		return err
	}
	defer a.Close()

	m, err := a.Migrator()
	if err != nil {
		return err
	}
	return fn(m)
}

// cartsync migrate
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the SQL order ledger schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(cmd.Context(), func(m *migration.Runner) error {
			fmt.Println("Running migrations…")
			return m.Run(cmd.Context())
		})
	},
}

// cartsync migrate:rollback
var migrateRollbackCmd = &cobra.Command{
	Use:   "migrate:rollback",
	Short: "Roll back the last batch of migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(cmd.Context(), func(m *migration.Runner) error {
			fmt.Println("Rolling back last batch…")
			return m.Rollback(cmd.Context())
		})
	},
}

// cartsync migrate:status
var migrateStatusCmd = &cobra.Command{
	Use:   "migrate:status",
	Short: "List migrations that have not run yet",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(cmd.Context(), func(m *migration.Runner) error {
			pending, err := m.Pending(cmd.Context())
			if err != nil {
				return err
			}
			if len(pending) == 0 {
				fmt.Println("Nothing to migrate.")
				return nil
			}
			for _, name := range pending {
				fmt.Println("pending ", name)
			}
			return nil
		})
	},
}
