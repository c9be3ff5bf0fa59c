package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mixtura/petube/internal/config"
	"github.com/mixtura/petube/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run pending SQL migrations (postgres)",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if cfg.DB.Driver != "postgres" {
		return fmt.Errorf("migrate: SQL migrations are postgres-only (DB_DRIVER=%s)", cfg.DB.Driver)
	}
	return database.MigrateUp(cfg.DatabaseURL())
}
