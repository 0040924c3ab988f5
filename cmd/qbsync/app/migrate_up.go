package app

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"

	"github.com/eaur/qbsync/database"
	"github.com/eaur/qbsync/internal/config"
)

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending database migrations",
	Long: `Apply all pending database migrations to bring the schema up to date.
This command reads the database connection parameters from the config file
and applies every migration that has not run yet.`,
	RunE: runMigrateUp,
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("failed to get config flag: %w", err)
	}
	yes, err := cmd.Flags().GetBool("yes")
	if err != nil {
		return fmt.Errorf("failed to get yes flag: %w", err)
	}
	steps, err := cmd.Flags().GetInt("num-steps")
	if err != nil {
		return fmt.Errorf("failed to get num-steps flag: %w", err)
	}

	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	connString, err := cfg.Database.GetConnectionString()
	if err != nil {
		return fmt.Errorf("failed to build connection string: %w", err)
	}

	if !yes {
		slog.Info("about to apply migrations",
			"host", cfg.Database.Host,
			"port", cfg.Database.Port,
			"database", cfg.Database.Database,
			"user", cfg.Database.User,
		)
		if !confirm() {
			slog.Info("migration cancelled by user")
			return nil
		}
	}

	m, err := database.NewFromConnectionString(connString)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	slog.Info("applying database migrations")
	if steps > 0 {
		err = m.Steps(steps)
	} else {
		err = m.Up()
	}
	if err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			slog.Info("database schema already up to date")
			return nil
		}
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	logVersion(m)
	return nil
}

func confirm() bool {
	fmt.Print("Continue? (yes/no): ")
	var response string
	if _, err := fmt.Scanln(&response); err != nil {
		return false
	}
	return response == "yes" || response == "y"
}

func logVersion(m database.Migrator) {
	version, dirty, err := m.Version()
	switch {
	case err != nil:
		slog.Warn("unable to get migration version", "error", err)
	case dirty:
		slog.Warn("database is in a dirty state", "version", version)
	default:
		slog.Info("migrations applied successfully", "version", version)
	}
}
