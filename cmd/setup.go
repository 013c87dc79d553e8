package main

import (
	"context"
	"fmt"

	"github.com/khukmani/bettervisuals/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupDatabase initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)

	r.logger.Info("initializing database", "path", config.Storage.DatabasePath)

	db, err := r.openDatabase(config)
	if err != nil {
		return err
	}
	defer db.Close()

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return r.writePlainln("setup complete for database: %v", config.Storage.DatabasePath)
}

// ConfigInit writes a starter configuration file from the embedded template.
func (r *Runner) ConfigInit(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("output")

	if err := shared.CreateConfigFile(path); err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}

	r.logger.Info("config file created", "path", path)
	return r.writePlainln("wrote %s, fill in your Google and Spotify credentials", path)
}
