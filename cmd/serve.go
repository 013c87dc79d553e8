package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/khukmani/bettervisuals/internal/server"
	"github.com/khukmani/bettervisuals/internal/shared"
	"github.com/urfave/cli/v3"
)

// Serve runs the dashboard web server until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)

	if host := cmd.String("host"); host != "" {
		config.Server.Host = host
	}
	if port := cmd.Int("port"); port != 0 {
		config.Server.Port = int(port)
	}

	db, err := r.openDatabase(config)
	if err != nil {
		return err
	}
	defer db.Close()

	// Migrations are idempotent, so serving from a fresh database works
	// without a separate setup step.
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	srv, err := server.New(config, r.logger, db)
	if err != nil {
		return fmt.Errorf("failed to build server: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return srv.Serve(ctx)
}
