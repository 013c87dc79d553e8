// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// configFlag is shared by every command that reads the TOML configuration.
func configFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

// serveCommand runs the dashboard web server.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the dashboard web server",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:  "host",
				Usage: "Bind address, overrides the configured host",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to listen on, overrides the configured port",
			},
		},
		Action: r.Serve,
	}
}

// setupCommand handles setup operations.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupDatabase,
			},
		},
	}
}

// configCommand manages the configuration file.
func configCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage the configuration file",
		Commands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Write a starter config.toml from the embedded template",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Path for the new configuration file",
						Value:   "config.toml",
					},
				},
				Action: r.ConfigInit,
			},
		},
	}
}

// cacheCommand inspects and clears per-user dashboard caches.
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect and clear per-user dashboard caches",
		Commands: []*cli.Command{
			{
				Name:  "status",
				Usage: "Show which dashboards have cached artifacts for a user",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:     "user",
						Aliases:  []string{"u"},
						Usage:    "User ID to inspect",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "dashboard",
						Aliases: []string{"d"},
						Usage:   "Limit to one dashboard slug",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				},
				Action: r.CacheStatus,
			},
			{
				Name:  "clear",
				Usage: "Drop cached artifacts for a user",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:     "user",
						Aliases:  []string{"u"},
						Usage:    "User ID to clear",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "dashboard",
						Aliases: []string{"d"},
						Usage:   "Limit to one dashboard slug",
					},
				},
				Action: r.CacheClear,
			},
		},
	}
}
