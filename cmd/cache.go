package main

import (
	"context"
	"fmt"

	"github.com/khukmani/bettervisuals/internal/dashboards"
	"github.com/khukmani/bettervisuals/internal/shared"
	"github.com/khukmani/bettervisuals/internal/store"
	"github.com/urfave/cli/v3"
)

// cacheTargets resolves which folder-backed dashboards a cache command
// applies to, honoring the optional --dashboard filter.
func cacheTargets(cmd *cli.Command) ([]dashboards.Dashboard, error) {
	slug := cmd.String("dashboard")
	if slug == "" {
		var targets []dashboards.Dashboard
		for _, d := range dashboards.All() {
			if d.Storage == dashboards.StorageFolder {
				targets = append(targets, d)
			}
		}
		return targets, nil
	}

	dashboard, ok := dashboards.Lookup(slug)
	if !ok {
		return nil, fmt.Errorf("%w: unknown dashboard %q", shared.ErrInvalidInput, slug)
	}
	if dashboard.Storage != dashboards.StorageFolder {
		return nil, fmt.Errorf("%w: dashboard %q has no artifact cache", shared.ErrInvalidInput, slug)
	}

	return []dashboards.Dashboard{dashboard}, nil
}

// CacheStatus reports the cache contents for one user across dashboards.
func (r *Runner) CacheStatus(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)
	user := cmd.String("user")
	pretty := cmd.Bool("pretty")

	targets, err := cacheTargets(cmd)
	if err != nil {
		return err
	}

	artifacts := store.NewArtifactStore(config.Storage.DataDir)

	report := make([]map[string]any, 0, len(targets))
	for _, d := range targets {
		entry := map[string]any{
			"dashboard": d.Slug,
			"folder":    d.Folder,
			"cached":    artifacts.Exists(d.Folder, user, d.Artifacts),
		}

		sizes := map[string]int{}
		for _, name := range d.Artifacts {
			data, err := artifacts.Read(d.Folder, user, name)
			if err != nil {
				continue
			}
			sizes[name] = len(data)
		}
		if len(sizes) > 0 {
			entry["artifacts"] = sizes
		}

		report = append(report, entry)
	}

	return r.writeJSON(report, pretty)
}

// CacheClear drops cached artifacts for one user.
func (r *Runner) CacheClear(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)
	user := cmd.String("user")

	targets, err := cacheTargets(cmd)
	if err != nil {
		return err
	}

	artifacts := store.NewArtifactStore(config.Storage.DataDir)

	for _, d := range targets {
		if err := artifacts.Clear(d.Folder, user); err != nil {
			return fmt.Errorf("failed to clear %s: %w", d.Slug, err)
		}
		r.logger.Info("cache cleared", "user", user, "dashboard", d.Slug)
	}

	return r.writePlainln("cleared %d dashboard cache(s) for %s", len(targets), user)
}
