// package dashboards declares the dashboard manifest: which dashboards exist,
// where each one stores its data, and which artifact set a valid cache holds.
package dashboards

import (
	"fmt"

	"github.com/khukmani/bettervisuals/internal/shared"
	"github.com/khukmani/bettervisuals/internal/tasks"
)

// Storage classifies where a dashboard keeps per-user state.
type Storage int

const (
	// StorageNone means the dashboard is stateless.
	StorageNone Storage = iota
	// StorageFolder means artifacts live on disk under the dashboard's folder.
	StorageFolder
	// StorageDatabase means state lives in the application database.
	StorageDatabase
)

// Dashboard describes one dashboard's identity and storage contract.
type Dashboard struct {
	Slug        string
	Name        string
	Description string
	Storage     Storage
	// Folder is the cache namespace under the data directory. Set only for
	// folder-backed dashboards.
	Folder string
	// Artifacts is the complete artifact set a valid cache holds. The cache
	// is all-or-nothing: a subset counts as no cache.
	Artifacts []string
}

// Slugs of the built-in dashboards.
const (
	SlugTop100 = "top100"
	SlugBudget = "budget"
	SlugSample = "sample"
	SlugNotes  = "notes"
)

// registry is the built-in dashboard manifest, in display order.
var registry = []Dashboard{
	{
		Slug:        SlugTop100,
		Name:        "Spotify Top 100",
		Description: "Listening trends across your yearly Your Top Songs playlists",
		Storage:     StorageFolder,
		Folder:      "top_100",
		Artifacts:   tasks.MusicArtifactNames,
	},
	{
		Slug:        SlugBudget,
		Name:        "YNAB Budget",
		Description: "Income, expenses and balances from an uploaded budget export",
		Storage:     StorageFolder,
		Folder:      "ynab",
		Artifacts:   tasks.FinanceArtifactNames,
	},
	{
		Slug:        SlugSample,
		Name:        "Iris Sample",
		Description: "A built-in dataset for trying the dashboard UI without accounts",
		Storage:     StorageNone,
	},
	{
		Slug:        SlugNotes,
		Name:        "Notes",
		Description: "A per-user scratch value stored in the application database",
		Storage:     StorageDatabase,
	},
}

// All returns the manifest in display order.
func All() []Dashboard {
	out := make([]Dashboard, len(registry))
	copy(out, registry)
	return out
}

// Lookup finds a dashboard by slug.
func Lookup(slug string) (Dashboard, bool) {
	for _, d := range registry {
		if d.Slug == slug {
			return d, true
		}
	}
	return Dashboard{}, false
}

// Validate checks the manifest invariants. It runs at startup so a
// misconfigured dashboard fails fast instead of at first request.
func Validate() error {
	slugs := make(map[string]bool)
	folders := make(map[string]bool)

	for _, d := range registry {
		if d.Slug == "" || d.Name == "" {
			return fmt.Errorf("%w: dashboard with empty slug or name", shared.ErrInvalidConfig)
		}
		if slugs[d.Slug] {
			return fmt.Errorf("%w: duplicate dashboard slug %q", shared.ErrInvalidConfig, d.Slug)
		}
		slugs[d.Slug] = true

		switch d.Storage {
		case StorageFolder:
			if d.Folder == "" {
				return fmt.Errorf("%w: dashboard %q has folder storage but no folder", shared.ErrInvalidConfig, d.Slug)
			}
			if folders[d.Folder] {
				return fmt.Errorf("%w: duplicate storage folder %q", shared.ErrInvalidConfig, d.Folder)
			}
			folders[d.Folder] = true

			if len(d.Artifacts) == 0 {
				return fmt.Errorf("%w: dashboard %q declares no artifacts", shared.ErrInvalidConfig, d.Slug)
			}
			names := make(map[string]bool)
			for _, artifact := range d.Artifacts {
				if artifact == "" || names[artifact] {
					return fmt.Errorf("%w: dashboard %q has empty or duplicate artifact names", shared.ErrInvalidConfig, d.Slug)
				}
				names[artifact] = true
			}
		case StorageNone, StorageDatabase:
			if d.Folder != "" || len(d.Artifacts) != 0 {
				return fmt.Errorf("%w: dashboard %q declares folder state without folder storage", shared.ErrInvalidConfig, d.Slug)
			}
		default:
			return fmt.Errorf("%w: dashboard %q has unknown storage %d", shared.ErrInvalidConfig, d.Slug, d.Storage)
		}
	}

	return nil
}
