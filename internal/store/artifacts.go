// package store persists dashboard artifacts on disk, one JSON document per
// artifact, namespaced by dashboard storage folder and user id.
package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/khukmani/bettervisuals/internal/shared"
)

// ArtifactStore reads and writes cached dashboard artifacts under
// <root>/<folder>/<user_id>/<artifact>.json.
type ArtifactStore struct {
	root string
}

// NewArtifactStore creates a store rooted at the given data directory.
func NewArtifactStore(root string) *ArtifactStore {
	return &ArtifactStore{root: root}
}

// Root returns the data directory the store writes under.
func (s *ArtifactStore) Root() string {
	return s.root
}

func (s *ArtifactStore) path(folder, userID, artifact string) string {
	return filepath.Join(s.root, folder, userID, artifact)
}

// Exists reports whether every named artifact is present for the user. A
// partially populated cache counts as absent so readers never consume a
// mixed-generation artifact set.
func (s *ArtifactStore) Exists(folder, userID string, artifacts []string) bool {
	for _, artifact := range artifacts {
		if _, err := os.Stat(s.path(folder, userID, artifact)); err != nil {
			return false
		}
	}
	return len(artifacts) > 0
}

// Read returns the raw bytes of one artifact. A missing file maps to
// [shared.ErrNotFound] so callers can fall through to a fresh fetch.
func (s *ArtifactStore) Read(folder, userID, artifact string) ([]byte, error) {
	data, err := os.ReadFile(s.path(folder, userID, artifact))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s/%s/%s", shared.ErrNotFound, folder, userID, artifact)
		}
		return nil, fmt.Errorf("failed to read artifact %s: %w", artifact, err)
	}
	return data, nil
}

// Write persists one artifact, creating the user's namespace directory as needed.
func (s *ArtifactStore) Write(folder, userID, artifact string, data []byte) error {
	dir := filepath.Join(s.root, folder, userID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory %s: %w", dir, err)
	}

	if err := os.WriteFile(s.path(folder, userID, artifact), data, 0644); err != nil {
		return fmt.Errorf("failed to write artifact %s: %w", artifact, err)
	}

	return nil
}

// WriteAll persists a full artifact set. Callers compute every artifact before
// calling so a failure mid-transform never leaves a partial write behind.
func (s *ArtifactStore) WriteAll(folder, userID string, artifacts map[string][]byte) error {
	for name, data := range artifacts {
		if err := s.Write(folder, userID, name, data); err != nil {
			return err
		}
	}
	return nil
}

// Clear removes every cached artifact for the user in the given folder.
// Clearing an empty cache is a no-op.
func (s *ArtifactStore) Clear(folder, userID string) error {
	dir := filepath.Join(s.root, folder, userID)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to clear cache %s: %w", dir, err)
	}
	return nil
}
