package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/khukmani/bettervisuals/internal/services"
	"github.com/khukmani/bettervisuals/internal/shared"
	"github.com/khukmani/bettervisuals/internal/store"
)

// State is the outcome classification of one pipeline fetch.
type State int

const (
	// StateNoTriggerNoCache means no refresh was requested and nothing is
	// cached; the caller renders nothing.
	StateNoTriggerNoCache State = iota
	// StateNoTriggerCached means the cached artifact set was returned as is.
	StateNoTriggerCached
	// StateTriggered means a refresh ran and fresh artifacts were persisted.
	StateTriggered
	// StateAwaitingAuth means a refresh needs the user to authorize first.
	StateAwaitingAuth
)

func (s State) String() string {
	switch s {
	case StateNoTriggerNoCache:
		return "no_trigger_no_cache"
	case StateNoTriggerCached:
		return "no_trigger_cached"
	case StateTriggered:
		return "triggered"
	case StateAwaitingAuth:
		return "awaiting_auth"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Outcome is the result of one pipeline fetch: either an artifact set, a
// no-op signal, or an authorization redirect target.
type Outcome struct {
	State     State
	Artifacts map[string][]byte
	AuthURL   string
}

// MusicSource is a music library whose access is gated by an OAuth flow.
type MusicSource interface {
	services.MusicLibrary

	Authenticated() bool
	AuthURL(state string) string
}

// MusicPipeline orchestrates the music dashboard's fetch, transform and
// cache cycle for one request.
type MusicPipeline struct {
	source MusicSource
	store  *store.ArtifactStore
	logger *log.Logger
	folder string
}

// NewMusicPipeline creates a music pipeline writing under the given storage folder.
func NewMusicPipeline(source MusicSource, artifacts *store.ArtifactStore, logger *log.Logger, folder string) *MusicPipeline {
	return &MusicPipeline{
		source: source,
		store:  artifacts,
		logger: logger,
		folder: folder,
	}
}

// Fetch resolves the music artifact set for a user. Without a trigger it only
// consults the cache; with one it pulls from the source, rebuilds every
// artifact, and persists the full set before returning it. authState is the
// OAuth state parameter used when an authorization redirect is needed.
func (p *MusicPipeline) Fetch(ctx context.Context, userID string, trigger bool, authState string) (*Outcome, error) {
	if !trigger {
		return cachedOutcome(p.store, p.folder, userID, MusicArtifactNames)
	}

	if !p.source.Authenticated() {
		p.logger.Info("music refresh needs authorization", "user", userID)
		return &Outcome{State: StateAwaitingAuth, AuthURL: p.source.AuthURL(authState)}, nil
	}

	playlists, genres, err := FetchMusic(ctx, p.source)
	if err != nil {
		if errors.Is(err, shared.ErrAuthRequired) {
			p.logger.Info("music refresh needs re-authorization", "user", userID)
			return &Outcome{State: StateAwaitingAuth, AuthURL: p.source.AuthURL(authState)}, nil
		}
		return nil, fmt.Errorf("music fetch: %w", err)
	}

	derived, err := BuildMusicArtifacts(playlists, genres)
	if err != nil {
		return nil, fmt.Errorf("music transform: %w", err)
	}

	artifacts, err := derived.Encode()
	if err != nil {
		return nil, fmt.Errorf("music encode: %w", err)
	}

	if err := p.store.WriteAll(p.folder, userID, artifacts); err != nil {
		return nil, fmt.Errorf("music persist: %w", err)
	}

	p.logger.Info("music artifacts refreshed",
		"user", userID, "playlists", len(playlists), "tracks", derived.Tracks.Len())

	return &Outcome{State: StateTriggered, Artifacts: artifacts}, nil
}

// Clear drops the user's cached music artifacts.
func (p *MusicPipeline) Clear(userID string) error {
	p.logger.Info("clearing music cache", "user", userID)
	return p.store.Clear(p.folder, userID)
}

// FinancePipeline orchestrates the finance dashboard's upload, transform and
// cache cycle for one request.
type FinancePipeline struct {
	store  *store.ArtifactStore
	logger *log.Logger
	folder string
}

// NewFinancePipeline creates a finance pipeline writing under the given storage folder.
func NewFinancePipeline(artifacts *store.ArtifactStore, logger *log.Logger, folder string) *FinancePipeline {
	return &FinancePipeline{
		store:  artifacts,
		logger: logger,
		folder: folder,
	}
}

// Fetch resolves the finance artifact set for a user. upload is the raw bytes
// of a newly uploaded budget export, or nil to only consult the cache. A
// malformed upload leaves any previously cached artifacts untouched.
func (p *FinancePipeline) Fetch(userID string, upload []byte) (*Outcome, error) {
	if upload == nil {
		return cachedOutcome(p.store, p.folder, userID, FinanceArtifactNames)
	}

	archive, err := services.ParseBudgetArchive(upload)
	if err != nil {
		return nil, fmt.Errorf("finance upload: %w", err)
	}

	register, budget, err := BuildFinanceFrames(archive)
	if err != nil {
		return nil, fmt.Errorf("finance transform: %w", err)
	}

	artifacts, err := EncodeFinanceArtifacts(register, budget)
	if err != nil {
		return nil, fmt.Errorf("finance encode: %w", err)
	}

	if err := p.store.WriteAll(p.folder, userID, artifacts); err != nil {
		return nil, fmt.Errorf("finance persist: %w", err)
	}

	p.logger.Info("finance artifacts refreshed",
		"user", userID, "register_rows", register.Len(), "budget_rows", budget.Len())

	return &Outcome{State: StateTriggered, Artifacts: artifacts}, nil
}

// Clear drops the user's cached finance artifacts.
func (p *FinancePipeline) Clear(userID string) error {
	p.logger.Info("clearing finance cache", "user", userID)
	return p.store.Clear(p.folder, userID)
}

// cachedOutcome implements the untriggered half of the state machine: return
// the full cached set or report that nothing is there.
func cachedOutcome(artifacts *store.ArtifactStore, folder, userID string, names []string) (*Outcome, error) {
	if !artifacts.Exists(folder, userID, names) {
		return &Outcome{State: StateNoTriggerNoCache}, nil
	}

	loaded := make(map[string][]byte, len(names))
	for _, name := range names {
		data, err := artifacts.Read(folder, userID, name)
		if err != nil {
			// A concurrent clear can race the existence check.
			if errors.Is(err, shared.ErrNotFound) {
				return &Outcome{State: StateNoTriggerNoCache}, nil
			}
			return nil, err
		}
		loaded[name] = data
	}

	return &Outcome{State: StateNoTriggerCached, Artifacts: loaded}, nil
}
