// package services defines interfaces for the external data sources that feed
// dashboard pipelines.
//
// Spotify (OAuth2 web API), YNAB budget exports (uploaded zip archives)
package services

import (
	"context"
	"time"
)

// MusicLibrary is the source of the listening history that the music pipeline
// transforms. Implementations must return playlists and tracks in the order
// the provider reports them.
type MusicLibrary interface {
	// TopSongsPlaylists retrieves the provider-curated yearly review playlists
	// for the authenticated user, oldest page first.
	TopSongsPlaylists(ctx context.Context) ([]PlaylistRef, error)

	// PlaylistTracks retrieves every track of a playlist in playlist order.
	PlaylistTracks(ctx context.Context, playlistID string) ([]TrackRecord, error)

	// ArtistGenres resolves artist IDs to their genre lists. IDs the provider
	// does not know map to an empty list.
	ArtistGenres(ctx context.Context, artistIDs []string) (map[string][]string, error)
}

// PlaylistRef identifies one yearly review playlist.
type PlaylistRef struct {
	ID         string
	Name       string
	Year       string
	OwnerName  string
	TrackCount int
}

// TrackRecord is one track as it appears in a playlist.
type TrackRecord struct {
	ID          string
	Name        string
	Album       string
	AlbumID     string
	ReleaseDate string
	DurationMS  int
	Artists     []string
	ArtistIDs   []string
}

// RegisterRow is one transaction from a budget register export.
type RegisterRow struct {
	Account       string
	Flag          string
	Date          time.Time
	Payee         string
	CategoryGroup string
	Category      string
	Memo          string
	Outflow       float64
	Inflow        float64
	Cleared       string
}

// BudgetRow is one month-category allocation from a budget export.
type BudgetRow struct {
	Month         string
	CategoryGroup string
	Category      string
	Budgeted      float64
	Activity      float64
	Available     float64
}
