// Spotify API implementation of [MusicLibrary]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/khukmani/bettervisuals/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	// topSongsPrefix selects the provider-curated yearly review playlists.
	topSongsPrefix = "Your Top Songs"
	// topSongsOwner is the display name Spotify uses for its curated playlists.
	topSongsOwner = "Spotify"

	pageLimit     = 50
	artistIDBatch = 50
)

type spotifyOwner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type spotifyTrackCount struct {
	Total int `json:"total"`
}

// SpotifySimplePlaylist represents a simplified playlist object (used in lists).
type SpotifySimplePlaylist struct {
	ID     string            `json:"id"`
	Name   string            `json:"name"`
	Owner  spotifyOwner      `json:"owner"`
	Tracks spotifyTrackCount `json:"tracks"`
}

// SpotifyPaginatedPlaylists represents a paginated response of playlists.
type SpotifyPaginatedPlaylists struct {
	Items  []SpotifySimplePlaylist `json:"items"`
	Total  int                     `json:"total"`
	Limit  int                     `json:"limit"`
	Offset int                     `json:"offset"`
	Next   *string                 `json:"next"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Genres []string `json:"genres"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ReleaseDate string `json:"release_date"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	DurationMS int             `json:"duration_ms"`
	Artists    []SpotifyArtist `json:"artists"`
	Album      SpotifyAlbum    `json:"album"`
}

// SpotifyPlaylistTrack represents a track within a playlist context.
type SpotifyPlaylistTrack struct {
	Track *SpotifyTrack `json:"track"`
}

// SpotifyPaginatedTracks represents a paginated page of playlist tracks.
type SpotifyPaginatedTracks struct {
	Items  []SpotifyPlaylistTrack `json:"items"`
	Total  int                    `json:"total"`
	Limit  int                    `json:"limit"`
	Offset int                    `json:"offset"`
	Next   *string                `json:"next"`
}

// SpotifyService implements [MusicLibrary] against the Spotify web API.
// Uses [oauth2] for authentication and a token-bucket limiter to stay inside
// the API's request quota.
type SpotifyService struct {
	config     *oauth2.Config
	token      *oauth2.Token
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		return nil, fmt.Errorf("%w: missing redirect_uri", shared.ErrMissingCredentials)
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes: []string{
			"playlist-read-private",
			"playlist-read-collaborative",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	return &SpotifyService{
		config:     config,
		httpClient: http.DefaultClient,
		limiter:    rate.NewLimiter(rate.Limit(10), 10),
		baseURL:    spotifyBaseURL,
	}, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// Authenticated reports whether the service holds an access token.
func (s *SpotifyService) Authenticated() bool {
	return s.token != nil && s.token.AccessToken != ""
}

// AuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) AuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Authorize exchanges an authorization code for an access token and installs it.
func (s *SpotifyService) Authorize(ctx context.Context, code string) error {
	if code == "" {
		return fmt.Errorf("%w: auth code", shared.ErrMissingArgument)
	}

	token, err := s.config.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("%w: failed to exchange auth code: %v", shared.ErrAuthFailed, err)
	}

	s.SetToken(ctx, token)
	return nil
}

// SetToken installs a previously obtained token, e.g. one restored from a session.
func (s *SpotifyService) SetToken(ctx context.Context, token *oauth2.Token) {
	s.token = token
	s.httpClient = s.config.Client(ctx, token)
}

// Token returns the current token so callers can persist it across requests.
func (s *SpotifyService) Token() *oauth2.Token {
	return s.token
}

// doRequest performs an authenticated, rate-limited GET against the Spotify API.
func (s *SpotifyService) doRequest(ctx context.Context, endpoint string, result any) error {
	if !s.Authenticated() {
		return fmt.Errorf("%w: no Spotify access token", shared.ErrAuthRequired)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.token.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: spotify rejected the access token", shared.ErrAuthRequired)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: spotify returned status %d for %s", shared.ErrAPIRequest, resp.StatusCode, endpoint)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// UserPlaylists retrieves one page of the current user's playlists.
func (s *SpotifyService) UserPlaylists(ctx context.Context, limit, offset int) (*SpotifyPaginatedPlaylists, error) {
	if limit <= 0 || limit > pageLimit {
		limit = pageLimit
	}

	endpoint := fmt.Sprintf("/me/playlists?limit=%d&offset=%d", limit, offset)

	var response SpotifyPaginatedPlaylists
	if err := s.doRequest(ctx, endpoint, &response); err != nil {
		return nil, err
	}

	return &response, nil
}

// SeveralArtists retrieves multiple artists by their IDs (up to 50).
func (s *SpotifyService) SeveralArtists(ctx context.Context, artistIDs []string) ([]SpotifyArtist, error) {
	if len(artistIDs) == 0 {
		return nil, fmt.Errorf("%w: artist IDs", shared.ErrMissingArgument)
	}
	if len(artistIDs) > artistIDBatch {
		return nil, fmt.Errorf("%w: maximum %d artist IDs allowed", shared.ErrInvalidInput, artistIDBatch)
	}

	endpoint := fmt.Sprintf("/artists?ids=%s", url.QueryEscape(strings.Join(artistIDs, ",")))

	var response struct {
		Artists []*SpotifyArtist `json:"artists"`
	}
	if err := s.doRequest(ctx, endpoint, &response); err != nil {
		return nil, err
	}

	artists := make([]SpotifyArtist, 0, len(response.Artists))
	for _, a := range response.Artists {
		// Unknown IDs come back as null entries
		if a != nil {
			artists = append(artists, *a)
		}
	}

	return artists, nil
}

// MusicLibrary interface implementation

// TopSongsPlaylists pages through the user's playlists and keeps the curated
// yearly review playlists, tagging each with its year taken from the name.
func (s *SpotifyService) TopSongsPlaylists(ctx context.Context) ([]PlaylistRef, error) {
	var refs []PlaylistRef
	offset := 0

	for {
		response, err := s.UserPlaylists(ctx, pageLimit, offset)
		if err != nil {
			return nil, err
		}

		for _, sp := range response.Items {
			if !strings.HasPrefix(sp.Name, topSongsPrefix) || sp.Owner.DisplayName != topSongsOwner {
				continue
			}
			if len(sp.Name) < 4 {
				continue
			}

			refs = append(refs, PlaylistRef{
				ID:         sp.ID,
				Name:       sp.Name,
				Year:       sp.Name[len(sp.Name)-4:],
				OwnerName:  sp.Owner.DisplayName,
				TrackCount: sp.Tracks.Total,
			})
		}

		if response.Next == nil {
			break
		}
		offset += pageLimit
	}

	return refs, nil
}

// PlaylistTracks retrieves every track of a playlist, following pagination.
func (s *SpotifyService) PlaylistTracks(ctx context.Context, playlistID string) ([]TrackRecord, error) {
	if playlistID == "" {
		return nil, fmt.Errorf("%w: playlist ID", shared.ErrMissingArgument)
	}

	var records []TrackRecord
	offset := 0

	for {
		endpoint := fmt.Sprintf("/playlists/%s/tracks?limit=%d&offset=%d", playlistID, pageLimit, offset)

		var response SpotifyPaginatedTracks
		if err := s.doRequest(ctx, endpoint, &response); err != nil {
			return nil, err
		}

		for _, item := range response.Items {
			// Removed or locally unavailable tracks come back as null
			if item.Track == nil {
				continue
			}

			record := TrackRecord{
				ID:          item.Track.ID,
				Name:        item.Track.Name,
				Album:       item.Track.Album.Name,
				AlbumID:     item.Track.Album.ID,
				ReleaseDate: item.Track.Album.ReleaseDate,
				DurationMS:  item.Track.DurationMS,
			}
			for _, artist := range item.Track.Artists {
				record.Artists = append(record.Artists, artist.Name)
				record.ArtistIDs = append(record.ArtistIDs, artist.ID)
			}

			records = append(records, record)
		}

		if response.Next == nil {
			break
		}
		offset += pageLimit
	}

	return records, nil
}

// ArtistGenres resolves artist IDs to genre lists in batches of 50. IDs the
// API does not return map to an empty list.
func (s *SpotifyService) ArtistGenres(ctx context.Context, artistIDs []string) (map[string][]string, error) {
	genres := make(map[string][]string, len(artistIDs))
	for _, id := range artistIDs {
		genres[id] = []string{}
	}

	for start := 0; start < len(artistIDs); start += artistIDBatch {
		end := start + artistIDBatch
		if end > len(artistIDs) {
			end = len(artistIDs)
		}

		artists, err := s.SeveralArtists(ctx, artistIDs[start:end])
		if err != nil {
			return nil, err
		}

		for _, artist := range artists {
			if artist.Genres == nil {
				genres[artist.ID] = []string{}
			} else {
				genres[artist.ID] = artist.Genres
			}
		}
	}

	return genres, nil
}
