package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/khukmani/bettervisuals/internal/shared"
	"golang.org/x/oauth2"
)

func testCredentials() map[string]string {
	return map[string]string{
		"client_id":     "test-client",
		"client_secret": "test-secret",
		"redirect_uri":  "http://localhost:8050/auth/spotify/callback",
	}
}

func newTestService(t *testing.T, handler http.Handler) (*SpotifyService, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	service, err := NewSpotifyService(testCredentials())
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	service.baseURL = server.URL
	service.token = &oauth2.Token{AccessToken: "test-token"}
	service.httpClient = server.Client()

	return service, server
}

func TestNewSpotifyService(t *testing.T) {
	t.Run("valid credentials", func(t *testing.T) {
		service, err := NewSpotifyService(testCredentials())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if service.Name() != "Spotify" {
			t.Errorf("expected name Spotify, got %s", service.Name())
		}
		if service.Authenticated() {
			t.Error("expected fresh service to be unauthenticated")
		}
	})

	t.Run("missing client_id", func(t *testing.T) {
		credentials := testCredentials()
		delete(credentials, "client_id")

		if _, err := NewSpotifyService(credentials); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("missing redirect_uri", func(t *testing.T) {
		credentials := testCredentials()
		credentials["redirect_uri"] = ""

		if _, err := NewSpotifyService(credentials); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})
}

func TestAuthURL(t *testing.T) {
	service, err := NewSpotifyService(testCredentials())
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}

	authURL := service.AuthURL("state-token")
	if !strings.HasPrefix(authURL, "https://accounts.spotify.com/authorize") {
		t.Errorf("expected authorize endpoint, got %s", authURL)
	}
	if !strings.Contains(authURL, "state=state-token") {
		t.Errorf("expected state parameter, got %s", authURL)
	}
	if !strings.Contains(authURL, "client_id=test-client") {
		t.Errorf("expected client id parameter, got %s", authURL)
	}
}

func TestUnauthenticatedRequests(t *testing.T) {
	service, err := NewSpotifyService(testCredentials())
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}

	if _, err := service.TopSongsPlaylists(context.Background()); !errors.Is(err, shared.ErrAuthRequired) {
		t.Errorf("expected ErrAuthRequired, got %v", err)
	}
}

func TestTopSongsPlaylists(t *testing.T) {
	t.Run("filters by prefix and owner", func(t *testing.T) {
		service, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(SpotifyPaginatedPlaylists{
				Items: []SpotifySimplePlaylist{
					{ID: "p1", Name: "Your Top Songs 2022", Owner: spotifyOwner{DisplayName: "Spotify"}, Tracks: spotifyTrackCount{Total: 100}},
					{ID: "p2", Name: "Your Top Songs 2023", Owner: spotifyOwner{DisplayName: "Spotify"}, Tracks: spotifyTrackCount{Total: 100}},
					{ID: "p3", Name: "Your Top Songs 2021", Owner: spotifyOwner{DisplayName: "someone else"}},
					{ID: "p4", Name: "Road Trip", Owner: spotifyOwner{DisplayName: "Spotify"}},
				},
			})
		}))

		refs, err := service.TopSongsPlaylists(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if len(refs) != 2 {
			t.Fatalf("expected 2 playlists, got %d", len(refs))
		}
		if refs[0].Year != "2022" || refs[1].Year != "2023" {
			t.Errorf("unexpected years %s, %s", refs[0].Year, refs[1].Year)
		}
	})

	t.Run("follows pagination", func(t *testing.T) {
		var service *SpotifyService
		var server *httptest.Server

		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			offset := r.URL.Query().Get("offset")
			page := SpotifyPaginatedPlaylists{
				Items: []SpotifySimplePlaylist{
					{ID: "p" + offset, Name: "Your Top Songs 2020", Owner: spotifyOwner{DisplayName: "Spotify"}},
				},
			}
			if offset == "0" {
				next := server.URL + "/me/playlists?limit=50&offset=50"
				page.Next = &next
			}
			json.NewEncoder(w).Encode(page)
		})
		service, server = newTestService(t, handler)

		refs, err := service.TopSongsPlaylists(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(refs) != 2 {
			t.Errorf("expected playlists from both pages, got %d", len(refs))
		}
	})

	t.Run("expired token", func(t *testing.T) {
		service, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))

		if _, err := service.TopSongsPlaylists(context.Background()); !errors.Is(err, shared.ErrAuthRequired) {
			t.Errorf("expected ErrAuthRequired, got %v", err)
		}
	})
}

func TestPlaylistTracks(t *testing.T) {
	service, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/playlists/p1/tracks") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(SpotifyPaginatedTracks{
			Items: []SpotifyPlaylistTrack{
				{Track: &SpotifyTrack{
					Name:  "Song A",
					Album: SpotifyAlbum{Name: "Album M"},
					Artists: []SpotifyArtist{
						{ID: "a1", Name: "Artist X"},
						{ID: "a2", Name: "Artist Y"},
					},
				}},
				{Track: nil},
			},
		})
	}))

	records, err := service.PlaylistTracks(context.Background(), "p1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(records) != 1 {
		t.Fatalf("expected 1 record (null tracks skipped), got %d", len(records))
	}
	record := records[0]
	if record.Name != "Song A" || record.Album != "Album M" {
		t.Errorf("unexpected record %+v", record)
	}
	if len(record.Artists) != 2 || record.Artists[0] != "Artist X" || record.ArtistIDs[1] != "a2" {
		t.Errorf("unexpected artists %v / %v", record.Artists, record.ArtistIDs)
	}
}

func TestArtistGenres(t *testing.T) {
	t.Run("batches requests", func(t *testing.T) {
		var batchSizes []int

		service, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ids := strings.Split(r.URL.Query().Get("ids"), ",")
			batchSizes = append(batchSizes, len(ids))

			artists := make([]*SpotifyArtist, len(ids))
			for i, id := range ids {
				artists[i] = &SpotifyArtist{ID: id, Genres: []string{"genre-" + id}}
			}
			json.NewEncoder(w).Encode(map[string]any{"artists": artists})
		}))

		ids := make([]string, 75)
		for i := range ids {
			ids[i] = fmt.Sprintf("a%d", i)
		}

		genres, err := service.ArtistGenres(context.Background(), ids)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if len(batchSizes) != 2 || batchSizes[0] != 50 || batchSizes[1] != 25 {
			t.Errorf("expected batches of 50 and 25, got %v", batchSizes)
		}
		if got := genres["a0"]; len(got) != 1 || got[0] != "genre-a0" {
			t.Errorf("unexpected genres for a0: %v", got)
		}
	})

	t.Run("unknown IDs map to empty lists", func(t *testing.T) {
		service, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"artists": []*SpotifyArtist{nil}})
		}))

		genres, err := service.ArtistGenres(context.Background(), []string{"missing"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got, ok := genres["missing"]; !ok || len(got) != 0 {
			t.Errorf("expected empty list for unknown ID, got %v (present %v)", got, ok)
		}
	})

	t.Run("no IDs is a no-op", func(t *testing.T) {
		service, err := NewSpotifyService(testCredentials())
		if err != nil {
			t.Fatalf("failed to create service: %v", err)
		}

		genres, err := service.ArtistGenres(context.Background(), nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(genres) != 0 {
			t.Errorf("expected empty map, got %v", genres)
		}
	})
}
