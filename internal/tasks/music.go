package tasks

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/khukmani/bettervisuals/internal/dataset"
	"github.com/khukmani/bettervisuals/internal/services"
)

// Music artifact file names, one cache file per derived table.
const (
	ArtifactTracks           = "tracks.json"
	ArtifactTracksEncoded    = "tracks_encoded.json"
	ArtifactArtistPresence   = "artist_presence.json"
	ArtifactGenreYearCounter = "genre_year_counter.json"
	ArtifactYears            = "years.json"
)

// MusicArtifactNames is the full artifact set the music pipeline persists.
// The cache is only considered valid when every name is present.
var MusicArtifactNames = []string{
	ArtifactTracks,
	ArtifactTracksEncoded,
	ArtifactArtistPresence,
	ArtifactGenreYearCounter,
	ArtifactYears,
}

// topGenreCount bounds the genre radar table to the most common genres.
const topGenreCount = 5

// TracksSchema is the column layout of the flat track table, one row per
// (track, playlist year) pair.
var TracksSchema = []dataset.Column{
	{Name: "name", Kind: dataset.String},
	{Name: "artists", Kind: dataset.StringList},
	{Name: "album", Kind: dataset.String},
	{Name: "release_year", Kind: dataset.String},
	{Name: "duration", Kind: dataset.Float},
	{Name: "track_id", Kind: dataset.String},
	{Name: "artist_id", Kind: dataset.StringList},
	{Name: "album_id", Kind: dataset.String},
	{Name: "playlist_year", Kind: dataset.String},
	{Name: "playlist_name", Kind: dataset.String},
	{Name: "my_id", Kind: dataset.String},
}

// TracksEncodedSchema is the layout of the deduplicated track table with one
// 0/1 membership column per playlist year.
func TracksEncodedSchema(years []string) []dataset.Column {
	cols := []dataset.Column{
		{Name: "my_id", Kind: dataset.String},
		{Name: "name", Kind: dataset.String},
		{Name: "artists", Kind: dataset.StringList},
		{Name: "album", Kind: dataset.String},
		{Name: "release_year", Kind: dataset.String},
		{Name: "duration", Kind: dataset.Float},
		{Name: "track_id", Kind: dataset.String},
		{Name: "artist_id", Kind: dataset.StringList},
		{Name: "album_id", Kind: dataset.String},
	}
	for _, year := range years {
		cols = append(cols, dataset.Column{Name: year, Kind: dataset.Int})
	}
	return append(cols, dataset.Column{Name: "occurrences", Kind: dataset.Int})
}

// ArtistPresenceSchema is the layout of the per-artist year count table.
func ArtistPresenceSchema(years []string) []dataset.Column {
	cols := []dataset.Column{{Name: "artist", Kind: dataset.String}}
	for _, year := range years {
		cols = append(cols, dataset.Column{Name: year, Kind: dataset.Int})
	}
	return append(cols,
		dataset.Column{Name: "occurrences", Kind: dataset.Int},
		dataset.Column{Name: "genres", Kind: dataset.StringList},
	)
}

// GenreYearCounterSchema is the layout of the year-by-genre count table.
func GenreYearCounterSchema(genres []string) []dataset.Column {
	cols := []dataset.Column{{Name: "year", Kind: dataset.String}}
	for _, genre := range genres {
		cols = append(cols, dataset.Column{Name: genre, Kind: dataset.Int})
	}
	return cols
}

// PlaylistTracks pairs a yearly review playlist with its fetched tracks.
type PlaylistTracks struct {
	Ref    services.PlaylistRef
	Tracks []services.TrackRecord
}

// MusicArtifacts is the full derived table set of the music dashboard.
type MusicArtifacts struct {
	Tracks           *dataset.Frame
	TracksEncoded    *dataset.Frame
	ArtistPresence   *dataset.Frame
	GenreYearCounter *dataset.Frame
	Years            []string
}

// FetchMusic pulls the yearly review playlists, their tracks, and the genre
// lists of every artist involved. Playlists are processed oldest year first.
func FetchMusic(ctx context.Context, library services.MusicLibrary) ([]PlaylistTracks, map[string][]string, error) {
	refs, err := library.TopSongsPlaylists(ctx)
	if err != nil {
		return nil, nil, err
	}

	sort.SliceStable(refs, func(i, j int) bool { return refs[i].Year < refs[j].Year })

	playlists := make([]PlaylistTracks, 0, len(refs))
	var artistIDs []string
	artistNames := make(map[string]string)

	for _, ref := range refs {
		tracks, err := library.PlaylistTracks(ctx, ref.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("playlist %s: %w", ref.Name, err)
		}

		for _, track := range tracks {
			for i, id := range track.ArtistIDs {
				if _, seen := artistNames[id]; seen {
					continue
				}
				artistNames[id] = track.Artists[i]
				artistIDs = append(artistIDs, id)
			}
		}

		playlists = append(playlists, PlaylistTracks{Ref: ref, Tracks: tracks})
	}

	genresByID, err := library.ArtistGenres(ctx, artistIDs)
	if err != nil {
		return nil, nil, err
	}

	genresByArtist := make(map[string][]string, len(genresByID))
	for _, id := range artistIDs {
		name := artistNames[id]
		if _, exists := genresByArtist[name]; !exists {
			genresByArtist[name] = genresByID[id]
		}
	}

	return playlists, genresByArtist, nil
}

// trackKey builds the composite identity that links the same song across
// multiple yearly playlists.
func trackKey(track services.TrackRecord) string {
	return track.Name + "--" + strings.Join(track.Artists, ", ") + "--" + track.Album
}

// BuildMusicArtifacts derives the full music artifact set from the fetched
// playlists. genresByArtist maps artist names to genre lists; artists without
// an entry get an empty list.
func BuildMusicArtifacts(playlists []PlaylistTracks, genresByArtist map[string][]string) (*MusicArtifacts, error) {
	years := distinctYears(playlists)

	tracks, err := buildTracks(playlists)
	if err != nil {
		return nil, err
	}

	encoded, err := buildTracksEncoded(tracks, years)
	if err != nil {
		return nil, err
	}

	presence, err := buildArtistPresence(encoded, years, genresByArtist)
	if err != nil {
		return nil, err
	}

	counter, err := buildGenreYearCounter(presence, years)
	if err != nil {
		return nil, err
	}

	return &MusicArtifacts{
		Tracks:           tracks,
		TracksEncoded:    encoded,
		ArtistPresence:   presence,
		GenreYearCounter: counter,
		Years:            years,
	}, nil
}

func distinctYears(playlists []PlaylistTracks) []string {
	seen := make(map[string]bool)
	var years []string
	for _, pl := range playlists {
		if !seen[pl.Ref.Year] {
			seen[pl.Ref.Year] = true
			years = append(years, pl.Ref.Year)
		}
	}
	sort.Strings(years)
	return years
}

func buildTracks(playlists []PlaylistTracks) (*dataset.Frame, error) {
	frame := dataset.New(TracksSchema...)

	for _, pl := range playlists {
		for _, track := range pl.Tracks {
			releaseYear := track.ReleaseDate
			if len(releaseYear) > 4 {
				releaseYear = releaseYear[:4]
			}

			err := frame.Append(
				track.Name,
				track.Artists,
				track.Album,
				releaseYear,
				float64(track.DurationMS)/1000,
				track.ID,
				track.ArtistIDs,
				track.AlbumID,
				pl.Ref.Year,
				pl.Ref.Name,
				trackKey(track),
			)
			if err != nil {
				return nil, fmt.Errorf("tracks table: %w", err)
			}
		}
	}

	return frame, nil
}

func buildTracksEncoded(tracks *dataset.Frame, years []string) (*dataset.Frame, error) {
	firstRow := make(map[string]int)
	yearFlags := make(map[string]map[string]bool)
	var keys []string

	for i := 0; i < tracks.Len(); i++ {
		key := tracks.StringAt(i, "my_id")
		if _, seen := firstRow[key]; !seen {
			firstRow[key] = i
			yearFlags[key] = make(map[string]bool)
			keys = append(keys, key)
		}
		yearFlags[key][tracks.StringAt(i, "playlist_year")] = true
	}

	// Rows are ordered by the composite key so the table is independent of
	// playlist fetch order.
	sort.Strings(keys)

	frame := dataset.New(TracksEncodedSchema(years)...)
	for _, key := range keys {
		row := firstRow[key]

		values := []any{
			key,
			tracks.StringAt(row, "name"),
			tracks.StringsAt(row, "artists"),
			tracks.StringAt(row, "album"),
			tracks.StringAt(row, "release_year"),
			tracks.FloatAt(row, "duration"),
			tracks.StringAt(row, "track_id"),
			tracks.StringsAt(row, "artist_id"),
			tracks.StringAt(row, "album_id"),
		}

		occurrences := 0
		for _, year := range years {
			flag := 0
			if yearFlags[key][year] {
				flag = 1
			}
			occurrences += flag
			values = append(values, flag)
		}
		values = append(values, occurrences)

		if err := frame.Append(values...); err != nil {
			return nil, fmt.Errorf("tracks_encoded table: %w", err)
		}
	}

	return frame, nil
}

func buildArtistPresence(encoded *dataset.Frame, years []string, genresByArtist map[string][]string) (*dataset.Frame, error) {
	var artists []string
	counts := make(map[string]map[string]int)

	for i := 0; i < encoded.Len(); i++ {
		for _, artist := range encoded.StringsAt(i, "artists") {
			if _, seen := counts[artist]; !seen {
				counts[artist] = make(map[string]int)
				artists = append(artists, artist)
			}
			for _, year := range years {
				counts[artist][year] += encoded.IntAt(i, year)
			}
		}
	}

	frame := dataset.New(ArtistPresenceSchema(years)...)
	for _, artist := range artists {
		values := []any{artist}

		occurrences := 0
		for _, year := range years {
			n := counts[artist][year]
			occurrences += n
			values = append(values, n)
		}
		values = append(values, occurrences)

		genres := genresByArtist[artist]
		if genres == nil {
			genres = []string{}
		}
		values = append(values, genres)

		if err := frame.Append(values...); err != nil {
			return nil, fmt.Errorf("artist_presence table: %w", err)
		}
	}

	frame.SortStable(func(i, j int) bool {
		return frame.IntAt(i, "occurrences") > frame.IntAt(j, "occurrences")
	})

	return frame, nil
}

func buildGenreYearCounter(presence *dataset.Frame, years []string) (*dataset.Frame, error) {
	yearCounts := make(map[string]map[string]int, len(years))
	totals := make(map[string]int)
	var order []string

	for _, year := range years {
		yearCounts[year] = make(map[string]int)
		for i := 0; i < presence.Len(); i++ {
			weight := presence.IntAt(i, year)
			if weight == 0 {
				continue
			}
			for _, genre := range presence.StringsAt(i, "genres") {
				if totals[genre] == 0 {
					order = append(order, genre)
				}
				yearCounts[year][genre] += weight
				totals[genre] += weight
			}
		}
	}

	// Top genres by total count; ties resolve to the genre counted first.
	rank := make(map[string]int, len(order))
	for i, genre := range order {
		rank[genre] = i
	}
	top := append([]string(nil), order...)
	sort.SliceStable(top, func(i, j int) bool {
		if totals[top[i]] != totals[top[j]] {
			return totals[top[i]] > totals[top[j]]
		}
		return rank[top[i]] < rank[top[j]]
	})
	if len(top) > topGenreCount {
		top = top[:topGenreCount]
	}

	frame := dataset.New(GenreYearCounterSchema(top)...)
	for _, year := range years {
		values := []any{year}
		for _, genre := range top {
			values = append(values, yearCounts[year][genre])
		}
		if err := frame.Append(values...); err != nil {
			return nil, fmt.Errorf("genre_year_counter table: %w", err)
		}
	}

	return frame, nil
}

// Encode serializes every music artifact. All artifacts are encoded before
// any caller persists them, keeping the artifact set all-or-nothing.
func (a *MusicArtifacts) Encode() (map[string][]byte, error) {
	artifacts := make(map[string][]byte, len(MusicArtifactNames))

	frames := map[string]*dataset.Frame{
		ArtifactTracks:           a.Tracks,
		ArtifactTracksEncoded:    a.TracksEncoded,
		ArtifactArtistPresence:   a.ArtistPresence,
		ArtifactGenreYearCounter: a.GenreYearCounter,
	}
	for name, frame := range frames {
		data, err := frame.EncodeSplit()
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", name, err)
		}
		artifacts[name] = data
	}

	data, err := dataset.EncodeStrings(a.Years)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", ArtifactYears, err)
	}
	artifacts[ArtifactYears] = data

	return artifacts, nil
}

// DecodeMusicArtifacts parses a cached artifact set back into frames.
func DecodeMusicArtifacts(raw map[string][]byte) (*MusicArtifacts, error) {
	years, err := dataset.DecodeStrings(raw[ArtifactYears])
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", ArtifactYears, err)
	}

	tracks, err := dataset.DecodeSplit(raw[ArtifactTracks], TracksSchema)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", ArtifactTracks, err)
	}

	encoded, err := dataset.DecodeSplit(raw[ArtifactTracksEncoded], TracksEncodedSchema(years))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", ArtifactTracksEncoded, err)
	}

	presence, err := dataset.DecodeSplit(raw[ArtifactArtistPresence], ArtistPresenceSchema(years))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", ArtifactArtistPresence, err)
	}

	// The genre columns are data-dependent, so read them off the payload.
	counterColumns, err := dataset.SplitColumns(raw[ArtifactGenreYearCounter])
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", ArtifactGenreYearCounter, err)
	}
	if len(counterColumns) == 0 || counterColumns[0] != "year" {
		return nil, fmt.Errorf("decode %s: unexpected columns %v", ArtifactGenreYearCounter, counterColumns)
	}
	counter, err := dataset.DecodeSplit(raw[ArtifactGenreYearCounter], GenreYearCounterSchema(counterColumns[1:]))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", ArtifactGenreYearCounter, err)
	}

	return &MusicArtifacts{
		Tracks:           tracks,
		TracksEncoded:    encoded,
		ArtistPresence:   presence,
		GenreYearCounter: counter,
		Years:            years,
	}, nil
}
