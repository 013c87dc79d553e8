package dashboards

import (
	"github.com/khukmani/bettervisuals/internal/dataset"
	"github.com/khukmani/bettervisuals/internal/tasks"
)

// Records converts a frame into the row-object form chart libraries consume.
// Times are rendered in the artifact time format.
func Records(f *dataset.Frame) []map[string]any {
	columns := f.Columns()
	records := make([]map[string]any, f.Len())

	for i := 0; i < f.Len(); i++ {
		record := make(map[string]any, len(columns))
		for j, col := range columns {
			v := f.ValueAt(i, j)
			if col.Kind == dataset.Time {
				record[col.Name] = f.TimeAt(i, col.Name).Format(dataset.TimeLayout)
			} else {
				record[col.Name] = v
			}
		}
		records[i] = record
	}

	return records
}

// MusicPayload shapes the music artifact set for the dashboard front end.
func MusicPayload(a *tasks.MusicArtifacts) map[string]any {
	return map[string]any{
		"years":              a.Years,
		"tracks":             Records(a.Tracks),
		"tracks_encoded":     Records(a.TracksEncoded),
		"artist_presence":    Records(a.ArtistPresence),
		"genre_year_counter": Records(a.GenreYearCounter),
	}
}

// FinancePayload shapes one date-range view of the finance tables.
func FinancePayload(view *tasks.FinanceView) map[string]any {
	return map[string]any{
		"months":           view.Months,
		"monthly":          Records(view.Monthly),
		"account_balances": Records(view.AccountBalances),
		"category_outflow": Records(view.CategoryOutflow),
	}
}

// SamplePayload shapes the built-in demo dataset.
func SamplePayload() (map[string]any, error) {
	frame, err := SampleFrame()
	if err != nil {
		return nil, err
	}
	return map[string]any{"iris": Records(frame)}, nil
}
