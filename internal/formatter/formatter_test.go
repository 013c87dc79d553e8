package formatter

import (
	"strings"
	"testing"
	"time"

	"github.com/khukmani/bettervisuals/internal/dataset"
)

func testFrame(t *testing.T) *dataset.Frame {
	t.Helper()

	frame := dataset.New(
		dataset.Column{Name: "name", Kind: dataset.String},
		dataset.Column{Name: "artists", Kind: dataset.StringList},
		dataset.Column{Name: "duration", Kind: dataset.Float},
		dataset.Column{Name: "plays", Kind: dataset.Int},
		dataset.Column{Name: "added_at", Kind: dataset.Time},
	)

	added := time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC)
	if err := frame.Append("Song|One", []string{"X", "Y"}, 180.5, 3, added); err != nil {
		t.Fatalf("failed to build frame: %v", err)
	}
	return frame
}

func TestExportToCSV(t *testing.T) {
	data, err := ExportToCSV(testFrame(t))
	if err != nil {
		t.Fatalf("ExportToCSV failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header plus one record, got %d lines", len(lines))
	}
	if lines[0] != "name,artists,duration,plays,added_at" {
		t.Errorf("unexpected header: %s", lines[0])
	}
	if !strings.Contains(lines[1], "X; Y") {
		t.Errorf("expected joined artist list, got %s", lines[1])
	}
	if !strings.Contains(lines[1], "180.5") {
		t.Errorf("expected duration 180.5, got %s", lines[1])
	}
	if !strings.Contains(lines[1], "2023-04-01T00:00:00.000Z") {
		t.Errorf("expected artifact time format, got %s", lines[1])
	}
}

func TestExportToMarkdown(t *testing.T) {
	data, err := ExportToMarkdown(testFrame(t), "Tracks")
	if err != nil {
		t.Fatalf("ExportToMarkdown failed: %v", err)
	}
	text := string(data)

	if !strings.HasPrefix(text, "# Tracks\n") {
		t.Errorf("expected title heading, got %q", text[:20])
	}
	if !strings.Contains(text, "**Rows**: 1") {
		t.Error("expected row count line")
	}
	if !strings.Contains(text, "| name | artists | duration | plays | added_at |") {
		t.Error("expected table header row")
	}
	if !strings.Contains(text, "Song\\|One") {
		t.Error("expected pipe characters in cells to be escaped")
	}
}

func TestExportToText(t *testing.T) {
	data, err := ExportToText(testFrame(t), "Tracks")
	if err != nil {
		t.Fatalf("ExportToText failed: %v", err)
	}
	text := string(data)

	if !strings.Contains(text, "name\tartists\tduration\tplays\tadded_at") {
		t.Error("expected tab-separated header")
	}
	if !strings.Contains(text, "Song|One\tX; Y\t180.5\t3\t") {
		t.Errorf("expected tab-separated record, got %q", text)
	}
}

func TestExport(t *testing.T) {
	frame := testFrame(t)

	for _, format := range []string{"csv", "markdown", "text"} {
		t.Run(format, func(t *testing.T) {
			data, err := Export(frame, format, "Tracks")
			if err != nil {
				t.Fatalf("Export failed: %v", err)
			}
			if len(data) == 0 {
				t.Error("expected non-empty export")
			}
			if ContentType(format) == "" {
				t.Errorf("expected a content type for %s", format)
			}
		})
	}

	if _, err := Export(frame, "xlsx", ""); err == nil {
		t.Error("expected error for unsupported format")
	}
	if ContentType("xlsx") != "" {
		t.Error("expected empty content type for unknown format")
	}
}
