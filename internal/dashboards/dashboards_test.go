package dashboards

import (
	"testing"

	"github.com/khukmani/bettervisuals/internal/tasks"
)

func TestManifest(t *testing.T) {
	t.Run("validates", func(t *testing.T) {
		if err := Validate(); err != nil {
			t.Fatalf("expected manifest to validate, got %v", err)
		}
	})

	t.Run("lookup", func(t *testing.T) {
		d, ok := Lookup(SlugTop100)
		if !ok {
			t.Fatal("expected top100 dashboard to exist")
		}
		if d.Folder != "top_100" || d.Storage != StorageFolder {
			t.Errorf("unexpected storage for top100: %+v", d)
		}
		if len(d.Artifacts) != len(tasks.MusicArtifactNames) {
			t.Errorf("expected the full music artifact set, got %v", d.Artifacts)
		}

		if _, ok := Lookup("nope"); ok {
			t.Error("expected unknown slug to miss")
		}
	})

	t.Run("All returns a copy", func(t *testing.T) {
		all := All()
		if len(all) != 4 {
			t.Fatalf("expected 4 dashboards, got %d", len(all))
		}
		all[0].Slug = "mutated"
		if registry[0].Slug == "mutated" {
			t.Error("expected All to return a copy of the manifest")
		}
	})
}

func TestSampleFrame(t *testing.T) {
	frame, err := SampleFrame()
	if err != nil {
		t.Fatalf("SampleFrame failed: %v", err)
	}

	if frame.Len() == 0 {
		t.Fatal("expected sample rows")
	}
	if got := frame.StringAt(0, "species"); got != "setosa" {
		t.Errorf("unexpected first species %q", got)
	}
	if got := frame.FloatAt(0, "sepal_length"); got != 5.1 {
		t.Errorf("unexpected first sepal length %v", got)
	}
}

func TestPayloads(t *testing.T) {
	t.Run("sample", func(t *testing.T) {
		payload, err := SamplePayload()
		if err != nil {
			t.Fatalf("SamplePayload failed: %v", err)
		}

		records, ok := payload["iris"].([]map[string]any)
		if !ok || len(records) == 0 {
			t.Fatalf("expected iris records, got %T", payload["iris"])
		}
		if records[0]["species"] != "setosa" {
			t.Errorf("unexpected first record %v", records[0])
		}
	})

	t.Run("records render times in artifact format", func(t *testing.T) {
		frame, err := SampleFrame()
		if err != nil {
			t.Fatalf("SampleFrame failed: %v", err)
		}

		records := Records(frame)
		if len(records) != frame.Len() {
			t.Fatalf("expected %d records, got %d", frame.Len(), len(records))
		}
	})
}
