package shared

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Server.Port != 8050 {
			t.Errorf("expected default port 8050, got %d", config.Server.Port)
		}
		if config.Storage.DataDir != "saved_data" {
			t.Errorf("expected default data dir 'saved_data', got %s", config.Storage.DataDir)
		}
		if config.Server.Addr() != "127.0.0.1:8050" {
			t.Errorf("unexpected addr %s", config.Server.Addr())
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		t.Run("valid file", func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "config.toml")

			content := `
[server]
host = "0.0.0.0"
port = 9000
secret_key = "s3cret"

[storage]
data_dir = "/tmp/data"
database_path = ":memory:"

[credentials.spotify]
client_id = "abc"
client_secret = "def"
redirect_uri = "http://localhost:9000/auth/spotify/callback"
`
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				t.Fatalf("failed to write config: %v", err)
			}

			config, err := LoadConfig(path)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if config.Server.Host != "0.0.0.0" {
				t.Errorf("expected host 0.0.0.0, got %s", config.Server.Host)
			}
			if config.Credentials.Spotify.ClientID != "abc" {
				t.Errorf("expected spotify client id 'abc', got %s", config.Credentials.Spotify.ClientID)
			}

			creds := config.Credentials.Spotify.Map()
			if creds["client_secret"] != "def" {
				t.Errorf("expected credential map to carry client_secret, got %v", creds)
			}
		})

		t.Run("missing file", func(t *testing.T) {
			if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
				t.Error("expected error for missing config file")
			}
		})

		t.Run("invalid TOML", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.toml")
			if err := os.WriteFile(path, []byte("not [valid toml"), 0644); err != nil {
				t.Fatalf("failed to write config: %v", err)
			}
			if _, err := LoadConfig(path); err == nil {
				t.Error("expected error for invalid TOML")
			}
		})
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")

		if err := CreateConfigFile(path); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected config file to exist: %v", err)
		}

		if err := CreateConfigFile(path); err == nil {
			t.Error("expected error when file already exists")
		}
	})
}

func TestMigrations(t *testing.T) {
	db, err := NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	if err := RunMigrations(db); err != nil {
		t.Fatalf("expected migrations to apply, got %v", err)
	}

	// Running again is a no-op
	if err := RunMigrations(db); err != nil {
		t.Fatalf("expected re-run to be a no-op, got %v", err)
	}

	var name string
	err = db.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'notes'").Scan(&name)
	if err != nil {
		t.Fatalf("expected notes table to exist: %v", err)
	}
}
