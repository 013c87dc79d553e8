package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/khukmani/bettervisuals/internal/shared"
	"github.com/khukmani/bettervisuals/internal/store"
	tu "github.com/khukmani/bettervisuals/internal/testing"
	"github.com/urfave/cli/v3"
)

// run executes one CLI invocation against the runner's command tree.
func run(t *testing.T, runner *Runner, args ...string) error {
	t.Helper()

	app := &cli.Command{
		Name:     "bettervisuals",
		Commands: runner.register(),
	}
	return app.Run(context.Background(), append([]string{"bettervisuals"}, args...))
}

func testConfig(t *testing.T) *shared.Config {
	t.Helper()

	config := shared.DefaultConfig()
	config.Storage.DataDir = t.TempDir()
	config.Storage.DatabasePath = filepath.Join(t.TempDir(), "test.db")
	return config
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}

			runner := NewRunner(RunnerOpts{
				Config:     config,
				ConfigPath: "/test/path/config.toml",
				Logger:     logger,
				Output:     output,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if output.String() != expected {
				t.Errorf("expected %q, got %q", expected, output.String())
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			// channels cannot be marshaled to JSON
			err := runner.writeJSON(make(chan int), false)
			if err == nil {
				t.Fatal("expected error for non-serializable data")
			}
			if !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil {
				t.Fatal("expected error writing newline")
			}
			if !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "hello world" {
				t.Errorf("expected 'hello world', got %q", output.String())
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")
			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		if len(commands) == 0 {
			t.Error("expected at least one command to be registered")
		}
		for i, cmd := range commands {
			if cmd == nil {
				t.Errorf("command at index %d is nil", i)
			}
		}
	})
}

func TestConfigInit(t *testing.T) {
	t.Run("creates the config file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

		if err := run(t, runner, "config", "init", "--output", path); err != nil {
			t.Fatalf("config init failed: %v", err)
		}

		tu.AssertFileExists(t, path)
		content := tu.MustReadFile(t, path)
		if !strings.Contains(content, "[credentials.google]") {
			t.Error("expected the template to carry the google credentials section")
		}
	})

	t.Run("refuses to overwrite", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(path, []byte("# existing"), 0644); err != nil {
			t.Fatalf("failed to seed file: %v", err)
		}

		runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})
		if err := run(t, runner, "config", "init", "--output", path); err == nil {
			t.Error("expected an error for an existing config file")
		}
	})
}

func TestSetupDatabase(t *testing.T) {
	config := testConfig(t)
	runner := NewRunner(RunnerOpts{Config: config, Output: &bytes.Buffer{}})

	if err := run(t, runner, "setup", "database"); err != nil {
		t.Fatalf("setup database failed: %v", err)
	}

	tu.AssertFileExists(t, config.Storage.DatabasePath)

	db, err := shared.NewDatabase(config.Storage.DatabasePath)
	if err != nil {
		t.Fatalf("failed to reopen database: %v", err)
	}
	defer db.Close()

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("expected migrations table: %v", err)
	}
	if count == 0 {
		t.Error("expected applied migrations")
	}
}

func TestCacheCommands(t *testing.T) {
	config := testConfig(t)
	artifacts := store.NewArtifactStore(config.Storage.DataDir)

	seed := map[string][]byte{
		"register.json": []byte(`{}`),
		"budget.json":   []byte(`{}`),
	}
	if err := artifacts.WriteAll("ynab", "user-1", seed); err != nil {
		t.Fatalf("failed to seed cache: %v", err)
	}

	t.Run("status reports cached dashboards", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Config: config, Output: output})

		if err := run(t, runner, "cache", "status", "--user", "user-1", "--pretty=false"); err != nil {
			t.Fatalf("cache status failed: %v", err)
		}

		var report []map[string]any
		if err := json.Unmarshal(output.Bytes(), &report); err != nil {
			t.Fatalf("status output is not JSON: %v\n%s", err, output.String())
		}

		cachedBy := map[string]bool{}
		for _, entry := range report {
			cachedBy[entry["dashboard"].(string)] = entry["cached"].(bool)
		}
		if !cachedBy["budget"] {
			t.Error("expected the budget cache to be reported")
		}
		if cachedBy["top100"] {
			t.Error("expected no music cache")
		}
	})

	t.Run("status rejects unknown dashboards", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{Config: config, Output: &bytes.Buffer{}})
		if err := run(t, runner, "cache", "status", "--user", "user-1", "--dashboard", "nope"); err == nil {
			t.Error("expected an error for an unknown dashboard")
		}
	})

	t.Run("clear drops the cache", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{Config: config, Output: &bytes.Buffer{}})

		if err := run(t, runner, "cache", "clear", "--user", "user-1", "--dashboard", "budget"); err != nil {
			t.Fatalf("cache clear failed: %v", err)
		}

		if artifacts.Exists("ynab", "user-1", []string{"register.json", "budget.json"}) {
			t.Error("expected the cache to be gone")
		}
	})
}
