package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/kindred/internal/formatter"
	"github.com/desertthunder/kindred/internal/models"
	"github.com/desertthunder/kindred/internal/shared"
	tu "github.com/desertthunder/kindred/internal/testing"
	"github.com/urfave/cli/v3"
)

func newMockCatalog() *tu.MockCatalog {
	m := &tu.MockCatalog{
		Artists: map[string]*models.Artist{
			"Alpha": {Name: "Alpha", ID: "a1"},
			"Beta":  {Name: "Beta", ID: "a2"},
		},
		Related: map[string][]string{
			"a1": {"c1", "c2"},
			"a2": {"c2", "c3", "a1"},
		},
		Tracks:   map[string][]string{},
		Features: map[string]*models.FeatureVector{},
	}

	n := 0
	for _, artist := range []string{"a1", "a2", "c1", "c2", "c3"} {
		for i := range 10 {
			uri := fmt.Sprintf("spotify:track:%s-%d", artist, i)
			m.Tracks[artist] = append(m.Tracks[artist], uri)
			m.Features[uri] = tu.Vector(float64(n % 17))
			n++
		}
	}
	return m
}

func newTestRunner(t *testing.T, catalog *tu.MockCatalog) (*Runner, *bytes.Buffer) {
	t.Helper()
	config := shared.DefaultConfig()
	config.Credentials.Spotify.UserID = "listener"

	output := &bytes.Buffer{}
	opts := RunnerOpts{
		Config: config,
		Logger: shared.NewLogger(io.Discard),
		Output: output,
	}
	if catalog != nil {
		opts.Catalog = catalog
	}
	return NewRunner(opts), output
}

func runApp(r *Runner, args ...string) error {
	app := &cli.Command{
		Name:      "kindred",
		Commands:  r.register(),
		Writer:    io.Discard,
		ErrWriter: io.Discard,
	}
	return app.Run(context.Background(), append([]string{"kindred"}, args...))
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			catalog := newMockCatalog()

			runner := NewRunner(RunnerOpts{
				Config:  config,
				Catalog: catalog,
				Logger:  logger,
				Output:  output,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.catalog != catalog {
				t.Error("expected catalog to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Logger: nil})
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: nil})
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

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(make(chan int), false)
			if err == nil || !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("Hello %s", "World"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "Hello World" {
				t.Errorf("expected 'Hello World', got %q", output.String())
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})
			if err := runner.writePlainln("test"); err == nil {
				t.Fatal("expected error from failing writer")
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		commands := NewRunner(RunnerOpts{}).register()

		names := map[string]bool{}
		for _, c := range commands {
			names[c.Name] = true
		}
		for _, want := range []string{"run", "rank", "config"} {
			if !names[want] {
				t.Errorf("expected %s command to be registered", want)
			}
		}
	})
}

func TestRunCommand(t *testing.T) {
	t.Run("publishes playlist", func(t *testing.T) {
		catalog := newMockCatalog()
		runner, output := newTestRunner(t, catalog)
		dir := t.TempDir()
		exportPath := filepath.Join(dir, "ranking.csv")
		featuresPath := filepath.Join(dir, "features.json")

		err := runApp(runner, "run",
			"--seed", "Alpha", "--seed", "Beta",
			"--name", "Fresh Finds",
			"--limit", "8",
			"--export", exportPath,
			"--save-features", featuresPath,
			"--summary",
		)
		if err != nil {
			t.Fatalf("run failed: %v", err)
		}

		if len(catalog.Created) != 1 || catalog.Created[0].Name != "Fresh Finds" {
			t.Errorf("unexpected playlists %+v", catalog.Created)
		}
		if got := len(catalog.AddedURIs()); got != 8 {
			t.Errorf("expected 8 published tracks, got %d", got)
		}

		out := output.String()
		for _, want := range []string{"Playlist created", "Feature summary", "Group comparison", "Found 3 candidate artists"} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q", want)
			}
		}

		tu.AssertFileExists(t, exportPath)
		table, err := formatter.ReadFeatureTable(featuresPath)
		if err != nil {
			t.Fatalf("saved feature table unreadable: %v", err)
		}
		if table.Count(models.GroupCandidate) != 15 || table.Count(models.GroupSeed) != 20 {
			t.Errorf("unexpected saved table: %d seed, %d candidate rows",
				table.Count(models.GroupSeed), table.Count(models.GroupCandidate))
		}
	})

	t.Run("dry run does not publish", func(t *testing.T) {
		catalog := newMockCatalog()
		runner, output := newTestRunner(t, catalog)
		runner.config.Credentials.Spotify.UserID = ""

		if err := runApp(runner, "run", "--seed", "Alpha", "--dry-run", "--quiet"); err != nil {
			t.Fatalf("run failed: %v", err)
		}
		if len(catalog.Created) != 0 {
			t.Error("dry run should not create a playlist")
		}
		if !strings.Contains(output.String(), "Dry run complete") {
			t.Errorf("unexpected output %q", output.String())
		}
		if strings.Contains(output.String(), "Fetching") {
			t.Error("quiet run should hide progress")
		}
	})

	tests := []struct {
		name    string
		setup   func(*Runner, *tu.MockCatalog)
		args    []string
		wantErr error
	}{
		{
			name:    "no seeds",
			args:    []string{"run"},
			wantErr: shared.ErrMissingArgument,
		},
		{
			name:    "publish without owner",
			setup:   func(r *Runner, _ *tu.MockCatalog) { r.config.Credentials.Spotify.UserID = "" },
			args:    []string{"run", "--seed", "Alpha"},
			wantErr: shared.ErrMissingArgument,
		},
		{
			name:    "invalid limit",
			args:    []string{"run", "--seed", "Alpha", "--limit", "0"},
			wantErr: shared.ErrInvalidArgument,
		},
		{
			name:    "no seed resolves",
			args:    []string{"run", "--seed", "Nobody"},
			wantErr: shared.ErrInsufficientData,
		},
		{
			name:    "feature batch failure",
			setup:   func(_ *Runner, c *tu.MockCatalog) { c.FeaturesErr = shared.ErrServiceUnavailable },
			args:    []string{"run", "--seed", "Alpha"},
			wantErr: shared.ErrFeatureFetch,
		},
		{
			name:    "unknown excluded feature",
			setup:   func(r *Runner, _ *tu.MockCatalog) { r.config.Discovery.ExcludeFeatures = []string{"bogus"} },
			args:    []string{"run", "--seed", "Alpha"},
			wantErr: shared.ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog := newMockCatalog()
			runner, _ := newTestRunner(t, catalog)
			if tt.setup != nil {
				tt.setup(runner, catalog)
			}

			err := runApp(runner, tt.args...)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
			if len(catalog.Created) != 0 {
				t.Error("failed run should not create a playlist")
			}
		})
	}
}

func TestRankCommand(t *testing.T) {
	dir := t.TempDir()
	featuresPath := filepath.Join(dir, "features.json")

	catalog := newMockCatalog()
	runner, _ := newTestRunner(t, catalog)
	if err := runApp(runner, "run", "--seed", "Alpha", "--seed", "Beta", "--dry-run", "--quiet", "--save-features", featuresPath); err != nil {
		t.Fatalf("seeding feature table failed: %v", err)
	}

	t.Run("prints ranking", func(t *testing.T) {
		runner, output := newTestRunner(t, nil)
		if err := runApp(runner, "rank", "--input", featuresPath, "--limit", "5", "--top", "3"); err != nil {
			t.Fatalf("rank failed: %v", err)
		}
		if !strings.Contains(output.String(), "Ranked 5 of 15 candidates (k=5)") {
			t.Errorf("unexpected header in %q", output.String())
		}
	})

	t.Run("json output and export", func(t *testing.T) {
		runner, output := newTestRunner(t, nil)
		exportPath := filepath.Join(dir, "ranking.json")

		if err := runApp(runner, "rank", "--input", featuresPath, "--json", "--export", exportPath); err != nil {
			t.Fatalf("rank failed: %v", err)
		}

		var report formatter.Report
		if err := json.Unmarshal(output.Bytes(), &report); err != nil {
			t.Fatalf("invalid JSON output: %v", err)
		}
		if len(report.Rows) != 35 {
			t.Errorf("expected 35 rows, got %d", len(report.Rows))
		}
		tu.AssertFileExists(t, exportPath)
	})

	t.Run("invalid neighbors", func(t *testing.T) {
		runner, _ := newTestRunner(t, nil)
		err := runApp(runner, "rank", "--input", featuresPath, "--neighbors", "0")
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("malformed input", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		tu.MustWriteFile(t, bad, "not json")

		runner, _ := newTestRunner(t, nil)
		if err := runApp(runner, "rank", "--input", bad); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	runner, output := newTestRunner(t, nil)

	if err := runApp(runner, "config", "init", "--config", path); err != nil {
		t.Fatalf("config init failed: %v", err)
	}
	tu.AssertFileExists(t, path)
	if !strings.Contains(tu.MustReadFile(t, path), "[discovery]") {
		t.Error("config file missing discovery section")
	}
	if !strings.Contains(output.String(), "Config written") {
		t.Errorf("unexpected output %q", output.String())
	}

	if err := runApp(runner, "config", "init", "--config", path); err == nil {
		t.Error("expected error when config already exists")
	}

	t.Run("failing writer", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		runner := NewRunner(RunnerOpts{
			Config: shared.DefaultConfig(),
			Logger: shared.NewLogger(io.Discard),
			Output: &tu.FWriter{},
		})

		err := runApp(runner, "config", "init", "--config", path)
		if err == nil || !strings.Contains(err.Error(), "failed to write output") {
			t.Errorf("expected write error, got %v", err)
		}
		tu.AssertFileExists(t, path)
	})
}

func TestLoadConfig(t *testing.T) {
	t.Run("file with env overrides", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		tu.MustWriteFile(t, path, `
[credentials.spotify]
client_id = "file-id"
client_secret = "file-secret"

[discovery]
seeds = ["Alpha"]
`)
		t.Setenv("SPOTIFY_CLIENT_ID", "env-id")

		runner := NewRunner(RunnerOpts{Logger: shared.NewLogger(io.Discard)})
		config, err := runner.loadConfig(path)
		if err != nil {
			t.Fatalf("loadConfig() error = %v", err)
		}
		if config.Credentials.Spotify.ClientID != "env-id" {
			t.Errorf("expected env override, got %q", config.Credentials.Spotify.ClientID)
		}
		if config.Credentials.Spotify.ClientSecret != "file-secret" {
			t.Errorf("expected file value, got %q", config.Credentials.Spotify.ClientSecret)
		}
		if config.Discovery.SeedQuota != 10 {
			t.Errorf("expected default seed quota, got %d", config.Discovery.SeedQuota)
		}
	})

	t.Run("invalid values", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		tu.MustWriteFile(t, path, "[discovery]\nseed_quota = 2\ncandidate_quota = 5\n")

		runner := NewRunner(RunnerOpts{Logger: shared.NewLogger(io.Discard)})
		if _, err := runner.loadConfig(path); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("missing file falls back to defaults", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{Logger: shared.NewLogger(io.Discard)})
		config, err := runner.loadConfig(filepath.Join(t.TempDir(), "absent.toml"))
		if err != nil {
			t.Fatalf("loadConfig() error = %v", err)
		}
		if config.Playlist.Name == "" {
			t.Error("expected default playlist name")
		}
	})
}

func TestNewCatalog(t *testing.T) {
	t.Run("missing credentials", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{Logger: shared.NewLogger(io.Discard)})
		_, err := runner.newCatalog(context.Background(), shared.DefaultConfig(), runner.logger)
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("missing tokens", func(t *testing.T) {
		config := shared.DefaultConfig()
		config.Credentials.Spotify.ClientID = "id"
		config.Credentials.Spotify.ClientSecret = "secret"

		runner := NewRunner(RunnerOpts{Logger: shared.NewLogger(io.Discard)})
		_, err := runner.newCatalog(context.Background(), config, runner.logger)
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("authenticated client", func(t *testing.T) {
		config := shared.DefaultConfig()
		config.Credentials.Spotify.ClientID = "id"
		config.Credentials.Spotify.ClientSecret = "secret"
		config.Credentials.Spotify.AccessToken = "token"

		runner := NewRunner(RunnerOpts{Logger: shared.NewLogger(io.Discard)})
		catalog, err := runner.newCatalog(context.Background(), config, runner.logger)
		if err != nil {
			t.Fatalf("newCatalog() error = %v", err)
		}
		if catalog.Name() != "Spotify" {
			t.Errorf("unexpected catalog %q", catalog.Name())
		}
	})
}
