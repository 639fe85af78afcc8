package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/kindred/internal/formatter"
	"github.com/desertthunder/kindred/internal/models"
	"github.com/desertthunder/kindred/internal/ranking"
	"github.com/desertthunder/kindred/internal/services"
	"github.com/desertthunder/kindred/internal/shared"
	"github.com/desertthunder/kindred/internal/tasks"
	"github.com/desertthunder/kindred/internal/ui"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const (
	envFile = ".env"
	// runTopTracks is how many selected tracks run prints.
	runTopTracks = 20
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config  *shared.Config
	catalog services.Catalog
	logger  *log.Logger
	output  io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Config and Catalog are normally resolved per command from the config file; setting them skips that step.
type RunnerOpts struct {
	Config  *shared.Config
	Catalog services.Catalog
	Logger  *log.Logger
	Output  io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:  opts.Config,
		catalog: opts.Catalog,
		logger:  opts.Logger,
		output:  opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		runCommand, rankCommand, configCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// loadConfig resolves configuration from the TOML file, .env and SPOTIFY_* variables, in that order.
func (r *Runner) loadConfig(configPath string) (*shared.Config, error) {
	if r.config != nil {
		return r.config, nil
	}

	if err := shared.LoadEnv(envFile); err != nil {
		r.logger.Warn("ignoring env file", "error", err)
	}

	var config *shared.Config
	if _, err := os.Stat(configPath); err == nil {
		if config, err = shared.LoadConfig(configPath); err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrInvalidConfig, err)
		}
	} else {
		r.logger.Info("config file not found, using defaults", "path", configPath)
		config = shared.DefaultConfig()
	}

	config.ApplyEnv()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// newCatalog builds an authenticated Spotify client from the credentials in config.
func (r *Runner) newCatalog(ctx context.Context, config *shared.Config, logger *log.Logger) (services.Catalog, error) {
	if r.catalog != nil {
		return r.catalog, nil
	}

	creds := config.Credentials.Spotify.Map()
	spotify, err := services.NewSpotifyService(creds, services.SpotifyOptions{
		BaseURL:      config.Catalog.BaseURL,
		Market:       config.Catalog.Market,
		RateLimit:    config.Catalog.RateLimit,
		MaxRetries:   config.Catalog.MaxRetries,
		RetryBackoff: time.Duration(config.Catalog.RetryBackoffMS) * time.Millisecond,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Spotify service: %w", err)
	}

	spotify.SetTokenRefreshCallback(func(token *oauth2.Token) {
		logger.Info("access token refreshed", "expiry", token.Expiry.Format(time.RFC3339))
	})

	if err := spotify.Authenticate(ctx, creds); err != nil {
		return nil, fmt.Errorf("failed to authenticate with Spotify: %w", err)
	}
	return spotify, nil
}

// Run executes a discovery run and reports the result.
func (r *Runner) Run(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	level := shared.ParseLogLevel(config.Log.Level)
	if cmd.Bool("verbose") {
		level = log.DebugLevel
	}
	shared.SetLogLevel(r.logger, level)

	if seeds := cmd.StringSlice("seed"); len(seeds) > 0 {
		config.Discovery.Seeds = seeds
	}
	if name := cmd.String("name"); name != "" {
		config.Playlist.Name = name
	}
	if cmd.IsSet("limit") {
		if limit := cmd.Int("limit"); limit > 0 {
			config.Discovery.PlaylistSize = limit
		} else {
			return fmt.Errorf("%w: --limit must be positive", shared.ErrInvalidArgument)
		}
	}

	dryRun := cmd.Bool("dry-run")
	if len(config.Discovery.Seeds) == 0 {
		return fmt.Errorf("%w: no seed artists (use --seed or discovery.seeds)", shared.ErrMissingArgument)
	}
	if !dryRun && config.Credentials.Spotify.UserID == "" {
		return fmt.Errorf("%w: credentials.spotify.user_id is required to publish (or use --dry-run)", shared.ErrMissingArgument)
	}

	columns, err := models.SelectColumns(config.Discovery.ExcludeFeatures)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidConfig, err)
	}

	runID := shared.GenerateID()
	logger := shared.WithLogger(r.logger, "run", runID)
	logger.Info("starting discovery", "seeds", len(config.Discovery.Seeds), "dry_run", dryRun)

	catalog, err := r.newCatalog(ctx, config, logger)
	if err != nil {
		return err
	}

	engine := tasks.NewDiscoveryEngine(catalog, logger)
	opts := tasks.DiscoveryOptions{
		Seeds:          config.Discovery.Seeds,
		SeedQuota:      config.Discovery.SeedQuota,
		CandidateQuota: config.Discovery.CandidateQuota,
		BatchSize:      config.Catalog.BatchSize,
		Columns:        columns,
		Ranking: ranking.Options{
			Neighbors: config.Discovery.Neighbors,
			Limit:     config.Discovery.PlaylistSize,
		},
		Owner: config.Credentials.Spotify.UserID,
		Playlist: services.PlaylistSpec{
			Name:        config.Playlist.Name,
			Description: config.Playlist.Description,
			Public:      config.Playlist.Public,
		},
		DryRun: dryRun,
	}

	progress := make(chan tasks.ProgressUpdate, 64)
	done := make(chan struct{})
	go ui.NewPrinter(r.output, cmd.Bool("quiet")).Watch(progress, done)

	result, runErr := engine.Run(ctx, progress, opts)
	close(progress)
	<-done

	if path := cmd.String("save-features"); path != "" && result != nil && result.Table != nil {
		if err := formatter.WriteFeatureTable(path, result.Table); err != nil {
			logger.Error("failed to save feature table", "path", path, "error", err)
		} else {
			logger.Info("feature table saved", "path", path)
		}
	}

	if runErr != nil {
		if result != nil && result.PlaylistID != "" {
			logger.Warn("playlist is incomplete", "id", result.PlaylistID)
		}
		return fmt.Errorf("discovery failed: %w", runErr)
	}

	if err := r.writePlainln("%s", ui.RenderResult(result, dryRun)); err != nil {
		return err
	}

	return r.report(result.Table, result.Ranking, cmd.Bool("summary"), runTopTracks, cmd.String("export"))
}

// Rank re-ranks a saved feature table.
func (r *Runner) Rank(ctx context.Context, cmd *cli.Command) error {
	table, err := formatter.ReadFeatureTable(cmd.String("input"))
	if err != nil {
		return err
	}

	neighbors, limit := cmd.Int("neighbors"), cmd.Int("limit")
	if neighbors <= 0 || limit <= 0 {
		return fmt.Errorf("%w: --neighbors and --limit must be positive", shared.ErrInvalidArgument)
	}

	result, err := ranking.Rank(table, ranking.Options{Neighbors: neighbors, Limit: limit})
	if err != nil {
		return fmt.Errorf("ranking failed: %w", err)
	}
	r.logger.Debug("ranked feature table", "rows", table.Len(), "selected", len(result.Selected))

	if cmd.Bool("json") {
		if err := r.writeJSON(formatter.BuildReport(table, result), cmd.Bool("pretty")); err != nil {
			return err
		}
		return r.report(table, result, false, -1, cmd.String("export"))
	}

	r.writePlainHeader(fmt.Sprintf("Ranked %d of %d candidates (k=%d)",
		len(result.Selected), table.Count(models.GroupCandidate), result.Neighbors))
	return r.report(table, result, cmd.Bool("summary"), cmd.Int("top"), cmd.String("export"))
}

// report prints the optional diagnostics and writes the export file.
//
// top < 0 skips the ranking table; top == 0 prints every selected track.
func (r *Runner) report(table *models.FeatureTable, result *ranking.Result, summary bool, top int, exportPath string) error {
	if table == nil || result == nil {
		return nil
	}

	if top >= 0 {
		if out := formatter.RankingTable(result, top); out != "" {
			if err := r.writePlain("%s\n", out); err != nil {
				return err
			}
		}
	}

	if summary {
		if err := r.writePlainln("%s\n%s", ui.Title("Feature summary"), formatter.FeatureSummary(table)); err != nil {
			return err
		}
		if err := r.writePlainln("%s\n%s", ui.Title("Group comparison"), formatter.GroupComparison(table, result)); err != nil {
			return err
		}
	}

	if exportPath != "" {
		if err := formatter.WriteExport(exportPath, table, result); err != nil {
			return err
		}
		r.logger.Info("ranking exported", "path", exportPath)
	}
	return nil
}

// ConfigInit writes the example configuration file.
func (r *Runner) ConfigInit(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	if err := shared.CreateConfigFile(configPath); err != nil {
		return err
	}

	if err := r.writePlainln("%s", ui.OK("✓ Config written to "+configPath)); err != nil {
		return err
	}
	return r.writePlain("Add your Spotify credentials and seeds, then run: kindred run --dry-run\n")
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
