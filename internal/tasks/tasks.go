package tasks

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/kindred/internal/models"
	"github.com/desertthunder/kindred/internal/ranking"
	"github.com/desertthunder/kindred/internal/services"
	"github.com/desertthunder/kindred/internal/shared"
)

// SeedLookup is the outcome of resolving one seed artist name.
type SeedLookup struct {
	Name   string         // Name as configured
	Artist *models.Artist // Resolved artist (nil on failure)
	Err    error          // Lookup failure
}

// DiscoveryOptions configures a full run.
type DiscoveryOptions struct {
	Seeds          []string              // Seed artist names
	SeedQuota      int                   // Top tracks per seed artist
	CandidateQuota int                   // Top tracks per candidate artist
	BatchSize      int                   // Items per feature or playlist request
	Columns        []string              // Feature columns used for ranking
	Ranking        ranking.Options       // Neighbour count and selection size
	Owner          string                // Playlist owner account
	Playlist       services.PlaylistSpec // Playlist to create
	DryRun         bool                  // Rank without publishing
}

// DiscoveryResult contains everything a run produced.
type DiscoveryResult struct {
	Lookups    []SeedLookup         // Per-name seed resolution
	Seeds      []models.Artist      // Resolved seeds
	Candidates []string             // Candidate artist IDs
	Tracks     []models.Track       // Sampled tracks, seeds first
	Table      *models.FeatureTable // Analysis population
	Ranking    *ranking.Result      // Scores and selection
	PlaylistID string               // Created playlist (empty on dry run or empty selection)
	Warnings   []string             // Non-fatal problems
}

// DiscoveryEngine runs the discovery pipeline against a catalog.
type DiscoveryEngine struct {
	catalog services.Catalog
	logger  *log.Logger
}

// NewDiscoveryEngine creates a new DiscoveryEngine.
func NewDiscoveryEngine(catalog services.Catalog, logger *log.Logger) *DiscoveryEngine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &DiscoveryEngine{catalog: catalog, logger: logger}
}

// sendProgress sends a progress update through the channel without blocking.
func (e *DiscoveryEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Run performs a full discovery run.
func (e *DiscoveryEngine) Run(ctx context.Context, progress chan<- ProgressUpdate, opts DiscoveryOptions) (*DiscoveryResult, error) {
	if e.catalog == nil {
		return nil, fmt.Errorf("%w: catalog service not initialized", shared.ErrServiceUnavailable)
	}
	if opts.BatchSize <= 0 || opts.BatchSize > shared.MaxBatchSize {
		opts.BatchSize = shared.MaxBatchSize
	}
	if len(opts.Columns) == 0 {
		cols, err := models.SelectColumns([]string{"duration_ms"})
		if err != nil {
			return nil, err
		}
		opts.Columns = cols
	}

	result := &DiscoveryResult{}

	result.Lookups = e.ResolveSeeds(ctx, progress, opts.Seeds)
	for _, l := range result.Lookups {
		if l.Err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("seed %q skipped: %v", l.Name, l.Err))
			continue
		}
		result.Seeds = append(result.Seeds, *l.Artist)
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}
	if len(result.Seeds) == 0 {
		return result, fmt.Errorf("%w: none of %d seed artists resolved", shared.ErrInsufficientData, len(opts.Seeds))
	}
	e.logger.Info("resolved seeds", "count", len(result.Seeds), "skipped", len(result.Lookups)-len(result.Seeds))

	candidates, err := e.Expand(ctx, progress, result.Seeds)
	if err != nil {
		return result, err
	}
	result.Candidates = candidates
	e.logger.Info("expanded candidates", "artists", len(candidates))

	seedIDs := artistIDs(result.Seeds)
	seedTracks, err := e.SampleTracks(ctx, progress, seedIDs, opts.SeedQuota, models.GroupSeed)
	if err != nil {
		return result, err
	}
	candidateTracks, err := e.SampleTracks(ctx, progress, candidates, opts.CandidateQuota, models.GroupCandidate)
	if err != nil {
		return result, err
	}
	result.Tracks = dedupeTracks(append(seedTracks, candidateTracks...))
	e.logger.Info("sampled tracks", "seed", len(seedTracks), "candidate", len(candidateTracks), "unique", len(result.Tracks))

	table, warnings, err := e.ExtractFeatures(ctx, progress, result.Tracks, opts.Columns, opts.BatchSize)
	result.Warnings = append(result.Warnings, warnings...)
	if err != nil {
		return result, err
	}
	result.Table = table

	e.sendProgress(progress, rankUpdate(table.Len(), table.Count(models.GroupCandidate)))
	ranked, err := ranking.Rank(table, opts.Ranking)
	if err != nil {
		return result, fmt.Errorf("ranking failed: %w", err)
	}
	result.Ranking = ranked
	e.logger.Info("ranked candidates", "rows", table.Len(), "selected", len(ranked.Selected), "neighbors", ranked.Neighbors)

	if opts.DryRun {
		e.logger.Info("dry run, skipping publish")
		return result, nil
	}

	if len(ranked.Selected) == 0 {
		msg := "no candidate tracks selected, playlist not created"
		e.logger.Warn(msg)
		result.Warnings = append(result.Warnings, msg)
		return result, nil
	}

	playlistID, err := e.Publish(ctx, progress, opts.Owner, opts.Playlist, ranked.SelectedURIs(), opts.BatchSize)
	result.PlaylistID = playlistID
	if err != nil {
		return result, err
	}

	return result, nil
}

// ResolveSeeds looks up each seed name. Failures are recorded per name and never abort the run.
func (e *DiscoveryEngine) ResolveSeeds(ctx context.Context, progress chan<- ProgressUpdate, names []string) []SeedLookup {
	lookups := make([]SeedLookup, 0, len(names))
	for i, name := range names {
		e.sendProgress(progress, resolveSeedUpdate(i+1, len(names), name))

		lookup := SeedLookup{Name: name}
		if err := ctx.Err(); err != nil {
			lookup.Err = err
			lookups = append(lookups, lookup)
			continue
		}

		artist, err := e.catalog.SearchArtist(ctx, name)
		if err != nil {
			e.logger.Warn("seed artist lookup failed", "name", name, "error", err)
			lookup.Err = err
		} else {
			lookup.Artist = artist
			e.logger.Debug("resolved seed", "name", name, "id", artist.ID)
		}
		lookups = append(lookups, lookup)
	}
	return lookups
}

// Expand fetches related artists for every seed and returns the deduplicated candidates.
func (e *DiscoveryEngine) Expand(ctx context.Context, progress chan<- ProgressUpdate, seeds []models.Artist) ([]string, error) {
	related := make([][]string, 0, len(seeds))
	for i, seed := range seeds {
		e.sendProgress(progress, expandUpdate(i+1, len(seeds), seed.Name))

		ids, err := e.catalog.RelatedArtists(ctx, seed.ID)
		if err != nil {
			return nil, fmt.Errorf("related artists for %s: %w", seed.Name, err)
		}
		related = append(related, ids)
	}

	candidates := ExpandCandidates(artistIDs(seeds), related)
	e.sendProgress(progress, expandedUpdate(len(candidates)))
	return candidates, nil
}

// ExpandCandidates unions the related-artist lists and removes every seed ID.
//
// Duplicates collapse to their first occurrence. The result may be empty.
func ExpandCandidates(seedIDs []string, related [][]string) []string {
	seeds := make(map[string]struct{}, len(seedIDs))
	for _, id := range seedIDs {
		seeds[id] = struct{}{}
	}

	seen := make(map[string]struct{})
	candidates := []string{}
	for _, ids := range related {
		for _, id := range ids {
			if _, isSeed := seeds[id]; isSeed {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			candidates = append(candidates, id)
		}
	}
	return candidates
}

// SampleTracks takes up to quota top tracks from each artist, preserving per-artist order.
func (e *DiscoveryEngine) SampleTracks(ctx context.Context, progress chan<- ProgressUpdate, artists []string, quota int, group models.SourceGroup) ([]models.Track, error) {
	if quota <= 0 {
		return nil, fmt.Errorf("%w: %s track quota must be positive", shared.ErrInvalidArgument, group)
	}

	tracks := make([]models.Track, 0, len(artists)*quota)
	for i, id := range artists {
		e.sendProgress(progress, sampleTracksUpdate(i+1, len(artists), id))

		uris, err := e.catalog.TopTracks(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("top tracks for %s artist %s: %w", group, id, err)
		}

		for _, uri := range uris[:min(quota, len(uris))] {
			tracks = append(tracks, models.Track{URI: uri, Group: group})
		}
	}
	return tracks, nil
}

// ExtractFeatures fetches feature vectors in batches and assembles the analysis table.
//
// A failed batch aborts with [shared.ErrFeatureFetch]. Tracks the catalog has no features for are
// dropped and reported as warnings.
func (e *DiscoveryEngine) ExtractFeatures(ctx context.Context, progress chan<- ProgressUpdate, tracks []models.Track, columns []string, batchSize int) (*models.FeatureTable, []string, error) {
	var warnings []string
	kept := make([]models.Track, 0, len(tracks))
	vectors := make([]models.FeatureVector, 0, len(tracks))

	batches := shared.Chunk(tracks, batchSize)
	for i, batch := range batches {
		e.sendProgress(progress, fetchFeaturesUpdate(i+1, len(batches), len(batch)))

		uris := make([]string, len(batch))
		for j, tr := range batch {
			uris[j] = tr.URI
		}

		got, err := e.catalog.AudioFeatures(ctx, uris)
		if err != nil {
			return nil, warnings, fmt.Errorf("%w: batch %d of %d: %v", shared.ErrFeatureFetch, i+1, len(batches), err)
		}
		if len(got) != len(batch) {
			return nil, warnings, fmt.Errorf("%w: batch %d returned %d entries for %d tracks", shared.ErrFeatureFetch, i+1, len(got), len(batch))
		}

		for j, v := range got {
			if v == nil {
				msg := fmt.Sprintf("no audio features for %s track %s, dropped", batch[j].Group, batch[j].URI)
				e.logger.Warn(msg)
				warnings = append(warnings, msg)
				continue
			}
			vec := *v
			vec.URI = batch[j].URI
			kept = append(kept, batch[j])
			vectors = append(vectors, vec)
		}
	}

	table, err := models.NewFeatureTable(columns, kept, vectors)
	if err != nil {
		return nil, warnings, fmt.Errorf("%w: %v", shared.ErrFeatureFetch, err)
	}
	return table, warnings, nil
}

// Publish creates the playlist and appends the URIs in batches, in order.
//
// The returned ID is set whenever the playlist was created, even if a later append failed.
func (e *DiscoveryEngine) Publish(ctx context.Context, progress chan<- ProgressUpdate, owner string, spec services.PlaylistSpec, uris []string, batchSize int) (string, error) {
	if owner == "" {
		return "", fmt.Errorf("%w: playlist owner (credentials.spotify.user_id)", shared.ErrMissingArgument)
	}

	playlistID, err := e.catalog.CreatePlaylist(ctx, owner, spec)
	if err != nil {
		return "", fmt.Errorf("create playlist: %w", err)
	}
	e.sendProgress(progress, createPlaylistUpdate(spec.Name, playlistID))
	e.logger.Info("playlist created", "id", playlistID, "name", spec.Name)

	batches := shared.Chunk(uris, batchSize)
	for i, batch := range batches {
		e.sendProgress(progress, addTracksUpdate(i+1, len(batches), len(batch)))
		if err := e.catalog.AddTracks(ctx, playlistID, batch); err != nil {
			return playlistID, fmt.Errorf("add tracks batch %d of %d: %w", i+1, len(batches), err)
		}
	}
	return playlistID, nil
}

func artistIDs(artists []models.Artist) []string {
	ids := make([]string, len(artists))
	for i, a := range artists {
		ids[i] = a.ID
	}
	return ids
}

// dedupeTracks keeps the first occurrence of each URI.
func dedupeTracks(tracks []models.Track) []models.Track {
	seen := make(map[string]struct{}, len(tracks))
	out := make([]models.Track, 0, len(tracks))
	for _, tr := range tracks {
		if _, dup := seen[tr.URI]; dup {
			continue
		}
		seen[tr.URI] = struct{}{}
		out = append(out, tr)
	}
	return out
}
