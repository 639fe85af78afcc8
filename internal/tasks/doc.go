// Package tasks runs the discovery pipeline against a music catalog with real-time progress reporting.
//
// # Core Operations
//
// [DiscoveryEngine.Run] executes the phases in order:
//
//  1. [DiscoveryEngine.ResolveSeeds] : look up each seed name
//     - Unresolved names are logged and skipped
//     - The run fails with [shared.ErrInsufficientData] only when none resolve
//
//  2. [DiscoveryEngine.Expand] : union of related artists, seeds removed
//
//  3. [DiscoveryEngine.SampleTracks] : per-artist top track prefixes
//     - Seed and candidate quotas differ
//     - Duplicate URIs keep their first occurrence, so a seed track is never a candidate
//
//  4. [DiscoveryEngine.ExtractFeatures] : batched audio features into a [models.FeatureTable]
//
//  5. Rank : [ranking.Rank] over the pooled table
//
//  6. [DiscoveryEngine.Publish] : create the playlist and append tracks in batches
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data.
// Updates use select with default to prevent blocking.
package tasks
