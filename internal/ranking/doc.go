// Package ranking scores candidate tracks by how typical they are of the pooled population.
//
// # Pipeline
//
//  1. [Standardize] : z-score every column with the pooled mean and population standard deviation
//  2. [KNNScores] : distance from each row to its k-th nearest other row
//  3. [Select] : candidate rows only, stable ascending by score, truncated to the limit
//
// [Rank] composes the three over a [models.FeatureTable].
//
// Statistics are computed over seed and candidate rows together, so every score is relative to
// the whole observed population. A constant column standardizes to zeros.
//
// A low score means a dense neighbourhood. A high score means the track is isolated from the rest.
package ranking
