// Package models defines the transient entities of a kindred discovery run.
//
// Nothing here is persisted; every value lives for the duration of one run.
//
//   - [Artist] : a catalog artist, either a seed or a derived candidate
//   - [Track] : a track URI labelled with its [SourceGroup]
//   - [FeatureVector] : the fixed-schema numeric audio descriptors of one track
//   - [FeatureTable] : ordered rows of feature values with parallel URI and group columns
//   - [ScoredTrack] : a ranked track with its neighbour-distance score
//
// The group label is stored beside the numeric matrix, never inside it, so it cannot leak into
// standardization or distance computations.
package models
