// package services defines interface Catalog for interacting with music catalog HTTP APIs
package services

import (
	"context"

	"github.com/desertthunder/kindred/internal/models"
)

// Catalog defines the operations a discovery run needs from a music catalog service.
type Catalog interface {
	// SearchArtist resolves an artist name to the best catalog match.
	// Returns an error wrapping [shared.ErrArtistNotFound] when nothing matches.
	SearchArtist(ctx context.Context, name string) (*models.Artist, error)

	// RelatedArtists returns the IDs of artists the service considers related.
	RelatedArtists(ctx context.Context, artistID string) ([]string, error)

	// TopTracks returns the artist's top track URIs in service order.
	TopTracks(ctx context.Context, artistID string) ([]string, error)

	// AudioFeatures fetches feature vectors for at most [shared.MaxBatchSize] track URIs.
	// The result is aligned with the input; a nil entry means the service has no features for that track.
	AudioFeatures(ctx context.Context, trackURIs []string) ([]*models.FeatureVector, error)

	// CreatePlaylist creates a playlist owned by the given user and returns its ID.
	CreatePlaylist(ctx context.Context, owner string, spec PlaylistSpec) (string, error)

	// AddTracks appends at most [shared.MaxBatchSize] track URIs to a playlist.
	AddTracks(ctx context.Context, playlistID string, trackURIs []string) error

	// Name returns the name of the service (e.g., "Spotify")
	Name() string
}

// PlaylistSpec describes a playlist to create.
type PlaylistSpec struct {
	Name        string
	Description string
	Public      bool
}
