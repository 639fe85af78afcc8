// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/kindred/internal/models"
	"github.com/desertthunder/kindred/internal/services"
	"github.com/desertthunder/kindred/internal/shared"
)

// MockCatalog is an in-memory test double for [services.Catalog].
//
// Lookups are keyed by artist name (search), artist ID (related, top tracks) and track URI (features).
// Recorded calls are safe to inspect after the run returns.
type MockCatalog struct {
	Artists  map[string]*models.Artist
	Related  map[string][]string
	Tracks   map[string][]string
	Features map[string]*models.FeatureVector

	RelatedErr   error
	TopTracksErr error
	FeaturesErr  error
	FailFeatures int // 1-based AudioFeatures call that returns FeaturesErr; 0 fails every call
	CreateErr    error
	AddErr       error
	PlaylistID   string

	mu           sync.Mutex
	Searches     []string
	FeatureCalls [][]string
	Created      []services.PlaylistSpec
	Owners       []string
	Added        [][]string
}

func (m *MockCatalog) Name() string { return "mock" }

func (m *MockCatalog) SearchArtist(ctx context.Context, name string) (*models.Artist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Searches = append(m.Searches, name)

	if a, ok := m.Artists[name]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("%w: %s", shared.ErrArtistNotFound, name)
}

func (m *MockCatalog) RelatedArtists(ctx context.Context, artistID string) ([]string, error) {
	if m.RelatedErr != nil {
		return nil, m.RelatedErr
	}
	return m.Related[artistID], nil
}

func (m *MockCatalog) TopTracks(ctx context.Context, artistID string) ([]string, error) {
	if m.TopTracksErr != nil {
		return nil, m.TopTracksErr
	}
	return m.Tracks[artistID], nil
}

func (m *MockCatalog) AudioFeatures(ctx context.Context, uris []string) ([]*models.FeatureVector, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FeatureCalls = append(m.FeatureCalls, uris)

	if m.FeaturesErr != nil && (m.FailFeatures == 0 || m.FailFeatures == len(m.FeatureCalls)) {
		return nil, m.FeaturesErr
	}

	out := make([]*models.FeatureVector, len(uris))
	for i, uri := range uris {
		if v, ok := m.Features[uri]; ok && v != nil {
			vec := *v
			vec.URI = uri
			out[i] = &vec
		}
	}
	return out, nil
}

func (m *MockCatalog) CreatePlaylist(ctx context.Context, owner string, spec services.PlaylistSpec) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return "", m.CreateErr
	}
	m.Owners = append(m.Owners, owner)
	m.Created = append(m.Created, spec)
	if m.PlaylistID == "" {
		return "mock-playlist", nil
	}
	return m.PlaylistID, nil
}

func (m *MockCatalog) AddTracks(ctx context.Context, playlistID string, uris []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AddErr != nil {
		return m.AddErr
	}
	m.Added = append(m.Added, append([]string(nil), uris...))
	return nil
}

// AddedURIs flattens every AddTracks call in order.
func (m *MockCatalog) AddedURIs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, batch := range m.Added {
		out = append(out, batch...)
	}
	return out
}

// Vector builds a feature vector whose every column is v.
func Vector(v float64) *models.FeatureVector {
	return &models.FeatureVector{
		Danceability:     v,
		Energy:           v,
		Key:              v,
		Loudness:         v,
		Mode:             v,
		Speechiness:      v,
		Acousticness:     v,
		Instrumentalness: v,
		Liveness:         v,
		Valence:          v,
		Tempo:            v,
		DurationMS:       v,
		TimeSignature:    v,
	}
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

func MustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write file %s: %v", path, err)
	}
}
