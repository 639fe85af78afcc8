// Spotify Web API implementation of [Catalog]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/kindred/internal/models"
	"github.com/desertthunder/kindred/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"
)

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Genres []string `json:"genres"`
	URI    string   `json:"uri"`
}

// SpotifyTrack represents the fields of a Spotify track kindred reads.
type SpotifyTrack struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	URI        string `json:"uri"`
	Popularity int    `json:"popularity"`
}

// SpotifyAudioFeatures represents an audio-features object. Identifier fields are kept only for matching.
type SpotifyAudioFeatures struct {
	ID               string  `json:"id"`
	URI              string  `json:"uri"`
	TrackHref        string  `json:"track_href"`
	AnalysisURL      string  `json:"analysis_url"`
	Type             string  `json:"type"`
	Danceability     float64 `json:"danceability"`
	Energy           float64 `json:"energy"`
	Key              int     `json:"key"`
	Loudness         float64 `json:"loudness"`
	Mode             int     `json:"mode"`
	Speechiness      float64 `json:"speechiness"`
	Acousticness     float64 `json:"acousticness"`
	Instrumentalness float64 `json:"instrumentalness"`
	Liveness         float64 `json:"liveness"`
	Valence          float64 `json:"valence"`
	Tempo            float64 `json:"tempo"`
	TimeSignature    int     `json:"time_signature"`
	DurationMS       int     `json:"duration_ms"`
}

func (f SpotifyAudioFeatures) toModel() models.FeatureVector {
	uri := f.URI
	if uri == "" {
		uri = models.TrackURI(f.ID)
	}
	return models.FeatureVector{
		URI:              uri,
		Danceability:     f.Danceability,
		Energy:           f.Energy,
		Key:              float64(f.Key),
		Loudness:         f.Loudness,
		Mode:             float64(f.Mode),
		Speechiness:      f.Speechiness,
		Acousticness:     f.Acousticness,
		Instrumentalness: f.Instrumentalness,
		Liveness:         f.Liveness,
		Valence:          f.Valence,
		Tempo:            f.Tempo,
		TimeSignature:    float64(f.TimeSignature),
		DurationMS:       float64(f.DurationMS),
	}
}

// SpotifyOptions configures transport behaviour of a [SpotifyService].
type SpotifyOptions struct {
	BaseURL      string        // API root, defaults to the public Web API
	Market       string        // market for top-track lookups, defaults to US
	RateLimit    float64       // requests per second; zero disables limiting
	MaxRetries   int           // attempts per request
	RetryBackoff time.Duration // base delay, doubled per attempt
	Logger       *log.Logger
}

// SpotifyService implements [Catalog] for the Spotify Web API.
// Uses [oauth2] for authentication with refresh-token support.
type SpotifyService struct {
	config         *oauth2.Config
	token          *oauth2.Token
	httpClient     *http.Client
	limiter        *rate.Limiter
	logger         *log.Logger
	baseURL        string
	market         string
	maxRetries     int
	baseBackoff    time.Duration
	onTokenRefresh func(*oauth2.Token)
}

var _ Catalog = (*SpotifyService)(nil)

// NewSpotifyService creates a new Spotify service with the given OAuth2 client credentials.
func NewSpotifyService(credentials map[string]string, opts SpotifyOptions) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	if opts.BaseURL == "" {
		opts.BaseURL = spotifyBaseURL
	}
	if opts.Market == "" {
		opts.Market = "US"
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scopes: []string{
			"playlist-modify-public",
			"playlist-modify-private",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	return &SpotifyService{
		config:      config,
		httpClient:  http.DefaultClient,
		limiter:     limiter,
		logger:      shared.WithLogger(opts.Logger, "service", "spotify"),
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		market:      opts.Market,
		maxRetries:  opts.MaxRetries,
		baseBackoff: opts.RetryBackoff,
	}, nil
}

// Authenticate builds the authorized HTTP client from pre-issued tokens.
//
// Expects an "access_token", a "refresh_token", or both. Whenever a refresh token is present the
// first request triggers a refresh.
func (s *SpotifyService) Authenticate(ctx context.Context, credentials map[string]string) error {
	accessToken := credentials["access_token"]
	refreshToken := credentials["refresh_token"]
	if accessToken == "" && refreshToken == "" {
		return fmt.Errorf("%w: missing access_token or refresh_token", shared.ErrMissingCredentials)
	}

	s.token = &oauth2.Token{AccessToken: accessToken, RefreshToken: refreshToken, TokenType: "Bearer"}

	var source oauth2.TokenSource = oauth2.StaticTokenSource(s.token)
	if refreshToken != "" {
		// Stored token lifetime is unknown; force a refresh on first use.
		s.token.Expiry = time.Now().Add(-time.Minute)
		source = s.config.TokenSource(ctx, s.token)
	}

	s.httpClient = oauth2.NewClient(ctx, &refreshableTokenSource{
		source:   source,
		callback: s.onTokenRefresh,
		last:     accessToken,
	})
	return nil
}

// SetTokenRefreshCallback registers fn to receive every newly issued token. Call before Authenticate.
func (s *SpotifyService) SetTokenRefreshCallback(fn func(*oauth2.Token)) {
	s.onTokenRefresh = fn
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// doRequest performs an authenticated JSON request against the API root.
func (s *SpotifyService) doRequest(ctx context.Context, method, endpoint string, body any, result any) error {
	if s.token == nil {
		return fmt.Errorf("%w: call Authenticate first", shared.ErrNotAuthenticated)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	s.logger.Debug("request", "method", method, "endpoint", endpoint)

	resp, err := s.doWithRetry(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s %s", shared.ErrTokenExpired, method, endpoint)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s %s", shared.ErrNotFound, method, endpoint)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: spotify status %d for %s %s", shared.ErrAPIRequest, resp.StatusCode, method, endpoint)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// SearchArtist resolves an artist name using an artist-field search and returns the first hit.
func (s *SpotifyService) SearchArtist(ctx context.Context, name string) (*models.Artist, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: empty artist name", shared.ErrInvalidArgument)
	}

	query := url.Values{}
	query.Set("q", "artist:"+name)
	query.Set("type", "artist")
	query.Set("limit", "1")

	var response struct {
		Artists struct {
			Items []SpotifyArtist `json:"items"`
		} `json:"artists"`
	}
	if err := s.doRequest(ctx, http.MethodGet, "/search?"+query.Encode(), nil, &response); err != nil {
		return nil, err
	}

	if len(response.Artists.Items) == 0 {
		return nil, fmt.Errorf("%w: %q", shared.ErrArtistNotFound, name)
	}

	hit := response.Artists.Items[0]
	return &models.Artist{Name: hit.Name, ID: hit.ID}, nil
}

// RelatedArtists returns related artist IDs in service order.
func (s *SpotifyService) RelatedArtists(ctx context.Context, artistID string) ([]string, error) {
	var response struct {
		Artists []SpotifyArtist `json:"artists"`
	}
	endpoint := fmt.Sprintf("/artists/%s/related-artists", url.PathEscape(artistID))
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(response.Artists))
	for _, a := range response.Artists {
		if a.ID != "" {
			ids = append(ids, a.ID)
		}
	}
	return ids, nil
}

// TopTracks returns the artist's top track URIs for the configured market.
func (s *SpotifyService) TopTracks(ctx context.Context, artistID string) ([]string, error) {
	var response struct {
		Tracks []SpotifyTrack `json:"tracks"`
	}
	endpoint := fmt.Sprintf("/artists/%s/top-tracks?market=%s", url.PathEscape(artistID), url.QueryEscape(s.market))
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}

	uris := make([]string, 0, len(response.Tracks))
	for _, t := range response.Tracks {
		switch {
		case t.URI != "":
			uris = append(uris, t.URI)
		case t.ID != "":
			uris = append(uris, models.TrackURI(t.ID))
		}
	}
	return uris, nil
}

// AudioFeatures fetches feature vectors for up to 20 tracks in one request.
//
// Spotify answers null for tracks it has no analysis for; those positions are nil.
func (s *SpotifyService) AudioFeatures(ctx context.Context, trackURIs []string) ([]*models.FeatureVector, error) {
	if len(trackURIs) == 0 {
		return nil, nil
	}
	if len(trackURIs) > shared.MaxBatchSize {
		return nil, fmt.Errorf("%w: maximum %d track IDs per request, got %d", shared.ErrInvalidArgument, shared.MaxBatchSize, len(trackURIs))
	}

	ids := make([]string, len(trackURIs))
	for i, uri := range trackURIs {
		ids[i] = models.TrackID(uri)
	}

	query := url.Values{}
	query.Set("ids", strings.Join(ids, ","))

	var response struct {
		AudioFeatures []*SpotifyAudioFeatures `json:"audio_features"`
	}
	if err := s.doRequest(ctx, http.MethodGet, "/audio-features?"+query.Encode(), nil, &response); err != nil {
		return nil, err
	}

	byID := make(map[string]models.FeatureVector, len(response.AudioFeatures))
	for _, f := range response.AudioFeatures {
		if f == nil || f.ID == "" {
			continue
		}
		byID[f.ID] = f.toModel()
	}

	vectors := make([]*models.FeatureVector, len(trackURIs))
	for i, id := range ids {
		if v, ok := byID[id]; ok {
			v.URI = trackURIs[i]
			vectors[i] = &v
		}
	}
	return vectors, nil
}

// CreatePlaylist creates a playlist for owner and returns its ID.
func (s *SpotifyService) CreatePlaylist(ctx context.Context, owner string, spec PlaylistSpec) (string, error) {
	if owner == "" {
		return "", fmt.Errorf("%w: playlist owner", shared.ErrMissingArgument)
	}
	if spec.Name == "" {
		return "", fmt.Errorf("%w: playlist name", shared.ErrMissingArgument)
	}

	body := map[string]any{
		"name":        spec.Name,
		"description": spec.Description,
		"public":      spec.Public,
	}

	var response struct {
		ID string `json:"id"`
	}
	endpoint := fmt.Sprintf("/users/%s/playlists", url.PathEscape(owner))
	if err := s.doRequest(ctx, http.MethodPost, endpoint, body, &response); err != nil {
		return "", err
	}
	if response.ID == "" {
		return "", fmt.Errorf("%w: playlist created without an id", shared.ErrAPIRequest)
	}
	return response.ID, nil
}

// AddTracks appends up to 20 track URIs to the playlist.
func (s *SpotifyService) AddTracks(ctx context.Context, playlistID string, trackURIs []string) error {
	if len(trackURIs) == 0 {
		return nil
	}
	if len(trackURIs) > shared.MaxBatchSize {
		return fmt.Errorf("%w: maximum %d tracks per request, got %d", shared.ErrInvalidArgument, shared.MaxBatchSize, len(trackURIs))
	}

	uris := make([]string, len(trackURIs))
	for i, u := range trackURIs {
		uris[i] = models.TrackURI(u)
	}

	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))
	return s.doRequest(ctx, http.MethodPost, endpoint, map[string][]string{"uris": uris}, nil)
}
