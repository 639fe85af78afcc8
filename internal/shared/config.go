package shared

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// MaxBatchSize is the largest number of items the catalog accepts per feature or playlist request.
const MaxBatchSize = 20

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Catalog     CatalogConfig     `toml:"catalog"`
	Discovery   DiscoveryConfig   `toml:"discovery"`
	Playlist    PlaylistConfig    `toml:"playlist"`
	Log         LogConfig         `toml:"log"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials.
//
// Tokens are obtained out of band; kindred never runs the authorization flow itself.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	AccessToken  string `toml:"access_token"`
	RefreshToken string `toml:"refresh_token"`
	UserID       string `toml:"user_id"`
}

// Map returns the credentials in the form [services.NewSpotifyService] expects.
func (s SpotifyConfig) Map() map[string]string {
	return map[string]string{
		"client_id":     s.ClientID,
		"client_secret": s.ClientSecret,
		"access_token":  s.AccessToken,
		"refresh_token": s.RefreshToken,
	}
}

// CatalogConfig contains catalog service transport settings.
type CatalogConfig struct {
	BaseURL        string  `toml:"base_url"`
	Market         string  `toml:"market"`
	BatchSize      int     `toml:"batch_size"`
	RateLimit      float64 `toml:"rate_limit"`
	MaxRetries     int     `toml:"max_retries"`
	RetryBackoffMS int     `toml:"retry_backoff_ms"`
}

// DiscoveryConfig contains seed artists and ranking parameters.
type DiscoveryConfig struct {
	Seeds           []string `toml:"seeds"`
	SeedQuota       int      `toml:"seed_quota"`
	CandidateQuota  int      `toml:"candidate_quota"`
	Neighbors       int      `toml:"neighbors"`
	PlaylistSize    int      `toml:"playlist_size"`
	ExcludeFeatures []string `toml:"exclude_features"`
}

// PlaylistConfig contains settings for the published playlist.
type PlaylistConfig struct {
	Name        string `toml:"name"`
	Description string `toml:"description"`
	Public      bool   `toml:"public"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadEnv reads a dotenv file into the process environment when it exists.
//
// Variables already set in the environment win over the file.
func LoadEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides Spotify credentials with SPOTIFY_* environment variables.
func (c *Config) ApplyEnv() {
	overrides := []struct {
		key    string
		target *string
	}{
		{"SPOTIFY_CLIENT_ID", &c.Credentials.Spotify.ClientID},
		{"SPOTIFY_CLIENT_SECRET", &c.Credentials.Spotify.ClientSecret},
		{"SPOTIFY_ACCESS_TOKEN", &c.Credentials.Spotify.AccessToken},
		{"SPOTIFY_REFRESH_TOKEN", &c.Credentials.Spotify.RefreshToken},
		{"SPOTIFY_USER_ID", &c.Credentials.Spotify.UserID},
	}
	for _, o := range overrides {
		if v, ok := os.LookupEnv(o.key); ok && v != "" {
			*o.target = v
		}
	}
}

// Validate checks the settings a discovery run depends on.
func (c *Config) Validate() error {
	d := c.Discovery
	switch {
	case d.SeedQuota <= 0 || d.CandidateQuota <= 0:
		return fmt.Errorf("%w: seed_quota and candidate_quota must be positive", ErrInvalidConfig)
	case d.SeedQuota <= d.CandidateQuota:
		return fmt.Errorf("%w: seed_quota (%d) must exceed candidate_quota (%d)", ErrInvalidConfig, d.SeedQuota, d.CandidateQuota)
	case d.Neighbors <= 0:
		return fmt.Errorf("%w: neighbors must be positive", ErrInvalidConfig)
	case d.PlaylistSize <= 0:
		return fmt.Errorf("%w: playlist_size must be positive", ErrInvalidConfig)
	case c.Catalog.BatchSize <= 0 || c.Catalog.BatchSize > MaxBatchSize:
		return fmt.Errorf("%w: batch_size must be between 1 and %d", ErrInvalidConfig, MaxBatchSize)
	}
	return nil
}
