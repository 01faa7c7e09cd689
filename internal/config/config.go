package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the application
type Config struct {
	// Application settings
	Port       string `envconfig:"PORT" default:"8080"`
	GinMode    string `envconfig:"GIN_MODE" default:"debug"`
	BaseURL    string `envconfig:"BASE_URL" default:"http://localhost:8080"`
	MongodbURL string `envconfig:"MONGODB_URL" required:"true"`
	ValkeyURL  string `envconfig:"VALKEY_URL"`

	// Platform credentials. OAuth token exchange happens outside this service;
	// connections carry ready-to-use access tokens (see models.PlatformConnection).
	SpotifyClientID     string `envconfig:"SPOTIFY_CLIENT_ID"`
	SpotifyClientSecret string `envconfig:"SPOTIFY_CLIENT_SECRET"`
	YouTubeAPIKey       string `envconfig:"YOUTUBE_API_KEY"`
	SoundCloudClientID  string `envconfig:"SOUNDCLOUD_CLIENT_ID"`

	// External identification services
	AcoustIDAPIKey   string `envconfig:"ACOUSTID_API_KEY"`
	MusicBrainzAgent string `envconfig:"MUSICBRAINZ_USER_AGENT" default:"tracklink/1.0 (tracklink@example.com)"`

	// Audio pipeline
	AudioCacheDir  string `envconfig:"AUDIO_CACHE_DIR" default:"/var/cache/tracklink/audio"`
	FfmpegPath     string `envconfig:"FFMPEG_PATH" default:"ffmpeg"`
	FpcalcPath     string `envconfig:"FPCALC_PATH" default:"fpcalc"`
	RecognizerPath string `envconfig:"RECOGNIZER_PATH" default:"tracklink-recognize"`

	// Feature switches for the optional fingerprint sources
	ShazamEnabled           bool `envconfig:"SHAZAM_ENABLED" default:"false"`
	LocalFingerprintEnabled bool `envconfig:"LOCAL_FINGERPRINT_ENABLED" default:"true"`

	// Number of concurrent match/fingerprint workers per job. Workers never
	// write to the store; all writes go through the single orchestrator
	// goroutine (see internal/syncer).
	AnalysisParallelism int `envconfig:"ANALYSIS_PARALLELISM" default:"5"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.AnalysisParallelism < 1 {
		return fmt.Errorf("ANALYSIS_PARALLELISM must be >= 1, got %d", c.AnalysisParallelism)
	}
	if c.AudioCacheDir == "" {
		return fmt.Errorf("AUDIO_CACHE_DIR cannot be empty")
	}
	return nil
}

// HasSpotify reports whether Spotify client credentials are configured.
func (c *Config) HasSpotify() bool {
	return c.SpotifyClientID != "" && c.SpotifyClientSecret != ""
}

// HasYouTube reports whether a YouTube Data API key is configured.
func (c *Config) HasYouTube() bool {
	return c.YouTubeAPIKey != ""
}

// HasSoundCloud reports whether a SoundCloud client ID is configured.
func (c *Config) HasSoundCloud() bool {
	return c.SoundCloudClientID != ""
}
