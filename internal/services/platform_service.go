package services

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"tracklink/internal/matching"
	"tracklink/internal/models"
)

// PlatformService defines the interface for music platform integrations
type PlatformService interface {
	// GetPlatformName returns the name of this platform
	GetPlatformName() string

	// ParseURL extracts track information from a platform URL
	ParseURL(url string) (*TrackInfo, error)

	// GetTrackByID fetches track information using platform-specific ID
	GetTrackByID(ctx context.Context, trackID string) (*TrackInfo, error)

	// SearchTrack searches for tracks on the platform
	SearchTrack(ctx context.Context, query SearchQuery) ([]*TrackInfo, error)

	// GetPlaylistTracks lists a playlist's tracks in order
	GetPlaylistTracks(ctx context.Context, conn models.PlatformConnection, playlistID string) ([]*TrackInfo, error)

	// CreatePlaylist creates a playlist for the connected user and returns its id
	CreatePlaylist(ctx context.Context, conn models.PlatformConnection, name string) (string, error)

	// AddPlaylistTracks appends tracks to a playlist
	AddPlaylistTracks(ctx context.Context, conn models.PlatformConnection, playlistID string, trackIDs []string) error

	// BuildURL constructs a platform URL from track ID
	BuildURL(trackID string) string

	// Health checks if the platform service is healthy
	Health(ctx context.Context) error
}

// Uploader is implemented by platforms that accept direct audio uploads.
// Used for the manual upload path when a track cannot be matched.
type Uploader interface {
	UploadTrack(ctx context.Context, conn models.PlatformConnection, title, artist, audioPath string) (*TrackInfo, error)
}

// TrackInfo represents track information from a platform
type TrackInfo struct {
	Platform   string `json:"platform"`
	ExternalID string `json:"external_id"`
	URL        string `json:"url"`

	Title    string   `json:"title"`
	Artists  []string `json:"artists"`
	Album    string   `json:"album,omitempty"`
	ISRC     string   `json:"isrc,omitempty"`
	Duration int      `json:"duration_ms,omitempty"` // Duration in milliseconds

	ImageURL  string `json:"image_url,omitempty"`
	Available bool   `json:"available"`
}

// SearchQuery represents a search query for tracks
type SearchQuery struct {
	Title  string `json:"title,omitempty"`
	Artist string `json:"artist,omitempty"`
	ISRC   string `json:"isrc,omitempty"`
	Query  string `json:"query,omitempty"` // Free-form search query
	Limit  int    `json:"limit,omitempty"`
}

// Artist returns the joined artist credit
func (t *TrackInfo) Artist() string {
	return strings.Join(t.Artists, ", ")
}

// ToTrackSource converts TrackInfo to a models.TrackSource for persistence
func (t *TrackInfo) ToTrackSource() *models.TrackSource {
	src := models.NewTrackSource(t.Platform, t.ExternalID, t.Title, t.Artist())
	src.Album = t.Album
	src.DurationMs = t.Duration
	src.ISRC = t.ISRC
	src.URL = t.URL
	src.ArtworkURL = t.ImageURL
	return src
}

// ToCandidate converts TrackInfo to a scoring candidate
func (t *TrackInfo) ToCandidate() matching.Candidate {
	return matching.Candidate{
		ID:          t.ExternalID,
		Title:       t.Title,
		Artist:      t.Artist(),
		DurationSec: t.Duration / 1000,
		URL:         t.URL,
		ISRC:        t.ISRC,
	}
}

// Registry holds the configured platform services
type Registry struct {
	services map[string]PlatformService
	mu       sync.RWMutex
}

// NewRegistry creates an empty platform registry
func NewRegistry() *Registry {
	return &Registry{services: make(map[string]PlatformService)}
}

// Register adds a platform service, replacing any previous one for its name
func (r *Registry) Register(service PlatformService) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services[service.GetPlatformName()] = service
}

// Get returns the service for a platform name
func (r *Registry) Get(platform string) (PlatformService, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	service, ok := r.services[platform]
	if !ok {
		return nil, &PlatformError{
			Platform:  platform,
			Operation: "lookup",
			Message:   "platform not configured",
		}
	}
	return service, nil
}

// Platforms returns the configured platform names, sorted
func (r *Registry) Platforms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.services))
	for name := range r.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SearchFunc adapts a platform service to the matching pipeline's search
// contract, converting results to scoring candidates.
func SearchFunc(service PlatformService) matching.SearchFunc {
	return func(ctx context.Context, query string, limit int) ([]matching.Candidate, error) {
		tracks, err := service.SearchTrack(ctx, SearchQuery{Query: query, Limit: limit})
		if err != nil {
			return nil, err
		}
		candidates := make([]matching.Candidate, 0, len(tracks))
		for _, track := range tracks {
			candidates = append(candidates, track.ToCandidate())
		}
		return candidates, nil
	}
}

// URLPattern represents a URL pattern for parsing platform URLs
type URLPattern struct {
	Regex        *regexp.Regexp
	Platform     string
	TrackIDIndex int // Index of the track ID capture group
}

// urlPatterns maps track URLs of the supported platforms to (platform, id)
var urlPatterns = []URLPattern{
	{
		Regex:        regexp.MustCompile(`(?:https?://)?(?:www\.|m\.|music\.)?youtube\.com/watch\?(?:[^#]*&)?v=([a-zA-Z0-9_-]{11})`),
		Platform:     "youtube",
		TrackIDIndex: 1,
	},
	{
		Regex:        regexp.MustCompile(`(?:https?://)?youtu\.be/([a-zA-Z0-9_-]{11})`),
		Platform:     "youtube",
		TrackIDIndex: 1,
	},
	{
		Regex:        regexp.MustCompile(`(?:https?://)?(?:www\.)?soundcloud\.com/([a-z0-9][a-z0-9_-]*/[a-z0-9][a-z0-9_-]*)(?:\?|$)`),
		Platform:     "soundcloud",
		TrackIDIndex: 1,
	},
	{
		Regex:        regexp.MustCompile(`(?:https?://)?(?:open\.)?spotify\.com/track/([a-zA-Z0-9]+)`),
		Platform:     "spotify",
		TrackIDIndex: 1,
	},
}

// ParsePlatformURL attempts to parse a URL and determine which platform it belongs to
func ParsePlatformURL(url string) (platform string, trackID string, err error) {
	for _, pattern := range urlPatterns {
		matches := pattern.Regex.FindStringSubmatch(url)
		if len(matches) > pattern.TrackIDIndex {
			return pattern.Platform, matches[pattern.TrackIDIndex], nil
		}
	}

	return "", "", &PlatformError{
		Platform:  "unknown",
		Operation: "parse_url",
		Message:   "unsupported platform URL",
		URL:       url,
	}
}

// PlatformError represents an error from a platform service
type PlatformError struct {
	Platform  string
	Operation string
	Message   string
	URL       string
	Err       error
}

func (e *PlatformError) Error() string {
	msg := e.Platform + " " + e.Operation + " failed"
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.URL != "" {
		msg += " (URL: " + e.URL + ")"
	}
	if e.Err != nil {
		msg += " - " + e.Err.Error()
	}
	return msg
}

func (e *PlatformError) Unwrap() error {
	return e.Err
}

// CredentialError signals a missing or expired platform credential. Callers
// surface these distinctly so users know to reconnect the platform rather
// than retry.
type CredentialError struct {
	Platform string
	Reason   string
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("%s credentials unusable: %s", e.Platform, e.Reason)
}
