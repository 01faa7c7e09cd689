package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2/clientcredentials"

	"tracklink/internal/models"
)

// spotifyService implements PlatformService for Spotify
type spotifyService struct {
	client      *resty.Client
	tokenSource *clientcredentials.Config
	accessToken string
	tokenExpiry time.Time
	mu          sync.RWMutex
}

// Spotify API endpoints
const (
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyAPIURL   = "https://api.spotify.com/v1"
)

// NewSpotifyService creates a new Spotify service. App-level operations
// (search, track lookup) use client credentials; playlist operations use the
// user token on the platform connection.
func NewSpotifyService(clientID, clientSecret string) PlatformService {
	tokenSource := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyTokenURL,
	}

	client := resty.New().
		SetBaseURL(spotifyAPIURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second)

	return &spotifyService{
		client:      client,
		tokenSource: tokenSource,
	}
}

// GetPlatformName returns the platform name
func (s *spotifyService) GetPlatformName() string {
	return "spotify"
}

// ParseURL extracts track ID from a Spotify URL and fetches nothing
func (s *spotifyService) ParseURL(url string) (*TrackInfo, error) {
	platform, trackID, err := ParsePlatformURL(url)
	if err != nil || platform != "spotify" {
		return nil, &PlatformError{
			Platform:  "spotify",
			Operation: "parse_url",
			Message:   "invalid Spotify URL format",
			URL:       url,
		}
	}

	return &TrackInfo{
		Platform:   "spotify",
		ExternalID: trackID,
		URL:        s.BuildURL(trackID),
		Available:  true,
	}, nil
}

// GetTrackByID fetches track details from the Spotify API
func (s *spotifyService) GetTrackByID(ctx context.Context, trackID string) (*TrackInfo, error) {
	token, err := s.appToken(ctx)
	if err != nil {
		return nil, err
	}

	var spotifyTrack spotifyTrack
	resp, err := s.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetResult(&spotifyTrack).
		Get("/tracks/" + trackID)
	if err != nil {
		return nil, &PlatformError{Platform: "spotify", Operation: "get_track", Message: "request failed", Err: err}
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, &PlatformError{Platform: "spotify", Operation: "get_track", Message: "track not found"}
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &PlatformError{Platform: "spotify", Operation: "get_track", Message: fmt.Sprintf("API returned status %d", resp.StatusCode())}
	}

	return s.convertTrack(&spotifyTrack), nil
}

// SearchTrack searches for tracks on Spotify
func (s *spotifyService) SearchTrack(ctx context.Context, query SearchQuery) ([]*TrackInfo, error) {
	token, err := s.appToken(ctx)
	if err != nil {
		return nil, err
	}

	limit := query.Limit
	if limit == 0 {
		limit = 10
	}
	if limit > 50 {
		limit = 50 // Spotify API limit
	}

	var searchResult spotifySearchResult
	resp, err := s.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetQueryParams(map[string]string{
			"q":     s.buildSearchQuery(query),
			"type":  "track",
			"limit": fmt.Sprintf("%d", limit),
		}).
		SetResult(&searchResult).
		Get("/search")
	if err != nil {
		return nil, &PlatformError{Platform: "spotify", Operation: "search", Message: "request failed", Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &PlatformError{Platform: "spotify", Operation: "search", Message: fmt.Sprintf("API returned status %d", resp.StatusCode())}
	}

	tracks := make([]*TrackInfo, 0, len(searchResult.Tracks.Items))
	for i := range searchResult.Tracks.Items {
		tracks = append(tracks, s.convertTrack(&searchResult.Tracks.Items[i]))
	}
	return tracks, nil
}

// GetPlaylistTracks lists a playlist's tracks in playlist order, following
// pagination.
func (s *spotifyService) GetPlaylistTracks(ctx context.Context, conn models.PlatformConnection, playlistID string) ([]*TrackInfo, error) {
	token, err := s.connToken(ctx, conn)
	if err != nil {
		return nil, err
	}

	var tracks []*TrackInfo
	next := fmt.Sprintf("/playlists/%s/tracks?limit=100", playlistID)
	for next != "" {
		var page spotifyPlaylistPage
		resp, err := s.client.R().
			SetContext(ctx).
			SetAuthToken(token).
			SetResult(&page).
			Get(next)
		if err != nil {
			return nil, &PlatformError{Platform: "spotify", Operation: "get_playlist", Message: "request failed", Err: err}
		}
		if resp.StatusCode() != http.StatusOK {
			return nil, &PlatformError{Platform: "spotify", Operation: "get_playlist", Message: fmt.Sprintf("API returned status %d", resp.StatusCode())}
		}

		for i := range page.Items {
			item := &page.Items[i]
			if item.Track.ID == "" {
				continue // local or removed tracks have no id
			}
			tracks = append(tracks, s.convertTrack(&item.Track))
		}
		next = page.Next
	}
	return tracks, nil
}

// CreatePlaylist creates a private playlist for the connected user
func (s *spotifyService) CreatePlaylist(ctx context.Context, conn models.PlatformConnection, name string) (string, error) {
	token, err := s.connToken(ctx, conn)
	if err != nil {
		return "", err
	}
	if conn.UserID == "" {
		return "", &CredentialError{Platform: "spotify", Reason: "missing user id on connection"}
	}

	var created struct {
		ID string `json:"id"`
	}
	resp, err := s.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetBody(map[string]any{"name": name, "public": false}).
		SetResult(&created).
		Post(fmt.Sprintf("/users/%s/playlists", conn.UserID))
	if err != nil {
		return "", &PlatformError{Platform: "spotify", Operation: "create_playlist", Message: "request failed", Err: err}
	}
	if resp.StatusCode() != http.StatusCreated && resp.StatusCode() != http.StatusOK {
		return "", &PlatformError{Platform: "spotify", Operation: "create_playlist", Message: fmt.Sprintf("API returned status %d", resp.StatusCode())}
	}
	return created.ID, nil
}

// AddPlaylistTracks appends tracks to a playlist in batches of 100
func (s *spotifyService) AddPlaylistTracks(ctx context.Context, conn models.PlatformConnection, playlistID string, trackIDs []string) error {
	token, err := s.connToken(ctx, conn)
	if err != nil {
		return err
	}

	for start := 0; start < len(trackIDs); start += 100 {
		end := start + 100
		if end > len(trackIDs) {
			end = len(trackIDs)
		}
		uris := make([]string, 0, end-start)
		for _, id := range trackIDs[start:end] {
			uris = append(uris, "spotify:track:"+id)
		}

		resp, err := s.client.R().
			SetContext(ctx).
			SetAuthToken(token).
			SetBody(map[string]any{"uris": uris}).
			Post(fmt.Sprintf("/playlists/%s/tracks", playlistID))
		if err != nil {
			return &PlatformError{Platform: "spotify", Operation: "add_tracks", Message: "request failed", Err: err}
		}
		if resp.StatusCode() != http.StatusCreated && resp.StatusCode() != http.StatusOK {
			return &PlatformError{Platform: "spotify", Operation: "add_tracks", Message: fmt.Sprintf("API returned status %d", resp.StatusCode())}
		}
	}
	return nil
}

// BuildURL constructs a Spotify URL from a track ID
func (s *spotifyService) BuildURL(trackID string) string {
	return "https://open.spotify.com/track/" + trackID
}

// Health checks Spotify API health
func (s *spotifyService) Health(ctx context.Context) error {
	_, err := s.appToken(ctx)
	return err
}

// appToken returns a valid client-credentials token, refreshing when expired
func (s *spotifyService) appToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	if s.accessToken != "" && time.Now().Before(s.tokenExpiry) {
		token := s.accessToken
		s.mu.RUnlock()
		return token, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check after acquiring write lock
	if s.accessToken != "" && time.Now().Before(s.tokenExpiry) {
		return s.accessToken, nil
	}

	token, err := s.tokenSource.Token(ctx)
	if err != nil {
		return "", &CredentialError{Platform: "spotify", Reason: "client credentials rejected: " + err.Error()}
	}

	s.accessToken = token.AccessToken
	s.tokenExpiry = token.Expiry
	slog.Info("Spotify access token refreshed", "expires_at", token.Expiry)
	return s.accessToken, nil
}

// connToken returns the user token from a connection
func (s *spotifyService) connToken(_ context.Context, conn models.PlatformConnection) (string, error) {
	if conn.AccessToken == "" {
		return "", &CredentialError{Platform: "spotify", Reason: "missing user access token"}
	}
	return conn.AccessToken, nil
}

// buildSearchQuery constructs a search query string for Spotify
func (s *spotifyService) buildSearchQuery(query SearchQuery) string {
	if query.ISRC != "" {
		return "isrc:" + query.ISRC
	}
	if query.Query != "" {
		return query.Query
	}

	var parts []string
	if query.Title != "" {
		parts = append(parts, fmt.Sprintf("track:%q", query.Title))
	}
	if query.Artist != "" {
		parts = append(parts, fmt.Sprintf("artist:%q", query.Artist))
	}
	if len(parts) == 0 {
		return "*"
	}
	return strings.Join(parts, " ")
}

// convertTrack converts a Spotify API track to TrackInfo
func (s *spotifyService) convertTrack(track *spotifyTrack) *TrackInfo {
	artists := make([]string, len(track.Artists))
	for i, artist := range track.Artists {
		artists[i] = artist.Name
	}

	// prefer a medium-size cover
	var imageURL string
	if len(track.Album.Images) > 0 {
		imageURL = track.Album.Images[0].URL
		for _, img := range track.Album.Images {
			if img.Width >= 300 && img.Width <= 640 {
				imageURL = img.URL
				break
			}
		}
	}

	return &TrackInfo{
		Platform:   "spotify",
		ExternalID: track.ID,
		URL:        s.BuildURL(track.ID),
		Title:      track.Name,
		Artists:    artists,
		Album:      track.Album.Name,
		ISRC:       track.ExternalIDs.ISRC,
		Duration:   track.DurationMs,
		ImageURL:   imageURL,
		Available:  true,
	}
}

// Spotify API response structures
type spotifyTrack struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Artists     []spotifyArtist    `json:"artists"`
	Album       spotifyAlbum       `json:"album"`
	DurationMs  int                `json:"duration_ms"`
	ExternalIDs spotifyExternalIDs `json:"external_ids"`
}

type spotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type spotifyAlbum struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Images []spotifyImage `json:"images"`
}

type spotifyImage struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type spotifyExternalIDs struct {
	ISRC string `json:"isrc"`
}

type spotifySearchResult struct {
	Tracks spotifyTracksPaging `json:"tracks"`
}

type spotifyTracksPaging struct {
	Items []spotifyTrack `json:"items"`
	Total int            `json:"total"`
}

type spotifyPlaylistPage struct {
	Items []spotifyPlaylistItem `json:"items"`
	Next  string                `json:"next"`
}

type spotifyPlaylistItem struct {
	Track spotifyTrack `json:"track"`
}
