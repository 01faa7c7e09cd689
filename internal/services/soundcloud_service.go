package services

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"tracklink/internal/models"
)

const soundcloudAPIURL = "https://api.soundcloud.com"

// soundcloudService implements PlatformService for SoundCloud. Reads
// authenticate with the app client id; playlist writes and uploads use the
// user OAuth token on the platform connection. SoundCloud is also the one
// platform accepting direct audio uploads.
type soundcloudService struct {
	client   *resty.Client
	clientID string
}

// NewSoundCloudService creates a new SoundCloud service
func NewSoundCloudService(clientID string) PlatformService {
	client := resty.New().
		SetBaseURL(soundcloudAPIURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second)

	return &soundcloudService{client: client, clientID: clientID}
}

func (s *soundcloudService) GetPlatformName() string {
	return "soundcloud"
}

// ParseURL resolves a permalink URL to a numeric track id via /resolve
func (s *soundcloudService) ParseURL(url string) (*TrackInfo, error) {
	platform, _, err := ParsePlatformURL(url)
	if err != nil || platform != "soundcloud" {
		return nil, &PlatformError{
			Platform:  "soundcloud",
			Operation: "parse_url",
			Message:   "invalid SoundCloud URL format",
			URL:       url,
		}
	}

	var track scTrack
	resp, err := s.client.R().
		SetQueryParams(map[string]string{
			"url":       url,
			"client_id": s.clientID,
		}).
		SetResult(&track).
		Get("/resolve")
	if err != nil {
		return nil, &PlatformError{Platform: "soundcloud", Operation: "resolve", Message: "request failed", URL: url, Err: err}
	}
	if resp.StatusCode() != http.StatusOK || track.ID == 0 {
		return nil, &PlatformError{Platform: "soundcloud", Operation: "resolve", Message: fmt.Sprintf("API returned status %d", resp.StatusCode()), URL: url}
	}

	return s.convertTrack(&track), nil
}

func (s *soundcloudService) GetTrackByID(ctx context.Context, trackID string) (*TrackInfo, error) {
	var track scTrack
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("client_id", s.clientID).
		SetResult(&track).
		Get("/tracks/" + trackID)
	if err != nil {
		return nil, &PlatformError{Platform: "soundcloud", Operation: "get_track", Message: "request failed", Err: err}
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, &PlatformError{Platform: "soundcloud", Operation: "get_track", Message: "track not found"}
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &PlatformError{Platform: "soundcloud", Operation: "get_track", Message: fmt.Sprintf("API returned status %d", resp.StatusCode())}
	}
	return s.convertTrack(&track), nil
}

func (s *soundcloudService) SearchTrack(ctx context.Context, query SearchQuery) ([]*TrackInfo, error) {
	q := query.Query
	if q == "" {
		q = query.Artist + " " + query.Title
	}
	limit := query.Limit
	if limit == 0 {
		limit = 10
	}

	var tracks []scTrack
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":         q,
			"limit":     strconv.Itoa(limit),
			"client_id": s.clientID,
		}).
		SetResult(&tracks).
		Get("/tracks")
	if err != nil {
		return nil, &PlatformError{Platform: "soundcloud", Operation: "search", Message: "request failed", Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &PlatformError{Platform: "soundcloud", Operation: "search", Message: fmt.Sprintf("API returned status %d", resp.StatusCode())}
	}

	results := make([]*TrackInfo, 0, len(tracks))
	for i := range tracks {
		results = append(results, s.convertTrack(&tracks[i]))
	}
	return results, nil
}

func (s *soundcloudService) GetPlaylistTracks(ctx context.Context, conn models.PlatformConnection, playlistID string) ([]*TrackInfo, error) {
	playlist, err := s.getPlaylist(ctx, conn, playlistID)
	if err != nil {
		return nil, err
	}

	tracks := make([]*TrackInfo, 0, len(playlist.Tracks))
	for i := range playlist.Tracks {
		tracks = append(tracks, s.convertTrack(&playlist.Tracks[i]))
	}
	return tracks, nil
}

func (s *soundcloudService) CreatePlaylist(ctx context.Context, conn models.PlatformConnection, name string) (string, error) {
	if conn.AccessToken == "" {
		return "", &CredentialError{Platform: "soundcloud", Reason: "missing user access token"}
	}

	var created scPlaylist
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "OAuth "+conn.AccessToken).
		SetBody(map[string]any{
			"playlist": map[string]any{
				"title":   name,
				"sharing": "private",
				"tracks":  []any{},
			},
		}).
		SetResult(&created).
		Post("/playlists")
	if err != nil {
		return "", &PlatformError{Platform: "soundcloud", Operation: "create_playlist", Message: "request failed", Err: err}
	}
	if resp.StatusCode() != http.StatusCreated && resp.StatusCode() != http.StatusOK {
		return "", &PlatformError{Platform: "soundcloud", Operation: "create_playlist", Message: fmt.Sprintf("API returned status %d", resp.StatusCode())}
	}
	return strconv.FormatInt(created.ID, 10), nil
}

// AddPlaylistTracks replaces the playlist track list with the union of the
// current list and the new ids; the SoundCloud API has no append operation.
func (s *soundcloudService) AddPlaylistTracks(ctx context.Context, conn models.PlatformConnection, playlistID string, trackIDs []string) error {
	if conn.AccessToken == "" {
		return &CredentialError{Platform: "soundcloud", Reason: "missing user access token"}
	}

	playlist, err := s.getPlaylist(ctx, conn, playlistID)
	if err != nil {
		return err
	}

	seen := make(map[int64]bool, len(playlist.Tracks))
	ids := make([]map[string]any, 0, len(playlist.Tracks)+len(trackIDs))
	for _, track := range playlist.Tracks {
		seen[track.ID] = true
		ids = append(ids, map[string]any{"id": track.ID})
	}
	for _, raw := range trackIDs {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return &PlatformError{Platform: "soundcloud", Operation: "add_tracks", Message: "non-numeric track id " + raw}
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, map[string]any{"id": id})
		}
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "OAuth "+conn.AccessToken).
		SetBody(map[string]any{"playlist": map[string]any{"tracks": ids}}).
		Put("/playlists/" + playlistID)
	if err != nil {
		return &PlatformError{Platform: "soundcloud", Operation: "add_tracks", Message: "request failed", Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return &PlatformError{Platform: "soundcloud", Operation: "add_tracks", Message: fmt.Sprintf("API returned status %d", resp.StatusCode())}
	}
	return nil
}

// UploadTrack uploads an audio file as a new private track
func (s *soundcloudService) UploadTrack(ctx context.Context, conn models.PlatformConnection, title, artist, audioPath string) (*TrackInfo, error) {
	if conn.AccessToken == "" {
		return nil, &CredentialError{Platform: "soundcloud", Reason: "missing user access token"}
	}

	displayTitle := title
	if artist != "" {
		displayTitle = artist + " - " + title
	}

	var track scTrack
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "OAuth "+conn.AccessToken).
		SetFile("track[asset_data]", audioPath).
		SetFormData(map[string]string{
			"track[title]":   displayTitle,
			"track[sharing]": "private",
		}).
		SetResult(&track).
		Post("/tracks")
	if err != nil {
		return nil, &PlatformError{Platform: "soundcloud", Operation: "upload", Message: "request failed", Err: err}
	}
	if resp.StatusCode() != http.StatusCreated && resp.StatusCode() != http.StatusOK {
		return nil, &PlatformError{Platform: "soundcloud", Operation: "upload", Message: fmt.Sprintf("API returned status %d", resp.StatusCode())}
	}
	return s.convertTrack(&track), nil
}

func (s *soundcloudService) BuildURL(trackID string) string {
	return "https://api.soundcloud.com/tracks/" + trackID
}

// Health resolves nothing but verifies the API accepts the client id
func (s *soundcloudService) Health(ctx context.Context) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":         "test",
			"limit":     "1",
			"client_id": s.clientID,
		}).
		Get("/tracks")
	if err != nil {
		return err
	}
	if resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden {
		return &CredentialError{Platform: "soundcloud", Reason: fmt.Sprintf("client id rejected (status %d)", resp.StatusCode())}
	}
	if resp.StatusCode() != http.StatusOK {
		return &PlatformError{Platform: "soundcloud", Operation: "health", Message: fmt.Sprintf("API returned status %d", resp.StatusCode())}
	}
	return nil
}

func (s *soundcloudService) getPlaylist(ctx context.Context, conn models.PlatformConnection, playlistID string) (*scPlaylist, error) {
	req := s.client.R().
		SetContext(ctx).
		SetQueryParam("client_id", s.clientID)
	if conn.AccessToken != "" {
		req.SetHeader("Authorization", "OAuth "+conn.AccessToken)
	}

	var playlist scPlaylist
	resp, err := req.SetResult(&playlist).Get("/playlists/" + playlistID)
	if err != nil {
		return nil, &PlatformError{Platform: "soundcloud", Operation: "get_playlist", Message: "request failed", Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &PlatformError{Platform: "soundcloud", Operation: "get_playlist", Message: fmt.Sprintf("API returned status %d", resp.StatusCode())}
	}
	return &playlist, nil
}

func (s *soundcloudService) convertTrack(track *scTrack) *TrackInfo {
	return &TrackInfo{
		Platform:   "soundcloud",
		ExternalID: strconv.FormatInt(track.ID, 10),
		URL:        track.PermalinkURL,
		Title:      track.Title,
		Artists:    []string{track.User.Username},
		ISRC:       track.PublisherMetadata.ISRC,
		Duration:   track.Duration,
		ImageURL:   track.ArtworkURL,
		Available:  track.Streamable,
	}
}

// SoundCloud API response structures
type scTrack struct {
	ID                int64  `json:"id"`
	Title             string `json:"title"`
	Duration          int    `json:"duration"` // milliseconds
	PermalinkURL      string `json:"permalink_url"`
	ArtworkURL        string `json:"artwork_url"`
	Streamable        bool   `json:"streamable"`
	User              scUser `json:"user"`
	PublisherMetadata struct {
		ISRC string `json:"isrc"`
	} `json:"publisher_metadata"`
}

type scUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type scPlaylist struct {
	ID     int64     `json:"id"`
	Title  string    `json:"title"`
	Tracks []scTrack `json:"tracks"`
}
