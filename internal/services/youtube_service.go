package services

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"tracklink/internal/models"
)

const youtubeAPIURL = "https://www.googleapis.com/youtube/v3"

// youtubeService implements PlatformService for YouTube via the Data API v3.
// Read operations use the API key; playlist writes use the user OAuth token on
// the platform connection.
type youtubeService struct {
	client *resty.Client
	apiKey string
}

// NewYouTubeService creates a new YouTube service
func NewYouTubeService(apiKey string) PlatformService {
	client := resty.New().
		SetBaseURL(youtubeAPIURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second)

	return &youtubeService{client: client, apiKey: apiKey}
}

func (s *youtubeService) GetPlatformName() string {
	return "youtube"
}

func (s *youtubeService) ParseURL(url string) (*TrackInfo, error) {
	platform, videoID, err := ParsePlatformURL(url)
	if err != nil || platform != "youtube" {
		return nil, &PlatformError{
			Platform:  "youtube",
			Operation: "parse_url",
			Message:   "invalid YouTube URL format",
			URL:       url,
		}
	}

	return &TrackInfo{
		Platform:   "youtube",
		ExternalID: videoID,
		URL:        s.BuildURL(videoID),
		Available:  true,
	}, nil
}

// GetTrackByID fetches video snippet and duration
func (s *youtubeService) GetTrackByID(ctx context.Context, videoID string) (*TrackInfo, error) {
	tracks, err := s.videoDetails(ctx, []string{videoID})
	if err != nil {
		return nil, err
	}
	if len(tracks) == 0 {
		return nil, &PlatformError{Platform: "youtube", Operation: "get_track", Message: "video not found"}
	}
	return tracks[0], nil
}

// SearchTrack searches videos and backfills durations with a details call.
// Only SearchQuery.Query is meaningful for YouTube; structured fields are
// joined into one free-text query.
func (s *youtubeService) SearchTrack(ctx context.Context, query SearchQuery) ([]*TrackInfo, error) {
	q := query.Query
	if q == "" {
		q = strings.TrimSpace(query.Artist + " " + query.Title)
	}
	limit := query.Limit
	if limit == 0 {
		limit = 10
	}
	if limit > 50 {
		limit = 50 // API maximum per page
	}

	var result ytSearchResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"part":       "snippet",
			"q":          q,
			"type":       "video",
			"maxResults": strconv.Itoa(limit),
			"key":        s.apiKey,
		}).
		SetResult(&result).
		Get("/search")
	if err != nil {
		return nil, &PlatformError{Platform: "youtube", Operation: "search", Message: "request failed", Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &PlatformError{Platform: "youtube", Operation: "search", Message: fmt.Sprintf("API returned status %d", resp.StatusCode())}
	}

	ids := make([]string, 0, len(result.Items))
	for _, item := range result.Items {
		if item.ID.VideoID != "" {
			ids = append(ids, item.ID.VideoID)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return s.videoDetails(ctx, ids)
}

// GetPlaylistTracks lists playlist videos in order, following page tokens
func (s *youtubeService) GetPlaylistTracks(ctx context.Context, conn models.PlatformConnection, playlistID string) ([]*TrackInfo, error) {
	var ids []string
	pageToken := ""
	for {
		params := map[string]string{
			"part":       "contentDetails",
			"playlistId": playlistID,
			"maxResults": "50",
			"key":        s.apiKey,
		}
		if pageToken != "" {
			params["pageToken"] = pageToken
		}

		var page ytPlaylistItemsResponse
		req := s.client.R().SetContext(ctx).SetQueryParams(params).SetResult(&page)
		if conn.AccessToken != "" {
			req.SetAuthToken(conn.AccessToken)
		}
		resp, err := req.Get("/playlistItems")
		if err != nil {
			return nil, &PlatformError{Platform: "youtube", Operation: "get_playlist", Message: "request failed", Err: err}
		}
		if resp.StatusCode() != http.StatusOK {
			return nil, &PlatformError{Platform: "youtube", Operation: "get_playlist", Message: fmt.Sprintf("API returned status %d", resp.StatusCode())}
		}

		for _, item := range page.Items {
			if item.ContentDetails.VideoID != "" {
				ids = append(ids, item.ContentDetails.VideoID)
			}
		}
		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	if len(ids) == 0 {
		return nil, nil
	}

	// videos.list accepts at most 50 ids per call
	var tracks []*TrackInfo
	for start := 0; start < len(ids); start += 50 {
		end := start + 50
		if end > len(ids) {
			end = len(ids)
		}
		batch, err := s.videoDetails(ctx, ids[start:end])
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, batch...)
	}
	return tracks, nil
}

// CreatePlaylist creates a private playlist on the connected channel
func (s *youtubeService) CreatePlaylist(ctx context.Context, conn models.PlatformConnection, name string) (string, error) {
	if conn.AccessToken == "" {
		return "", &CredentialError{Platform: "youtube", Reason: "missing user access token"}
	}

	var created struct {
		ID string `json:"id"`
	}
	resp, err := s.client.R().
		SetContext(ctx).
		SetAuthToken(conn.AccessToken).
		SetQueryParam("part", "snippet,status").
		SetBody(map[string]any{
			"snippet": map[string]any{"title": name},
			"status":  map[string]any{"privacyStatus": "private"},
		}).
		SetResult(&created).
		Post("/playlists")
	if err != nil {
		return "", &PlatformError{Platform: "youtube", Operation: "create_playlist", Message: "request failed", Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return "", &PlatformError{Platform: "youtube", Operation: "create_playlist", Message: fmt.Sprintf("API returned status %d", resp.StatusCode())}
	}
	return created.ID, nil
}

// AddPlaylistTracks inserts one playlist item per video id
func (s *youtubeService) AddPlaylistTracks(ctx context.Context, conn models.PlatformConnection, playlistID string, videoIDs []string) error {
	if conn.AccessToken == "" {
		return &CredentialError{Platform: "youtube", Reason: "missing user access token"}
	}

	for _, videoID := range videoIDs {
		resp, err := s.client.R().
			SetContext(ctx).
			SetAuthToken(conn.AccessToken).
			SetQueryParam("part", "snippet").
			SetBody(map[string]any{
				"snippet": map[string]any{
					"playlistId": playlistID,
					"resourceId": map[string]any{
						"kind":    "youtube#video",
						"videoId": videoID,
					},
				},
			}).
			Post("/playlistItems")
		if err != nil {
			return &PlatformError{Platform: "youtube", Operation: "add_tracks", Message: "request failed", Err: err}
		}
		if resp.StatusCode() != http.StatusOK {
			return &PlatformError{Platform: "youtube", Operation: "add_tracks", Message: fmt.Sprintf("API returned status %d", resp.StatusCode())}
		}
	}
	return nil
}

func (s *youtubeService) BuildURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}

// Health issues a minimal search to verify key validity
func (s *youtubeService) Health(ctx context.Context) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"part":       "snippet",
			"q":          "test",
			"type":       "video",
			"maxResults": "1",
			"key":        s.apiKey,
		}).
		Get("/search")
	if err != nil {
		return err
	}
	if resp.StatusCode() == http.StatusForbidden || resp.StatusCode() == http.StatusUnauthorized {
		return &CredentialError{Platform: "youtube", Reason: fmt.Sprintf("API key rejected (status %d)", resp.StatusCode())}
	}
	if resp.StatusCode() != http.StatusOK {
		return &PlatformError{Platform: "youtube", Operation: "health", Message: fmt.Sprintf("API returned status %d", resp.StatusCode())}
	}
	return nil
}

// videoDetails fetches snippet + duration for up to 50 video ids, preserving
// the input order.
func (s *youtubeService) videoDetails(ctx context.Context, ids []string) ([]*TrackInfo, error) {
	var result ytVideosResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"part": "snippet,contentDetails",
			"id":   strings.Join(ids, ","),
			"key":  s.apiKey,
		}).
		SetResult(&result).
		Get("/videos")
	if err != nil {
		return nil, &PlatformError{Platform: "youtube", Operation: "get_videos", Message: "request failed", Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &PlatformError{Platform: "youtube", Operation: "get_videos", Message: fmt.Sprintf("API returned status %d", resp.StatusCode())}
	}

	byID := make(map[string]*TrackInfo, len(result.Items))
	for _, item := range result.Items {
		var imageURL string
		if item.Snippet.Thumbnails.Medium.URL != "" {
			imageURL = item.Snippet.Thumbnails.Medium.URL
		} else {
			imageURL = item.Snippet.Thumbnails.Default.URL
		}
		byID[item.ID] = &TrackInfo{
			Platform:   "youtube",
			ExternalID: item.ID,
			URL:        s.BuildURL(item.ID),
			Title:      item.Snippet.Title,
			Artists:    []string{item.Snippet.ChannelTitle},
			Duration:   parseISO8601Duration(item.ContentDetails.Duration),
			ImageURL:   imageURL,
			Available:  true,
		}
	}

	tracks := make([]*TrackInfo, 0, len(byID))
	for _, id := range ids {
		if track, ok := byID[id]; ok {
			tracks = append(tracks, track)
		}
	}
	return tracks, nil
}

var iso8601DurationRE = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// parseISO8601Duration converts the API's "PT4M5S" form to milliseconds.
// Returns 0 on anything unparseable (live streams report "P0D").
func parseISO8601Duration(s string) int {
	matches := iso8601DurationRE.FindStringSubmatch(s)
	if matches == nil {
		return 0
	}
	hours, _ := strconv.Atoi(matches[1])
	minutes, _ := strconv.Atoi(matches[2])
	seconds, _ := strconv.Atoi(matches[3])
	return ((hours*60+minutes)*60 + seconds) * 1000
}

// YouTube Data API response structures
type ytSearchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
	} `json:"items"`
}

type ytVideosResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title        string `json:"title"`
			ChannelTitle string `json:"channelTitle"`
			Thumbnails   struct {
				Default struct {
					URL string `json:"url"`
				} `json:"default"`
				Medium struct {
					URL string `json:"url"`
				} `json:"medium"`
			} `json:"thumbnails"`
		} `json:"snippet"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
	} `json:"items"`
}

type ytPlaylistItemsResponse struct {
	Items []struct {
		ContentDetails struct {
			VideoID string `json:"videoId"`
		} `json:"contentDetails"`
	} `json:"items"`
	NextPageToken string `json:"nextPageToken"`
}
