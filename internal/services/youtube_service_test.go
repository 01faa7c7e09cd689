package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracklink/internal/models"
)

func newYouTubeTestService(t *testing.T, handler http.Handler) *youtubeService {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	service := NewYouTubeService("test-key").(*youtubeService)
	service.client.SetBaseURL(server.URL)
	return service
}

func TestYouTubeSearchTrack(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "AURORA runaway", r.URL.Query().Get("q"))
		assert.Equal(t, "video", r.URL.Query().Get("type"))
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		writeJSON(w, map[string]any{
			"items": []map[string]any{
				{"id": map[string]string{"videoId": "dQw4w9WgXcQ"}},
				{"id": map[string]string{"videoId": "abc123def45"}},
			},
		})
	})
	mux.HandleFunc("/videos", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "dQw4w9WgXcQ,abc123def45", r.URL.Query().Get("id"))
		writeJSON(w, map[string]any{
			"items": []map[string]any{
				{
					"id": "dQw4w9WgXcQ",
					"snippet": map[string]any{
						"title":        "AURORA - Runaway (Official Video)",
						"channelTitle": "AURORA - Topic",
					},
					"contentDetails": map[string]string{"duration": "PT4M4S"},
				},
				{
					"id": "abc123def45",
					"snippet": map[string]any{
						"title":        "Runaway (Live)",
						"channelTitle": "AURORA",
					},
					"contentDetails": map[string]string{"duration": "PT5M10S"},
				},
			},
		})
	})
	service := newYouTubeTestService(t, mux)

	tracks, err := service.SearchTrack(context.Background(), SearchQuery{Query: "AURORA runaway", Limit: 5})
	require.NoError(t, err)
	require.Len(t, tracks, 2)

	assert.Equal(t, "dQw4w9WgXcQ", tracks[0].ExternalID)
	assert.Equal(t, "AURORA - Runaway (Official Video)", tracks[0].Title)
	assert.Equal(t, []string{"AURORA - Topic"}, tracks[0].Artists)
	assert.Equal(t, 244000, tracks[0].Duration)
	assert.Equal(t, 310000, tracks[1].Duration)
}

func TestYouTubeSearchTrack_APIError(t *testing.T) {
	service := newYouTubeTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))

	_, err := service.SearchTrack(context.Background(), SearchQuery{Query: "x"})
	require.Error(t, err)
	var platformErr *PlatformError
	require.ErrorAs(t, err, &platformErr)
	assert.Equal(t, "youtube", platformErr.Platform)
}

func TestYouTubeGetPlaylistTracks(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/playlistItems", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"items": []map[string]any{
				{"contentDetails": map[string]string{"videoId": "dQw4w9WgXcQ"}},
			},
		})
	})
	mux.HandleFunc("/videos", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"items": []map[string]any{
				{
					"id": "dQw4w9WgXcQ",
					"snippet": map[string]any{
						"title":        "Runaway",
						"channelTitle": "AURORA",
					},
					"contentDetails": map[string]string{"duration": "PT4M5S"},
				},
			},
		})
	})
	service := newYouTubeTestService(t, mux)

	tracks, err := service.GetPlaylistTracks(context.Background(), models.PlatformConnection{Platform: "youtube"}, "PL123")
	require.NoError(t, err)
	require.Len(t, tracks, 1)
	assert.Equal(t, "dQw4w9WgXcQ", tracks[0].ExternalID)
	assert.Equal(t, 245000, tracks[0].Duration)
}

func TestYouTubeCreatePlaylist_RequiresToken(t *testing.T) {
	service := newYouTubeTestService(t, http.NewServeMux())

	_, err := service.CreatePlaylist(context.Background(), models.PlatformConnection{Platform: "youtube"}, "Synced")
	var credErr *CredentialError
	require.ErrorAs(t, err, &credErr)
	assert.Equal(t, "youtube", credErr.Platform)
}

func TestParseISO8601Duration(t *testing.T) {
	tests := []struct {
		input    string
		expected int
	}{
		{"PT4M5S", 245000},
		{"PT1H2M3S", 3723000},
		{"PT45S", 45000},
		{"PT3M", 180000},
		{"P0D", 0},
		{"", 0},
		{"garbage", 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, parseISO8601Duration(tt.input), "input %q", tt.input)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
