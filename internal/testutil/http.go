package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

// HTTPTestHelper provides utilities for HTTP testing
type HTTPTestHelper struct {
	t      *testing.T
	router *gin.Engine
}

// NewHTTPTestHelper creates a new HTTP test helper
func NewHTTPTestHelper(t *testing.T) *HTTPTestHelper {
	gin.SetMode(gin.TestMode)
	return &HTTPTestHelper{
		t:      t,
		router: gin.New(),
	}
}

// SetRouter sets the gin router to use for testing
func (h *HTTPTestHelper) SetRouter(router *gin.Engine) {
	h.router = router
}

// PostJSON performs a POST request with JSON payload
func (h *HTTPTestHelper) PostJSON(url string, payload interface{}) *httptest.ResponseRecorder {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		require.NoError(h.t, err, "Failed to marshal JSON payload")
	}

	req, err := http.NewRequest("POST", url, bytes.NewBuffer(body))
	require.NoError(h.t, err, "Failed to create HTTP request")

	req.Header.Set("Content-Type", "application/json")

	recorder := httptest.NewRecorder()
	h.router.ServeHTTP(recorder, req)

	return recorder
}

// GetJSON performs a GET request expecting JSON response
func (h *HTTPTestHelper) GetJSON(url string) *httptest.ResponseRecorder {
	req, err := http.NewRequest("GET", url, nil)
	require.NoError(h.t, err, "Failed to create HTTP request")

	req.Header.Set("Accept", "application/json")

	recorder := httptest.NewRecorder()
	h.router.ServeHTTP(recorder, req)

	return recorder
}

// AssertJSONResponse asserts that the response is valid JSON and unmarshals it
func (h *HTTPTestHelper) AssertJSONResponse(recorder *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	require.Equal(h.t, expectedStatus, recorder.Code, "Unexpected status code")
	require.Equal(h.t, "application/json; charset=utf-8", recorder.Header().Get("Content-Type"), "Expected JSON content type")

	err := json.Unmarshal(recorder.Body.Bytes(), target)
	require.NoError(h.t, err, "Failed to unmarshal JSON response")
}

// AssertErrorResponse asserts that the response contains an error
func (h *HTTPTestHelper) AssertErrorResponse(recorder *httptest.ResponseRecorder, expectedStatus int, expectedErrorSubstring string) {
	require.Equal(h.t, expectedStatus, recorder.Code, "Unexpected status code")

	var errorResponse map[string]interface{}
	err := json.Unmarshal(recorder.Body.Bytes(), &errorResponse)
	require.NoError(h.t, err, "Failed to unmarshal error response")

	errorMessage, exists := errorResponse["error"]
	require.True(h.t, exists, "Expected error field in response")
	require.Contains(h.t, errorMessage, expectedErrorSubstring, "Error message should contain expected substring")
}

// MockHTTPServer provides a mock HTTP server for testing external API calls
type MockHTTPServer struct {
	server   *httptest.Server
	handlers map[string]http.HandlerFunc
}

// NewMockHTTPServer creates a new mock HTTP server
func NewMockHTTPServer() *MockHTTPServer {
	mock := &MockHTTPServer{
		handlers: make(map[string]http.HandlerFunc),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", mock.routeRequest)

	mock.server = httptest.NewServer(mux)
	return mock
}

// URL returns the mock server URL
func (m *MockHTTPServer) URL() string {
	return m.server.URL
}

// Close closes the mock server
func (m *MockHTTPServer) Close() {
	m.server.Close()
}

// On registers a handler for a specific path
func (m *MockHTTPServer) On(path string, handler http.HandlerFunc) {
	m.handlers[path] = handler
}

func (m *MockHTTPServer) routeRequest(w http.ResponseWriter, r *http.Request) {
	if handler, exists := m.handlers[r.URL.Path]; exists {
		handler(w, r)
		return
	}
	http.NotFound(w, r)
}

// WriteJSON writes v as a JSON response body
func WriteJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// SpotifyTokenResponse creates a mock Spotify token response
func SpotifyTokenResponse() map[string]interface{} {
	return map[string]interface{}{
		"access_token": "mock-access-token",
		"token_type":   "Bearer",
		"expires_in":   3600,
	}
}

// SpotifyTrackResponse creates a mock Spotify track payload
func SpotifyTrackResponse(trackID, title, artist string, durationMs int) map[string]interface{} {
	return map[string]interface{}{
		"id":   trackID,
		"name": title,
		"artists": []map[string]interface{}{
			{"name": artist},
		},
		"album": map[string]interface{}{
			"name": "Test Album",
			"images": []map[string]interface{}{
				{"url": "https://example.com/image.jpg", "height": 640, "width": 640},
			},
		},
		"duration_ms": durationMs,
		"external_ids": map[string]string{
			"isrc": TestISRC1,
		},
	}
}

// SpotifySearchResponse creates a mock Spotify search response
func SpotifySearchResponse(tracks ...map[string]interface{}) map[string]interface{} {
	items := tracks
	if items == nil {
		items = []map[string]interface{}{}
	}
	return map[string]interface{}{
		"tracks": map[string]interface{}{
			"items": items,
			"total": len(items),
		},
	}
}

// YouTubeSearchResponse creates a mock Data API search response
func YouTubeSearchResponse(videoIDs ...string) map[string]interface{} {
	items := make([]map[string]interface{}, 0, len(videoIDs))
	for _, id := range videoIDs {
		items = append(items, map[string]interface{}{
			"id": map[string]string{"videoId": id},
		})
	}
	return map[string]interface{}{"items": items}
}

// YouTubeVideoResponse creates one item for a mock videos.list response
func YouTubeVideoResponse(videoID, title, channel, isoDuration string) map[string]interface{} {
	return map[string]interface{}{
		"id": videoID,
		"snippet": map[string]interface{}{
			"title":        title,
			"channelTitle": channel,
			"thumbnails": map[string]interface{}{
				"medium": map[string]string{"url": "https://example.com/thumb.jpg"},
			},
		},
		"contentDetails": map[string]string{"duration": isoDuration},
	}
}

// YouTubeVideosResponse wraps video items into a videos.list response
func YouTubeVideosResponse(items ...map[string]interface{}) map[string]interface{} {
	if items == nil {
		items = []map[string]interface{}{}
	}
	return map[string]interface{}{"items": items}
}

// SoundCloudTrackResponse creates a mock SoundCloud track payload
func SoundCloudTrackResponse(id int64, title, username string, durationMs int) map[string]interface{} {
	return map[string]interface{}{
		"id":            id,
		"title":         title,
		"duration":      durationMs,
		"permalink_url": "https://soundcloud.com/test/track",
		"streamable":    true,
		"user": map[string]interface{}{
			"id":       1,
			"username": username,
		},
	}
}
