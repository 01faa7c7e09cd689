package matching

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracklink/internal/config"
)

func newMBTestClient(t *testing.T, handler http.HandlerFunc) *MusicBrainzClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewMusicBrainzClient("tracklink-test/0.1", NewScorer(config.DefaultScoringConfig()))
	client.client.SetBaseURL(server.URL)
	return client
}

func TestEnrich(t *testing.T) {
	var gotQuery, gotInc string
	mb := newMBTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/recording", r.URL.Path)
		gotQuery = r.URL.Query().Get("query")
		gotInc = r.URL.Query().Get("inc")

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"recordings": [
				{
					"id": "b1a9c0e5-d87f-4b2a-9c3d-111111111111",
					"title": "Runaway",
					"score": 100,
					"isrcs": ["NOG841520010"],
					"artist-credit": [{"artist": {"name": "AURORA"}}]
				},
				{
					"id": "deadbeef-0000-0000-0000-000000000000",
					"title": "Completely Unrelated",
					"score": 90,
					"isrcs": []
				}
			]
		}`))
	})

	result := mb.Enrich(context.Background(), "AURORA - Runaway (Official Video)", "AURORA")

	assert.Equal(t, "Runaway", result.Title)
	assert.Equal(t, "AURORA", result.Artist)
	assert.Equal(t, []string{"NOG841520010"}, result.ISRCs)
	assert.Contains(t, gotQuery, `recording:"runaway"`)
	assert.Contains(t, gotQuery, `artist:"aurora"`)
	assert.Equal(t, "isrcs artist-credits", gotInc)
}

func TestEnrich_NoGoodMatch(t *testing.T) {
	mb := newMBTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"recordings": [
				{"id": "x", "title": "Something Else Entirely Different", "score": 40}
			]
		}`))
	})

	result := mb.Enrich(context.Background(), "Runaway", "AURORA")
	assert.Empty(t, result.Title)
	assert.Empty(t, result.ISRCs)
}

func TestEnrich_ServerErrorIsNonFatal(t *testing.T) {
	mb := newMBTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	result := mb.Enrich(context.Background(), "Runaway", "AURORA")
	assert.Empty(t, result.Title)
}

func TestRecordingISRCs(t *testing.T) {
	mb := newMBTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/recording/abc-123", r.URL.Path)
		assert.Equal(t, "isrcs", r.URL.Query().Get("inc"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": "abc-123", "title": "Runaway", "isrcs": ["NOG841520010", "USUM71703861"]}`))
	})

	isrcs, err := mb.RecordingISRCs(context.Background(), "abc-123")
	require.NoError(t, err)
	assert.Equal(t, []string{"NOG841520010", "USUM71703861"}, isrcs)
}
