package matching

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracklink/internal/config"
)

// fakeSearch returns the same candidate list for every query and records
// the queries it saw.
func fakeSearch(results []Candidate, queries *[]string) SearchFunc {
	return func(ctx context.Context, query string, limit int) ([]Candidate, error) {
		if queries != nil {
			*queries = append(*queries, query)
		}
		if len(results) > limit {
			return results[:limit], nil
		}
		return results, nil
	}
}

func newTestSearcher() *Searcher {
	return NewSearcher(NewScorer(config.DefaultScoringConfig()), nil)
}

func TestFindBestMatch_Level1Hit(t *testing.T) {
	searcher := newTestSearcher()
	src := Source{Title: "Runaway", Artist: "AURORA", DurationMs: 245000}

	results := []Candidate{
		{ID: "good", Title: "AURORA - Runaway (Official Video)", Artist: "AURORA - Topic", DurationSec: 244, URL: "https://youtube.com/watch?v=good"},
		{ID: "remix", Title: "Runaway (Remix)", Artist: "AURORA", DurationSec: 250},
		{ID: "junk", Title: "Cat Compilation 2024", Artist: "FunnyCats", DurationSec: 600},
	}

	outcome := searcher.FindBestMatch(context.Background(), src, fakeSearch(results, nil), nil)

	require.True(t, outcome.Found())
	assert.Equal(t, "good", outcome.TrackID)
	assert.Equal(t, "https://youtube.com/watch?v=good", outcome.URL)
	assert.GreaterOrEqual(t, outcome.Confidence, 0.90)

	for _, alt := range outcome.Alternatives {
		assert.NotEqual(t, "good", alt.TrackID, "winner must not appear in alternatives")
	}
}

func TestFindBestMatch_ExcludesRejected(t *testing.T) {
	searcher := newTestSearcher()
	src := Source{Title: "Runaway", Artist: "AURORA", DurationMs: 245000}

	results := []Candidate{
		{ID: "rejected", Title: "Runaway", Artist: "AURORA", DurationSec: 245},
		{ID: "second", Title: "AURORA - Runaway (Official Video)", Artist: "AURORA - Topic", DurationSec: 244},
	}

	outcome := searcher.FindBestMatch(context.Background(), src, fakeSearch(results, nil), []string{"rejected"})

	require.True(t, outcome.Found())
	assert.Equal(t, "second", outcome.TrackID)
	for _, alt := range outcome.Alternatives {
		assert.NotEqual(t, "rejected", alt.TrackID)
	}
}

func TestFindBestMatch_DeduplicatesAcrossQueries(t *testing.T) {
	searcher := newTestSearcher()
	src := Source{Title: "Runaway (Official Video)", Artist: "AURORA", DurationMs: 245000}

	var calls int
	search := func(ctx context.Context, query string, limit int) ([]Candidate, error) {
		calls++
		return []Candidate{
			{ID: "only", Title: "Runaway", Artist: "AURORA", DurationSec: 245},
		}, nil
	}

	outcome := searcher.FindBestMatch(context.Background(), src, search, nil)

	require.True(t, outcome.Found())
	assert.Greater(t, calls, 1, "multiple queries expected")
	assert.Empty(t, outcome.Alternatives, "duplicate ids must collapse into one candidate")
}

func TestFindBestMatch_NotFoundReturnsPicker(t *testing.T) {
	searcher := newTestSearcher()
	src := Source{Title: "Obscure B-Side", Artist: "Nobody Known", DurationMs: 200000}

	var queries []string
	results := []Candidate{
		{ID: "a", Title: "Totally Different Song", Artist: "Other Band", DurationSec: 300},
		{ID: "b", Title: "Another Miss", Artist: "Who Dis", DurationSec: 100},
	}

	outcome := searcher.FindBestMatch(context.Background(), src, fakeSearch(results, &queries), nil)

	assert.False(t, outcome.Found())
	assert.Empty(t, outcome.TrackID)
	assert.Zero(t, outcome.Confidence)
	assert.NotEmpty(t, outcome.Alternatives, "picker falls back to best-effort candidates")
	assert.LessOrEqual(t, len(outcome.Alternatives), config.DefaultScoringConfig().PickerResultSize)

	// the fallback raw query runs after the built queries
	last := queries[len(queries)-1]
	assert.True(t, strings.Contains(last, "Obscure B-Side") && strings.Contains(last, "Nobody Known"))
}

func TestFindBestMatch_SearchErrorsSkipped(t *testing.T) {
	searcher := newTestSearcher()
	src := Source{Title: "Runaway", Artist: "AURORA", DurationMs: 245000}

	var calls int
	search := func(ctx context.Context, query string, limit int) ([]Candidate, error) {
		calls++
		if calls == 1 {
			return nil, assert.AnError
		}
		return []Candidate{
			{ID: "late", Title: "Runaway", Artist: "AURORA", DurationSec: 245},
		}, nil
	}

	outcome := searcher.FindBestMatch(context.Background(), src, search, nil)

	require.True(t, outcome.Found())
	assert.Equal(t, "late", outcome.TrackID)
}

func TestFindBestMatch_AlternativesRankedAndCapped(t *testing.T) {
	cfg := config.DefaultScoringConfig()
	searcher := NewSearcher(NewScorer(cfg), nil)
	src := Source{Title: "Runaway", Artist: "AURORA", DurationMs: 245000}

	results := []Candidate{
		{ID: "winner", Title: "Runaway", Artist: "AURORA", DurationSec: 245},
		{ID: "close1", Title: "Runaway", Artist: "AURORA", DurationSec: 252},
		{ID: "close2", Title: "Runaway (Live)", Artist: "AURORA", DurationSec: 245},
		{ID: "close3", Title: "Runaway", Artist: "AURORA Covers", DurationSec: 245},
		{ID: "far", Title: "Unrelated Noise", Artist: "Someone", DurationSec: 30},
	}

	outcome := searcher.FindBestMatch(context.Background(), src, fakeSearch(results, nil), nil)

	require.True(t, outcome.Found())
	assert.Equal(t, "winner", outcome.TrackID)
	require.NotEmpty(t, outcome.Alternatives)
	assert.LessOrEqual(t, len(outcome.Alternatives), cfg.MaxAlternatives)

	for i := 1; i < len(outcome.Alternatives); i++ {
		assert.GreaterOrEqual(t, outcome.Alternatives[i-1].Confidence, outcome.Alternatives[i].Confidence)
	}
	for _, alt := range outcome.Alternatives {
		assert.NotEqual(t, "far", alt.TrackID, "below-floor candidates are dropped")
		assert.GreaterOrEqual(t, alt.Confidence, cfg.ThresholdUncertain*0.6)
	}
}
