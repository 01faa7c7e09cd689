package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tracklink/internal/config"
	"tracklink/internal/models"
)

func newTestScorer() *Scorer {
	return NewScorer(config.DefaultScoringConfig())
}

func TestScore_NoisyVideoTitle(t *testing.T) {
	scorer := newTestScorer()

	src := Source{Title: "Runaway", Artist: "AURORA", DurationMs: 245000}
	cand := Candidate{
		ID:          "dQw4w9WgXcQ",
		Title:       "AURORA - Runaway (Official Video)",
		Artist:      "AURORA - Topic",
		DurationSec: 244,
	}

	score := scorer.Score(src, cand)
	assert.GreaterOrEqual(t, score, 0.90)
	assert.Equal(t, models.TrackStatusMatched, scorer.Classify(score))
}

func TestScore_ISRCShortCircuit(t *testing.T) {
	scorer := newTestScorer()

	src := Source{Title: "completely", Artist: "different", DurationMs: 10000, ISRC: " usum71703861 "}
	cand := Candidate{Title: "unrelated garbage", Artist: "nobody", DurationSec: 500, ISRC: "USUM71703861"}

	assert.Equal(t, 1.0, scorer.Score(src, cand))
}

func TestScore_ISRCMismatchFallsThrough(t *testing.T) {
	scorer := newTestScorer()

	src := Source{Title: "Runaway", Artist: "AURORA", DurationMs: 245000, ISRC: "AAAAA0000001"}
	cand := Candidate{Title: "Runaway", Artist: "AURORA", DurationSec: 245, ISRC: "BBBBB0000002"}

	// differing ISRCs do not zero the score, text still matches
	assert.GreaterOrEqual(t, scorer.Score(src, cand), 0.90)
}

func TestScore_UnknownDurationRedistributesWeight(t *testing.T) {
	scorer := newTestScorer()

	src := Source{Title: "Runaway", Artist: "AURORA"}
	cand := Candidate{Title: "Runaway", Artist: "AURORA", DurationSec: 244}

	// perfect title and artist with no duration must still reach 1.0
	assert.InDelta(t, 1.0, scorer.Score(src, cand), 1e-9)
}

func TestScore_VersionPenaltyAsymmetric(t *testing.T) {
	scorer := newTestScorer()

	src := Source{Title: "Runaway", Artist: "AURORA", DurationMs: 245000}
	remix := Candidate{Title: "Runaway (Remix)", Artist: "AURORA", DurationSec: 245}
	plain := Candidate{Title: "Runaway", Artist: "AURORA", DurationSec: 245}

	assert.Less(t, scorer.Score(src, remix), scorer.Score(src, plain))

	// source already a remix: candidate remix is not penalized
	remixSrc := Source{Title: "Runaway (Remix)", Artist: "AURORA", DurationMs: 245000}
	assert.GreaterOrEqual(t, scorer.Score(remixSrc, remix), scorer.Score(src, remix))
}

func TestScore_AlwaysClamped(t *testing.T) {
	scorer := newTestScorer()

	pairs := []struct {
		src  Source
		cand Candidate
	}{
		{Source{}, Candidate{}},
		{Source{Title: "a"}, Candidate{Title: "zzz (Live) (Remix)"}},
		{Source{Title: "x", Artist: "y", DurationMs: 1000}, Candidate{Title: "x (Acoustic)", DurationSec: 600}},
		{Source{Title: "Runaway", Artist: "AURORA", DurationMs: 245000}, Candidate{Title: "Runaway", Artist: "AURORA", DurationSec: 245, ISRC: "XX"}},
	}

	for _, p := range pairs {
		score := scorer.Score(p.src, p.cand)
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 1.0)
	}
}

func TestArtistScore(t *testing.T) {
	scorer := newTestScorer()

	tests := []struct {
		name   string
		src    string
		cand   string
		min    float64
		max    float64
	}{
		{"exact", "AURORA", "AURORA", 1.0, 1.0},
		{"topic channel", "AURORA", "AURORA - Topic", 1.0, 1.0},
		{"vevo suffix", "Daft Punk", "DaftPunkVEVO", 0.70, 1.0},
		{"permalink slug", "Flume", "flume-music", 1.0, 1.0},
		{"compound prefix", "ODESZA", "odeszaofficialextra", 0.50, 0.85},
		{"neutral when source empty", "", "whoever", 0.5, 0.5},
		{"neutral when candidate empty", "AURORA", "", 0.5, 0.5},
		{"unrelated", "AURORA", "Metallica", 0.0, 0.45},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := scorer.artistScore(tt.src, tt.cand)
			assert.GreaterOrEqual(t, score, tt.min)
			assert.LessOrEqual(t, score, tt.max)
		})
	}
}

func TestDurationScore(t *testing.T) {
	scorer := newTestScorer()

	tests := []struct {
		name     string
		durMs    int
		durSec   int
		expected float64
		known    bool
	}{
		{"exact", 245000, 245, 1.0, true},
		{"within tolerance", 245000, 241, 1.0, true},
		{"partial decay", 245000, 225, 0.5, true},
		{"beyond cutoff", 245000, 180, 0.0, true},
		{"source unknown", 0, 245, 0.0, false},
		{"candidate unknown", 245000, 0, 0.0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, known := scorer.durationScore(tt.durMs, tt.durSec)
			assert.Equal(t, tt.known, known)
			assert.InDelta(t, tt.expected, score, 1e-9)
		})
	}
}

func TestClassify(t *testing.T) {
	scorer := newTestScorer()

	tests := []struct {
		confidence float64
		expected   string
	}{
		{1.0, models.TrackStatusMatched},
		{0.90, models.TrackStatusMatched},
		{0.89, models.TrackStatusUncertain},
		{0.55, models.TrackStatusUncertain},
		{0.54, models.TrackStatusNotFound},
		{0.0, models.TrackStatusNotFound},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, scorer.Classify(tt.confidence), "confidence %v", tt.confidence)
	}
}

func TestTokenSetRatio(t *testing.T) {
	assert.InDelta(t, 1.0, TokenSetRatio("runaway aurora", "aurora runaway"), 1e-9)
	assert.InDelta(t, 1.0, TokenSetRatio("runaway", "aurora runaway"), 1e-9)
	assert.Equal(t, 0.0, TokenSetRatio("", "anything"))
	assert.Equal(t, 0.0, TokenSetRatio("anything", ""))
	assert.Greater(t, TokenSetRatio("midnight city", "midnight cyti"), 0.5)
	assert.Less(t, TokenSetRatio("aurora", "metallica"), 0.5)
}
