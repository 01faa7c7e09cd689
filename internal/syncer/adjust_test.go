package syncer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tracklink/internal/config"
	"tracklink/internal/models"
	"tracklink/internal/testutil"
)

func localFP(tokens ...string) *models.LocalFingerprint {
	return &models.LocalFingerprint{Tokens: tokens}
}

func TestAdjustConfidence_MBIDRules(t *testing.T) {
	a := testutil.NewFingerprintBuilder().WithMBID("mbid-1").Build()
	same := testutil.NewFingerprintBuilder().WithMBID("mbid-1").Build()
	other := testutil.NewFingerprintBuilder().WithMBID("mbid-2").Build()

	assert.Equal(t, 1.0, AdjustConfidence(nil, 0.60, a, same, nil, nil))
	assert.InDelta(t, 0.45, AdjustConfidence(nil, 0.60, a, other, nil, nil), 1e-9)
	assert.Equal(t, 0.0, AdjustConfidence(nil, 0.10, a, other, nil, nil), "penalty clamps at zero")
}

func TestAdjustConfidence_ISRCRules(t *testing.T) {
	a := testutil.NewFingerprintBuilder().WithISRCs(testutil.TestISRC1, "GBX111111111").Build()
	overlapping := testutil.NewFingerprintBuilder().WithISRCs(testutil.TestISRC1).Build()
	disjoint := testutil.NewFingerprintBuilder().WithISRCs(testutil.TestISRC3).Build()

	assert.Equal(t, 1.0, AdjustConfidence(nil, 0.60, a, overlapping, nil, nil))
	assert.InDelta(t, 0.50, AdjustConfidence(nil, 0.60, a, disjoint, nil, nil), 1e-9)
}

func TestAdjustConfidence_MBIDOutranksISRC(t *testing.T) {
	// different MBIDs penalize even when an ISRC is shared
	a := testutil.NewFingerprintBuilder().WithMBID("mbid-1").WithISRCs(testutil.TestISRC1).Build()
	b := testutil.NewFingerprintBuilder().WithMBID("mbid-2").WithISRCs(testutil.TestISRC1).Build()

	assert.InDelta(t, 0.45, AdjustConfidence(nil, 0.60, a, b, nil, nil), 1e-9)
}

func TestAdjustConfidence_ShazamEquality(t *testing.T) {
	a := testutil.NewFingerprintBuilder().WithShazamID("shz-1").Build()
	same := testutil.NewFingerprintBuilder().WithShazamID("shz-1").Build()
	other := testutil.NewFingerprintBuilder().WithShazamID("shz-2").Build()

	assert.Equal(t, 1.0, AdjustConfidence(nil, 0.60, a, same, nil, nil))
	// unequal ids are not a penalty, the cascade just falls through
	assert.Equal(t, 0.60, AdjustConfidence(nil, 0.60, a, other, nil, nil))
}

func TestAdjustConfidence_LocalFingerprintSimilarity(t *testing.T) {
	strongA := localFP("t0", "t1", "t2", "t3")
	strongB := localFP("t0", "t1", "t2", "u0") // similarity 0.6

	assert.Equal(t, 0.95, AdjustConfidence(nil, 0.60, nil, nil, strongA, strongB))
	assert.Equal(t, 0.97, AdjustConfidence(nil, 0.97, nil, nil, strongA, strongB), "strong match never lowers")

	weakA := localFP("t0", "t1", "t2", "t3", "t4")
	weakB := localFP("t0", "u1", "u2", "u3", "u4") // similarity 1/9
	got := AdjustConfidence(nil, 0.70, nil, nil, weakA, weakB)
	assert.InDelta(t, 0.70+(1.0/9.0)*0.5, got, 1e-9)
}

func TestAdjustConfidence_JaccardThresholdsComeFromConfig(t *testing.T) {
	a := localFP("t0", "t1", "t2", "t3")
	b := localFP("t0", "t1", "t2", "u0") // similarity 0.6

	// with a raised strong threshold the same pair only gets the weak boost
	cfg := config.DefaultScoringConfig()
	cfg.LocalFingerprintStrongJaccard = 0.75
	cfg.LocalFingerprintWeakJaccard = 0.50

	assert.InDelta(t, 0.60+0.6*0.5, AdjustConfidence(cfg, 0.60, nil, nil, a, b), 1e-9)

	cfg.LocalFingerprintWeakJaccard = 0.70
	assert.Equal(t, 0.60, AdjustConfidence(cfg, 0.60, nil, nil, a, b), "below both thresholds nothing applies")
}

func TestAdjustConfidence_BPMProximity(t *testing.T) {
	near := testutil.NewFingerprintBuilder().WithBPM(120).Build()
	tests := []struct {
		name string
		bpm  float64
		want float64
	}{
		{"identical tempo", 120, 0.65},
		{"within tolerance", 121, 0.65},
		{"double tempo", 240, 0.65},
		{"half tempo", 60, 0.65},
		{"unrelated tempo", 97, 0.50},
		{"slightly off", 128, 0.60},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			other := testutil.NewFingerprintBuilder().WithBPM(tt.bpm).Build()
			assert.InDelta(t, tt.want, AdjustConfidence(nil, 0.60, near, other, nil, nil), 1e-9)
		})
	}
}

func TestAdjustConfidence_KeyProximity(t *testing.T) {
	base := testutil.NewFingerprintBuilder().WithKey("A", "minor").Build()
	tests := []struct {
		name      string
		key, mode string
		want      float64
	}{
		{"key and mode match", "A", "minor", 0.63},
		{"key only", "A", "major", 0.61},
		{"different key", "C", "major", 0.55},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			other := testutil.NewFingerprintBuilder().WithKey(tt.key, tt.mode).Build()
			assert.InDelta(t, tt.want, AdjustConfidence(nil, 0.60, base, other, nil, nil), 1e-9)
		})
	}
}

func TestAdjustConfidence_BPMAndKeyCombine(t *testing.T) {
	a := testutil.NewFingerprintBuilder().WithBPM(120).WithKey("A", "minor").Build()
	b := testutil.NewFingerprintBuilder().WithBPM(120).WithKey("A", "minor").Build()

	assert.InDelta(t, 0.68, AdjustConfidence(nil, 0.60, a, b, nil, nil), 1e-9)
}

func TestAdjustConfidence_NoEvidenceLeavesScore(t *testing.T) {
	assert.Equal(t, 0.73, AdjustConfidence(nil, 0.73, nil, nil, nil, nil))

	empty := testutil.NewFingerprintBuilder().Build()
	assert.Equal(t, 0.73, AdjustConfidence(nil, 0.73, empty, empty, nil, nil))
}

func TestAdjustConfidence_AlwaysClamped(t *testing.T) {
	a := testutil.NewFingerprintBuilder().WithBPM(120).WithKey("A", "minor").Build()
	b := testutil.NewFingerprintBuilder().WithBPM(120).WithKey("A", "minor").Build()

	assert.Equal(t, 1.0, AdjustConfidence(nil, 0.99, a, b, nil, nil))
}
