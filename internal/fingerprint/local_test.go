package fingerprint

import (
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"tracklink/internal/audio"
	"tracklink/internal/config"
	"tracklink/internal/models"
)

// richSignal mixes a handful of tones whose amplitudes drift over time so the
// spectrogram has peaks in every band.
func richSignal(seconds int, freqs ...float64) []float64 {
	samples := make([]float64, seconds*audio.SampleRate)
	for i := range samples {
		t := float64(i) / audio.SampleRate
		for n, f := range freqs {
			env := 0.5 + 0.5*math.Sin(2*math.Pi*0.3*t+float64(n))
			samples[i] += 0.2 * env * math.Sin(2*math.Pi*f*t)
		}
	}
	return samples
}

func TestComputeLocal_Deterministic(t *testing.T) {
	id := primitive.NewObjectID()
	signal := richSignal(10, 110, 440, 880, 1760, 3520)

	a := ComputeLocal(signal, id)
	b := ComputeLocal(signal, id)

	require.NotEmpty(t, a.Tokens)
	assert.Equal(t, a.Tokens, b.Tokens)
	assert.Equal(t, a.Digest, b.Digest)
	assert.InDelta(t, 10.0, a.DurationSec, 0.01)
}

func TestComputeLocal_TokensSortedUniqueAndCapped(t *testing.T) {
	lf := ComputeLocal(richSignal(30, 110, 220, 440, 880, 1760, 3520, 5000), primitive.NewObjectID())

	assert.LessOrEqual(t, len(lf.Tokens), models.MaxLocalFingerprintTokens)
	assert.True(t, sort.StringsAreSorted(lf.Tokens))

	seen := make(map[string]struct{})
	for _, tok := range lf.Tokens {
		assert.Len(t, tok, 8)
		_, dup := seen[tok]
		assert.False(t, dup, "duplicate token %s", tok)
		seen[tok] = struct{}{}
	}
}

func TestComputeLocal_SilenceYieldsNoTokens(t *testing.T) {
	lf := ComputeLocal(make([]float64, audio.SampleRate*5), primitive.NewObjectID())
	assert.Empty(t, lf.Tokens)
}

func TestComputeLocal_SimilarAudioOverlaps(t *testing.T) {
	base := richSignal(10, 110, 440, 880, 1760)

	noisy := make([]float64, len(base))
	for i, s := range base {
		noisy[i] = s * 0.98
	}

	a := ComputeLocal(base, primitive.NewObjectID())
	b := ComputeLocal(noisy, primitive.NewObjectID())
	require.NotEmpty(t, a.Tokens)

	threshold := config.DefaultScoringConfig().LocalFingerprintStrongJaccard
	assert.GreaterOrEqual(t, models.JaccardSimilarity(a, b), threshold)
}

func TestComputeLocal_DifferentAudioDoesNotCollide(t *testing.T) {
	a := ComputeLocal(richSignal(10, 110, 440, 880, 1760), primitive.NewObjectID())
	b := ComputeLocal(richSignal(10, 150, 600, 1200, 2400), primitive.NewObjectID())

	threshold := config.DefaultScoringConfig().LocalFingerprintStrongJaccard
	assert.Less(t, models.JaccardSimilarity(a, b), threshold)
}
