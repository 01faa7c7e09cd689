package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprintIsStale(t *testing.T) {
	fp := NewFingerprint(FingerprintSourceAcoustID)
	assert.False(t, fp.IsStale())

	fp.AlgoVersion = CurrentAlgoVersion - 1
	assert.True(t, fp.IsStale())
}

func TestFingerprintAddISRCs(t *testing.T) {
	fp := NewFingerprint(FingerprintSourceAcoustID)

	fp.AddISRCs([]string{"USUM71703861", "GBUM71029604"})
	assert.Equal(t, []string{"USUM71703861", "GBUM71029604"}, fp.ISRCs)

	// duplicates and empties are dropped
	fp.AddISRCs([]string{"USUM71703861", "", "QZES72013337"})
	assert.Equal(t, []string{"USUM71703861", "GBUM71029604", "QZES72013337"}, fp.ISRCs)

	assert.True(t, fp.HasISRC("GBUM71029604"))
	assert.False(t, fp.HasISRC("XX0000000000"))
}

func TestJaccardSimilarity(t *testing.T) {
	a := &LocalFingerprint{Tokens: []string{"a", "b", "c"}}
	b := &LocalFingerprint{Tokens: []string{"b", "c", "d"}}

	// |{b,c}| / |{a,b,c,d}| = 2/4
	assert.InDelta(t, 0.5, JaccardSimilarity(a, b), 1e-9)
	assert.InDelta(t, 0.5, JaccardSimilarity(b, a), 1e-9)

	assert.Equal(t, 1.0, JaccardSimilarity(a, a))
	assert.Equal(t, 0.0, JaccardSimilarity(a, &LocalFingerprint{}))
	assert.Equal(t, 0.0, JaccardSimilarity(nil, b))
}
