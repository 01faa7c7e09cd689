package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MaxLocalFingerprintTokens bounds the stored hash set per track.
const MaxLocalFingerprintTokens = 500

// LocalFingerprint is the custom peak-constellation fingerprint of one
// TrackSource. One per track, computed once and immutable until explicitly
// rebuilt. These are never merged; comparison happens pairwise at query time
// via Jaccard similarity on the token sets.
type LocalFingerprint struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TrackSourceID primitive.ObjectID `bson:"track_source_id" json:"track_source_id"`

	// Tokens is a sorted, deduplicated list of peak-pair hashes, capped at
	// MaxLocalFingerprintTokens.
	Tokens      []string `bson:"tokens" json:"tokens"`
	Digest      string   `bson:"digest" json:"digest"`
	DurationSec float64  `bson:"duration_sec" json:"duration_sec"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// TokenSet returns the tokens as a set for similarity computations.
func (lf *LocalFingerprint) TokenSet() map[string]struct{} {
	set := make(map[string]struct{}, len(lf.Tokens))
	for _, tok := range lf.Tokens {
		set[tok] = struct{}{}
	}
	return set
}

// JaccardSimilarity returns |A∩B| / |A∪B| of two fingerprints' token sets.
// Returns 0 when either set is empty.
func JaccardSimilarity(a, b *LocalFingerprint) float64 {
	if a == nil || b == nil || len(a.Tokens) == 0 || len(b.Tokens) == 0 {
		return 0
	}
	setA := a.TokenSet()
	inter := 0
	for _, tok := range b.Tokens {
		if _, ok := setA[tok]; ok {
			inter++
		}
	}
	// tokens are stored deduplicated, so lengths are set sizes
	union := len(a.Tokens) + len(b.Tokens) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
