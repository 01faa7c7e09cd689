package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CurrentAlgoVersion is bumped whenever the fingerprint pipeline changes in a
// way that invalidates stored analysis. Records carrying an older version are
// re-analyzed on next access.
const CurrentAlgoVersion = 2

// Fingerprint source tags, recording which pipeline stages contributed.
const (
	FingerprintSourceAcoustID      = "acoustid"
	FingerprintSourceAcoustIDLocal = "acoustid+local"
	FingerprintSourceLocalOnly     = "local-analysis"
)

// Fingerprint is one believed-unique recording. Many TrackSources across
// platforms may point at the same Fingerprint. At most one live record exists
// per MBID; duplicates are collapsed by merging, never split.
type Fingerprint struct {
	ID primitive.ObjectID `bson:"_id,omitempty" json:"id"`

	// MBID is the MusicBrainz recording identifier from acoustic lookup.
	// Empty for records built from local analysis only.
	MBID        string   `bson:"mbid,omitempty" json:"mbid,omitempty"`
	ISRCs       []string `bson:"isrcs,omitempty" json:"isrcs,omitempty"`
	Chromaprint string   `bson:"chromaprint,omitempty" json:"chromaprint,omitempty"`

	BPM  float64 `bson:"bpm,omitempty" json:"bpm,omitempty"`
	Key  string  `bson:"key,omitempty" json:"key,omitempty"`
	Mode string  `bson:"mode,omitempty" json:"mode,omitempty"`

	// Recognition-service identity, filled only for fields not already set
	ShazamID       string `bson:"shazam_id,omitempty" json:"shazam_id,omitempty"`
	ShazamTitle    string `bson:"shazam_title,omitempty" json:"shazam_title,omitempty"`
	ShazamArtist   string `bson:"shazam_artist,omitempty" json:"shazam_artist,omitempty"`
	ShazamAlbum    string `bson:"shazam_album,omitempty" json:"shazam_album,omitempty"`
	ShazamGenre    string `bson:"shazam_genre,omitempty" json:"shazam_genre,omitempty"`
	ShazamURI      string `bson:"shazam_uri,omitempty" json:"shazam_uri,omitempty"`
	ShazamCoverURL string `bson:"shazam_cover_url,omitempty" json:"shazam_cover_url,omitempty"`

	Source      string `bson:"source" json:"source"`
	AlgoVersion int    `bson:"algo_version" json:"algo_version"`

	MatchCount    int        `bson:"match_count" json:"match_count"`
	LastMatchedAt *time.Time `bson:"last_matched_at,omitempty" json:"last_matched_at,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// NewFingerprint creates a Fingerprint at the current algorithm version
func NewFingerprint(source string) *Fingerprint {
	now := time.Now()
	return &Fingerprint{
		Source:      source,
		AlgoVersion: CurrentAlgoVersion,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// IsStale reports whether the record predates the current algorithm version
// and should be re-analyzed on next access.
func (f *Fingerprint) IsStale() bool {
	return f.AlgoVersion < CurrentAlgoVersion
}

// HasISRC reports whether isrc appears in the record's ISRC set.
func (f *Fingerprint) HasISRC(isrc string) bool {
	for _, v := range f.ISRCs {
		if v == isrc {
			return true
		}
	}
	return false
}

// AddISRCs appends codes not already present, preserving order.
func (f *Fingerprint) AddISRCs(isrcs []string) {
	for _, isrc := range isrcs {
		if isrc != "" && !f.HasISRC(isrc) {
			f.ISRCs = append(f.ISRCs, isrc)
		}
	}
}
