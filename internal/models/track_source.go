package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TrackSource is one track as seen on one platform. There is exactly one
// document per (platform, track_id); re-encounters update the existing
// document via upsert rather than creating a new one.
type TrackSource struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Platform string             `bson:"platform" json:"platform"`
	TrackID  string             `bson:"track_id" json:"track_id"`

	Title      string `bson:"title" json:"title"`
	Artist     string `bson:"artist" json:"artist"`
	Album      string `bson:"album,omitempty" json:"album,omitempty"`
	DurationMs int    `bson:"duration_ms,omitempty" json:"duration_ms,omitempty"`
	ArtworkURL string `bson:"artwork_url,omitempty" json:"artwork_url,omitempty"`
	URL        string `bson:"url,omitempty" json:"url,omitempty"`
	ISRC       string `bson:"isrc,omitempty" json:"isrc,omitempty"`

	// FingerprintID points at the Fingerprint this track resolved to. At most
	// one link at a time; reassignment is an atomic replace.
	FingerprintID *primitive.ObjectID `bson:"fingerprint_id,omitempty" json:"fingerprint_id,omitempty"`

	// Cached audio, populated by the download step. The file may vanish from
	// disk; the path is a hint, not a guarantee.
	AudioPath   string `bson:"audio_path,omitempty" json:"audio_path,omitempty"`
	AudioFormat string `bson:"audio_format,omitempty" json:"audio_format,omitempty"`
	AudioSize   int64  `bson:"audio_size,omitempty" json:"audio_size,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// NewTrackSource creates a TrackSource with timestamps set
func NewTrackSource(platform, trackID, title, artist string) *TrackSource {
	now := time.Now()
	return &TrackSource{
		Platform:  platform,
		TrackID:   trackID,
		Title:     title,
		Artist:    artist,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// DurationSec returns the duration in whole seconds, or 0 when unknown.
func (t *TrackSource) DurationSec() int {
	return t.DurationMs / 1000
}

// HasCachedAudio reports whether a download step has recorded an audio path.
// The caller still has to stat the file; cache entries can outlive the file.
func (t *TrackSource) HasCachedAudio() bool {
	return t.AudioPath != ""
}
