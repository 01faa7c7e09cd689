package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Job lifecycle states
const (
	JobStatusPending   = "pending"
	JobStatusAnalyzing = "analyzing"
	JobStatusReady     = "ready"
	JobStatusSyncing   = "syncing"
	JobStatusDone      = "done"
	JobStatusFailed    = "failed"
)

// Per-entry match states
const (
	TrackStatusPending   = "pending"
	TrackStatusMatched   = "matched"
	TrackStatusUncertain = "uncertain"
	TrackStatusNotFound  = "not_found"
	TrackStatusUploading = "uploading"
	TrackStatusUploaded  = "uploaded"
	TrackStatusSkipped   = "skipped"
	TrackStatusFailed    = "failed"
)

// User feedback values, orthogonal to status
const (
	FeedbackNone      = ""
	FeedbackConfirmed = "confirmed"
	FeedbackRejected  = "rejected"
)

// PlatformConnection identifies one side of a sync: which platform and the
// ready-to-use access token for it. Token exchange happens upstream; the
// engine only consumes tokens.
type PlatformConnection struct {
	Platform    string `bson:"platform" json:"platform"`
	AccessToken string `bson:"access_token" json:"-"`
	UserID      string `bson:"user_id,omitempty" json:"user_id,omitempty"`
}

// SyncJob is one playlist-to-playlist sync attempt.
type SyncJob struct {
	ID primitive.ObjectID `bson:"_id,omitempty" json:"id"`

	Source PlatformConnection `bson:"source" json:"source"`
	Target PlatformConnection `bson:"target" json:"target"`

	SourcePlaylistID   string `bson:"source_playlist_id" json:"source_playlist_id"`
	SourcePlaylistName string `bson:"source_playlist_name,omitempty" json:"source_playlist_name,omitempty"`
	TargetPlaylistID   string `bson:"target_playlist_id,omitempty" json:"target_playlist_id,omitempty"`
	TargetPlaylistName string `bson:"target_playlist_name,omitempty" json:"target_playlist_name,omitempty"`

	Status string `bson:"status" json:"status"`
	Error  string `bson:"error,omitempty" json:"error,omitempty"`

	TrackCount int        `bson:"track_count" json:"track_count"`
	PushedAt   *time.Time `bson:"pushed_at,omitempty" json:"pushed_at,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// NewSyncJob creates a pending job
func NewSyncJob(source, target PlatformConnection, playlistID string) *SyncJob {
	now := time.Now()
	return &SyncJob{
		Source:           source,
		Target:           target,
		SourcePlaylistID: playlistID,
		Status:           JobStatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Alternative is one ranked non-winning candidate surfaced for manual override.
type Alternative struct {
	TrackID    string  `bson:"track_id" json:"track_id"`
	Title      string  `bson:"title" json:"title"`
	Artist     string  `bson:"artist,omitempty" json:"artist,omitempty"`
	URL        string  `bson:"url,omitempty" json:"url,omitempty"`
	Confidence float64 `bson:"confidence" json:"confidence"`
}

// SyncTrack is one source-playlist entry within a SyncJob: the source metadata
// snapshot, the resolved target, the confidence, and any user feedback.
type SyncTrack struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	JobID    primitive.ObjectID `bson:"job_id" json:"job_id"`
	Position int                `bson:"position" json:"position"`

	// Denormalized from the job so confirmed-match lookups across jobs are a
	// single query
	SourcePlatform string `bson:"source_platform" json:"source_platform"`
	TargetPlatform string `bson:"target_platform" json:"target_platform"`

	// Source snapshot taken at import time
	SourceTrackID    string `bson:"source_track_id" json:"source_track_id"`
	SourceTitle      string `bson:"source_title" json:"source_title"`
	SourceArtist     string `bson:"source_artist,omitempty" json:"source_artist,omitempty"`
	SourceDurationMs int    `bson:"source_duration_ms,omitempty" json:"source_duration_ms,omitempty"`
	SourceURL        string `bson:"source_url,omitempty" json:"source_url,omitempty"`
	SourceISRC       string `bson:"source_isrc,omitempty" json:"source_isrc,omitempty"`

	// Resolved target
	TargetTrackID string  `bson:"target_track_id,omitempty" json:"target_track_id,omitempty"`
	TargetTitle   string  `bson:"target_title,omitempty" json:"target_title,omitempty"`
	TargetURL     string  `bson:"target_url,omitempty" json:"target_url,omitempty"`
	Confidence    float64 `bson:"confidence" json:"confidence"`

	Status   string `bson:"status" json:"status"`
	Feedback string `bson:"feedback,omitempty" json:"feedback,omitempty"`
	Error    string `bson:"error,omitempty" json:"error,omitempty"`

	// RejectedIDs accumulates target ids the user rejected; they are excluded
	// from subsequent searches for this entry.
	RejectedIDs  []string      `bson:"rejected_ids,omitempty" json:"rejected_ids,omitempty"`
	Alternatives []Alternative `bson:"alternatives,omitempty" json:"alternatives,omitempty"`

	PushedToPlaylist bool `bson:"pushed_to_playlist" json:"pushed_to_playlist"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// NewSyncTrack creates a pending entry for a job
func NewSyncTrack(jobID primitive.ObjectID, position int, trackID, title, artist string) *SyncTrack {
	now := time.Now()
	return &SyncTrack{
		JobID:         jobID,
		Position:      position,
		SourceTrackID: trackID,
		SourceTitle:   title,
		SourceArtist:  artist,
		Status:        TrackStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// HasRejected reports whether trackID was previously rejected for this entry.
func (st *SyncTrack) HasRejected(trackID string) bool {
	for _, id := range st.RejectedIDs {
		if id == trackID {
			return true
		}
	}
	return false
}

// IsConfirmed reports sticky user confirmation on this entry.
func (st *SyncTrack) IsConfirmed() bool {
	return st.Feedback == FeedbackConfirmed
}

// EligibleForPush reports whether this entry should be included when pushing
// the job to the target playlist: matched or manually uploaded entries, plus
// uncertain entries the user confirmed.
func (st *SyncTrack) EligibleForPush() bool {
	switch st.Status {
	case TrackStatusMatched, TrackStatusUploaded:
		return true
	case TrackStatusUncertain:
		return st.IsConfirmed()
	}
	return false
}
