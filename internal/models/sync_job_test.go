package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestNewSyncTrackDefaults(t *testing.T) {
	jobID := primitive.NewObjectID()
	st := NewSyncTrack(jobID, 3, "track-1", "Runaway", "AURORA")

	assert.Equal(t, jobID, st.JobID)
	assert.Equal(t, 3, st.Position)
	assert.Equal(t, TrackStatusPending, st.Status)
	assert.Equal(t, FeedbackNone, st.Feedback)
}

func TestSyncTrackHasRejected(t *testing.T) {
	st := NewSyncTrack(primitive.NewObjectID(), 0, "track-1", "Runaway", "AURORA")
	st.RejectedIDs = []string{"yt-1", "yt-2"}

	assert.True(t, st.HasRejected("yt-2"))
	assert.False(t, st.HasRejected("yt-3"))
}

func TestSyncTrackEligibleForPush(t *testing.T) {
	tests := []struct {
		name     string
		status   string
		feedback string
		want     bool
	}{
		{"matched", TrackStatusMatched, FeedbackNone, true},
		{"uploaded", TrackStatusUploaded, FeedbackNone, true},
		{"uncertain unconfirmed", TrackStatusUncertain, FeedbackNone, false},
		{"uncertain confirmed", TrackStatusUncertain, FeedbackConfirmed, true},
		{"uncertain rejected", TrackStatusUncertain, FeedbackRejected, false},
		{"not found", TrackStatusNotFound, FeedbackNone, false},
		{"skipped", TrackStatusSkipped, FeedbackNone, false},
		{"pending", TrackStatusPending, FeedbackNone, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := NewSyncTrack(primitive.NewObjectID(), 0, "track-1", "Runaway", "AURORA")
			st.Status = tt.status
			st.Feedback = tt.feedback
			assert.Equal(t, tt.want, st.EligibleForPush())
		})
	}
}

func TestNewSyncJobDefaults(t *testing.T) {
	job := NewSyncJob(
		PlatformConnection{Platform: "spotify"},
		PlatformConnection{Platform: "youtube"},
		"playlist-1",
	)

	assert.Equal(t, JobStatusPending, job.Status)
	assert.Equal(t, "spotify", job.Source.Platform)
	assert.Equal(t, "youtube", job.Target.Platform)
	assert.Equal(t, "playlist-1", job.SourcePlaylistID)
}
