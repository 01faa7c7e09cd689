package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"tracklink/internal/models"
	"tracklink/internal/services"
)

// Push sends every eligible entry of a ready job to the target playlist.
// Eligible means matched or uploaded, plus uncertain entries the user
// confirmed. Tracks already present in the target playlist, and entries
// pushed by an earlier run, are skipped, so pushing twice is harmless.
func (o *Orchestrator) Push(ctx context.Context, jobID primitive.ObjectID, playlistName string) (*models.SyncJob, error) {
	job, err := o.syncs.FindJobByID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("loading job: %w", err)
	}
	if job == nil {
		return nil, fmt.Errorf("job %s not found", jobID.Hex())
	}
	if job.Status != models.JobStatusReady && job.Status != models.JobStatusDone {
		return nil, fmt.Errorf("job %s is %s, push requires ready", jobID.Hex(), job.Status)
	}

	targetSvc, err := o.registry.Get(job.Target.Platform)
	if err != nil {
		return nil, err
	}

	entries, err := o.syncs.FindTracksByJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("loading entries: %w", err)
	}

	if err := o.syncs.SetJobStatus(ctx, job.ID, models.JobStatusSyncing, ""); err != nil {
		return nil, err
	}

	if err := o.push(ctx, job, entries, targetSvc, playlistName); err != nil {
		if stErr := o.syncs.SetJobStatus(ctx, job.ID, models.JobStatusFailed, err.Error()); stErr != nil {
			slog.Error("failed to mark job failed", "jobId", job.ID.Hex(), "error", stErr)
		}
		return nil, err
	}

	now := time.Now()
	job.PushedAt = &now
	job.Status = models.JobStatusDone
	if err := o.syncs.UpdateJob(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

func (o *Orchestrator) push(ctx context.Context, job *models.SyncJob, entries []*models.SyncTrack, targetSvc services.PlatformService, playlistName string) error {
	if job.TargetPlaylistID == "" {
		if playlistName == "" {
			playlistName = job.SourcePlaylistName
		}
		if playlistName == "" {
			playlistName = "tracklink sync"
		}
		playlistID, err := targetSvc.CreatePlaylist(ctx, job.Target, playlistName)
		if err != nil {
			return fmt.Errorf("creating target playlist: %w", err)
		}
		job.TargetPlaylistID = playlistID
		job.TargetPlaylistName = playlistName
		if err := o.syncs.UpdateJob(ctx, job); err != nil {
			return fmt.Errorf("saving target playlist id: %w", err)
		}
	}

	existing := make(map[string]bool)
	if current, err := targetSvc.GetPlaylistTracks(ctx, job.Target, job.TargetPlaylistID); err != nil {
		slog.Warn("could not read target playlist, pushing without dedupe", "jobId", job.ID.Hex(), "error", err)
	} else {
		for _, t := range current {
			existing[t.ExternalID] = true
		}
	}

	var trackIDs []string
	var pushed []*models.SyncTrack
	for _, entry := range entries {
		if !entry.EligibleForPush() || entry.PushedToPlaylist || entry.TargetTrackID == "" {
			continue
		}
		if existing[entry.TargetTrackID] {
			// already in the playlist, just record that
			pushed = append(pushed, entry)
			continue
		}
		trackIDs = append(trackIDs, entry.TargetTrackID)
		pushed = append(pushed, entry)
	}

	if len(trackIDs) > 0 {
		if err := targetSvc.AddPlaylistTracks(ctx, job.Target, job.TargetPlaylistID, trackIDs); err != nil {
			return fmt.Errorf("adding tracks to target playlist: %w", err)
		}
	}

	for _, entry := range pushed {
		entry.PushedToPlaylist = true
		if err := o.syncs.UpdateTrack(ctx, entry); err != nil {
			slog.Error("failed to mark entry pushed", "entryId", entry.ID.Hex(), "error", err)
		}
	}

	slog.Info("pushed job to target playlist",
		"jobId", job.ID.Hex(),
		"playlistId", job.TargetPlaylistID,
		"added", len(trackIDs),
		"skippedExisting", len(pushed)-len(trackIDs))
	return nil
}
