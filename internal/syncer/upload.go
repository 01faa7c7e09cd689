package syncer

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"tracklink/internal/models"
	"tracklink/internal/services"
)

// AudioFetcher obtains a local audio file for a track, downloading it when
// not cached.
type AudioFetcher interface {
	Fetch(ctx context.Context, src *models.TrackSource) (string, error)
}

// Upload is the manual path for tracks that exist nowhere on the target
// platform: download the source audio and upload it there directly. Only
// not-found entries qualify, and the target platform must accept uploads.
func (o *Orchestrator) Upload(ctx context.Context, trackID primitive.ObjectID) (*models.SyncTrack, error) {
	if o.fetcher == nil {
		return nil, fmt.Errorf("audio download is not configured")
	}

	entry, err := o.syncs.FindTrackByID(ctx, trackID)
	if err != nil {
		return nil, fmt.Errorf("loading entry: %w", err)
	}
	if entry == nil {
		return nil, fmt.Errorf("entry %s not found", trackID.Hex())
	}
	if entry.Status != models.TrackStatusNotFound {
		return nil, fmt.Errorf("entry %s is %s, upload requires not_found", trackID.Hex(), entry.Status)
	}

	job, err := o.syncs.FindJobByID(ctx, entry.JobID)
	if err != nil || job == nil {
		return nil, fmt.Errorf("loading job for entry %s: %w", trackID.Hex(), err)
	}

	targetSvc, err := o.registry.Get(entry.TargetPlatform)
	if err != nil {
		return nil, err
	}
	uploader, ok := targetSvc.(services.Uploader)
	if !ok {
		return nil, fmt.Errorf("platform %s does not accept uploads", entry.TargetPlatform)
	}

	entry.Status = models.TrackStatusUploading
	if err := o.syncs.UpdateTrack(ctx, entry); err != nil {
		return nil, err
	}

	info, err := o.uploadEntry(ctx, job, entry, uploader)
	if err != nil {
		entry.Status = models.TrackStatusFailed
		entry.Error = err.Error()
		if updErr := o.syncs.UpdateTrack(ctx, entry); updErr != nil {
			slog.Error("failed to persist upload failure", "entryId", entry.ID.Hex(), "error", updErr)
		}
		return nil, err
	}

	entry.TargetTrackID = info.ExternalID
	entry.TargetTitle = info.Title
	entry.TargetURL = info.URL
	entry.Confidence = 1.0
	entry.Status = models.TrackStatusUploaded
	entry.Error = ""
	if err := o.syncs.UpdateTrack(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (o *Orchestrator) uploadEntry(ctx context.Context, job *models.SyncJob, entry *models.SyncTrack, uploader services.Uploader) (*services.TrackInfo, error) {
	srcTrack := models.NewTrackSource(entry.SourcePlatform, entry.SourceTrackID, entry.SourceTitle, entry.SourceArtist)
	srcTrack.DurationMs = entry.SourceDurationMs
	srcTrack.URL = entry.SourceURL
	if stored, err := o.sources.Upsert(ctx, srcTrack); err == nil {
		srcTrack = stored
	}

	audioPath, err := o.fetcher.Fetch(ctx, srcTrack)
	if err != nil {
		return nil, fmt.Errorf("downloading source audio: %w", err)
	}

	info, err := uploader.UploadTrack(ctx, job.Target, entry.SourceTitle, entry.SourceArtist, audioPath)
	if err != nil {
		return nil, fmt.Errorf("uploading to %s: %w", entry.TargetPlatform, err)
	}
	return info, nil
}
