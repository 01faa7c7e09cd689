package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"tracklink/internal/models"
)

// ErrStopped reports that a library sync honored a stop request.
var ErrStopped = errors.New("library sync stopped by request")

// stopSet holds pending stop requests keyed by job id. Process-wide so an
// HTTP handler can stop a sync started by another request.
var stopSet = struct {
	mu  sync.Mutex
	ids map[string]bool
}{ids: make(map[string]bool)}

// RequestStop asks a running library sync to halt at its next phase boundary.
func RequestStop(jobID primitive.ObjectID) {
	stopSet.mu.Lock()
	defer stopSet.mu.Unlock()
	stopSet.ids[jobID.Hex()] = true
}

func clearStop(key string) {
	stopSet.mu.Lock()
	defer stopSet.mu.Unlock()
	delete(stopSet.ids, key)
}

func stopRequested(key string) bool {
	stopSet.mu.Lock()
	defer stopSet.mu.Unlock()
	return stopSet.ids[key]
}

// SyncLibrary imports a job's source playlist into the track store,
// fingerprints tracks that have no current analysis, and runs the identity
// sweep. Phases check for a stop request between them; a stopped sync leaves
// everything already done in place.
func (o *Orchestrator) SyncLibrary(ctx context.Context, jobID primitive.ObjectID) error {
	job, err := o.syncs.FindJobByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("loading job: %w", err)
	}
	if job == nil {
		return fmt.Errorf("job %s not found", jobID.Hex())
	}

	key := job.ID.Hex()
	defer clearStop(key)

	if err := o.syncs.SetJobStatus(ctx, job.ID, models.JobStatusAnalyzing, ""); err != nil {
		return err
	}

	err = o.syncLibrary(ctx, job, key)
	switch {
	case errors.Is(err, ErrStopped):
		if stErr := o.syncs.SetJobStatus(ctx, job.ID, models.JobStatusReady, "stopped by request"); stErr != nil {
			slog.Error("failed to mark job stopped", "jobId", key, "error", stErr)
		}
		return err
	case err != nil:
		if stErr := o.syncs.SetJobStatus(ctx, job.ID, models.JobStatusFailed, err.Error()); stErr != nil {
			slog.Error("failed to mark job failed", "jobId", key, "error", stErr)
		}
		return err
	}
	return o.syncs.SetJobStatus(ctx, job.ID, models.JobStatusReady, "")
}

func (o *Orchestrator) syncLibrary(ctx context.Context, job *models.SyncJob, key string) error {
	sourceSvc, err := o.registry.Get(job.Source.Platform)
	if err != nil {
		return err
	}

	// phase 1: import
	infos, err := sourceSvc.GetPlaylistTracks(ctx, job.Source, job.SourcePlaylistID)
	if err != nil {
		return fmt.Errorf("reading source playlist: %w", err)
	}
	tracks := make([]*models.TrackSource, 0, len(infos))
	for _, info := range infos {
		stored, err := o.sources.Upsert(ctx, info.ToTrackSource())
		if err != nil {
			return fmt.Errorf("importing %s/%s: %w", info.Platform, info.ExternalID, err)
		}
		tracks = append(tracks, stored)
	}
	job.TrackCount = len(tracks)
	if err := o.syncs.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("updating job: %w", err)
	}

	if stopRequested(key) {
		return ErrStopped
	}

	// phase 2: fingerprint tracks without current analysis
	if o.engine != nil {
		analyzed := 0
		for _, track := range tracks {
			if track.FingerprintID != nil {
				continue
			}
			if _, err := o.engine.GetOrBuild(ctx, track); err != nil {
				slog.Debug("fingerprinting failed during library sync",
					"platform", track.Platform, "trackId", track.TrackID, "error", err)
				continue
			}
			analyzed++
		}
		slog.Info("library sync fingerprinting done", "jobId", key, "analyzed", analyzed)
	}

	if stopRequested(key) {
		return ErrStopped
	}

	// phase 3: identity sweep
	if o.linker != nil {
		if _, err := o.linker.Sweep(ctx); err != nil {
			return fmt.Errorf("identity sweep: %w", err)
		}
	}
	return nil
}
