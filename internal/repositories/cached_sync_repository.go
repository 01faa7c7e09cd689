package repositories

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"tracklink/internal/cache"
	"tracklink/internal/models"
)

// cachedSyncRepository wraps a SyncRepository, caching the confirmed-match
// fast-path lookups. Everything else passes through.
type cachedSyncRepository struct {
	repository SyncRepository
	cache      cache.Cache
}

// NewCachedSyncRepository creates a sync repository with a confirmed-match cache
func NewCachedSyncRepository(repository SyncRepository, c cache.Cache) SyncRepository {
	return &cachedSyncRepository{
		repository: repository,
		cache:      c,
	}
}

func confirmedMatchKey(sourcePlatform, sourceTrackID, targetPlatform string) string {
	return "match:confirmed:" + sourcePlatform + ":" + sourceTrackID + ":" + targetPlatform
}

const confirmedMatchTTL = 24 * time.Hour

func (r *cachedSyncRepository) SaveJob(ctx context.Context, job *models.SyncJob) error {
	return r.repository.SaveJob(ctx, job)
}

func (r *cachedSyncRepository) UpdateJob(ctx context.Context, job *models.SyncJob) error {
	return r.repository.UpdateJob(ctx, job)
}

func (r *cachedSyncRepository) FindJobByID(ctx context.Context, id primitive.ObjectID) (*models.SyncJob, error) {
	return r.repository.FindJobByID(ctx, id)
}

func (r *cachedSyncRepository) SetJobStatus(ctx context.Context, id primitive.ObjectID, status, errMsg string) error {
	return r.repository.SetJobStatus(ctx, id, status, errMsg)
}

func (r *cachedSyncRepository) SaveTrack(ctx context.Context, track *models.SyncTrack) error {
	return r.repository.SaveTrack(ctx, track)
}

// UpdateTrack writes through and keeps the confirmed-match cache in step with
// the entry's feedback flag.
func (r *cachedSyncRepository) UpdateTrack(ctx context.Context, track *models.SyncTrack) error {
	if err := r.repository.UpdateTrack(ctx, track); err != nil {
		return err
	}

	key := confirmedMatchKey(track.SourcePlatform, track.SourceTrackID, track.TargetPlatform)
	if track.Feedback == models.FeedbackConfirmed && track.TargetTrackID != "" {
		if data, err := json.Marshal(track); err == nil {
			if err := r.cache.Set(ctx, key, data, confirmedMatchTTL); err != nil {
				slog.Error("Failed to cache confirmed match", "key", key, "error", err)
			}
		}
	} else {
		r.cache.Delete(ctx, key)
	}
	return nil
}

func (r *cachedSyncRepository) FindTrackByID(ctx context.Context, id primitive.ObjectID) (*models.SyncTrack, error) {
	return r.repository.FindTrackByID(ctx, id)
}

func (r *cachedSyncRepository) FindTracksByJob(ctx context.Context, jobID primitive.ObjectID) ([]*models.SyncTrack, error) {
	return r.repository.FindTracksByJob(ctx, jobID)
}

func (r *cachedSyncRepository) DeleteTracksByJob(ctx context.Context, jobID primitive.ObjectID) error {
	return r.repository.DeleteTracksByJob(ctx, jobID)
}

// FindConfirmedMatch checks the cache before hitting the store
func (r *cachedSyncRepository) FindConfirmedMatch(ctx context.Context, sourcePlatform, sourceTrackID, targetPlatform string) (*models.SyncTrack, error) {
	key := confirmedMatchKey(sourcePlatform, sourceTrackID, targetPlatform)

	if data, err := r.cache.Get(ctx, key); err == nil && data != nil {
		var track models.SyncTrack
		if err := json.Unmarshal(data, &track); err == nil {
			return &track, nil
		}
		slog.Error("Failed to unmarshal confirmed match from cache", "key", key)
		r.cache.Delete(ctx, key)
	}

	track, err := r.repository.FindConfirmedMatch(ctx, sourcePlatform, sourceTrackID, targetPlatform)
	if err != nil {
		return nil, err
	}

	if track != nil {
		if data, err := json.Marshal(track); err == nil {
			if err := r.cache.Set(ctx, key, data, confirmedMatchTTL); err != nil {
				slog.Error("Failed to cache confirmed match", "key", key, "error", err)
			}
		}
	}
	return track, nil
}
