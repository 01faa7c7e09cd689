package repositories

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"tracklink/internal/models"
)

// SyncRepository defines data operations for sync jobs and their entries
type SyncRepository interface {
	// Jobs
	SaveJob(ctx context.Context, job *models.SyncJob) error
	UpdateJob(ctx context.Context, job *models.SyncJob) error
	FindJobByID(ctx context.Context, id primitive.ObjectID) (*models.SyncJob, error)
	SetJobStatus(ctx context.Context, id primitive.ObjectID, status, errMsg string) error

	// Entries
	SaveTrack(ctx context.Context, track *models.SyncTrack) error
	UpdateTrack(ctx context.Context, track *models.SyncTrack) error
	FindTrackByID(ctx context.Context, id primitive.ObjectID) (*models.SyncTrack, error)

	// FindTracksByJob returns the job's entries ordered by playlist position.
	FindTracksByJob(ctx context.Context, jobID primitive.ObjectID) ([]*models.SyncTrack, error)
	DeleteTracksByJob(ctx context.Context, jobID primitive.ObjectID) error

	// FindConfirmedMatch returns the newest user-confirmed entry for the
	// (source platform, source track, target platform) triple across all jobs,
	// or nil when the track was never confirmed.
	FindConfirmedMatch(ctx context.Context, sourcePlatform, sourceTrackID, targetPlatform string) (*models.SyncTrack, error)
}
