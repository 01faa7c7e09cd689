package repositories

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tracklink/internal/models"
)

// mongoSyncRepository implements SyncRepository using MongoDB
type mongoSyncRepository struct {
	jobs   *mongo.Collection
	tracks *mongo.Collection
}

// NewMongoSyncRepository creates a new MongoDB-backed sync repository
func NewMongoSyncRepository(db *models.Database) SyncRepository {
	return &mongoSyncRepository{
		jobs:   db.DB.Collection("sync_jobs"),
		tracks: db.DB.Collection("sync_tracks"),
	}
}

// SaveJob inserts a new job or replaces an existing one
func (r *mongoSyncRepository) SaveJob(ctx context.Context, job *models.SyncJob) error {
	job.UpdatedAt = time.Now()

	if job.ID.IsZero() {
		job.CreatedAt = job.UpdatedAt
		result, err := r.jobs.InsertOne(ctx, job)
		if err != nil {
			return fmt.Errorf("failed to insert sync job: %w", err)
		}
		job.ID = result.InsertedID.(primitive.ObjectID)
		return nil
	}

	_, err := r.jobs.ReplaceOne(ctx, bson.M{"_id": job.ID}, job)
	if err != nil {
		return fmt.Errorf("failed to update sync job: %w", err)
	}
	return nil
}

// UpdateJob replaces an existing job
func (r *mongoSyncRepository) UpdateJob(ctx context.Context, job *models.SyncJob) error {
	if job.ID.IsZero() {
		return fmt.Errorf("job ID is required for update")
	}
	job.UpdatedAt = time.Now()
	_, err := r.jobs.ReplaceOne(ctx, bson.M{"_id": job.ID}, job)
	if err != nil {
		return fmt.Errorf("failed to update sync job: %w", err)
	}
	return nil
}

// FindJobByID finds a job by its ObjectID
func (r *mongoSyncRepository) FindJobByID(ctx context.Context, id primitive.ObjectID) (*models.SyncJob, error) {
	var job models.SyncJob
	err := r.jobs.FindOne(ctx, bson.M{"_id": id}).Decode(&job)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find sync job: %w", err)
	}
	return &job, nil
}

// SetJobStatus updates only the job's status and error message
func (r *mongoSyncRepository) SetJobStatus(ctx context.Context, id primitive.ObjectID, status, errMsg string) error {
	_, err := r.jobs.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": status, "error": errMsg, "updated_at": time.Now()}},
	)
	if err != nil {
		return fmt.Errorf("failed to set sync job status: %w", err)
	}
	return nil
}

// SaveTrack inserts a new entry or replaces an existing one
func (r *mongoSyncRepository) SaveTrack(ctx context.Context, track *models.SyncTrack) error {
	track.UpdatedAt = time.Now()

	if track.ID.IsZero() {
		track.CreatedAt = track.UpdatedAt
		result, err := r.tracks.InsertOne(ctx, track)
		if err != nil {
			return fmt.Errorf("failed to insert sync track: %w", err)
		}
		track.ID = result.InsertedID.(primitive.ObjectID)
		return nil
	}

	_, err := r.tracks.ReplaceOne(ctx, bson.M{"_id": track.ID}, track)
	if err != nil {
		return fmt.Errorf("failed to update sync track: %w", err)
	}
	return nil
}

// UpdateTrack replaces an existing entry
func (r *mongoSyncRepository) UpdateTrack(ctx context.Context, track *models.SyncTrack) error {
	if track.ID.IsZero() {
		return fmt.Errorf("track ID is required for update")
	}
	track.UpdatedAt = time.Now()
	_, err := r.tracks.ReplaceOne(ctx, bson.M{"_id": track.ID}, track)
	if err != nil {
		return fmt.Errorf("failed to update sync track: %w", err)
	}
	return nil
}

// FindTrackByID finds an entry by its ObjectID
func (r *mongoSyncRepository) FindTrackByID(ctx context.Context, id primitive.ObjectID) (*models.SyncTrack, error) {
	var track models.SyncTrack
	err := r.tracks.FindOne(ctx, bson.M{"_id": id}).Decode(&track)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find sync track: %w", err)
	}
	return &track, nil
}

// FindTracksByJob returns a job's entries in playlist order
func (r *mongoSyncRepository) FindTracksByJob(ctx context.Context, jobID primitive.ObjectID) ([]*models.SyncTrack, error) {
	opts := options.Find().SetSort(bson.D{{Key: "position", Value: 1}})
	cursor, err := r.tracks.Find(ctx, bson.M{"job_id": jobID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find sync tracks: %w", err)
	}
	defer cursor.Close(ctx)

	var tracks []*models.SyncTrack
	for cursor.Next(ctx) {
		var track models.SyncTrack
		if err := cursor.Decode(&track); err != nil {
			slog.Error("Failed to decode sync track", "error", err)
			continue
		}
		tracks = append(tracks, &track)
	}
	return tracks, cursor.Err()
}

// DeleteTracksByJob removes all entries of a job
func (r *mongoSyncRepository) DeleteTracksByJob(ctx context.Context, jobID primitive.ObjectID) error {
	_, err := r.tracks.DeleteMany(ctx, bson.M{"job_id": jobID})
	if err != nil {
		return fmt.Errorf("failed to delete sync tracks: %w", err)
	}
	return nil
}

// FindConfirmedMatch returns the newest confirmed entry for a source/target triple
func (r *mongoSyncRepository) FindConfirmedMatch(ctx context.Context, sourcePlatform, sourceTrackID, targetPlatform string) (*models.SyncTrack, error) {
	filter := bson.M{
		"source_platform": sourcePlatform,
		"source_track_id": sourceTrackID,
		"target_platform": targetPlatform,
		"feedback":        models.FeedbackConfirmed,
		"target_track_id": bson.M{"$ne": ""},
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "updated_at", Value: -1}})

	var track models.SyncTrack
	err := r.tracks.FindOne(ctx, filter, opts).Decode(&track)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find confirmed match: %w", err)
	}
	return &track, nil
}
