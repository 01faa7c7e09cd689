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

// mongoTrackSourceRepository implements TrackSourceRepository using MongoDB
type mongoTrackSourceRepository struct {
	collection *mongo.Collection
}

// NewMongoTrackSourceRepository creates a new MongoDB-backed track source repository
func NewMongoTrackSourceRepository(db *models.Database) TrackSourceRepository {
	return &mongoTrackSourceRepository{
		collection: db.DB.Collection("track_sources"),
	}
}

// Upsert creates or updates a track keyed by (platform, track_id). Metadata
// fields are updated on re-encounter; created_at and the fingerprint link are
// left alone.
func (r *mongoTrackSourceRepository) Upsert(ctx context.Context, track *models.TrackSource) (*models.TrackSource, error) {
	now := time.Now()

	set := bson.M{
		"updated_at": now,
	}
	if track.Title != "" {
		set["title"] = track.Title
	}
	if track.Artist != "" {
		set["artist"] = track.Artist
	}
	if track.Album != "" {
		set["album"] = track.Album
	}
	if track.DurationMs > 0 {
		set["duration_ms"] = track.DurationMs
	}
	if track.ArtworkURL != "" {
		set["artwork_url"] = track.ArtworkURL
	}
	if track.URL != "" {
		set["url"] = track.URL
	}
	if track.ISRC != "" {
		set["isrc"] = track.ISRC
	}

	filter := bson.M{"platform": track.Platform, "track_id": track.TrackID}
	update := bson.M{
		"$set": set,
		"$setOnInsert": bson.M{
			"platform":   track.Platform,
			"track_id":   track.TrackID,
			"created_at": now,
		},
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var stored models.TrackSource
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&stored); err != nil {
		return nil, fmt.Errorf("failed to upsert track source %s/%s: %w", track.Platform, track.TrackID, err)
	}
	return &stored, nil
}

// FindByID finds a track source by its ObjectID
func (r *mongoTrackSourceRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.TrackSource, error) {
	var track models.TrackSource
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&track)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find track source by ID: %w", err)
	}
	return &track, nil
}

// FindByPlatformID finds a track source by its natural key
func (r *mongoTrackSourceRepository) FindByPlatformID(ctx context.Context, platform, trackID string) (*models.TrackSource, error) {
	var track models.TrackSource
	err := r.collection.FindOne(ctx, bson.M{"platform": platform, "track_id": trackID}).Decode(&track)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find track source by platform ID: %w", err)
	}
	return &track, nil
}

// FindByFingerprintID returns all tracks pointing at a fingerprint
func (r *mongoTrackSourceRepository) FindByFingerprintID(ctx context.Context, fingerprintID primitive.ObjectID) ([]*models.TrackSource, error) {
	return r.findAll(ctx, bson.M{"fingerprint_id": fingerprintID})
}

// FindFingerprinted returns all tracks that hold a fingerprint link
func (r *mongoTrackSourceRepository) FindFingerprinted(ctx context.Context) ([]*models.TrackSource, error) {
	return r.findAll(ctx, bson.M{"fingerprint_id": bson.M{"$exists": true, "$ne": nil}})
}

func (r *mongoTrackSourceRepository) findAll(ctx context.Context, filter bson.M) ([]*models.TrackSource, error) {
	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to find track sources: %w", err)
	}
	defer cursor.Close(ctx)

	var tracks []*models.TrackSource
	for cursor.Next(ctx) {
		var track models.TrackSource
		if err := cursor.Decode(&track); err != nil {
			slog.Error("Failed to decode track source", "error", err)
			continue
		}
		tracks = append(tracks, &track)
	}
	return tracks, cursor.Err()
}

// SetFingerprint atomically replaces the fingerprint link
func (r *mongoTrackSourceRepository) SetFingerprint(ctx context.Context, id, fingerprintID primitive.ObjectID) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"fingerprint_id": fingerprintID, "updated_at": time.Now()}},
	)
	if err != nil {
		return fmt.Errorf("failed to set fingerprint on track source: %w", err)
	}
	return nil
}

// ReassignFingerprint moves every reference from one fingerprint to another
func (r *mongoTrackSourceRepository) ReassignFingerprint(ctx context.Context, from, to primitive.ObjectID) (int64, error) {
	result, err := r.collection.UpdateMany(ctx,
		bson.M{"fingerprint_id": from},
		bson.M{"$set": bson.M{"fingerprint_id": to, "updated_at": time.Now()}},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to reassign fingerprint references: %w", err)
	}
	return result.ModifiedCount, nil
}

// SetCachedAudio records where the downloaded audio for a track lives
func (r *mongoTrackSourceRepository) SetCachedAudio(ctx context.Context, id primitive.ObjectID, path, format string, size int64) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"audio_path":   path,
			"audio_format": format,
			"audio_size":   size,
			"updated_at":   time.Now(),
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to set cached audio on track source: %w", err)
	}
	return nil
}
