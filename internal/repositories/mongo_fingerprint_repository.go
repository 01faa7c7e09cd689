package repositories

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tracklink/internal/models"
)

// mongoFingerprintRepository implements FingerprintRepository using MongoDB
type mongoFingerprintRepository struct {
	collection *mongo.Collection
}

// NewMongoFingerprintRepository creates a new MongoDB-backed fingerprint repository
func NewMongoFingerprintRepository(db *models.Database) FingerprintRepository {
	return &mongoFingerprintRepository{
		collection: db.DB.Collection("fingerprints"),
	}
}

// Save inserts a new fingerprint or replaces an existing one
func (r *mongoFingerprintRepository) Save(ctx context.Context, fp *models.Fingerprint) error {
	fp.UpdatedAt = time.Now()

	if fp.ID.IsZero() {
		fp.CreatedAt = fp.UpdatedAt
		result, err := r.collection.InsertOne(ctx, fp)
		if err != nil {
			return fmt.Errorf("failed to insert fingerprint: %w", err)
		}
		fp.ID = result.InsertedID.(primitive.ObjectID)
		return nil
	}

	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": fp.ID}, fp)
	if err != nil {
		return fmt.Errorf("failed to update fingerprint: %w", err)
	}
	return nil
}

// Update replaces an existing fingerprint
func (r *mongoFingerprintRepository) Update(ctx context.Context, fp *models.Fingerprint) error {
	if fp.ID.IsZero() {
		return fmt.Errorf("fingerprint ID is required for update")
	}

	fp.UpdatedAt = time.Now()
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": fp.ID}, fp)
	if err != nil {
		return fmt.Errorf("failed to update fingerprint: %w", err)
	}
	return nil
}

// FindByID finds a fingerprint by its ObjectID
func (r *mongoFingerprintRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Fingerprint, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// FindByMBID finds the live fingerprint for a MusicBrainz recording id
func (r *mongoFingerprintRepository) FindByMBID(ctx context.Context, mbid string) (*models.Fingerprint, error) {
	if mbid == "" {
		return nil, nil
	}
	return r.findOne(ctx, bson.M{"mbid": mbid})
}

// FindByShazamID finds a fingerprint by recognition-service identifier
func (r *mongoFingerprintRepository) FindByShazamID(ctx context.Context, shazamID string) (*models.Fingerprint, error) {
	if shazamID == "" {
		return nil, nil
	}
	return r.findOne(ctx, bson.M{"shazam_id": shazamID})
}

// FindByISRC finds a fingerprint whose ISRC set contains the given code
func (r *mongoFingerprintRepository) FindByISRC(ctx context.Context, isrc string) (*models.Fingerprint, error) {
	if isrc == "" {
		return nil, nil
	}
	return r.findOne(ctx, bson.M{"isrcs": isrc})
}

func (r *mongoFingerprintRepository) findOne(ctx context.Context, filter bson.M) (*models.Fingerprint, error) {
	var fp models.Fingerprint
	err := r.collection.FindOne(ctx, filter).Decode(&fp)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find fingerprint: %w", err)
	}
	return &fp, nil
}

// GetOrCreateByMBID returns the record for an MBID, creating one when absent.
// The upsert keeps concurrent callers on the same document.
func (r *mongoFingerprintRepository) GetOrCreateByMBID(ctx context.Context, mbid, source string) (*models.Fingerprint, error) {
	if mbid == "" {
		return nil, fmt.Errorf("mbid is required for get-or-create")
	}

	now := time.Now()
	update := bson.M{
		"$setOnInsert": bson.M{
			"mbid":         mbid,
			"source":       source,
			"algo_version": models.CurrentAlgoVersion,
			"match_count":  0,
			"created_at":   now,
			"updated_at":   now,
		},
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var fp models.Fingerprint
	if err := r.collection.FindOneAndUpdate(ctx, bson.M{"mbid": mbid}, update, opts).Decode(&fp); err != nil {
		return nil, fmt.Errorf("failed to get-or-create fingerprint for mbid %s: %w", mbid, err)
	}
	return &fp, nil
}

// Delete removes a fingerprint record. Missing records are not an error; the
// merge path treats them as already merged.
func (r *mongoFingerprintRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete fingerprint: %w", err)
	}
	return nil
}

// RecordMatch bumps the match counter
func (r *mongoFingerprintRepository) RecordMatch(ctx context.Context, id primitive.ObjectID) error {
	now := time.Now()
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{
			"$inc": bson.M{"match_count": 1},
			"$set": bson.M{"last_matched_at": now, "updated_at": now},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to record match on fingerprint: %w", err)
	}
	return nil
}

// mongoLocalFingerprintRepository implements LocalFingerprintRepository
type mongoLocalFingerprintRepository struct {
	collection *mongo.Collection
}

// NewMongoLocalFingerprintRepository creates a new MongoDB-backed local fingerprint repository
func NewMongoLocalFingerprintRepository(db *models.Database) LocalFingerprintRepository {
	return &mongoLocalFingerprintRepository{
		collection: db.DB.Collection("local_fingerprints"),
	}
}

// Save upserts by track_source_id
func (r *mongoLocalFingerprintRepository) Save(ctx context.Context, lf *models.LocalFingerprint) error {
	now := time.Now()
	update := bson.M{
		"$set": bson.M{
			"tokens":       lf.Tokens,
			"digest":       lf.Digest,
			"duration_sec": lf.DurationSec,
		},
		"$setOnInsert": bson.M{
			"track_source_id": lf.TrackSourceID,
			"created_at":      now,
		},
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var stored models.LocalFingerprint
	if err := r.collection.FindOneAndUpdate(ctx, bson.M{"track_source_id": lf.TrackSourceID}, update, opts).Decode(&stored); err != nil {
		return fmt.Errorf("failed to save local fingerprint: %w", err)
	}
	lf.ID = stored.ID
	lf.CreatedAt = stored.CreatedAt
	return nil
}

// FindByTrackSourceID returns a track's local fingerprint, or nil
func (r *mongoLocalFingerprintRepository) FindByTrackSourceID(ctx context.Context, trackSourceID primitive.ObjectID) (*models.LocalFingerprint, error) {
	var lf models.LocalFingerprint
	err := r.collection.FindOne(ctx, bson.M{"track_source_id": trackSourceID}).Decode(&lf)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find local fingerprint: %w", err)
	}
	return &lf, nil
}
