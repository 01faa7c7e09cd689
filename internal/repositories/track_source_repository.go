package repositories

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"tracklink/internal/models"
)

// TrackSourceRepository defines data operations for per-platform track records
type TrackSourceRepository interface {
	// Upsert creates or updates the record keyed by (platform, track_id) and
	// returns the stored document. Safe to call concurrently with itself for
	// the same key.
	Upsert(ctx context.Context, track *models.TrackSource) (*models.TrackSource, error)

	FindByID(ctx context.Context, id primitive.ObjectID) (*models.TrackSource, error)
	FindByPlatformID(ctx context.Context, platform, trackID string) (*models.TrackSource, error)
	FindByFingerprintID(ctx context.Context, fingerprintID primitive.ObjectID) ([]*models.TrackSource, error)

	// FindFingerprinted returns all tracks holding a fingerprint link, for the
	// identity-linking sweep.
	FindFingerprinted(ctx context.Context) ([]*models.TrackSource, error)

	// SetFingerprint atomically replaces the track's fingerprint link.
	SetFingerprint(ctx context.Context, id, fingerprintID primitive.ObjectID) error

	// ReassignFingerprint re-points every track referencing `from` to `to`,
	// returning the number of tracks moved. Used by merge.
	ReassignFingerprint(ctx context.Context, from, to primitive.ObjectID) (int64, error)

	SetCachedAudio(ctx context.Context, id primitive.ObjectID, path, format string, size int64) error
}
