package repositories

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"tracklink/internal/models"
)

// FingerprintRepository defines data operations for recording fingerprints.
// Records are keyed naturally by MBID when one exists; MBID-less records are
// standalone until merged by the identity graph.
type FingerprintRepository interface {
	Save(ctx context.Context, fp *models.Fingerprint) error
	Update(ctx context.Context, fp *models.Fingerprint) error

	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Fingerprint, error)
	FindByMBID(ctx context.Context, mbid string) (*models.Fingerprint, error)
	FindByShazamID(ctx context.Context, shazamID string) (*models.Fingerprint, error)
	FindByISRC(ctx context.Context, isrc string) (*models.Fingerprint, error)

	// GetOrCreateByMBID returns the live record for an MBID, creating it when
	// absent. Concurrent calls for the same MBID converge on one record.
	GetOrCreateByMBID(ctx context.Context, mbid, source string) (*models.Fingerprint, error)

	Delete(ctx context.Context, id primitive.ObjectID) error

	// RecordMatch bumps the match counter and last-matched timestamp.
	RecordMatch(ctx context.Context, id primitive.ObjectID) error
}

// LocalFingerprintRepository stores the custom per-track fingerprints.
type LocalFingerprintRepository interface {
	// Save upserts by track_source_id; a rebuilt fingerprint replaces the old one.
	Save(ctx context.Context, lf *models.LocalFingerprint) error
	FindByTrackSourceID(ctx context.Context, trackSourceID primitive.ObjectID) (*models.LocalFingerprint, error)
}
