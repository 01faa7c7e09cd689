package models

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Database represents the database connection
type Database struct {
	Client *mongo.Client
	DB     *mongo.Database
}

// NewDatabase creates a new database connection
func NewDatabase(ctx context.Context, mongoURL, dbName string) (*Database, error) {
	clientOptions := options.Client().
		ApplyURI(mongoURL).
		SetMaxPoolSize(20).
		SetMinPoolSize(5).
		SetMaxConnIdleTime(30 * time.Second).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, err
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	return &Database{
		Client: client,
		DB:     client.Database(dbName),
	}, nil
}

// Close closes the database connection
func (d *Database) Close(ctx context.Context) error {
	return d.Client.Disconnect(ctx)
}

// CreateIndexes creates the indexes the repositories rely on. The unique
// (platform, track_id) index on track_sources backs the upsert natural key;
// everything else is for lookup speed.
func (d *Database) CreateIndexes(ctx context.Context) error {
	trackSources := d.DB.Collection("track_sources")
	_, err := trackSources.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "platform", Value: 1}, {Key: "track_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "fingerprint_id", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "isrc", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	})
	if err != nil {
		return err
	}

	fingerprints := d.DB.Collection("fingerprints")
	_, err = fingerprints.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "mbid", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "shazam_id", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "isrcs", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	})
	if err != nil {
		return err
	}

	localFingerprints := d.DB.Collection("local_fingerprints")
	_, err = localFingerprints.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "track_source_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return err
	}

	syncTracks := d.DB.Collection("sync_tracks")
	_, err = syncTracks.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "job_id", Value: 1}, {Key: "position", Value: 1}},
		},
		{
			// confirmed-match fast path lookup
			Keys: bson.D{
				{Key: "source_platform", Value: 1},
				{Key: "source_track_id", Value: 1},
				{Key: "target_platform", Value: 1},
				{Key: "feedback", Value: 1},
				{Key: "updated_at", Value: -1},
			},
		},
	})
	if err != nil {
		return err
	}

	syncJobs := d.DB.Collection("sync_jobs")
	_, err = syncJobs.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}},
	})
	return err
}
