package testutil

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"tracklink/internal/models"
	"tracklink/internal/services"
)

// Common test data
var (
	// Sample ISRC codes
	TestISRC1 = "USUM71703861"
	TestISRC2 = "USRC17607839"
	TestISRC3 = "NOG841520010"

	// Sample platform track IDs
	SpotifyTrackID1 = "4iV5W9uYEdYUVa79Axb7Rh"
	YouTubeVideoID1 = "dQw4w9WgXcQ"
	SoundCloudID1   = "293305396"

	// Sample URLs
	SpotifyURL1 = "https://open.spotify.com/track/" + SpotifyTrackID1
	YouTubeURL1 = "https://www.youtube.com/watch?v=" + YouTubeVideoID1
)

// TrackSourceBuilder provides a fluent interface for creating test track sources
type TrackSourceBuilder struct {
	src *models.TrackSource
}

// NewTrackSourceBuilder creates a builder with default values
func NewTrackSourceBuilder() *TrackSourceBuilder {
	src := models.NewTrackSource("spotify", SpotifyTrackID1, "Runaway", "AURORA")
	src.ID = primitive.NewObjectID()
	src.DurationMs = 245000
	src.URL = SpotifyURL1
	return &TrackSourceBuilder{src: src}
}

// WithPlatform sets the platform and track id
func (b *TrackSourceBuilder) WithPlatform(platform, trackID string) *TrackSourceBuilder {
	b.src.Platform = platform
	b.src.TrackID = trackID
	return b
}

// WithTitle sets the title
func (b *TrackSourceBuilder) WithTitle(title string) *TrackSourceBuilder {
	b.src.Title = title
	return b
}

// WithArtist sets the artist
func (b *TrackSourceBuilder) WithArtist(artist string) *TrackSourceBuilder {
	b.src.Artist = artist
	return b
}

// WithDuration sets the duration in milliseconds
func (b *TrackSourceBuilder) WithDuration(durationMs int) *TrackSourceBuilder {
	b.src.DurationMs = durationMs
	return b
}

// WithISRC sets the ISRC code
func (b *TrackSourceBuilder) WithISRC(isrc string) *TrackSourceBuilder {
	b.src.ISRC = isrc
	return b
}

// WithFingerprint links a fingerprint id
func (b *TrackSourceBuilder) WithFingerprint(id primitive.ObjectID) *TrackSourceBuilder {
	b.src.FingerprintID = &id
	return b
}

// WithCachedAudio sets the cached-audio fields
func (b *TrackSourceBuilder) WithCachedAudio(path, format string, size int64) *TrackSourceBuilder {
	b.src.AudioPath = path
	b.src.AudioFormat = format
	b.src.AudioSize = size
	return b
}

// Build returns the constructed track source
func (b *TrackSourceBuilder) Build() *models.TrackSource {
	return b.src
}

// FingerprintBuilder provides a fluent interface for creating test fingerprints
type FingerprintBuilder struct {
	fp *models.Fingerprint
}

// NewFingerprintBuilder creates a builder with default values
func NewFingerprintBuilder() *FingerprintBuilder {
	fp := models.NewFingerprint(models.FingerprintSourceAcoustID)
	fp.ID = primitive.NewObjectID()
	return &FingerprintBuilder{fp: fp}
}

// WithMBID sets the MusicBrainz recording id
func (b *FingerprintBuilder) WithMBID(mbid string) *FingerprintBuilder {
	b.fp.MBID = mbid
	return b
}

// WithISRCs sets the ISRC list
func (b *FingerprintBuilder) WithISRCs(isrcs ...string) *FingerprintBuilder {
	b.fp.ISRCs = isrcs
	return b
}

// WithBPM sets the tempo
func (b *FingerprintBuilder) WithBPM(bpm float64) *FingerprintBuilder {
	b.fp.BPM = bpm
	return b
}

// WithKey sets the musical key and mode
func (b *FingerprintBuilder) WithKey(key, mode string) *FingerprintBuilder {
	b.fp.Key = key
	b.fp.Mode = mode
	return b
}

// WithShazamID sets the recognition id
func (b *FingerprintBuilder) WithShazamID(id string) *FingerprintBuilder {
	b.fp.ShazamID = id
	return b
}

// WithAlgoVersion sets the analysis algorithm version
func (b *FingerprintBuilder) WithAlgoVersion(version int) *FingerprintBuilder {
	b.fp.AlgoVersion = version
	return b
}

// Build returns the constructed fingerprint
func (b *FingerprintBuilder) Build() *models.Fingerprint {
	return b.fp
}

// TrackInfoBuilder provides a fluent interface for creating test TrackInfo
type TrackInfoBuilder struct {
	track *services.TrackInfo
}

// NewTrackInfoBuilder creates a new TrackInfo builder with default values
func NewTrackInfoBuilder() *TrackInfoBuilder {
	return &TrackInfoBuilder{
		track: &services.TrackInfo{
			Platform:   "spotify",
			ExternalID: SpotifyTrackID1,
			URL:        SpotifyURL1,
			Title:      "Runaway",
			Artists:    []string{"AURORA"},
			Duration:   245000,
			Available:  true,
		},
	}
}

// WithPlatform sets the platform
func (b *TrackInfoBuilder) WithPlatform(platform string) *TrackInfoBuilder {
	b.track.Platform = platform
	return b
}

// WithExternalID sets the external ID
func (b *TrackInfoBuilder) WithExternalID(id string) *TrackInfoBuilder {
	b.track.ExternalID = id
	return b
}

// WithTitle sets the title
func (b *TrackInfoBuilder) WithTitle(title string) *TrackInfoBuilder {
	b.track.Title = title
	return b
}

// WithArtists sets the artists
func (b *TrackInfoBuilder) WithArtists(artists ...string) *TrackInfoBuilder {
	b.track.Artists = artists
	return b
}

// WithISRC sets the ISRC
func (b *TrackInfoBuilder) WithISRC(isrc string) *TrackInfoBuilder {
	b.track.ISRC = isrc
	return b
}

// WithDuration sets the duration in milliseconds
func (b *TrackInfoBuilder) WithDuration(durationMs int) *TrackInfoBuilder {
	b.track.Duration = durationMs
	return b
}

// WithURL sets the URL
func (b *TrackInfoBuilder) WithURL(url string) *TrackInfoBuilder {
	b.track.URL = url
	return b
}

// Build returns the constructed TrackInfo
func (b *TrackInfoBuilder) Build() *services.TrackInfo {
	return b.track
}

// SyncJobBuilder provides a fluent interface for creating test sync jobs
type SyncJobBuilder struct {
	job *models.SyncJob
}

// NewSyncJobBuilder creates a builder for a spotify to youtube job
func NewSyncJobBuilder() *SyncJobBuilder {
	job := models.NewSyncJob(
		models.PlatformConnection{Platform: "spotify", AccessToken: "src-token", UserID: "user1"},
		models.PlatformConnection{Platform: "youtube", AccessToken: "tgt-token"},
		"playlist-1",
	)
	job.SourcePlaylistName = "Test Playlist"
	job.ID = primitive.NewObjectID()
	return &SyncJobBuilder{job: job}
}

// WithPlatforms sets the source and target platforms
func (b *SyncJobBuilder) WithPlatforms(source, target string) *SyncJobBuilder {
	b.job.Source.Platform = source
	b.job.Target.Platform = target
	return b
}

// WithStatus sets the job status
func (b *SyncJobBuilder) WithStatus(status string) *SyncJobBuilder {
	b.job.Status = status
	return b
}

// WithTargetPlaylist sets the target playlist
func (b *SyncJobBuilder) WithTargetPlaylist(id, name string) *SyncJobBuilder {
	b.job.TargetPlaylistID = id
	b.job.TargetPlaylistName = name
	return b
}

// Build returns the constructed job
func (b *SyncJobBuilder) Build() *models.SyncJob {
	return b.job
}

// SyncTrackBuilder provides a fluent interface for creating test sync entries
type SyncTrackBuilder struct {
	track *models.SyncTrack
}

// NewSyncTrackBuilder creates a builder for an entry of the given job
func NewSyncTrackBuilder(job *models.SyncJob, position int) *SyncTrackBuilder {
	track := models.NewSyncTrack(job.ID, position, "src-track", "Runaway", "AURORA")
	track.ID = primitive.NewObjectID()
	track.SourcePlatform = job.Source.Platform
	track.TargetPlatform = job.Target.Platform
	track.SourceDurationMs = 245000
	return &SyncTrackBuilder{track: track}
}

// WithSource overrides the source snapshot
func (b *SyncTrackBuilder) WithSource(trackID, title, artist string, durationMs int) *SyncTrackBuilder {
	b.track.SourceTrackID = trackID
	b.track.SourceTitle = title
	b.track.SourceArtist = artist
	b.track.SourceDurationMs = durationMs
	return b
}

// WithMatch sets the resolved target and status
func (b *SyncTrackBuilder) WithMatch(targetID, title string, confidence float64, status string) *SyncTrackBuilder {
	b.track.TargetTrackID = targetID
	b.track.TargetTitle = title
	b.track.Confidence = confidence
	b.track.Status = status
	return b
}

// WithFeedback sets the user feedback flag
func (b *SyncTrackBuilder) WithFeedback(feedback string) *SyncTrackBuilder {
	b.track.Feedback = feedback
	return b
}

// WithAlternatives sets the ranked alternatives
func (b *SyncTrackBuilder) WithAlternatives(alts ...models.Alternative) *SyncTrackBuilder {
	b.track.Alternatives = alts
	return b
}

// WithRejected sets the rejected target ids
func (b *SyncTrackBuilder) WithRejected(ids ...string) *SyncTrackBuilder {
	b.track.RejectedIDs = ids
	return b
}

// Build returns the constructed entry
func (b *SyncTrackBuilder) Build() *models.SyncTrack {
	return b.track
}
