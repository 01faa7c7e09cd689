package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"tracklink/internal/matching"
	"tracklink/internal/models"
	"tracklink/internal/repositories"
	"tracklink/internal/services"
)

// FingerprintProvider builds or returns the fingerprint record for a track.
type FingerprintProvider interface {
	GetOrBuild(ctx context.Context, src *models.TrackSource) (*models.Fingerprint, error)
}

// IdentityLinker runs the batch identity-linking sweep.
type IdentityLinker interface {
	Sweep(ctx context.Context) (int, error)
}

// matchResult is what a worker hands back to the orchestrator goroutine.
// Workers never touch the store; everything persistent happens on the
// consuming side.
type matchResult struct {
	entry    *models.SyncTrack
	outcome  *matching.MatchOutcome
	fastPath bool
	err      error
}

// Orchestrator runs match jobs: it imports the source playlist, fans entry
// analysis out to a bounded worker pool, and serializes every store write
// through the single goroutine consuming worker results. The store does not
// tolerate concurrent writers, so the single-writer discipline here is a
// correctness requirement.
type Orchestrator struct {
	registry     *services.Registry
	searcher     *matching.Searcher
	scorer       *matching.Scorer
	syncs        repositories.SyncRepository
	sources      repositories.TrackSourceRepository
	fingerprints repositories.FingerprintRepository
	localFPs     repositories.LocalFingerprintRepository

	engine  FingerprintProvider
	linker  IdentityLinker
	fetcher AudioFetcher

	parallelism int
}

// OrchestratorDeps carries the orchestrator's collaborators. Engine and
// Linker may be nil, disabling fingerprint adjustment and the identity sweep.
type OrchestratorDeps struct {
	Registry     *services.Registry
	Searcher     *matching.Searcher
	Scorer       *matching.Scorer
	Syncs        repositories.SyncRepository
	Sources      repositories.TrackSourceRepository
	Fingerprints repositories.FingerprintRepository
	LocalFPs     repositories.LocalFingerprintRepository
	Engine       FingerprintProvider
	Linker       IdentityLinker
	Fetcher      AudioFetcher
	Parallelism  int
}

func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	if deps.Parallelism < 1 {
		deps.Parallelism = 5
	}
	return &Orchestrator{
		registry:     deps.Registry,
		searcher:     deps.Searcher,
		scorer:       deps.Scorer,
		syncs:        deps.Syncs,
		sources:      deps.Sources,
		fingerprints: deps.Fingerprints,
		localFPs:     deps.LocalFPs,
		engine:       deps.Engine,
		linker:       deps.Linker,
		fetcher:      deps.Fetcher,
		parallelism:  deps.Parallelism,
	}
}

// CreateJob validates both platforms and stores a pending job.
func (o *Orchestrator) CreateJob(ctx context.Context, source, target models.PlatformConnection, playlistID string) (*models.SyncJob, error) {
	if _, err := o.registry.Get(source.Platform); err != nil {
		return nil, err
	}
	if _, err := o.registry.Get(target.Platform); err != nil {
		return nil, err
	}
	if playlistID == "" {
		return nil, fmt.Errorf("source playlist id is required")
	}

	job := models.NewSyncJob(source, target, playlistID)
	if err := o.syncs.SaveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("saving job: %w", err)
	}
	return job, nil
}

// Analyze imports the job's source playlist and resolves every entry against
// the target platform. Safe to call again on a job: previous entries are
// replaced.
func (o *Orchestrator) Analyze(ctx context.Context, jobID primitive.ObjectID) error {
	job, err := o.syncs.FindJobByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("loading job: %w", err)
	}
	if job == nil {
		return fmt.Errorf("job %s not found", jobID.Hex())
	}

	if err := o.syncs.SetJobStatus(ctx, job.ID, models.JobStatusAnalyzing, ""); err != nil {
		return err
	}

	if err := o.analyze(ctx, job); err != nil {
		if stErr := o.syncs.SetJobStatus(ctx, job.ID, models.JobStatusFailed, err.Error()); stErr != nil {
			slog.Error("failed to mark job failed", "jobId", job.ID.Hex(), "error", stErr)
		}
		return err
	}

	if err := o.syncs.SetJobStatus(ctx, job.ID, models.JobStatusReady, ""); err != nil {
		return err
	}

	if o.linker != nil {
		if _, err := o.linker.Sweep(ctx); err != nil {
			slog.Warn("identity sweep failed", "jobId", job.ID.Hex(), "error", err)
		}
	}
	return nil
}

func (o *Orchestrator) analyze(ctx context.Context, job *models.SyncJob) error {
	sourceSvc, err := o.registry.Get(job.Source.Platform)
	if err != nil {
		return err
	}
	targetSvc, err := o.registry.Get(job.Target.Platform)
	if err != nil {
		return err
	}

	infos, err := sourceSvc.GetPlaylistTracks(ctx, job.Source, job.SourcePlaylistID)
	if err != nil {
		return fmt.Errorf("reading source playlist: %w", err)
	}

	if err := o.syncs.DeleteTracksByJob(ctx, job.ID); err != nil {
		return fmt.Errorf("clearing previous entries: %w", err)
	}

	entries := make([]*models.SyncTrack, 0, len(infos))
	for i, info := range infos {
		entry := models.NewSyncTrack(job.ID, i, info.ExternalID, info.Title, info.Artist())
		entry.SourcePlatform = job.Source.Platform
		entry.TargetPlatform = job.Target.Platform
		entry.SourceDurationMs = info.Duration
		entry.SourceURL = info.URL
		entry.SourceISRC = info.ISRC
		if err := o.syncs.SaveTrack(ctx, entry); err != nil {
			return fmt.Errorf("saving entry %d: %w", i, err)
		}
		entries = append(entries, entry)
	}

	job.TrackCount = len(entries)
	if err := o.syncs.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("updating job: %w", err)
	}

	results := make(chan matchResult)
	sem := make(chan struct{}, o.parallelism)
	var wg sync.WaitGroup
	for _, entry := range entries {
		wg.Add(1)
		go func(entry *models.SyncTrack) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results <- o.safeAnalyzeEntry(ctx, job, entry, targetSvc)
		}(entry)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	// single writer: results arrive in completion order and every store
	// mutation happens here
	for res := range results {
		o.persistResult(ctx, res)
	}

	o.linkEntries(ctx, entries)
	return nil
}

// safeAnalyzeEntry converts a worker panic into a failed result, so one bad
// entry fails alone instead of taking the whole batch down.
func (o *Orchestrator) safeAnalyzeEntry(ctx context.Context, job *models.SyncJob, entry *models.SyncTrack, targetSvc services.PlatformService) (res matchResult) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("entry analysis panicked", "entryId", entry.ID.Hex(), "panic", r)
			res = matchResult{entry: entry, err: fmt.Errorf("analysis panicked: %v", r)}
		}
	}()
	return o.analyzeEntry(ctx, job, entry, targetSvc)
}

// analyzeEntry runs in a worker. It only reads: playlist metadata is already
// on the entry, searches and the confirmed-match lookup are queries.
func (o *Orchestrator) analyzeEntry(ctx context.Context, job *models.SyncJob, entry *models.SyncTrack, targetSvc services.PlatformService) matchResult {
	// same platform means the track maps to itself
	if job.Source.Platform == job.Target.Platform {
		entry.TargetTrackID = entry.SourceTrackID
		entry.TargetTitle = entry.SourceTitle
		entry.TargetURL = entry.SourceURL
		entry.Confidence = 1.0
		entry.Status = models.TrackStatusMatched
		return matchResult{entry: entry, fastPath: true}
	}

	// a match the user confirmed in any earlier job is replayed verbatim
	if prior, err := o.syncs.FindConfirmedMatch(ctx, entry.SourcePlatform, entry.SourceTrackID, entry.TargetPlatform); err == nil && prior != nil {
		entry.TargetTrackID = prior.TargetTrackID
		entry.TargetTitle = prior.TargetTitle
		entry.TargetURL = prior.TargetURL
		entry.Confidence = 1.0
		entry.Status = models.TrackStatusMatched
		entry.Feedback = models.FeedbackConfirmed
		return matchResult{entry: entry, fastPath: true}
	}

	src := matching.Source{
		Title:      entry.SourceTitle,
		Artist:     entry.SourceArtist,
		DurationMs: entry.SourceDurationMs,
		ISRC:       entry.SourceISRC,
	}
	outcome := o.searcher.FindBestMatch(ctx, src, services.SearchFunc(targetSvc), entry.RejectedIDs)
	return matchResult{entry: entry, outcome: outcome}
}

func (o *Orchestrator) persistResult(ctx context.Context, res matchResult) {
	entry := res.entry

	switch {
	case res.err != nil:
		entry.Status = models.TrackStatusFailed
		entry.Error = res.err.Error()
	case res.fastPath:
		// status already final
	case res.outcome.Found():
		entry.TargetTrackID = res.outcome.TrackID
		entry.TargetTitle = res.outcome.Title
		entry.TargetURL = res.outcome.URL
		entry.Confidence = res.outcome.Confidence
		entry.Alternatives = res.outcome.Alternatives
		entry.Status = o.scorer.Classify(entry.Confidence)

		if entry.Status == models.TrackStatusUncertain && o.engine != nil {
			o.refineWithFingerprints(ctx, entry, res.outcome)
		}
	default:
		entry.TargetTrackID = ""
		entry.Confidence = 0
		entry.Alternatives = res.outcome.Alternatives
		entry.Status = models.TrackStatusNotFound
	}

	if err := o.syncs.UpdateTrack(ctx, entry); err != nil {
		slog.Error("failed to persist entry", "entryId", entry.ID.Hex(), "error", err)
	}
}

// refineWithFingerprints is Level 3: fingerprint both sides and adjust the
// text confidence with acoustic evidence, then re-derive the status. Runs on
// the orchestrator side because fingerprinting writes records.
func (o *Orchestrator) refineWithFingerprints(ctx context.Context, entry *models.SyncTrack, outcome *matching.MatchOutcome) {
	srcTrack := models.NewTrackSource(entry.SourcePlatform, entry.SourceTrackID, entry.SourceTitle, entry.SourceArtist)
	srcTrack.DurationMs = entry.SourceDurationMs
	srcTrack.URL = entry.SourceURL
	srcTrack.ISRC = entry.SourceISRC

	tgtTrack := models.NewTrackSource(entry.TargetPlatform, outcome.TrackID, outcome.Title, outcome.Artist)
	tgtTrack.URL = outcome.URL

	srcFP := o.fingerprintFor(ctx, srcTrack)
	tgtFP := o.fingerprintFor(ctx, tgtTrack)
	if srcFP == nil && tgtFP == nil {
		return
	}

	adjusted := AdjustConfidence(o.scorer.Config(), entry.Confidence,
		srcFP, tgtFP,
		o.localFingerprintFor(ctx, srcTrack), o.localFingerprintFor(ctx, tgtTrack))
	if adjusted == entry.Confidence {
		return
	}

	slog.Debug("fingerprint adjustment",
		"entryId", entry.ID.Hex(),
		"before", entry.Confidence,
		"after", adjusted)
	entry.Confidence = adjusted
	entry.Status = o.scorer.Classify(adjusted)

	if entry.Status == models.TrackStatusMatched && srcFP != nil && tgtFP != nil {
		o.recordMatch(ctx, srcFP.ID)
		if tgtFP.ID != srcFP.ID {
			o.recordMatch(ctx, tgtFP.ID)
		}
	}
}

func (o *Orchestrator) fingerprintFor(ctx context.Context, track *models.TrackSource) *models.Fingerprint {
	stored, err := o.sources.Upsert(ctx, track)
	if err != nil {
		slog.Warn("track upsert failed", "platform", track.Platform, "trackId", track.TrackID, "error", err)
		return nil
	}
	*track = *stored

	fp, err := o.engine.GetOrBuild(ctx, track)
	if err != nil {
		slog.Debug("fingerprinting failed", "platform", track.Platform, "trackId", track.TrackID, "error", err)
		return nil
	}
	return fp
}

func (o *Orchestrator) localFingerprintFor(ctx context.Context, track *models.TrackSource) *models.LocalFingerprint {
	if o.localFPs == nil || track.ID.IsZero() {
		return nil
	}
	lf, err := o.localFPs.FindByTrackSourceID(ctx, track.ID)
	if err != nil {
		return nil
	}
	return lf
}

func (o *Orchestrator) recordMatch(ctx context.Context, id primitive.ObjectID) {
	if err := o.fingerprints.RecordMatch(ctx, id); err != nil {
		slog.Warn("recording match failed", "fingerprintId", id.Hex(), "error", err)
	}
}

// linkEntries shares fingerprint ids across each resolved entry's source and
// target tracks, so a later identity sweep sees them as one recording even
// when only one side was ever fingerprinted.
func (o *Orchestrator) linkEntries(ctx context.Context, entries []*models.SyncTrack) {
	for _, entry := range entries {
		eligible := entry.Status == models.TrackStatusMatched ||
			entry.Status == models.TrackStatusUploaded ||
			(entry.Status == models.TrackStatusUncertain && entry.IsConfirmed())
		if !eligible || entry.TargetTrackID == "" {
			continue
		}

		src, err := o.sources.FindByPlatformID(ctx, entry.SourcePlatform, entry.SourceTrackID)
		if err != nil || src == nil {
			continue
		}
		tgt, err := o.sources.FindByPlatformID(ctx, entry.TargetPlatform, entry.TargetTrackID)
		if err != nil || tgt == nil {
			continue
		}

		switch {
		case src.FingerprintID != nil && tgt.FingerprintID == nil:
			if err := o.sources.SetFingerprint(ctx, tgt.ID, *src.FingerprintID); err != nil {
				slog.Warn("linking fingerprint failed", "trackId", tgt.TrackID, "error", err)
			}
		case src.FingerprintID == nil && tgt.FingerprintID != nil:
			if err := o.sources.SetFingerprint(ctx, src.ID, *tgt.FingerprintID); err != nil {
				slog.Warn("linking fingerprint failed", "trackId", src.TrackID, "error", err)
			}
		}
	}
}
