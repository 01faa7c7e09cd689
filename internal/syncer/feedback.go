package syncer

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"tracklink/internal/matching"
	"tracklink/internal/models"
	"tracklink/internal/repositories"
	"tracklink/internal/services"
)

// Feedback applies user decisions to match entries. Confirmation is sticky
// and replayed across jobs; rejection advances to the next ranked candidate
// or re-searches with everything rejected so far excluded.
type Feedback struct {
	syncs        repositories.SyncRepository
	sources      repositories.TrackSourceRepository
	fingerprints repositories.FingerprintRepository
	registry     *services.Registry
	searcher     *matching.Searcher
	scorer       *matching.Scorer
}

// NewFeedback builds the feedback service. sources and fingerprints may be
// nil, in which case confirmations skip the match-counter bump.
func NewFeedback(syncs repositories.SyncRepository, sources repositories.TrackSourceRepository, fingerprints repositories.FingerprintRepository, registry *services.Registry, searcher *matching.Searcher, scorer *matching.Scorer) *Feedback {
	return &Feedback{
		syncs:        syncs,
		sources:      sources,
		fingerprints: fingerprints,
		registry:     registry,
		searcher:     searcher,
		scorer:       scorer,
	}
}

func (f *Feedback) loadEntry(ctx context.Context, trackID primitive.ObjectID) (*models.SyncTrack, error) {
	entry, err := f.syncs.FindTrackByID(ctx, trackID)
	if err != nil {
		return nil, fmt.Errorf("loading entry: %w", err)
	}
	if entry == nil {
		return nil, fmt.Errorf("entry %s not found", trackID.Hex())
	}
	return entry, nil
}

// Confirm marks the entry's current match as user-verified.
func (f *Feedback) Confirm(ctx context.Context, trackID primitive.ObjectID) (*models.SyncTrack, error) {
	entry, err := f.loadEntry(ctx, trackID)
	if err != nil {
		return nil, err
	}
	if entry.TargetTrackID == "" {
		return nil, fmt.Errorf("entry %s has no match to confirm", trackID.Hex())
	}

	entry.Feedback = models.FeedbackConfirmed
	if err := f.syncs.UpdateTrack(ctx, entry); err != nil {
		return nil, err
	}
	f.recordConfirm(ctx, entry)
	return entry, nil
}

// recordConfirm bumps match counters on the fingerprints behind both sides
// of a confirmed entry. Best effort, skipped when the repos are not wired.
func (f *Feedback) recordConfirm(ctx context.Context, entry *models.SyncTrack) {
	if f.sources == nil || f.fingerprints == nil {
		return
	}

	recorded := map[primitive.ObjectID]bool{}
	for _, ref := range [][2]string{
		{entry.SourcePlatform, entry.SourceTrackID},
		{entry.TargetPlatform, entry.TargetTrackID},
	} {
		if ref[1] == "" {
			continue
		}
		src, err := f.sources.FindByPlatformID(ctx, ref[0], ref[1])
		if err != nil || src == nil || src.FingerprintID == nil || recorded[*src.FingerprintID] {
			continue
		}
		if err := f.fingerprints.RecordMatch(ctx, *src.FingerprintID); err != nil {
			slog.Warn("recording confirmed match failed", "fingerprintId", src.FingerprintID.Hex(), "error", err)
			continue
		}
		recorded[*src.FingerprintID] = true
	}
}

// ConfirmAll confirms every uncertain entry of a job that has a candidate
// and no feedback yet. Returns the number confirmed.
func (f *Feedback) ConfirmAll(ctx context.Context, jobID primitive.ObjectID) (int, error) {
	entries, err := f.syncs.FindTracksByJob(ctx, jobID)
	if err != nil {
		return 0, fmt.Errorf("loading entries: %w", err)
	}

	confirmed := 0
	for _, entry := range entries {
		if entry.Status != models.TrackStatusUncertain || entry.Feedback != models.FeedbackNone || entry.TargetTrackID == "" {
			continue
		}
		entry.Feedback = models.FeedbackConfirmed
		if err := f.syncs.UpdateTrack(ctx, entry); err != nil {
			return confirmed, err
		}
		f.recordConfirm(ctx, entry)
		confirmed++
	}
	return confirmed, nil
}

// Reject discards the entry's current match. The next ranked alternative the
// user has not rejected takes its place; with none left, a fresh search runs
// with every rejected id excluded.
func (f *Feedback) Reject(ctx context.Context, trackID primitive.ObjectID) (*models.SyncTrack, error) {
	entry, err := f.loadEntry(ctx, trackID)
	if err != nil {
		return nil, err
	}

	if entry.TargetTrackID != "" && !entry.HasRejected(entry.TargetTrackID) {
		entry.RejectedIDs = append(entry.RejectedIDs, entry.TargetTrackID)
	}
	entry.TargetTrackID = ""
	entry.TargetTitle = ""
	entry.TargetURL = ""
	entry.Feedback = models.FeedbackNone

	if promoted := f.promoteAlternative(entry); !promoted {
		f.research(ctx, entry)
	}

	if err := f.syncs.UpdateTrack(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// promoteAlternative installs the best remaining alternative as the match.
func (f *Feedback) promoteAlternative(entry *models.SyncTrack) bool {
	rest := make([]models.Alternative, 0, len(entry.Alternatives))
	var next *models.Alternative
	for i := range entry.Alternatives {
		alt := entry.Alternatives[i]
		if alt.TrackID == "" || entry.HasRejected(alt.TrackID) {
			continue
		}
		if next == nil {
			next = &alt
			continue
		}
		rest = append(rest, alt)
	}
	if next == nil {
		return false
	}

	entry.TargetTrackID = next.TrackID
	entry.TargetTitle = next.Title
	entry.TargetURL = next.URL
	entry.Confidence = next.Confidence
	entry.Status = f.scorer.Classify(next.Confidence)
	entry.Alternatives = rest
	return true
}

func (f *Feedback) research(ctx context.Context, entry *models.SyncTrack) {
	svc, err := f.registry.Get(entry.TargetPlatform)
	if err != nil {
		entry.Status = models.TrackStatusNotFound
		entry.Confidence = 0
		return
	}

	src := matching.Source{
		Title:      entry.SourceTitle,
		Artist:     entry.SourceArtist,
		DurationMs: entry.SourceDurationMs,
		ISRC:       entry.SourceISRC,
	}
	outcome := f.searcher.FindBestMatch(ctx, src, services.SearchFunc(svc), entry.RejectedIDs)
	if outcome.Found() {
		entry.TargetTrackID = outcome.TrackID
		entry.TargetTitle = outcome.Title
		entry.TargetURL = outcome.URL
		entry.Confidence = outcome.Confidence
		entry.Status = f.scorer.Classify(outcome.Confidence)
		entry.Alternatives = outcome.Alternatives
		return
	}

	entry.Status = models.TrackStatusNotFound
	entry.Confidence = 0
	entry.Alternatives = outcome.Alternatives
}

// Select makes one of the entry's listed candidates the match. Selecting is
// an explicit user decision, so the entry is confirmed as well.
func (f *Feedback) Select(ctx context.Context, trackID primitive.ObjectID, targetTrackID string) (*models.SyncTrack, error) {
	entry, err := f.loadEntry(ctx, trackID)
	if err != nil {
		return nil, err
	}

	var chosen *models.Alternative
	rest := make([]models.Alternative, 0, len(entry.Alternatives))
	for i := range entry.Alternatives {
		if entry.Alternatives[i].TrackID == targetTrackID {
			chosen = &entry.Alternatives[i]
			continue
		}
		rest = append(rest, entry.Alternatives[i])
	}
	if chosen == nil {
		return nil, fmt.Errorf("track %s is not among the entry's candidates", targetTrackID)
	}

	entry.TargetTrackID = chosen.TrackID
	entry.TargetTitle = chosen.Title
	entry.TargetURL = chosen.URL
	entry.Confidence = chosen.Confidence
	entry.Status = models.TrackStatusMatched
	entry.Feedback = models.FeedbackConfirmed
	entry.Alternatives = rest

	if err := f.syncs.UpdateTrack(ctx, entry); err != nil {
		return nil, err
	}
	f.recordConfirm(ctx, entry)
	return entry, nil
}

// Skip excludes the entry from the sync without resolving it.
func (f *Feedback) Skip(ctx context.Context, trackID primitive.ObjectID) (*models.SyncTrack, error) {
	entry, err := f.loadEntry(ctx, trackID)
	if err != nil {
		return nil, err
	}

	entry.Status = models.TrackStatusSkipped
	if err := f.syncs.UpdateTrack(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// Unconfirm clears feedback and re-derives the status from the stored
// confidence.
func (f *Feedback) Unconfirm(ctx context.Context, trackID primitive.ObjectID) (*models.SyncTrack, error) {
	entry, err := f.loadEntry(ctx, trackID)
	if err != nil {
		return nil, err
	}

	entry.Feedback = models.FeedbackNone
	if entry.TargetTrackID != "" {
		entry.Status = f.scorer.Classify(entry.Confidence)
	}
	if err := f.syncs.UpdateTrack(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// ResolveURL resolves a user-pasted target-platform URL into the entry's
// match. The URL must belong to the job's target platform.
func (f *Feedback) ResolveURL(ctx context.Context, trackID primitive.ObjectID, url string) (*models.SyncTrack, error) {
	entry, err := f.loadEntry(ctx, trackID)
	if err != nil {
		return nil, err
	}

	platform, _, err := services.ParsePlatformURL(url)
	if err != nil {
		return nil, err
	}
	if platform != entry.TargetPlatform {
		return nil, fmt.Errorf("url belongs to %s, the job targets %s", platform, entry.TargetPlatform)
	}

	svc, err := f.registry.Get(platform)
	if err != nil {
		return nil, err
	}
	info, err := svc.ParseURL(url)
	if err != nil {
		return nil, err
	}

	entry.TargetTrackID = info.ExternalID
	entry.TargetTitle = info.Title
	entry.TargetURL = info.URL
	entry.Confidence = 1.0
	entry.Status = models.TrackStatusMatched
	entry.Feedback = models.FeedbackConfirmed

	if err := f.syncs.UpdateTrack(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}
