package fingerprint

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"tracklink/internal/config"
	"tracklink/internal/models"
	"tracklink/internal/repositories"
)

// Linker runs the batch identity-linking sweep: it finds fingerprint records
// that the enrichment stages tagged with the same external identity and
// collapses them. Only cross-platform pairs are linked; two tracks on the
// same platform are assumed to be genuinely different uploads.
type Linker struct {
	merger       *Merger
	sources      repositories.TrackSourceRepository
	fingerprints repositories.FingerprintRepository
	localFPs     repositories.LocalFingerprintRepository

	// Local-fingerprint similarity at or above this merges the records
	mergeJaccard float64
	// Pairwise comparison cap per platform group in the fourth pass
	maxPerPlatform int
}

func NewLinker(
	cfg *config.ScoringConfig,
	fingerprints repositories.FingerprintRepository,
	sources repositories.TrackSourceRepository,
	localFPs repositories.LocalFingerprintRepository,
) *Linker {
	if cfg == nil {
		cfg = config.DefaultScoringConfig()
	}
	return &Linker{
		merger:         NewMerger(fingerprints, sources),
		sources:        sources,
		fingerprints:   fingerprints,
		localFPs:       localFPs,
		mergeJaccard:   cfg.LocalFingerprintStrongJaccard,
		maxPerPlatform: cfg.LinkMaxPerPlatform,
	}
}

type linkedTrack struct {
	sourceID primitive.ObjectID
	platform string
	fpID     primitive.ObjectID
}

// Sweep runs all four linking passes over every fingerprinted track and
// returns the number of merges performed.
func (l *Linker) Sweep(ctx context.Context) (int, error) {
	tracks, err := l.sources.FindFingerprinted(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading fingerprinted tracks: %w", err)
	}

	linked := make([]linkedTrack, 0, len(tracks))
	fps := make(map[primitive.ObjectID]*models.Fingerprint)
	for _, t := range tracks {
		if t.FingerprintID == nil {
			continue
		}
		if _, ok := fps[*t.FingerprintID]; !ok {
			fp, err := l.fingerprints.FindByID(ctx, *t.FingerprintID)
			if err != nil {
				return 0, fmt.Errorf("loading fingerprint %s: %w", t.FingerprintID.Hex(), err)
			}
			fps[*t.FingerprintID] = fp
		}
		if fps[*t.FingerprintID] == nil {
			continue
		}
		linked = append(linked, linkedTrack{sourceID: t.ID, platform: t.Platform, fpID: *t.FingerprintID})
	}

	// remap follows records that merges consumed to their survivors
	remap := make(map[primitive.ObjectID]primitive.ObjectID)
	resolve := func(id primitive.ObjectID) primitive.ObjectID {
		for {
			next, ok := remap[id]
			if !ok || next == id {
				return id
			}
			id = next
		}
	}

	merged := 0
	mergePair := func(a, b primitive.ObjectID) error {
		a, b = resolve(a), resolve(b)
		if a == b {
			return nil
		}
		survivor, err := l.merger.Merge(ctx, a, b)
		if err != nil {
			return err
		}
		remap[a] = survivor
		remap[b] = survivor
		merged++
		return nil
	}

	identityPasses := []struct {
		name string
		keys func(fp *models.Fingerprint) []string
	}{
		{"mbid", func(fp *models.Fingerprint) []string {
			if fp.MBID == "" {
				return nil
			}
			return []string{fp.MBID}
		}},
		{"shazam", func(fp *models.Fingerprint) []string {
			if fp.ShazamID == "" {
				return nil
			}
			return []string{fp.ShazamID}
		}},
		{"isrc", func(fp *models.Fingerprint) []string {
			return fp.ISRCs
		}},
	}

	for _, pass := range identityPasses {
		groups := make(map[string][]linkedTrack)
		for _, t := range linked {
			for _, key := range pass.keys(fps[t.fpID]) {
				groups[key] = append(groups[key], t)
			}
		}
		for _, group := range groups {
			if err := l.mergeAcrossPlatforms(group, mergePair); err != nil {
				return merged, fmt.Errorf("%s pass: %w", pass.name, err)
			}
		}
	}

	if err := l.localSimilarityPass(ctx, linked, mergePair); err != nil {
		return merged, fmt.Errorf("local-fingerprint pass: %w", err)
	}

	if merged > 0 {
		slog.Info("identity sweep complete", "tracks", len(linked), "merges", merged)
	}
	return merged, nil
}

// mergeAcrossPlatforms merges every cross-platform pair in a group of tracks
// sharing one identity key.
func (l *Linker) mergeAcrossPlatforms(group []linkedTrack, mergePair func(a, b primitive.ObjectID) error) error {
	for i := 0; i < len(group); i++ {
		for j := i + 1; j < len(group); j++ {
			if group[i].platform == group[j].platform {
				continue
			}
			if err := mergePair(group[i].fpID, group[j].fpID); err != nil {
				return err
			}
		}
	}
	return nil
}

// localSimilarityPass compares local fingerprints pairwise across platforms.
// Each platform group is capped to bound the quadratic comparison cost.
func (l *Linker) localSimilarityPass(ctx context.Context, linked []linkedTrack, mergePair func(a, b primitive.ObjectID) error) error {
	byPlatform := make(map[string][]linkedTrack)
	for _, t := range linked {
		if len(byPlatform[t.platform]) < l.maxPerPlatform {
			byPlatform[t.platform] = append(byPlatform[t.platform], t)
		}
	}
	if len(byPlatform) < 2 {
		return nil
	}

	localFPs := make(map[primitive.ObjectID]*models.LocalFingerprint)
	lookup := func(sourceID primitive.ObjectID) *models.LocalFingerprint {
		if lf, ok := localFPs[sourceID]; ok {
			return lf
		}
		lf, err := l.localFPs.FindByTrackSourceID(ctx, sourceID)
		if err != nil {
			lf = nil
		}
		localFPs[sourceID] = lf
		return lf
	}

	platforms := make([]string, 0, len(byPlatform))
	for p := range byPlatform {
		platforms = append(platforms, p)
	}

	for i := 0; i < len(platforms); i++ {
		for j := i + 1; j < len(platforms); j++ {
			for _, a := range byPlatform[platforms[i]] {
				lfA := lookup(a.sourceID)
				if lfA == nil {
					continue
				}
				for _, b := range byPlatform[platforms[j]] {
					lfB := lookup(b.sourceID)
					if lfB == nil {
						continue
					}
					if models.JaccardSimilarity(lfA, lfB) >= l.mergeJaccard {
						if err := mergePair(a.fpID, b.fpID); err != nil {
							return err
						}
					}
				}
			}
		}
	}
	return nil
}
