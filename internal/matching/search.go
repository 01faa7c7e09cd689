package matching

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"tracklink/internal/config"
	"tracklink/internal/models"
)

// SearchFunc executes one platform search query, returning a bounded list of
// raw candidates. Implementations live in the platform services.
type SearchFunc func(ctx context.Context, query string, limit int) ([]Candidate, error)

// MatchOutcome is the result of a full Level 1+2 match attempt.
type MatchOutcome struct {
	TrackID    string
	Title      string
	Artist     string
	URL        string
	Confidence float64

	// Alternatives holds ranked non-winning candidates for manual override.
	// When no candidate cleared the uncertain threshold, it instead carries
	// the best-effort picker list and TrackID is empty.
	Alternatives []models.Alternative
}

// Found reports whether a candidate cleared the uncertain threshold.
func (o *MatchOutcome) Found() bool {
	return o.TrackID != ""
}

// Searcher runs the text-matching pipeline: multi-query candidate collection,
// scoring, and bibliographic enrichment when the initial score is low.
type Searcher struct {
	scorer *Scorer
	mb     *MusicBrainzClient
	cfg    *config.ScoringConfig
}

// NewSearcher creates a searcher. mb may be nil to disable enrichment.
func NewSearcher(scorer *Scorer, mb *MusicBrainzClient) *Searcher {
	return &Searcher{
		scorer: scorer,
		mb:     mb,
		cfg:    scorer.cfg,
	}
}

// FindBestMatch resolves a source track against a target platform.
//
// Level 1 runs each built query, deduplicates candidates by platform id, and
// keeps the best score. Level 2 kicks in below the matched threshold: the
// source metadata is upgraded via MusicBrainz, existing candidates re-scored,
// and fresh searches issued with the canonical names. When nothing clears the
// uncertain threshold, one extra raw "title artist" query fills a ranked
// picker list so the caller can surface best-effort choices.
func (s *Searcher) FindBestMatch(ctx context.Context, src Source, search SearchFunc, excludeIDs []string) *MatchOutcome {
	exclude := make(map[string]bool, len(excludeIDs))
	for _, id := range excludeIDs {
		exclude[id] = true
	}

	queries := BuildQueries(src.Title, src.Artist)
	candidates := s.collect(ctx, search, queries, s.cfg.ResultsPerQuery, exclude, nil)

	best, bestScore := s.bestOf(candidates, src)
	slog.Debug("Level 1 search", "title", src.Title, "artist", src.Artist, "bestScore", bestScore, "candidates", len(candidates))

	// Level 2: bibliographic enrichment when the score is below threshold
	effectiveSrc := src
	var mbCandidates []Candidate
	if s.mb != nil && bestScore < s.cfg.ThresholdMatched {
		enriched := s.mb.Enrich(ctx, src.Title, src.Artist)
		if enriched.Title != "" || len(enriched.ISRCs) > 0 {
			if enriched.Title != "" {
				effectiveSrc.Title = enriched.Title
			}
			if enriched.Artist != "" {
				effectiveSrc.Artist = enriched.Artist
			}
			if effectiveSrc.ISRC == "" && len(enriched.ISRCs) > 0 {
				effectiveSrc.ISRC = enriched.ISRCs[0]
			}

			// Re-score what we already have with the cleaner metadata
			for _, cand := range candidates {
				if score := s.scorer.Score(effectiveSrc, cand); score > bestScore {
					bestScore = score
					best = &cand
				}
			}

			// Fresh searches with canonical names if still short
			if bestScore < s.cfg.ThresholdMatched && enriched.Title != "" {
				seen := make(map[string]bool, len(candidates))
				for _, c := range candidates {
					seen[c.ID] = true
				}
				mbQueries := BuildQueries(effectiveSrc.Title, effectiveSrc.Artist)
				mbCandidates = s.collect(ctx, search, mbQueries, s.cfg.ResultsPerQuery, exclude, seen)
				for _, cand := range mbCandidates {
					if score := s.scorer.Score(effectiveSrc, cand); score > bestScore {
						bestScore = score
						best = &cand
					}
				}
			}
			slog.Debug("Level 2 enrichment", "bestScore", bestScore, "canonicalTitle", enriched.Title)
		}
	}

	allCandidates := append(candidates, mbCandidates...)

	if best != nil && bestScore >= s.cfg.ThresholdUncertain {
		pool := make([]Candidate, 0, len(allCandidates))
		for _, c := range allCandidates {
			if c.ID != best.ID {
				pool = append(pool, c)
			}
		}
		alternatives := s.rank(pool, effectiveSrc, s.cfg.ThresholdUncertain*0.6, s.cfg.MaxAlternatives)
		return &MatchOutcome{
			TrackID:      best.ID,
			Title:        best.Title,
			Artist:       best.Artist,
			URL:          best.URL,
			Confidence:   bestScore,
			Alternatives: alternatives,
		}
	}

	// Nothing confident enough. Run one raw query matching what the user would
	// type into the platform, then surface the top-ranked pool as a picker.
	rawQuery := strings.TrimSpace(src.Title + " " + src.Artist)
	seen := make(map[string]bool, len(allCandidates))
	for _, c := range allCandidates {
		seen[c.ID] = true
	}
	rawExtra := s.collect(ctx, search, []string{rawQuery}, s.cfg.ResultsPerQuery, exclude, seen)
	allCandidates = append(allCandidates, rawExtra...)

	picker := s.rank(allCandidates, effectiveSrc, 0, s.cfg.PickerResultSize)
	return &MatchOutcome{Alternatives: picker}
}

// collect runs queries in order, deduplicating candidates by id. Query
// failures are logged and skipped; the next query is the retry policy.
func (s *Searcher) collect(ctx context.Context, search SearchFunc, queries []string, perQuery int, exclude, seen map[string]bool) []Candidate {
	if seen == nil {
		seen = make(map[string]bool)
	}
	var out []Candidate
	for _, query := range queries {
		results, err := search(ctx, query, perQuery)
		if err != nil {
			slog.Warn("Platform search failed", "query", query, "error", err)
			continue
		}
		for _, cand := range results {
			if cand.ID == "" || cand.Title == "" || seen[cand.ID] || exclude[cand.ID] {
				continue
			}
			seen[cand.ID] = true
			out = append(out, cand)
		}
	}
	return out
}

func (s *Searcher) bestOf(candidates []Candidate, src Source) (*Candidate, float64) {
	var best *Candidate
	bestScore := 0.0
	for i := range candidates {
		if score := s.scorer.Score(src, candidates[i]); score > bestScore {
			bestScore = score
			best = &candidates[i]
		}
	}
	return best, bestScore
}

// rank scores candidates and returns them ordered by confidence descending,
// dropping entries below minScore and capping the list.
func (s *Searcher) rank(candidates []Candidate, src Source, minScore float64, limit int) []models.Alternative {
	scored := make([]models.Alternative, 0, len(candidates))
	for _, cand := range candidates {
		conf := s.scorer.Score(src, cand)
		if conf >= minScore {
			scored = append(scored, models.Alternative{
				TrackID:    cand.ID,
				Title:      cand.Title,
				Artist:     cand.Artist,
				URL:        cand.URL,
				Confidence: conf,
			})
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Confidence > scored[j].Confidence
	})
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}
