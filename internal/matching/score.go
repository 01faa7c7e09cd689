package matching

import (
	"regexp"
	"sort"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	"tracklink/internal/config"
	"tracklink/internal/models"
)

// versionRE finds markers that indicate a specific version of a recording
var versionRE = regexp.MustCompile(`(?i)\b(remix|remixed|live|acoustic|cover|demo|instrumental|karaoke|` +
	`radio\s*edit|extended|reprise|mashup|flip|rework|bootleg|stripped|` +
	`orchestral|piano\s*version|a\s*cappella|unplugged)\b`)

// Source is the track being matched, as imported from the source platform.
type Source struct {
	Title      string
	Artist     string
	DurationMs int
	ISRC       string
}

// Candidate is one search result from the target platform.
type Candidate struct {
	ID          string
	Title       string
	Artist      string
	DurationSec int
	URL         string
	ISRC        string
}

// Scorer computes match confidence for (source, candidate) pairs. It is
// stateless apart from its constants and safe for concurrent use.
type Scorer struct {
	cfg *config.ScoringConfig
}

// NewScorer creates a scorer with the given constants
func NewScorer(cfg *config.ScoringConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Config exposes the scoring constants for callers that share them, such as
// the fingerprint confidence adjustment.
func (s *Scorer) Config() *config.ScoringConfig {
	return s.cfg
}

// Score returns a 0-1 match confidence.
//
// Equal ISRCs short-circuit to 1.0. An unknown duration on either side
// redistributes its weight to title and artist. Candidates carrying version
// markers the source lacks (remix, live, ...) take a fixed penalty.
func (s *Scorer) Score(src Source, cand Candidate) float64 {
	if src.ISRC != "" && cand.ISRC != "" {
		if strings.EqualFold(strings.TrimSpace(src.ISRC), strings.TrimSpace(cand.ISRC)) {
			return 1.0
		}
	}

	tScore := TokenSetRatio(NormalizeTitle(src.Title), NormalizeTitle(cand.Title))
	aScore := s.artistScore(src.Artist, cand.Artist)
	dScore, dKnown := s.durationScore(src.DurationMs, cand.DurationSec)

	var base float64
	if dKnown {
		base = tScore*s.cfg.TitleWeight + aScore*s.cfg.ArtistWeight + dScore*s.cfg.DurationWeight
	} else {
		base = tScore*s.cfg.TitleWeightNoDuration + aScore*s.cfg.ArtistWeightNoDuration
	}

	base += s.versionPenalty(src.Title, cand.Title)
	return clamp01(base)
}

// Classify maps a confidence score to an entry status.
func (s *Scorer) Classify(confidence float64) string {
	switch {
	case confidence >= s.cfg.ThresholdMatched:
		return models.TrackStatusMatched
	case confidence >= s.cfg.ThresholdUncertain:
		return models.TrackStatusUncertain
	default:
		return models.TrackStatusNotFound
	}
}

// artistScore is robust to platform channel naming: token-set matching lets a
// channel with extra words ("AURORA - Topic", "Aurora Aksnes") fully match a
// plain artist name, and a compounded-slug prefix check recovers usernames
// with no separators ("auroraaksnes").
func (s *Scorer) artistScore(sourceArtist, candArtist string) float64 {
	if sourceArtist == "" || candArtist == "" {
		return 0.5 // neutral when unknown
	}

	src := NormalizeArtist(sourceArtist)
	raw := NormalizeChannel(candArtist)
	slug := NormalizeChannel(slugRE.ReplaceAllString(candArtist, " "))

	best := TokenSetRatio(src, raw)
	if slugScore := TokenSetRatio(src, slug); slugScore > best {
		best = slugScore
	}

	if best < 0.85 {
		srcCompact := strings.ReplaceAll(src, " ", "")
		for _, candForm := range []string{raw, slug} {
			candCompact := strings.ReplaceAll(candForm, " ", "")
			if srcCompact == "" || candCompact == "" {
				continue
			}
			if strings.HasPrefix(candCompact, srcCompact) || strings.HasPrefix(srcCompact, candCompact) {
				overlap := len(srcCompact)
				total := len(candCompact)
				if overlap > total {
					overlap, total = total, overlap
				}
				// graduated: full overlap ~0.90, half ~0.70
				if graded := 0.50 + 0.40*float64(overlap)/float64(total); graded > best {
					best = graded
				}
			}
		}
	}
	return best
}

// durationScore returns (similarity, known). Within tolerance scores 1.0,
// then decays linearly to zero at the cutoff.
func (s *Scorer) durationScore(durMs, durSec int) (float64, bool) {
	if durMs <= 0 || durSec <= 0 {
		return 0, false
	}

	diff := float64(durMs)/1000.0 - float64(durSec)
	if diff < 0 {
		diff = -diff
	}

	switch {
	case diff <= s.cfg.DurationToleranceSec:
		return 1.0, true
	case diff <= s.cfg.DurationCutoffSec:
		return 1.0 - (diff-s.cfg.DurationToleranceSec)/s.cfg.DurationCutoffSec, true
	default:
		return 0.0, true
	}
}

// versionPenalty fires when the candidate title carries version markers the
// source title lacks, checked on the raw titles before normalization strips
// parentheticals.
func (s *Scorer) versionPenalty(sourceTitle, candTitle string) float64 {
	srcMarkers := versionMarkers(sourceTitle)
	for marker := range versionMarkers(candTitle) {
		if !srcMarkers[marker] {
			return -s.cfg.VersionPenalty // one wrong marker is enough
		}
	}
	return 0
}

func versionMarkers(title string) map[string]bool {
	markers := make(map[string]bool)
	for _, m := range versionRE.FindAllString(title, -1) {
		key := strings.Join(strings.Fields(strings.ToLower(m)), " ")
		markers[key] = true
	}
	return markers
}

// TokenSetRatio is an order-insensitive fuzzy similarity in [0,1]. It splits
// both strings into token sets and compares the sorted intersection against
// each side's full sorted token string, so a subset title ("runaway" vs
// "aurora runaway") still scores very high.
func TokenSetRatio(a, b string) float64 {
	tokensA := tokenSet(a)
	tokensB := tokenSet(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	var inter, diffA, diffB []string
	for tok := range tokensA {
		if tokensB[tok] {
			inter = append(inter, tok)
		} else {
			diffA = append(diffA, tok)
		}
	}
	for tok := range tokensB {
		if !tokensA[tok] {
			diffB = append(diffB, tok)
		}
	}
	sort.Strings(inter)
	sort.Strings(diffA)
	sort.Strings(diffB)

	t0 := strings.Join(inter, " ")
	t1 := strings.TrimSpace(t0 + " " + strings.Join(diffA, " "))
	t2 := strings.TrimSpace(t0 + " " + strings.Join(diffB, " "))

	lev := metrics.NewLevenshtein()
	best := strutil.Similarity(t1, t2, lev)
	if t0 != "" {
		if s := strutil.Similarity(t0, t1, lev); s > best {
			best = s
		}
		if s := strutil.Similarity(t0, t2, lev); s > best {
			best = s
		}
	}
	return best
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(s) {
		set[tok] = true
	}
	return set
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
