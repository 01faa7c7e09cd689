package matching

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const musicBrainzBaseURL = "https://musicbrainz.org/ws/2"

// EnrichResult carries canonical metadata recovered from MusicBrainz. Zero
// values mean the lookup found nothing usable; callers proceed with their
// original metadata.
type EnrichResult struct {
	Title  string
	Artist string
	ISRCs  []string
}

// MusicBrainzClient queries the MusicBrainz recording search. All requests
// pass through a process-wide 1 req/s limiter per the service's usage policy.
type MusicBrainzClient struct {
	client   *resty.Client
	limiter  *rate.Limiter
	scorer   *Scorer
	minMatch float64
}

// NewMusicBrainzClient creates a rate-limited MusicBrainz client. The
// user agent must identify the application per MusicBrainz guidelines.
func NewMusicBrainzClient(userAgent string, scorer *Scorer) *MusicBrainzClient {
	client := resty.New().
		SetBaseURL(musicBrainzBaseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "application/json")

	return &MusicBrainzClient{
		client:   client,
		limiter:  rate.NewLimiter(rate.Every(time.Second), 1),
		scorer:   scorer,
		minMatch: scorer.cfg.EnrichMinSimilarity,
	}
}

type mbRecordingSearch struct {
	Recordings []mbRecording `json:"recordings"`
}

type mbRecording struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Score        int      `json:"score"`
	ISRCs        []string `json:"isrcs"`
	ArtistCredit []struct {
		Artist struct {
			Name string `json:"name"`
		} `json:"artist"`
	} `json:"artist-credit"`
}

// Enrich looks up canonical title/artist and ISRCs for noisy source metadata.
// The best recording is selected by title similarity; results below the
// minimum similarity are discarded. Failures are non-fatal and return an
// empty result.
func (m *MusicBrainzClient) Enrich(ctx context.Context, title, artist string) EnrichResult {
	var queryTitle string
	if artist != "" {
		queryTitle = CleanTitle(title, artist)
	} else {
		queryTitle = NormalizeTitle(title)
	}
	if queryTitle == "" && artist == "" {
		return EnrichResult{}
	}

	query := fmt.Sprintf("recording:%q", queryTitle)
	if artist != "" {
		query += fmt.Sprintf(" AND artist:%q", NormalizeArtist(artist))
	}

	if err := m.limiter.Wait(ctx); err != nil {
		return EnrichResult{}
	}

	var result mbRecordingSearch
	resp, err := m.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"query": query,
			"limit": "5",
			"fmt":   "json",
			"inc":   "isrcs artist-credits",
		}).
		SetResult(&result).
		Get("/recording")
	if err != nil {
		slog.Debug("MusicBrainz request failed", "error", err)
		return EnrichResult{}
	}
	if resp.StatusCode() != 200 {
		slog.Debug("MusicBrainz returned non-200", "status", resp.StatusCode())
		return EnrichResult{}
	}
	if len(result.Recordings) == 0 {
		return EnrichResult{}
	}

	sourceNorm := NormalizeTitle(queryTitle)
	var best *mbRecording
	bestSim := 0.0
	for i := range result.Recordings {
		sim := TokenSetRatio(sourceNorm, NormalizeTitle(result.Recordings[i].Title))
		if sim > bestSim {
			bestSim = sim
			best = &result.Recordings[i]
		}
	}
	if best == nil || bestSim < m.minMatch {
		return EnrichResult{}
	}

	canonical := EnrichResult{
		Title:  best.Title,
		Artist: artist, // fallback to input
		ISRCs:  best.ISRCs,
	}
	if len(best.ArtistCredit) > 0 && best.ArtistCredit[0].Artist.Name != "" {
		canonical.Artist = best.ArtistCredit[0].Artist.Name
	}

	slog.Debug("MusicBrainz enrichment",
		"input", title,
		"canonicalTitle", canonical.Title,
		"canonicalArtist", canonical.Artist,
		"isrcs", len(canonical.ISRCs),
		"similarity", bestSim)
	return canonical
}

// RecordingISRCs fetches the ISRC codes attached to a recording MBID.
func (m *MusicBrainzClient) RecordingISRCs(ctx context.Context, mbid string) ([]string, error) {
	if mbid == "" {
		return nil, nil
	}

	if err := m.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var result struct {
		ISRCs []string `json:"isrcs"`
	}
	resp, err := m.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"fmt": "json",
			"inc": "isrcs",
		}).
		SetResult(&result).
		Get("/recording/" + mbid)
	if err != nil {
		return nil, fmt.Errorf("musicbrainz recording lookup failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("musicbrainz recording lookup returned status %d", resp.StatusCode())
	}
	return result.ISRCs, nil
}
