// Package fingerprint implements acoustic identification: Chromaprint/AcoustID
// lookup, AcousticBrainz features, an isolated recognition subprocess, a local
// peak-constellation fingerprint, and the merge/identity-linking graph that
// collapses duplicate fingerprint records across platforms.
package fingerprint

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	acoustIDBaseURL = "https://api.acoustid.org/v2"

	// Lookup results below this score are too unreliable to trust for
	// identity; the local pipeline covers those tracks instead.
	acoustIDMinScore = 0.80
)

// ChromaprintResult is the output of one fpcalc run.
type ChromaprintResult struct {
	Fingerprint string  `json:"fingerprint"`
	Duration    float64 `json:"duration"`
}

// Fpcalc computes Chromaprint fingerprints by shelling out to the fpcalc
// binary from the chromaprint package.
type Fpcalc struct {
	path string
}

func NewFpcalc(path string) *Fpcalc {
	if path == "" {
		path = "fpcalc"
	}
	return &Fpcalc{path: path}
}

// Compute runs fpcalc on an audio file and returns the raw fingerprint
// string plus the duration fpcalc measured.
func (f *Fpcalc) Compute(ctx context.Context, audioPath string) (*ChromaprintResult, error) {
	out, err := exec.CommandContext(ctx, f.path, "-json", audioPath).Output()
	if err != nil {
		return nil, fmt.Errorf("running fpcalc: %w", err)
	}

	var result ChromaprintResult
	if err := json.Unmarshal(out, &result); err != nil {
		return nil, fmt.Errorf("parsing fpcalc output: %w", err)
	}
	if result.Fingerprint == "" {
		return nil, fmt.Errorf("fpcalc produced an empty fingerprint for %s", audioPath)
	}
	return &result, nil
}

// AcoustIDClient queries the AcoustID lookup service, which maps Chromaprint
// fingerprints to MusicBrainz recording ids.
type AcoustIDClient struct {
	client *resty.Client
	apiKey string
}

func NewAcoustIDClient(apiKey string) *AcoustIDClient {
	client := resty.New().
		SetBaseURL(acoustIDBaseURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(2)

	return &AcoustIDClient{client: client, apiKey: apiKey}
}

type acoustIDLookup struct {
	Status  string `json:"status"`
	Results []struct {
		ID         string  `json:"id"`
		Score      float64 `json:"score"`
		Recordings []struct {
			ID string `json:"id"`
		} `json:"recordings"`
	} `json:"results"`
}

// LookupMBID resolves a Chromaprint fingerprint to a MusicBrainz recording
// id. Returns an empty mbid when no result reaches the minimum score.
// Fingerprints are long, so the request goes as a POST form.
func (a *AcoustIDClient) LookupMBID(ctx context.Context, fp string, durationSec float64) (mbid string, score float64, err error) {
	if a.apiKey == "" {
		return "", 0, nil
	}

	var result acoustIDLookup
	resp, err := a.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"client":      a.apiKey,
			"meta":        "recordingids",
			"duration":    strconv.Itoa(int(durationSec)),
			"fingerprint": fp,
		}).
		SetResult(&result).
		Post("/lookup")
	if err != nil {
		return "", 0, fmt.Errorf("acoustid lookup failed: %w", err)
	}
	if resp.StatusCode() != 200 || result.Status != "ok" {
		return "", 0, fmt.Errorf("acoustid lookup returned status %d (%s)", resp.StatusCode(), result.Status)
	}

	for _, r := range result.Results {
		if r.Score >= acoustIDMinScore && r.Score > score && len(r.Recordings) > 0 {
			mbid = r.Recordings[0].ID
			score = r.Score
		}
	}
	return mbid, score, nil
}
