package fingerprint

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const acousticBrainzBaseURL = "https://acousticbrainz.org/api/v1"

// Features are the precomputed signal descriptors AcousticBrainz stores per
// recording. The project stopped accepting submissions in 2022, so coverage
// is frozen; local analysis fills the gaps.
type Features struct {
	BPM  float64
	Key  string
	Mode string
}

// AcousticBrainzClient fetches low-level features for a MusicBrainz
// recording id.
type AcousticBrainzClient struct {
	client *resty.Client
}

func NewAcousticBrainzClient() *AcousticBrainzClient {
	client := resty.New().
		SetBaseURL(acousticBrainzBaseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(2)

	return &AcousticBrainzClient{client: client}
}

type abLowLevel struct {
	Rhythm struct {
		BPM float64 `json:"bpm"`
	} `json:"rhythm"`
	Tonal struct {
		KeyKey   string `json:"key_key"`
		KeyScale string `json:"key_scale"`
	} `json:"tonal"`
}

// LowLevel returns the stored features for an mbid, or nil when the database
// has no entry for it.
func (a *AcousticBrainzClient) LowLevel(ctx context.Context, mbid string) (*Features, error) {
	if mbid == "" {
		return nil, nil
	}

	var result abLowLevel
	resp, err := a.client.R().
		SetContext(ctx).
		SetResult(&result).
		Get("/" + mbid + "/low-level")
	if err != nil {
		return nil, fmt.Errorf("acousticbrainz lookup failed: %w", err)
	}
	if resp.StatusCode() == 404 {
		return nil, nil
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("acousticbrainz lookup returned status %d", resp.StatusCode())
	}

	return &Features{
		BPM:  result.Rhythm.BPM,
		Key:  result.Tonal.KeyKey,
		Mode: strings.ToLower(result.Tonal.KeyScale),
	}, nil
}
