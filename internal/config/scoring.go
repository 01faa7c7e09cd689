package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	toml "github.com/pelletier/go-toml/v2"
)

// ScoringConfig holds the tunable constants of the matching pipeline.
//
// The defaults were chosen empirically; treat them as tuning knobs, not
// derived values. Overridable from a TOML file (SCORING_CONFIG_PATH or a
// well-known location) so deployments can adjust them without a rebuild.
type ScoringConfig struct {
	// Weighted combination when the candidate duration is known
	TitleWeight    float64 `toml:"title_weight"`
	ArtistWeight   float64 `toml:"artist_weight"`
	DurationWeight float64 `toml:"duration_weight"`

	// Weights when either duration is unknown (duration share redistributed)
	TitleWeightNoDuration  float64 `toml:"title_weight_no_duration"`
	ArtistWeightNoDuration float64 `toml:"artist_weight_no_duration"`

	// Penalty applied when the candidate title carries a version marker
	// (remix, live, acoustic, ...) that the source title lacks
	VersionPenalty float64 `toml:"version_penalty"`

	// Duration tolerance: full score within ToleranceSec, linear decay to
	// zero at CutoffSec
	DurationToleranceSec float64 `toml:"duration_tolerance_sec"`
	DurationCutoffSec    float64 `toml:"duration_cutoff_sec"`

	// Confidence classification thresholds
	ThresholdMatched   float64 `toml:"threshold_matched"`
	ThresholdUncertain float64 `toml:"threshold_uncertain"`

	// Candidate collection
	ResultsPerQuery  int `toml:"results_per_query"`
	MaxAlternatives  int `toml:"max_alternatives"`
	PickerResultSize int `toml:"picker_result_size"`

	// MusicBrainz enrichment: minimum title similarity to accept a recording
	EnrichMinSimilarity float64 `toml:"enrich_min_similarity"`

	// Local fingerprint comparison
	LocalFingerprintStrongJaccard float64 `toml:"local_fingerprint_strong_jaccard"`
	LocalFingerprintWeakJaccard   float64 `toml:"local_fingerprint_weak_jaccard"`

	// Identity-linking sweep: cap on pairwise local-fingerprint comparisons
	// per platform group (bounds the O(n^2) pass)
	LinkMaxPerPlatform int `toml:"link_max_per_platform"`
}

// DefaultScoringConfig returns hard-coded safe defaults
func DefaultScoringConfig() *ScoringConfig {
	return &ScoringConfig{
		TitleWeight:                   0.45,
		ArtistWeight:                  0.35,
		DurationWeight:                0.20,
		TitleWeightNoDuration:         0.57,
		ArtistWeightNoDuration:        0.43,
		VersionPenalty:                0.15,
		DurationToleranceSec:          5,
		DurationCutoffSec:             30,
		ThresholdMatched:              0.90,
		ThresholdUncertain:            0.55,
		ResultsPerQuery:               15,
		MaxAlternatives:               5,
		PickerResultSize:              5,
		EnrichMinSimilarity:           0.6,
		LocalFingerprintStrongJaccard: 0.15,
		LocalFingerprintWeakJaccard:   0.05,
		LinkMaxPerPlatform:            150,
	}
}

var (
	scoringCfg     *ScoringConfig
	scoringCfgOnce sync.Once
	scoringCfgMu   sync.RWMutex
)

// GetScoringConfig loads the scoring config from TOML if SCORING_CONFIG_PATH is
// set. Falls back to defaults if the env var is unset or the file cannot be
// read/parsed.
func GetScoringConfig() *ScoringConfig {
	scoringCfgOnce.Do(func() {
		cfg := DefaultScoringConfig()
		if path := os.Getenv("SCORING_CONFIG_PATH"); path != "" {
			if fileCfg, err := loadScoringConfigFromPath(path); err == nil && fileCfg != nil {
				mergeScoringConfig(cfg, fileCfg)
			}
		} else {
			for _, p := range candidateScoringConfigPaths() {
				if fileCfg, err := loadScoringConfigFromPath(p); err == nil && fileCfg != nil {
					mergeScoringConfig(cfg, fileCfg)
					break
				}
			}
		}
		scoringCfgMu.Lock()
		scoringCfg = cfg
		scoringCfgMu.Unlock()
	})
	scoringCfgMu.RLock()
	cfg := scoringCfg
	scoringCfgMu.RUnlock()
	return cfg
}

func loadScoringConfigFromPath(path string) (*ScoringConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var cfg ScoringConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func mergeScoringConfig(base, override *ScoringConfig) {
	if override == nil || base == nil {
		return
	}
	if override.TitleWeight > 0 {
		base.TitleWeight = override.TitleWeight
	}
	if override.ArtistWeight > 0 {
		base.ArtistWeight = override.ArtistWeight
	}
	if override.DurationWeight > 0 {
		base.DurationWeight = override.DurationWeight
	}
	if override.TitleWeightNoDuration > 0 {
		base.TitleWeightNoDuration = override.TitleWeightNoDuration
	}
	if override.ArtistWeightNoDuration > 0 {
		base.ArtistWeightNoDuration = override.ArtistWeightNoDuration
	}
	if override.VersionPenalty > 0 {
		base.VersionPenalty = override.VersionPenalty
	}
	if override.DurationToleranceSec > 0 {
		base.DurationToleranceSec = override.DurationToleranceSec
	}
	if override.DurationCutoffSec > 0 {
		base.DurationCutoffSec = override.DurationCutoffSec
	}
	if override.ThresholdMatched > 0 {
		base.ThresholdMatched = override.ThresholdMatched
	}
	if override.ThresholdUncertain > 0 {
		base.ThresholdUncertain = override.ThresholdUncertain
	}
	if override.ResultsPerQuery > 0 {
		base.ResultsPerQuery = override.ResultsPerQuery
	}
	if override.MaxAlternatives > 0 {
		base.MaxAlternatives = override.MaxAlternatives
	}
	if override.PickerResultSize > 0 {
		base.PickerResultSize = override.PickerResultSize
	}
	if override.EnrichMinSimilarity > 0 {
		base.EnrichMinSimilarity = override.EnrichMinSimilarity
	}
	if override.LocalFingerprintStrongJaccard > 0 {
		base.LocalFingerprintStrongJaccard = override.LocalFingerprintStrongJaccard
	}
	if override.LocalFingerprintWeakJaccard > 0 {
		base.LocalFingerprintWeakJaccard = override.LocalFingerprintWeakJaccard
	}
	if override.LinkMaxPerPlatform > 0 {
		base.LinkMaxPerPlatform = override.LinkMaxPerPlatform
	}
}

// candidateScoringConfigPaths returns common locations to auto-discover scoring config
func candidateScoringConfigPaths() []string {
	var paths []string
	paths = append(paths,
		"scoring.toml",
		filepath.Join("config", "scoring.toml"),
	)

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths, filepath.Join(xdg, "tracklink", "scoring.toml"))
	}
	if home := os.Getenv("HOME"); home != "" {
		paths = append(paths, filepath.Join(home, ".config", "tracklink", "scoring.toml"))
	}
	paths = append(paths, filepath.Join(string(os.PathSeparator), "etc", "tracklink", "scoring.toml"))
	return paths
}
