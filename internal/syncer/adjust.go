// Package syncer orchestrates playlist sync jobs: concurrent match analysis
// with single-writer persistence, fingerprint-based confidence adjustment,
// user feedback handling, and pushing resolved tracks to the target platform.
package syncer

import (
	"math"

	"tracklink/internal/config"
	"tracklink/internal/models"
)

// Adjustment constants for the fingerprint confidence cascade. The Jaccard
// thresholds live in ScoringConfig so deployments can tune them.
const (
	mbidMismatchPenalty = 0.15
	isrcMismatchPenalty = 0.10

	bpmCloseTolerance = 0.02
	bpmFarTolerance   = 0.15
	bpmCloseBoost     = 0.05
	bpmFarPenalty     = 0.10

	keyMatchBoost      = 0.03
	keyOnlyBoost       = 0.01
	keyMismatchPenalty = 0.05
)

// AdjustConfidence refines a text-based confidence score with acoustic
// evidence. Rules form a priority cascade: hard identifiers (MBID, ISRC,
// recognition id) decide outright when both sides carry them; local
// fingerprint similarity comes next; tempo and key proximity only nudge the
// score when nothing stronger applies. The result is always clamped to [0,1].
func AdjustConfidence(cfg *config.ScoringConfig, conf float64, srcFP, tgtFP *models.Fingerprint, srcLocal, tgtLocal *models.LocalFingerprint) float64 {
	if cfg == nil {
		cfg = config.DefaultScoringConfig()
	}
	if srcFP != nil && tgtFP != nil {
		if srcFP.MBID != "" && tgtFP.MBID != "" {
			if srcFP.MBID == tgtFP.MBID {
				return 1.0
			}
			return clamp01(conf - mbidMismatchPenalty)
		}

		if len(srcFP.ISRCs) > 0 && len(tgtFP.ISRCs) > 0 {
			for _, isrc := range srcFP.ISRCs {
				if tgtFP.HasISRC(isrc) {
					return 1.0
				}
			}
			return clamp01(conf - isrcMismatchPenalty)
		}

		if srcFP.ShazamID != "" && srcFP.ShazamID == tgtFP.ShazamID {
			return 1.0
		}
	}

	if sim := models.JaccardSimilarity(srcLocal, tgtLocal); sim >= cfg.LocalFingerprintStrongJaccard {
		return clamp01(math.Max(conf, 0.95))
	} else if sim >= cfg.LocalFingerprintWeakJaccard {
		return clamp01(conf + sim*0.5)
	}

	if srcFP != nil && tgtFP != nil {
		conf += bpmAdjustment(srcFP.BPM, tgtFP.BPM)
		conf += keyAdjustment(srcFP, tgtFP)
	}
	return clamp01(conf)
}

// bpmAdjustment compares tempi across the direct, doubled, and halved
// relationships, since octave errors are the dominant failure mode of tempo
// estimators.
func bpmAdjustment(src, tgt float64) float64 {
	if src == 0 || tgt == 0 {
		return 0
	}

	ratios := []float64{tgt / src, 2 * tgt / src, tgt / (2 * src)}
	closest := math.Inf(1)
	for _, r := range ratios {
		if d := math.Abs(r - 1.0); d < closest {
			closest = d
		}
	}

	switch {
	case closest <= bpmCloseTolerance:
		return bpmCloseBoost
	case closest > bpmFarTolerance:
		return -bpmFarPenalty
	default:
		return 0
	}
}

func keyAdjustment(src, tgt *models.Fingerprint) float64 {
	if src.Key == "" || tgt.Key == "" {
		return 0
	}
	if src.Key != tgt.Key {
		return -keyMismatchPenalty
	}
	if src.Mode == tgt.Mode {
		return keyMatchBoost
	}
	return keyOnlyBoost
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
