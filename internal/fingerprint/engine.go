package fingerprint

import (
	"context"
	"fmt"
	"log/slog"

	"tracklink/internal/audio"
	"tracklink/internal/models"
	"tracklink/internal/repositories"
)

// Seconds of decoded audio fed to the tempo/key analysis. The local
// fingerprint uses a longer window (localMaxSeconds).
const analysisSeconds = 60

// AudioFetcher obtains a playable local file for a track, downloading and
// caching it when needed.
type AudioFetcher interface {
	Fetch(ctx context.Context, src *models.TrackSource) (string, error)
}

// PCMDecoder decodes an audio file to mono float64 samples at audio.SampleRate.
type PCMDecoder interface {
	Decode(ctx context.Context, path string, maxSeconds int) ([]float64, error)
}

// Chromaprinter computes a Chromaprint fingerprint for a file.
type Chromaprinter interface {
	Compute(ctx context.Context, audioPath string) (*ChromaprintResult, error)
}

// MBIDResolver maps a Chromaprint fingerprint to a MusicBrainz recording id.
type MBIDResolver interface {
	LookupMBID(ctx context.Context, fp string, durationSec float64) (mbid string, score float64, err error)
}

// FeatureSource returns precomputed BPM/key features for a recording id.
type FeatureSource interface {
	LowLevel(ctx context.Context, mbid string) (*Features, error)
}

// ISRCSource returns the ISRC codes registered for a recording id.
type ISRCSource interface {
	RecordingISRCs(ctx context.Context, mbid string) ([]string, error)
}

// AudioRecognizer identifies audio via an external recognition service.
// Implementations return nil for "no match"; they never fail loudly.
type AudioRecognizer interface {
	Recognize(ctx context.Context, audioPath string) *Recognition
}

// Engine builds fingerprint records for track sources. Stages run in a fixed
// order and are individually skippable: a failed stage logs and the next one
// runs. Stages only fill fields that are still empty, so re-analysis of a
// stale record keeps everything already known.
type Engine struct {
	fingerprints repositories.FingerprintRepository
	localFPs     repositories.LocalFingerprintRepository
	sources      repositories.TrackSourceRepository

	fetcher    AudioFetcher
	decoder    PCMDecoder
	fpcalc     Chromaprinter
	acoustID   MBIDResolver
	features   FeatureSource
	isrcs      ISRCSource
	recognizer AudioRecognizer

	merger       *Merger
	localEnabled bool
}

// EngineDeps carries the engine's collaborators. Nil optional stages
// (fpcalc, acoustID, features, isrcs, recognizer) are skipped.
type EngineDeps struct {
	Fingerprints repositories.FingerprintRepository
	LocalFPs     repositories.LocalFingerprintRepository
	Sources      repositories.TrackSourceRepository

	Fetcher    AudioFetcher
	Decoder    PCMDecoder
	Fpcalc     Chromaprinter
	AcoustID   MBIDResolver
	Features   FeatureSource
	ISRCs      ISRCSource
	Recognizer AudioRecognizer

	LocalFingerprintEnabled bool
}

func NewEngine(deps EngineDeps) *Engine {
	return &Engine{
		fingerprints: deps.Fingerprints,
		localFPs:     deps.LocalFPs,
		sources:      deps.Sources,
		fetcher:      deps.Fetcher,
		decoder:      deps.Decoder,
		fpcalc:       deps.Fpcalc,
		acoustID:     deps.AcoustID,
		features:     deps.Features,
		isrcs:        deps.ISRCs,
		recognizer:   deps.Recognizer,
		merger:       NewMerger(deps.Fingerprints, deps.Sources),
		localEnabled: deps.LocalFingerprintEnabled,
	}
}

// GetOrBuild returns the fingerprint record for a track source, building or
// refreshing it as needed. A stored record at the current algorithm version
// is returned as-is; a stale one is re-run through the pipeline. Returns
// (nil, nil) when no stage could identify or analyze the track.
func (e *Engine) GetOrBuild(ctx context.Context, src *models.TrackSource) (*models.Fingerprint, error) {
	var fp *models.Fingerprint
	if src.FingerprintID != nil {
		existing, err := e.fingerprints.FindByID(ctx, *src.FingerprintID)
		if err != nil {
			return nil, fmt.Errorf("loading fingerprint for %s/%s: %w", src.Platform, src.TrackID, err)
		}
		if existing != nil && !existing.IsStale() {
			return existing, nil
		}
		fp = existing
	}

	audioPath, err := e.fetcher.Fetch(ctx, src)
	if err != nil {
		if fp != nil {
			// keep the stale record rather than losing it
			return fp, nil
		}
		return nil, fmt.Errorf("fetching audio for %s/%s: %w", src.Platform, src.TrackID, err)
	}

	fp, err = e.runStages(ctx, src, fp, audioPath)
	if err != nil || fp == nil {
		return fp, err
	}

	fp.AlgoVersion = models.CurrentAlgoVersion
	if err := e.fingerprints.Update(ctx, fp); err != nil {
		return nil, fmt.Errorf("saving fingerprint: %w", err)
	}
	if src.FingerprintID == nil || *src.FingerprintID != fp.ID {
		if err := e.sources.SetFingerprint(ctx, src.ID, fp.ID); err != nil {
			return nil, fmt.Errorf("linking fingerprint: %w", err)
		}
		src.FingerprintID = &fp.ID
	}
	return fp, nil
}

func (e *Engine) runStages(ctx context.Context, src *models.TrackSource, fp *models.Fingerprint, audioPath string) (*models.Fingerprint, error) {
	log := slog.With("platform", src.Platform, "trackId", src.TrackID)

	// acoustic identification
	var chroma *ChromaprintResult
	if fp == nil || fp.MBID == "" {
		var mbid string
		mbid, chroma = e.identify(ctx, audioPath, log)
		if mbid != "" {
			canonical, err := e.fingerprints.GetOrCreateByMBID(ctx, mbid, models.FingerprintSourceAcoustID)
			if err != nil {
				return nil, fmt.Errorf("get-or-create by mbid: %w", err)
			}
			if fp != nil && fp.ID != canonical.ID {
				// the track already had an mbid-less record; collapse it
				// into the canonical one
				survivor, err := e.merger.Merge(ctx, canonical.ID, fp.ID)
				if err != nil {
					return nil, fmt.Errorf("merging into canonical record: %w", err)
				}
				canonical, err = e.fingerprints.FindByID(ctx, survivor)
				if err != nil || canonical == nil {
					return nil, fmt.Errorf("reloading merged fingerprint: %w", err)
				}
				canonical.Source = models.FingerprintSourceAcoustIDLocal
			}
			fp = canonical
		}
	}
	if fp == nil {
		fp = models.NewFingerprint(models.FingerprintSourceLocalOnly)
		if err := e.fingerprints.Save(ctx, fp); err != nil {
			return nil, fmt.Errorf("saving fingerprint: %w", err)
		}
	}
	if fp.Chromaprint == "" && chroma != nil {
		fp.Chromaprint = chroma.Fingerprint
	}

	// precomputed features and ISRCs, both keyed by mbid
	if fp.MBID != "" {
		if (fp.BPM == 0 || fp.Key == "") && e.features != nil {
			if feat, err := e.features.LowLevel(ctx, fp.MBID); err != nil {
				log.Debug("feature lookup failed", "error", err)
			} else if feat != nil {
				if fp.BPM == 0 {
					fp.BPM = feat.BPM
				}
				if fp.Key == "" {
					fp.Key = feat.Key
					fp.Mode = feat.Mode
				}
			}
		}
		if len(fp.ISRCs) == 0 && e.isrcs != nil {
			if codes, err := e.isrcs.RecordingISRCs(ctx, fp.MBID); err != nil {
				log.Debug("isrc lookup failed", "error", err)
			} else {
				fp.AddISRCs(codes)
			}
		}
	}

	// local analysis needs decoded samples; decode once for both uses
	var samples []float64
	needAnalysis := fp.BPM == 0 || fp.Key == ""
	needLocalFP := e.localEnabled && e.missingLocalFP(ctx, src)
	if needAnalysis || needLocalFP {
		var err error
		samples, err = e.decoder.Decode(ctx, audioPath, localMaxSeconds)
		if err != nil {
			log.Warn("audio decode failed, skipping local analysis", "error", err)
			samples = nil
		}
	}
	if samples != nil && needAnalysis {
		window := samples
		if limit := analysisSeconds * audio.SampleRate; len(window) > limit {
			window = window[:limit]
		}
		if fp.BPM == 0 {
			fp.BPM = audio.EstimateBPM(window)
		}
		if fp.Key == "" {
			fp.Key, fp.Mode = audio.EstimateKey(window)
		}
	}

	// recognition, fill-missing only
	if e.recognizer != nil && fp.ShazamID == "" {
		if rec := e.recognizer.Recognize(ctx, audioPath); rec != nil {
			applyRecognition(fp, rec)
		}
	}

	// the local fingerprint is its own entity, computed once per track
	if samples != nil && needLocalFP {
		lf := ComputeLocal(samples, src.ID)
		if len(lf.Tokens) > 0 {
			if err := e.localFPs.Save(ctx, lf); err != nil {
				log.Warn("saving local fingerprint failed", "error", err)
			}
		}
	}

	return fp, nil
}

// identify runs Chromaprint and the AcoustID lookup. The raw fingerprint is
// returned even when the lookup fails, so the record keeps it either way.
func (e *Engine) identify(ctx context.Context, audioPath string, log *slog.Logger) (string, *ChromaprintResult) {
	if e.fpcalc == nil || e.acoustID == nil {
		return "", nil
	}
	chroma, err := e.fpcalc.Compute(ctx, audioPath)
	if err != nil {
		log.Debug("chromaprint failed", "error", err)
		return "", nil
	}
	mbid, score, err := e.acoustID.LookupMBID(ctx, chroma.Fingerprint, chroma.Duration)
	if err != nil {
		log.Debug("acoustid lookup failed", "error", err)
		return "", chroma
	}
	if mbid != "" {
		log.Debug("acoustid identified recording", "mbid", mbid, "score", score)
	}
	return mbid, chroma
}

func (e *Engine) missingLocalFP(ctx context.Context, src *models.TrackSource) bool {
	if src.ID.IsZero() {
		return false
	}
	existing, err := e.localFPs.FindByTrackSourceID(ctx, src.ID)
	return err == nil && existing == nil
}

// applyRecognition copies recognition fields into empty fingerprint fields,
// never overwriting values an earlier stage produced.
func applyRecognition(fp *models.Fingerprint, rec *Recognition) {
	if fp.ShazamID == "" {
		fp.ShazamID = rec.ID
	}
	if fp.ShazamTitle == "" {
		fp.ShazamTitle = rec.Title
	}
	if fp.ShazamArtist == "" {
		fp.ShazamArtist = rec.Artist
	}
	if fp.ShazamAlbum == "" {
		fp.ShazamAlbum = rec.Album
	}
	if fp.ShazamGenre == "" {
		fp.ShazamGenre = rec.Genre
	}
	if fp.ShazamURI == "" {
		fp.ShazamURI = rec.URI
	}
	if fp.ShazamCoverURL == "" {
		fp.ShazamCoverURL = rec.CoverURL
	}
}
