package fingerprint

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"math/cmplx"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"gonum.org/v1/gonum/dsp/fourier"

	"tracklink/internal/audio"
	"tracklink/internal/models"
)

// Local fingerprint parameters. Token hashes encode (anchor band-peak bin,
// paired bin, frame delta), so any change here invalidates stored
// fingerprints and must bump models.CurrentAlgoVersion.
const (
	localMaxSeconds   = 120
	localFFTSize      = 4096
	localHopSize      = 512
	localBands        = 10
	localFloorDB      = -60.0
	localFanOut       = 5
	localMaxFrameSpan = 50
)

type spectralPeak struct {
	frame int
	bin   int
}

// ComputeLocal builds the peak-constellation fingerprint of mono samples at
// audio.SampleRate. The token set is bounded and sorted so two computations
// of the same audio are byte-identical.
func ComputeLocal(samples []float64, trackSourceID primitive.ObjectID) *models.LocalFingerprint {
	durationSec := float64(len(samples)) / audio.SampleRate
	if limit := localMaxSeconds * audio.SampleRate; len(samples) > limit {
		samples = samples[:limit]
	}

	peaks := findPeaks(samples)
	tokens := hashPeakPairs(peaks)

	digest := sha256.Sum256([]byte(strings.Join(tokens, "")))
	return &models.LocalFingerprint{
		TrackSourceID: trackSourceID,
		Tokens:        tokens,
		Digest:        hex.EncodeToString(digest[:]),
		DurationSec:   durationSec,
		CreatedAt:     time.Now(),
	}
}

// findPeaks returns the loudest bin per logarithmic frequency band per STFT
// frame, dropping anything below the noise floor relative to the global peak.
func findPeaks(samples []float64) []spectralPeak {
	if len(samples) < localFFTSize {
		return nil
	}

	fft := fourier.NewFFT(localFFTSize)
	window := hann(localFFTSize)
	edges := bandEdges(localFFTSize/2, localBands)
	frame := make([]float64, localFFTSize)

	type framePeaks struct {
		frame int
		bins  []int
		mags  []float64
	}
	var all []framePeaks
	globalMax := 0.0

	for start, n := 0, 0; start+localFFTSize <= len(samples); start, n = start+localHopSize, n+1 {
		for i := range frame {
			frame[i] = samples[start+i] * window[i]
		}
		spectrum := fft.Coefficients(nil, frame)

		fp := framePeaks{frame: n}
		for b := 0; b < localBands; b++ {
			bestBin, bestMag := -1, 0.0
			for k := edges[b]; k < edges[b+1]; k++ {
				if mag := cmplx.Abs(spectrum[k]); mag > bestMag {
					bestMag = mag
					bestBin = k
				}
			}
			if bestBin >= 0 {
				fp.bins = append(fp.bins, bestBin)
				fp.mags = append(fp.mags, bestMag)
				if bestMag > globalMax {
					globalMax = bestMag
				}
			}
		}
		all = append(all, fp)
	}
	if globalMax == 0 {
		return nil
	}

	var peaks []spectralPeak
	for _, fp := range all {
		for i, bin := range fp.bins {
			if 20*math.Log10(fp.mags[i]/globalMax) >= localFloorDB {
				peaks = append(peaks, spectralPeak{frame: fp.frame, bin: bin})
			}
		}
	}
	return peaks
}

// hashPeakPairs pairs each peak with the next few peaks within the frame
// span and hashes each pair into a short token. The pairing makes tokens
// survive dropouts that shift or delete individual peaks.
func hashPeakPairs(peaks []spectralPeak) []string {
	seen := make(map[string]struct{})
	for i, anchor := range peaks {
		paired := 0
		for j := i + 1; j < len(peaks) && paired < localFanOut; j++ {
			dt := peaks[j].frame - anchor.frame
			if dt <= 0 {
				continue
			}
			if dt > localMaxFrameSpan {
				break
			}
			sum := sha1.Sum([]byte(fmt.Sprintf("%d|%d|%d", anchor.bin, peaks[j].bin, dt)))
			seen[hex.EncodeToString(sum[:])[:8]] = struct{}{}
			paired++
		}
	}

	tokens := make([]string, 0, len(seen))
	for tok := range seen {
		tokens = append(tokens, tok)
	}
	sort.Strings(tokens)
	if len(tokens) > models.MaxLocalFingerprintTokens {
		tokens = tokens[:models.MaxLocalFingerprintTokens]
	}
	return tokens
}

// bandEdges splits bins [1, maxBin) into n logarithmically spaced bands
func bandEdges(maxBin, n int) []int {
	edges := make([]int, n+1)
	ratio := math.Pow(float64(maxBin), 1.0/float64(n))
	edges[0] = 1
	for i := 1; i <= n; i++ {
		edge := int(math.Pow(ratio, float64(i)))
		if edge <= edges[i-1] {
			edge = edges[i-1] + 1
		}
		edges[i] = edge
	}
	edges[n] = maxBin
	return edges
}

func hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}
