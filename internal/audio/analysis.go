package audio

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Tempo analysis constants. The onset envelope is RMS energy per hop-sized
// frame; tempo is read off its autocorrelation.
const (
	bpmHopSize   = 512
	bpmFrameSize = 2048
	bpmMin       = 60.0
	bpmMax       = 220.0
	bpmFoldLow   = 80.0
	bpmFoldHigh  = 180.0
	fallbackBPM  = 120.0
)

// Chroma analysis constants
const (
	chromaFFTSize = 4096
	chromaHopSize = 2048
)

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Krumhansl-Schmuckler key profiles
var (
	majorProfile = [12]float64{6.35, 2.23, 3.48, 2.33, 4.38, 4.09, 2.52, 5.19, 2.39, 3.66, 2.29, 2.88}
	minorProfile = [12]float64{6.33, 2.68, 3.52, 5.38, 2.60, 3.53, 2.54, 4.75, 3.98, 2.69, 3.34, 3.17}
)

// EstimateBPM estimates tempo from mono samples at SampleRate. Tempi outside
// the 80-180 range are folded by octaves into it, matching how dance and pop
// tempi are conventionally quoted. Returns fallbackBPM when the signal is too
// short or has no periodicity.
func EstimateBPM(samples []float64) float64 {
	if len(samples) < bpmFrameSize*4 {
		return fallbackBPM
	}

	// onset envelope: half-wave-rectified first difference of frame RMS
	var rms []float64
	for start := 0; start+bpmFrameSize <= len(samples); start += bpmHopSize {
		var sum float64
		for _, s := range samples[start : start+bpmFrameSize] {
			sum += s * s
		}
		rms = append(rms, math.Sqrt(sum/bpmFrameSize))
	}
	envelope := make([]float64, len(rms))
	for i := 1; i < len(rms); i++ {
		if d := rms[i] - rms[i-1]; d > 0 {
			envelope[i] = d
		}
	}

	framesPerSec := float64(SampleRate) / float64(bpmHopSize)
	minLag := int(framesPerSec * 60.0 / bpmMax)
	maxLag := int(framesPerSec * 60.0 / bpmMin)
	if maxLag >= len(envelope) {
		return fallbackBPM
	}

	mean := 0.0
	for _, v := range envelope {
		mean += v
	}
	mean /= float64(len(envelope))

	bestLag, bestCorr := 0, 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		var corr float64
		for i := lag; i < len(envelope); i++ {
			corr += (envelope[i] - mean) * (envelope[i-lag] - mean)
		}
		if corr > bestCorr {
			bestCorr = corr
			bestLag = lag
		}
	}
	if bestLag == 0 || bestCorr <= 0 {
		return fallbackBPM
	}

	bpm := 60.0 * framesPerSec / float64(bestLag)
	for bpm < bpmFoldLow {
		bpm *= 2
	}
	for bpm > bpmFoldHigh {
		bpm /= 2
	}
	return math.Round(bpm*10) / 10
}

// EstimateKey estimates the musical key of mono samples at SampleRate using a
// chromagram correlated against the Krumhansl-Schmuckler profiles. Returns
// the tonic note name and "major" or "minor"; empty strings when the signal
// is too short.
func EstimateKey(samples []float64) (key, mode string) {
	chroma := meanChroma(samples)
	if chroma == nil {
		return "", ""
	}

	bestCorr := math.Inf(-1)
	bestNote, bestMode := 0, "major"
	for rotation := 0; rotation < 12; rotation++ {
		var rotated [12]float64
		for i := 0; i < 12; i++ {
			rotated[i] = chroma[(i+rotation)%12]
		}
		if c := correlation(rotated[:], majorProfile[:]); c > bestCorr {
			bestCorr = c
			bestNote = rotation
			bestMode = "major"
		}
		if c := correlation(rotated[:], minorProfile[:]); c > bestCorr {
			bestCorr = c
			bestNote = rotation
			bestMode = "minor"
		}
	}
	return noteNames[bestNote], bestMode
}

// meanChroma averages per-frame pitch-class energy over the whole signal
func meanChroma(samples []float64) []float64 {
	if len(samples) < chromaFFTSize {
		return nil
	}

	fft := fourier.NewFFT(chromaFFTSize)
	window := hannWindow(chromaFFTSize)
	frame := make([]float64, chromaFFTSize)
	chroma := make([]float64, 12)
	frames := 0

	for start := 0; start+chromaFFTSize <= len(samples); start += chromaHopSize {
		for i := range frame {
			frame[i] = samples[start+i] * window[i]
		}
		spectrum := fft.Coefficients(nil, frame)

		for k := 1; k < len(spectrum); k++ {
			freq := float64(k) * SampleRate / chromaFFTSize
			if freq < 27.5 || freq > 4186.0 {
				continue // outside piano range
			}
			semitone := int(math.Round(12 * math.Log2(freq/440.0)))
			pitchClass := ((semitone+9)%12 + 12) % 12
			chroma[pitchClass] += cmplx.Abs(spectrum[k])
		}
		frames++
	}
	if frames == 0 {
		return nil
	}
	var total float64
	for i := range chroma {
		chroma[i] /= float64(frames)
		total += chroma[i]
	}
	if total == 0 {
		return nil
	}
	return chroma
}

func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}

// correlation is the Pearson correlation of two equal-length vectors
func correlation(a, b []float64) float64 {
	n := float64(len(a))
	var meanA, meanB float64
	for i := range a {
		meanA += a[i]
		meanB += b[i]
	}
	meanA /= n
	meanB /= n

	var cov, varA, varB float64
	for i := range a {
		da := a[i] - meanA
		db := b[i] - meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	if varA == 0 || varB == 0 {
		return 0
	}
	return cov / math.Sqrt(varA*varB)
}
