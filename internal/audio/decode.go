package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os/exec"
)

// SampleRate is the analysis sample rate. Everything downstream (BPM, key,
// local fingerprint) assumes mono audio at this rate.
const SampleRate = 22050

// Decoder shells out to ffmpeg to produce mono float32 PCM at SampleRate.
type Decoder struct {
	ffmpegPath string
}

// NewDecoder creates a decoder using the given ffmpeg binary ("ffmpeg" to
// resolve from PATH).
func NewDecoder(ffmpegPath string) *Decoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Decoder{ffmpegPath: ffmpegPath}
}

// Decode reads up to maxSeconds of audio from path as mono samples in [-1, 1].
// maxSeconds <= 0 decodes the whole file.
func (d *Decoder) Decode(ctx context.Context, path string, maxSeconds int) ([]float64, error) {
	args := []string{"-hide_banner", "-loglevel", "error", "-i", path, "-ar", fmt.Sprint(SampleRate), "-ac", "1"}
	if maxSeconds > 0 {
		args = append(args, "-t", fmt.Sprint(maxSeconds))
	}
	args = append(args, "-f", "f32le", "pipe:1")

	cmd := exec.CommandContext(ctx, d.ffmpegPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg decode of %s: %w (%s)", path, err, stderr.String())
	}

	raw := stdout.Bytes()
	samples := make([]float64, len(raw)/4)
	for i := range samples {
		bits := binary.LittleEndian.Uint32(raw[i*4:])
		samples[i] = float64(math.Float32frombits(bits))
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("ffmpeg decode of %s produced no samples", path)
	}
	return samples, nil
}
