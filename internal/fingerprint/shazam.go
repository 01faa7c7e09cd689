package fingerprint

import (
	"context"
	"encoding/json"
	"log/slog"
	"os/exec"
	"time"
)

const recognizeTimeout = 90 * time.Second

// Recognition is the identity a recognition service attached to an audio
// sample. Fields map onto the Shazam-style fields of models.Fingerprint.
type Recognition struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Album    string `json:"album,omitempty"`
	Genre    string `json:"genre,omitempty"`
	URI      string `json:"uri,omitempty"`
	CoverURL string `json:"cover_url,omitempty"`
}

// Recognizer runs audio recognition in a separate process. The recognizer
// links native fingerprinting code that has crashed on malformed input
// before, so it never runs in this process: a crash or hang of the child is
// reported as "no match" and the caller carries on.
type Recognizer struct {
	path    string
	timeout time.Duration
}

func NewRecognizer(path string) *Recognizer {
	return &Recognizer{path: path, timeout: recognizeTimeout}
}

// Recognize identifies an audio file. Returns nil on any failure, including
// subprocess crash and timeout; recognition is strictly best-effort.
func (r *Recognizer) Recognize(ctx context.Context, audioPath string) *Recognition {
	if r.path == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, r.path, audioPath).Output()
	if err != nil {
		slog.Debug("recognition subprocess failed", "path", audioPath, "error", err)
		return nil
	}

	var rec Recognition
	if err := json.Unmarshal(out, &rec); err != nil {
		slog.Debug("recognition output unparseable", "path", audioPath, "error", err)
		return nil
	}
	if rec.ID == "" {
		return nil
	}
	return &rec
}
