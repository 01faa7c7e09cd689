package audio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/kkdai/youtube/v2"

	"tracklink/internal/models"
	"tracklink/internal/repositories"
)

// DownloadError wraps a failed audio fetch with enough context to decide
// whether the track is permanently unavailable or just flaky.
type DownloadError struct {
	Platform string
	TrackID  string
	Err      error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("audio download failed for %s:%s: %v", e.Platform, e.TrackID, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// Downloader fetches platform audio into a permanent on-disk cache. Cached
// files are keyed by (platform, track id); a TrackSource records its cached
// path so repeated analysis never re-downloads. Concurrent downloads of the
// same track are a benign race: both write the same bytes and the upsert of
// the cache record is idempotent.
type Downloader struct {
	cacheDir string
	sources  repositories.TrackSourceRepository
	yt       *youtube.Client
	sc       *resty.Client
	scID     string
}

// NewDownloader creates a downloader writing into cacheDir.
func NewDownloader(cacheDir string, sources repositories.TrackSourceRepository, soundcloudClientID string) *Downloader {
	return &Downloader{
		cacheDir: cacheDir,
		sources:  sources,
		yt:       &youtube.Client{},
		sc: resty.New().
			SetBaseURL("https://api.soundcloud.com").
			SetTimeout(60 * time.Second).
			SetRetryCount(2),
		scID: soundcloudClientID,
	}
}

// Fetch returns the local path of the track's audio, downloading it when the
// cache has no usable copy. The cached path on the TrackSource record is
// trusted only if the file still exists.
func (d *Downloader) Fetch(ctx context.Context, src *models.TrackSource) (string, error) {
	if src.HasCachedAudio() {
		if _, err := os.Stat(src.AudioPath); err == nil {
			return src.AudioPath, nil
		}
		slog.Warn("Cached audio file missing, re-downloading", "platform", src.Platform, "trackID", src.TrackID, "path", src.AudioPath)
	}

	if err := os.MkdirAll(d.cacheDir, 0o755); err != nil {
		return "", fmt.Errorf("creating audio cache dir: %w", err)
	}

	var path string
	var format string
	var err error
	switch src.Platform {
	case "youtube":
		path, format, err = d.fetchYouTube(ctx, src.TrackID)
	case "soundcloud":
		path, format, err = d.fetchSoundCloud(ctx, src.TrackID)
	default:
		return "", &DownloadError{Platform: src.Platform, TrackID: src.TrackID, Err: fmt.Errorf("platform has no audio source")}
	}
	if err != nil {
		return "", &DownloadError{Platform: src.Platform, TrackID: src.TrackID, Err: err}
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", &DownloadError{Platform: src.Platform, TrackID: src.TrackID, Err: err}
	}

	if !src.ID.IsZero() {
		if err := d.sources.SetCachedAudio(ctx, src.ID, path, format, info.Size()); err != nil {
			slog.Warn("Failed to record cached audio", "trackID", src.TrackID, "error", err)
		}
	}
	src.AudioPath = path
	src.AudioFormat = format
	src.AudioSize = info.Size()

	slog.Info("Audio cached", "platform", src.Platform, "trackID", src.TrackID, "bytes", info.Size())
	return path, nil
}

// fetchYouTube streams the best audio-only format to the cache
func (d *Downloader) fetchYouTube(ctx context.Context, videoID string) (string, string, error) {
	video, err := d.yt.GetVideoContext(ctx, videoID)
	if err != nil {
		return "", "", fmt.Errorf("resolving video: %w", err)
	}

	formats := video.Formats.WithAudioChannels()
	if len(formats) == 0 {
		return "", "", fmt.Errorf("no audio formats available")
	}

	best := formats[0]
	for _, f := range formats {
		if strings.HasPrefix(f.MimeType, "audio/") && f.Bitrate > best.Bitrate {
			best = f
		}
	}

	ext := "m4a"
	if strings.Contains(best.MimeType, "webm") {
		ext = "webm"
	}

	stream, _, err := d.yt.GetStreamContext(ctx, video, &best)
	if err != nil {
		return "", "", fmt.Errorf("opening stream: %w", err)
	}
	defer stream.Close()

	path := d.cachePath("youtube", videoID, ext)
	if err := writeAtomic(path, stream); err != nil {
		return "", "", err
	}
	return path, ext, nil
}

// fetchSoundCloud follows the progressive stream redirect
func (d *Downloader) fetchSoundCloud(ctx context.Context, trackID string) (string, string, error) {
	path := d.cachePath("soundcloud", trackID, "mp3")

	resp, err := d.sc.R().
		SetContext(ctx).
		SetQueryParam("client_id", d.scID).
		SetDoNotParseResponse(true).
		Get("/tracks/" + trackID + "/stream")
	if err != nil {
		return "", "", fmt.Errorf("opening stream: %w", err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() != 200 {
		return "", "", fmt.Errorf("stream returned status %d", resp.StatusCode())
	}
	if err := writeAtomic(path, body); err != nil {
		return "", "", err
	}
	return path, "mp3", nil
}

func (d *Downloader) cachePath(platform, trackID, ext string) string {
	name := platform + "_" + sanitizeFilename(trackID) + "." + ext
	return filepath.Join(d.cacheDir, name)
}

// writeAtomic writes via a temp file and rename so a crashed download never
// leaves a truncated file at the cache path.
func writeAtomic(path string, r io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".download-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("writing audio: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

func sanitizeFilename(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}
