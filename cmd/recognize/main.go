// Command recognize identifies an audio file through songrec and prints the
// match as flat JSON on stdout. It exists as a separate binary so the
// recognition step runs out of process; a crash here never takes the server
// down with it.
//
// Usage: recognize <audio-file>
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"time"
)

const songrecTimeout = 80 * time.Second

// shazamResponse covers the parts of songrec's Shazam JSON output we use.
type shazamResponse struct {
	Track struct {
		Key      string `json:"key"`
		Title    string `json:"title"`
		Subtitle string `json:"subtitle"`
		URL      string `json:"url"`
		Genres   struct {
			Primary string `json:"primary"`
		} `json:"genres"`
		Images struct {
			CoverArt string `json:"coverart"`
		} `json:"images"`
		Sections []struct {
			Type     string `json:"type"`
			Metadata []struct {
				Title string `json:"title"`
				Text  string `json:"text"`
			} `json:"metadata"`
		} `json:"sections"`
	} `json:"track"`
}

type recognition struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Album    string `json:"album,omitempty"`
	Genre    string `json:"genre,omitempty"`
	URI      string `json:"uri,omitempty"`
	CoverURL string `json:"cover_url,omitempty"`
}

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <audio-file>\n", os.Args[0])
		os.Exit(2)
	}

	rec, err := recognize(os.Args[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	if err := enc.Encode(rec); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func recognize(audioPath string) (*recognition, error) {
	binary := os.Getenv("SONGREC_PATH")
	if binary == "" {
		binary = "songrec"
	}

	ctx, cancel := context.WithTimeout(context.Background(), songrecTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, binary, "audio-file-to-recognized-song", audioPath).Output()
	if err != nil {
		return nil, fmt.Errorf("songrec failed: %w", err)
	}

	var resp shazamResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		return nil, fmt.Errorf("unparseable songrec output: %w", err)
	}
	if resp.Track.Key == "" {
		return nil, fmt.Errorf("no match for %s", audioPath)
	}

	rec := &recognition{
		ID:       resp.Track.Key,
		Title:    resp.Track.Title,
		Artist:   resp.Track.Subtitle,
		Genre:    resp.Track.Genres.Primary,
		URI:      resp.Track.URL,
		CoverURL: resp.Track.Images.CoverArt,
	}
	for _, section := range resp.Track.Sections {
		if section.Type != "SONG" {
			continue
		}
		for _, meta := range section.Metadata {
			if meta.Title == "Album" {
				rec.Album = meta.Text
			}
		}
	}
	return rec, nil
}
