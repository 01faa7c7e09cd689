package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlatformURL(t *testing.T) {
	testCases := []struct {
		name             string
		url              string
		expectedPlatform string
		expectedTrackID  string
		expectError      bool
	}{
		{
			name:             "YouTube watch URL",
			url:              "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
			expectedPlatform: "youtube",
			expectedTrackID:  "dQw4w9WgXcQ",
		},
		{
			name:             "YouTube watch URL with extra params",
			url:              "https://www.youtube.com/watch?list=PL123&v=dQw4w9WgXcQ",
			expectedPlatform: "youtube",
			expectedTrackID:  "dQw4w9WgXcQ",
		},
		{
			name:             "YouTube short URL",
			url:              "https://youtu.be/dQw4w9WgXcQ",
			expectedPlatform: "youtube",
			expectedTrackID:  "dQw4w9WgXcQ",
		},
		{
			name:             "YouTube music URL",
			url:              "https://music.youtube.com/watch?v=dQw4w9WgXcQ",
			expectedPlatform: "youtube",
			expectedTrackID:  "dQw4w9WgXcQ",
		},
		{
			name:             "SoundCloud permalink",
			url:              "https://soundcloud.com/aurora-music/runaway",
			expectedPlatform: "soundcloud",
			expectedTrackID:  "aurora-music/runaway",
		},
		{
			name:             "SoundCloud permalink without protocol",
			url:              "soundcloud.com/aurora-music/runaway",
			expectedPlatform: "soundcloud",
			expectedTrackID:  "aurora-music/runaway",
		},
		{
			name:             "Spotify URL with https",
			url:              "https://open.spotify.com/track/4iV5W9uYEdYUVa79Axb7Rh",
			expectedPlatform: "spotify",
			expectedTrackID:  "4iV5W9uYEdYUVa79Axb7Rh",
		},
		{
			name:             "Spotify URL without subdomain",
			url:              "spotify.com/track/4iV5W9uYEdYUVa79Axb7Rh",
			expectedPlatform: "spotify",
			expectedTrackID:  "4iV5W9uYEdYUVa79Axb7Rh",
		},
		{
			name:        "unsupported URL",
			url:         "https://example.com/some/page",
			expectError: true,
		},
		{
			name:        "empty string",
			url:         "",
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			platform, trackID, err := ParsePlatformURL(tc.url)

			if tc.expectError {
				require.Error(t, err)
				var platformErr *PlatformError
				require.ErrorAs(t, err, &platformErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.expectedPlatform, platform)
			assert.Equal(t, tc.expectedTrackID, trackID)
		})
	}
}

func TestTrackInfoConversions(t *testing.T) {
	info := &TrackInfo{
		Platform:   "spotify",
		ExternalID: "4iV5W9uYEdYUVa79Axb7Rh",
		URL:        "https://open.spotify.com/track/4iV5W9uYEdYUVa79Axb7Rh",
		Title:      "Runaway",
		Artists:    []string{"AURORA", "Someone Else"},
		Album:      "All My Demons",
		ISRC:       "NOG841520010",
		Duration:   245000,
	}

	src := info.ToTrackSource()
	assert.Equal(t, "spotify", src.Platform)
	assert.Equal(t, "4iV5W9uYEdYUVa79Axb7Rh", src.TrackID)
	assert.Equal(t, "AURORA, Someone Else", src.Artist)
	assert.Equal(t, 245000, src.DurationMs)
	assert.Equal(t, "NOG841520010", src.ISRC)

	cand := info.ToCandidate()
	assert.Equal(t, "4iV5W9uYEdYUVa79Axb7Rh", cand.ID)
	assert.Equal(t, 245, cand.DurationSec)
	assert.Equal(t, "NOG841520010", cand.ISRC)
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry()
	registry.Register(NewSpotifyService("id", "secret"))
	registry.Register(NewYouTubeService("key"))

	service, err := registry.Get("spotify")
	require.NoError(t, err)
	assert.Equal(t, "spotify", service.GetPlatformName())

	_, err = registry.Get("tidal")
	require.Error(t, err)
	var platformErr *PlatformError
	require.ErrorAs(t, err, &platformErr)
	assert.Equal(t, "tidal", platformErr.Platform)

	assert.Equal(t, []string{"spotify", "youtube"}, registry.Platforms())
}

func TestPlatformErrorMessage(t *testing.T) {
	err := &PlatformError{
		Platform:  "youtube",
		Operation: "search",
		Message:   "API returned status 403",
	}
	assert.Contains(t, err.Error(), "youtube search failed")
	assert.Contains(t, err.Error(), "403")
}

func TestCredentialError(t *testing.T) {
	err := &CredentialError{Platform: "spotify", Reason: "missing user access token"}
	assert.Contains(t, err.Error(), "spotify")
	assert.Contains(t, err.Error(), "missing user access token")
}
