package proc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryClassification(t *testing.T) {
	cases := []struct {
		name     string
		query    string
		playlist bool
		video    bool
		spotify  string
	}{
		{name: "watch url", query: "https://www.youtube.com/watch?v=dQw4w9WgXcQ", video: true},
		{name: "short url", query: "https://youtu.be/dQw4w9WgXcQ", video: true},
		{name: "shorts url", query: "https://www.youtube.com/shorts/dQw4w9WgXcQ", video: true},
		{name: "playlist url", query: "https://www.youtube.com/playlist?list=PLabc123", playlist: true},
		{name: "watch with list param", query: "https://www.youtube.com/watch?v=dQw4w9WgXcQ&list=PLabc123", playlist: true, video: true},
		{name: "spotify track", query: "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC", spotify: "track"},
		{name: "spotify playlist", query: "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M", spotify: "playlist"},
		{name: "spotify album", query: "https://open.spotify.com/album/6QaVfG1pHYl1z15ZxkvVDW", spotify: "album"},
		{name: "free text", query: "some song name"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.playlist, youtubePlaylistRegex.MatchString(tc.query))
			assert.Equal(t, tc.video, youtubeURLRegex.MatchString(tc.query))
			m := spotifyURLRegex.FindStringSubmatch(tc.query)
			if tc.spotify == "" {
				assert.Nil(t, m)
			} else {
				require.NotNil(t, m)
				assert.Equal(t, tc.spotify, m[1])
			}
		})
	}
}

func TestVideoIDExtraction(t *testing.T) {
	for _, q := range []string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		"https://youtu.be/dQw4w9WgXcQ",
		"https://www.youtube.com/shorts/dQw4w9WgXcQ",
		"https://www.youtube.com/watch?feature=shared&v=dQw4w9WgXcQ",
	} {
		m := youtubeVideoIDRegex.FindStringSubmatch(q)
		require.NotNil(t, m, q)
		assert.Equal(t, "dQw4w9WgXcQ", m[1], q)
	}

	// Too-short IDs never match.
	assert.Nil(t, youtubeVideoIDRegex.FindStringSubmatch("https://youtu.be/short"))
}

func TestPlaylistIDExtraction(t *testing.T) {
	m := youtubePlaylistIDRegex.FindStringSubmatch("https://www.youtube.com/watch?v=dQw4w9WgXcQ&list=PLabc-123_x")
	require.NotNil(t, m)
	assert.Equal(t, "PLabc-123_x", m[1])

	m = youtubePlaylistIDRegex.FindStringSubmatch("https://www.youtube.com/playlist?list=PLabc123")
	require.NotNil(t, m)
	assert.Equal(t, "PLabc123", m[1])
}

func TestFormatSeconds(t *testing.T) {
	assert.Equal(t, "4:05", formatSeconds(245))
	assert.Equal(t, "0:59", formatSeconds(59))
	assert.Equal(t, "61:00", formatSeconds(3660))
	assert.Equal(t, "", formatSeconds(0))
	assert.Equal(t, "", formatSeconds(-3))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "3:45", formatDuration("225"))
	assert.Equal(t, "3:45", formatDuration("225.0"))
	assert.Equal(t, "", formatDuration("NA"))
	assert.Equal(t, "", formatDuration(""))
}

func TestYtdlpArgs(t *testing.T) {
	assert.Contains(t, ytdlpArgs(), "--no-playlist")
	assert.NotContains(t, ytdlpArgs(true), "--no-playlist")
	assert.Contains(t, ytdlpArgs(true), "--extractor-args")
}
