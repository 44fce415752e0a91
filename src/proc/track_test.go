package proc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrackString(t *testing.T) {
	yt := Track{Title: "Title", Artist: "Artist", Source: SourceYouTube}
	assert.Equal(t, "[YT] Title - Artist", yt.String())

	sp := Track{Title: "Title", Artist: "Artist", Source: SourceSpotify}
	assert.Equal(t, "[SP] Title - Artist", sp.String())
}

func TestTrackSourceName(t *testing.T) {
	assert.Equal(t, "YouTube", SourceYouTube.Name())
	assert.Equal(t, "Spotify", SourceSpotify.Name())
}

func TestPlayableInput(t *testing.T) {
	yt := Track{Title: "Song", Artist: "Artist", URL: "https://www.youtube.com/watch?v=abcdefghijk", Source: SourceYouTube}
	in := playableInput(yt)
	assert.Equal(t, yt.URL, in.URL)
	assert.Empty(t, in.Query)

	sp := Track{Title: "Song", Artist: "Artist", URL: "https://open.spotify.com/track/x", Source: SourceSpotify}
	in = playableInput(sp)
	assert.Empty(t, in.URL)
	assert.Equal(t, "Song Artist audio", in.Query)
}
