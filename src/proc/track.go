package proc

import "fmt"

// TrackSource identifies the catalog a track was resolved from.
type TrackSource int

const (
	SourceYouTube TrackSource = iota
	SourceSpotify
)

func (s TrackSource) String() string {
	switch s {
	case SourceSpotify:
		return "[SP]"
	default:
		return "[YT]"
	}
}

// Name returns the human-readable catalog name.
func (s TrackSource) Name() string {
	switch s {
	case SourceSpotify:
		return "Spotify"
	default:
		return "YouTube"
	}
}

// Track is an immutable playable item descriptor. It has no identity beyond
// its fields and is copied by value everywhere.
type Track struct {
	Title        string
	Artist       string
	URL          string
	Source       TrackSource
	Duration     string // human-readable, e.g. "3:45"; empty if unknown
	ThumbnailURL string
}

func (t Track) String() string {
	return fmt.Sprintf("%s %s - %s", t.Source, t.Title, t.Artist)
}

// PlayableInput is what gets submitted to a connection's playback pipeline:
// either a direct URL or a search query for sources that cannot be streamed
// directly.
type PlayableInput struct {
	URL   string
	Query string
}

// playableInput derives the pipeline input for a track. Spotify tracks are
// streamed via an audio search since their native source is not streamable.
func playableInput(t Track) PlayableInput {
	if t.Source == SourceSpotify {
		return PlayableInput{Query: fmt.Sprintf("%s %s audio", t.Title, t.Artist)}
	}
	return PlayableInput{URL: t.URL}
}

// Resolution is the result of a metadata lookup: a single track or an
// ordered collection (playlist or album).
type Resolution struct {
	Tracks         []Track
	Collection     bool
	CollectionName string
}
