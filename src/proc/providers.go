package proc

import (
	"context"

	"github.com/disgoorg/snowflake/v2"
)

// ConnectionProvider manages voice connections. The disgo-backed
// implementation lives in voice.go; tests substitute fakes.
type ConnectionProvider interface {
	// Join establishes (or re-establishes) a voice connection for the guild.
	Join(ctx context.Context, guildID, channelID snowflake.ID) (Connection, error)
	// Get returns the live connection for the guild, if any.
	Get(guildID snowflake.ID) (Connection, bool)
	// Leave tears down the guild's connection. Safe when none exists.
	Leave(ctx context.Context, guildID snowflake.ID)
}

// Connection is a single guild's playback pipeline. Submissions play in
// submission order.
type Connection interface {
	// Submit hands an input to the pipeline. Returns ErrConnClosed once the
	// connection can no longer accept work.
	Submit(ctx context.Context, input PlayableInput) error
	// QueueEmpty reports whether nothing is playing or waiting in the
	// pipeline.
	QueueEmpty() bool
	// Skip stops the currently playing stream; the pipeline moves on to the
	// next submission.
	Skip()
	// Pause suspends frame delivery for the current stream. No-op when
	// nothing is playing or already paused.
	Pause()
	// Resume restores frame delivery after Pause.
	Resume()
	// Paused reports whether the current stream is paused.
	Paused() bool
	// StopAll drops pending submissions and stops the current stream.
	StopAll()
}

// MetadataResolver turns a user query or URL into one or more tracks.
type MetadataResolver interface {
	Resolve(ctx context.Context, query string) (*Resolution, error)
}

// Notification is the renderable content of a channel message. The sink
// decides presentation (embeds, buttons).
type Notification struct {
	Track      *Track
	Text       string
	QueuePos   int
	Collection string
	Controls   bool
}

// NotificationSink posts and manages channel messages.
type NotificationSink interface {
	Send(ctx context.Context, channelID snowflake.ID, n Notification) (*MessageRef, error)
	Delete(ctx context.Context, ref *MessageRef) error
}

// PipelineEvents receives playback lifecycle callbacks from a connection
// provider. MusicManager implements it.
type PipelineEvents interface {
	TrackStarted(guildID snowflake.ID)
	TrackFinished(guildID snowflake.ID)
}

// PresenceCounter reports how many listeners share a voice channel. Bots and
// deafened members do not count.
type PresenceCounter interface {
	Listeners(guildID, channelID snowflake.ID) int
}
