package proc

import (
	"errors"
	"fmt"
)

// Sentinel errors for command-synchronous failures. Each maps to exactly one
// user-facing message at the command layer.
var (
	ErrNotInGuild        = errors.New("interaction outside a guild")
	ErrNotInVoiceChannel = errors.New("user not in a voice channel")
	ErrNoResults         = errors.New("no results for query")
	ErrEmptyQueue        = errors.New("queue is empty")

	// ErrConnClosed marks a connection that can no longer accept submissions.
	// Bulk enqueue aborts the remainder when it sees this.
	ErrConnClosed = errors.New("voice connection closed")
)

// JoinError wraps a voice join failure with its underlying reason.
type JoinError struct {
	GuildID string
	Reason  error
}

func (e *JoinError) Error() string {
	return fmt.Sprintf("voice join failed in guild %s: %v", e.GuildID, e.Reason)
}

func (e *JoinError) Unwrap() error {
	return e.Reason
}
