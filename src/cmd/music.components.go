package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"

	"github.com/leeineian/hibiki/src/proc"
	"github.com/leeineian/hibiki/src/sys"
)

// handleMusicComponent serves the now-playing control buttons.
func handleMusicComponent(event *events.ComponentInteractionCreate) {
	if event.GuildID() == nil {
		return
	}
	guildID := *event.GuildID()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	switch event.Data.CustomID() {
	case proc.ComponentPause:
		paused, err := manager.TogglePause(guildID)
		if err != nil {
			componentReply(event, userMessage(err))
			return
		}
		if paused {
			componentReply(event, "Paused.")
		} else {
			componentReply(event, "Resumed.")
		}
	case proc.ComponentSkip:
		t, err := manager.Skip(ctx, guildID)
		if err != nil {
			componentReply(event, userMessage(err))
			return
		}
		componentReply(event, fmt.Sprintf("Skipped: **%s**", t.String()))
	case proc.ComponentStop:
		manager.Stop(ctx, guildID)
		componentReply(event, sys.MsgMusicStopped)
	case proc.ComponentRepeat:
		if manager.ToggleRepeat(guildID) {
			componentReply(event, "Repeat enabled.")
		} else {
			componentReply(event, "Repeat disabled.")
		}
	}
}

func componentReply(event *events.ComponentInteractionCreate, content string) {
	_ = event.CreateMessage(discord.MessageCreate{
		Content: content,
		Flags:   discord.MessageFlagEphemeral,
	})
}
