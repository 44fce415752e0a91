package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"

	"github.com/leeineian/hibiki/src/sys"
)

func handleMusicStop(event *events.ApplicationCommandInteractionCreate) {
	_ = event.DeferCreateMessage(false)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	manager.Stop(ctx, *event.GuildID())
	editResponse(event, sys.MsgMusicStopped)
}

func handleMusicSkip(event *events.ApplicationCommandInteractionCreate) {
	_ = event.DeferCreateMessage(false)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	t, err := manager.Skip(ctx, *event.GuildID())
	if err != nil {
		editResponse(event, userMessage(err))
		return
	}
	editResponse(event, fmt.Sprintf("Skipped: **%s**", t.String()))
}

func handleMusicQueue(event *events.ApplicationCommandInteractionCreate) {
	current, pending := manager.List(*event.GuildID())
	if current == nil && len(pending) == 0 {
		respondEphemeral(event, sys.ErrMusicEmptyQueue)
		return
	}

	var sb strings.Builder
	if current != nil {
		sb.WriteString(fmt.Sprintf("**Now playing:** %s\n", current.String()))
	}
	for i, t := range pending {
		if i >= 10 {
			sb.WriteString(fmt.Sprintf("...and %d more\n", len(pending)-i))
			break
		}
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, t.String()))
	}

	_ = event.CreateMessage(discord.MessageCreate{Content: sb.String()})
}
