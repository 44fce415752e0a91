package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"

	"github.com/leeineian/hibiki/src/proc"
	"github.com/leeineian/hibiki/src/sys"
)

func handleMusicPlay(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	query := data.String("query")
	guildID := *event.GuildID()

	vs, ok := event.Client().Caches.VoiceState(guildID, event.User().ID)
	if !ok || vs.ChannelID == nil {
		respondEphemeral(event, userMessage(proc.ErrNotInVoiceChannel))
		return
	}

	_ = event.DeferCreateMessage(false)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	res, err := manager.Play(ctx, guildID, *vs.ChannelID, event.Channel().ID(), query)
	if err != nil {
		editResponse(event, userMessage(err))
		return
	}

	if res.Collection {
		editResponse(event, fmt.Sprintf("Queuing **%d** track(s) from **%s**.", res.CollectionSize, res.CollectionName))
		return
	}
	editResponse(event, fmt.Sprintf("Added to queue: **%s**", res.Track.String()))
}

func handleMusicAutocomplete(event *events.AutocompleteInteractionCreate) {
	f := event.Data.Focused()
	if f.Name != "query" {
		return
	}
	query := strings.TrimSpace(f.String())
	if query == "" || strings.Contains(query, "http") {
		_ = event.AutocompleteResult(nil)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	var choices []discord.AutocompleteChoice
	for _, s := range manager.Suggest(ctx, query, 25) {
		value := s.Value
		if len(value) > 100 {
			value = s.Label
			if len(value) > 100 {
				value = value[:100]
			}
		}
		choices = append(choices, discord.AutocompleteChoiceString{Name: s.Label, Value: value})
	}
	_ = event.AutocompleteResult(choices)
}

// userMessage maps coordinator errors to their single user-facing line.
func userMessage(err error) string {
	var je *proc.JoinError
	switch {
	case errors.Is(err, proc.ErrNotInGuild):
		return sys.ErrMusicNotInGuild
	case errors.Is(err, proc.ErrNotInVoiceChannel):
		return sys.ErrMusicNotInVoice
	case errors.Is(err, proc.ErrNoResults):
		return sys.ErrMusicNoResults
	case errors.Is(err, proc.ErrEmptyQueue):
		return sys.ErrMusicEmptyQueue
	case errors.As(err, &je):
		return sys.ErrMusicJoinFailed
	default:
		return fmt.Sprintf("Failed: %v", err)
	}
}
