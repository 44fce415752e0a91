package cmd

import (
	"context"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"

	"github.com/leeineian/hibiki/src/proc"
	"github.com/leeineian/hibiki/src/sys"
)

var (
	manager *proc.MusicManager
	voices  *proc.VoiceProvider
)

// Bind wires the command layer to the playback coordinator. Called from
// main before the gateway opens.
func Bind(m *proc.MusicManager, vp *proc.VoiceProvider) {
	manager = m
	voices = vp
}

func init() {
	RegisterMusic()
}

func RegisterMusic() {
	sys.OnClientReady(func(ctx context.Context, client *bot.Client) {
		sys.RegisterVoiceStateUpdateHandler(voices.OnVoiceStateUpdate)

		sys.RegisterDaemon(sys.LogVoice, func(ctx context.Context) (bool, func(), func()) {
			return true, func() {}, func() {
				sys.LogVoice(sys.MsgDaemonShutdown)
				voices.Shutdown(context.Background())
			}
		})
	})

	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:        "music",
		Description: "Music playback",
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionSubCommand{
				Name:        "play",
				Description: "Play a track, playlist, or album",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionString{
						Name:         "query",
						Description:  "URL or search terms (YouTube or Spotify)",
						Required:     true,
						Autocomplete: true,
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "stop",
				Description: "Stop playback and leave the voice channel",
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "skip",
				Description: "Skip the current track",
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "queue",
				Description: "Show the current queue",
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "history",
				Description: "Show recently played tracks",
			},
		},
	}, handleMusic)

	sys.RegisterAutocompleteHandler("music", handleMusicAutocomplete)
	sys.RegisterComponentHandler("music:", handleMusicComponent)
}

func handleMusic(event *events.ApplicationCommandInteractionCreate) {
	data := event.SlashCommandInteractionData()
	if data.SubCommandName == nil {
		return
	}

	if event.GuildID() == nil {
		respondEphemeral(event, userMessage(proc.ErrNotInGuild))
		return
	}

	switch *data.SubCommandName {
	case "play":
		handleMusicPlay(event, data)
	case "stop":
		handleMusicStop(event)
	case "skip":
		handleMusicSkip(event)
	case "queue":
		handleMusicQueue(event)
	case "history":
		handleMusicHistory(event)
	}
}

func respondEphemeral(event *events.ApplicationCommandInteractionCreate, content string) {
	_ = event.CreateMessage(discord.MessageCreate{
		Content: content,
		Flags:   discord.MessageFlagEphemeral,
	})
}

func editResponse(event *events.ApplicationCommandInteractionCreate, content string) {
	_, _ = event.Client().Rest.UpdateInteractionResponse(event.ApplicationID(), event.Token(), discord.MessageUpdate{
		Content: strPtr(content),
	})
}

func strPtr(s string) *string {
	return &s
}
