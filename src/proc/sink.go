package proc

import (
	"context"
	"fmt"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
)

const (
	colorYouTube = 0xFF0000
	colorSpotify = 0x1DB954

	// Component custom IDs, matched by prefix in the loader.
	ComponentPause  = "music:pause"
	ComponentSkip   = "music:skip"
	ComponentStop   = "music:stop"
	ComponentRepeat = "music:repeat"
)

// DiscordSink posts session messages through the rest client.
type DiscordSink struct {
	client *bot.Client
}

func NewDiscordSink(client *bot.Client) *DiscordSink {
	return &DiscordSink{client: client}
}

func (s *DiscordSink) Send(ctx context.Context, channelID snowflake.ID, n Notification) (*MessageRef, error) {
	create := discord.MessageCreate{}

	if n.Track != nil {
		create.Embeds = []discord.Embed{trackEmbed(n)}
		if n.Controls {
			create.Components = []discord.LayoutComponent{
				discord.NewActionRow(
					discord.NewButton(discord.ButtonStyleSecondary, "Pause", ComponentPause, "", 0),
					discord.NewButton(discord.ButtonStylePrimary, "Skip", ComponentSkip, "", 0),
					discord.NewButton(discord.ButtonStyleDanger, "Stop", ComponentStop, "", 0),
					discord.NewButton(discord.ButtonStyleSecondary, "Repeat", ComponentRepeat, "", 0),
				),
			}
		}
	} else {
		create.Content = n.Text
	}

	msg, err := s.client.Rest.CreateMessage(channelID, create, rest.WithCtx(ctx))
	if err != nil {
		return nil, err
	}
	return &MessageRef{ChannelID: channelID, MessageID: msg.ID}, nil
}

func (s *DiscordSink) Delete(ctx context.Context, ref *MessageRef) error {
	if ref == nil {
		return nil
	}
	return s.client.Rest.DeleteMessage(ref.ChannelID, ref.MessageID, rest.WithCtx(ctx))
}

func trackEmbed(n Notification) discord.Embed {
	t := n.Track

	color := colorYouTube
	if t.Source == SourceSpotify {
		color = colorSpotify
	}

	title := "Now Playing"
	if n.QueuePos > 0 {
		title = fmt.Sprintf("Queued at position %d", n.QueuePos)
	} else if n.Collection != "" {
		title = fmt.Sprintf("Queued from %s", n.Collection)
	}

	desc := fmt.Sprintf("**%s**", t.Title)
	if t.Artist != "" {
		desc += fmt.Sprintf("\nby %s", t.Artist)
	}
	if t.Duration != "" {
		desc += fmt.Sprintf("\n`%s`", t.Duration)
	}

	embed := discord.Embed{
		Title:       title,
		Description: desc,
		URL:         t.URL,
		Color:       color,
		Footer:      &discord.EmbedFooter{Text: t.Source.Name()},
	}
	if t.ThumbnailURL != "" {
		embed.Thumbnail = &discord.EmbedResource{URL: t.ThumbnailURL}
	}
	return embed
}
