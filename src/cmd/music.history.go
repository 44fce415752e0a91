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

const historyPageSize = 10

func handleMusicHistory(event *events.ApplicationCommandInteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	entries, err := sys.GetRecentHistory(ctx, *event.GuildID(), historyPageSize)
	if err != nil {
		sys.LogDatabase(sys.MsgMusicHistoryFail, err)
		respondEphemeral(event, "Could not load play history.")
		return
	}
	if len(entries) == 0 {
		respondEphemeral(event, "Nothing has been played here yet.")
		return
	}

	var sb strings.Builder
	sb.WriteString("**Recently played:**\n")
	for i, e := range entries {
		sb.WriteString(fmt.Sprintf("%d. [%s - %s](<%s>) · %s <t:%d:R>\n",
			i+1, e.Title, e.Artist, e.URL, e.Source, e.PlayedAt.Unix()))
	}

	_ = event.CreateMessage(discord.MessageCreate{Content: sb.String()})
}
