package proc

import (
	"context"

	"github.com/disgoorg/snowflake/v2"

	"github.com/leeineian/hibiki/src/sys"
)

const historyKeepPerGuild = 200

// sqliteHistory records enqueued tracks in the play_history table and keeps
// it bounded per guild.
type sqliteHistory struct{}

// NewSQLiteHistory returns a HistoryStore backed by the process database.
func NewSQLiteHistory() HistoryStore {
	return sqliteHistory{}
}

func (sqliteHistory) Record(ctx context.Context, guildID snowflake.ID, t Track) error {
	err := sys.AddPlayHistory(ctx, &sys.PlayHistoryEntry{
		GuildID: guildID,
		Title:   t.Title,
		Artist:  t.Artist,
		URL:     t.URL,
		Source:  t.Source.Name(),
	})
	if err != nil {
		return err
	}
	return sys.PruneHistory(ctx, guildID, historyKeepPerGuild)
}
