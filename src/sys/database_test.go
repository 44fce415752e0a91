package sys

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initTestDB(t *testing.T) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	require.NoError(t, InitDatabase(context.Background(), path))
	t.Cleanup(CloseDatabase)
}

func TestPlayHistoryRoundTrip(t *testing.T) {
	initTestDB(t)
	ctx := context.Background()
	guild := snowflake.ID(100000000000000001)

	for i := 0; i < 3; i++ {
		require.NoError(t, AddPlayHistory(ctx, &PlayHistoryEntry{
			GuildID: guild,
			Title:   fmt.Sprintf("t%d", i),
			Artist:  "artist",
			URL:     fmt.Sprintf("https://example.org/%d", i),
			Source:  "[YT]",
		}))
	}

	entries, err := GetRecentHistory(ctx, guild, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// Newest first.
	assert.Equal(t, "t2", entries[0].Title)
	assert.Equal(t, "t0", entries[2].Title)
	assert.Equal(t, guild, entries[0].GuildID)
	assert.False(t, entries[0].PlayedAt.IsZero())

	other, err := GetRecentHistory(ctx, guild+1, 10)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestPruneHistoryKeepsNewest(t *testing.T) {
	initTestDB(t)
	ctx := context.Background()
	guild := snowflake.ID(100000000000000001)
	other := snowflake.ID(100000000000000002)

	for i := 0; i < 5; i++ {
		require.NoError(t, AddPlayHistory(ctx, &PlayHistoryEntry{
			GuildID: guild, Title: fmt.Sprintf("t%d", i), Artist: "a", URL: "u", Source: "[YT]",
		}))
	}
	require.NoError(t, AddPlayHistory(ctx, &PlayHistoryEntry{
		GuildID: other, Title: "keep", Artist: "a", URL: "u", Source: "[YT]",
	}))

	require.NoError(t, PruneHistory(ctx, guild, 2))

	entries, err := GetRecentHistory(ctx, guild, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "t4", entries[0].Title)
	assert.Equal(t, "t3", entries[1].Title)

	// Other guilds are untouched.
	kept, err := GetRecentHistory(ctx, other, 10)
	require.NoError(t, err)
	assert.Len(t, kept, 1)
}

func TestBotConfigUpsert(t *testing.T) {
	initTestDB(t)
	ctx := context.Background()

	v, err := GetBotConfig(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, SetBotConfig(ctx, "commands_hash", "abc"))
	require.NoError(t, SetBotConfig(ctx, "commands_hash", "def"))

	v, err = GetBotConfig(ctx, "commands_hash")
	require.NoError(t, err)
	assert.Equal(t, "def", v)
}
