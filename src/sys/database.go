package sys

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"
	_ "github.com/mattn/go-sqlite3"
)

var DB *sql.DB

func InitDatabase(ctx context.Context, dataSourceName string) error {
	var err error
	DB, err = sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return err
	}

	DB.SetMaxOpenConns(5)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA cache_size=-2000;",
	}

	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	for _, p := range pragmas {
		if _, err := DB.ExecContext(initCtx, p); err != nil {
			return fmt.Errorf(MsgDatabasePragmaError, p, err)
		}
	}

	tx, err := DB.BeginTx(initCtx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	tableQueries := []string{
		`CREATE TABLE IF NOT EXISTS play_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			guild_id TEXT NOT NULL,
			title TEXT NOT NULL,
			artist TEXT NOT NULL,
			url TEXT NOT NULL,
			source TEXT NOT NULL,
			played_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_play_history_guild
			ON play_history (guild_id, played_at DESC)`,
		`CREATE TABLE IF NOT EXISTS bot_config (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, q := range tableQueries {
		if _, err := tx.ExecContext(initCtx, q); err != nil {
			return fmt.Errorf(MsgDatabaseTableError, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	LogDatabase(MsgDatabaseInitSuccess)
	return nil
}

func CloseDatabase() {
	if DB != nil {
		DB.Close()
	}
}

// BotConfig helpers are used by the loader for registration-mode tracking.
func GetBotConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := DB.QueryRowContext(ctx, "SELECT value FROM bot_config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func SetBotConfig(ctx context.Context, key, value string) error {
	_, err := DB.ExecContext(ctx, `
		INSERT INTO bot_config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, key, value)
	return err
}

// --- Play History ---

type PlayHistoryEntry struct {
	ID       int64
	GuildID  snowflake.ID
	Title    string
	Artist   string
	URL      string
	Source   string
	PlayedAt time.Time
}

func AddPlayHistory(ctx context.Context, e *PlayHistoryEntry) error {
	_, err := DB.ExecContext(ctx, `
		INSERT INTO play_history (guild_id, title, artist, url, source)
		VALUES (?, ?, ?, ?, ?)
	`, e.GuildID.String(), e.Title, e.Artist, e.URL, e.Source)
	return err
}

func GetRecentHistory(ctx context.Context, guildID snowflake.ID, limit int) ([]*PlayHistoryEntry, error) {
	rows, err := DB.QueryContext(ctx, `
		SELECT id, guild_id, title, artist, url, source, played_at
		FROM play_history WHERE guild_id = ?
		ORDER BY played_at DESC, id DESC LIMIT ?
	`, guildID.String(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*PlayHistoryEntry
	for rows.Next() {
		e := &PlayHistoryEntry{}
		var gid string
		if err := rows.Scan(&e.ID, &gid, &e.Title, &e.Artist, &e.URL, &e.Source, &e.PlayedAt); err != nil {
			return nil, err
		}
		e.GuildID, _ = snowflake.Parse(gid)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// PruneHistory keeps the newest keep rows per guild.
func PruneHistory(ctx context.Context, guildID snowflake.ID, keep int) error {
	_, err := DB.ExecContext(ctx, `
		DELETE FROM play_history WHERE guild_id = ? AND id NOT IN (
			SELECT id FROM play_history WHERE guild_id = ?
			ORDER BY played_at DESC, id DESC LIMIT ?
		)
	`, guildID.String(), guildID.String(), keep)
	return err
}
