package sys

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "test-token")
	t.Setenv("GUILD_ID", "")
	t.Setenv("DATABASE_PATH", "")
	t.Setenv("YOUTUBE_PROXY", "")
	t.Setenv("IDLE_POLL_INTERVAL", "")
	t.Setenv("IDLE_TIMEOUT", "")
	t.Setenv("SILENT", "")
}

func TestLoadConfig_Defaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "test-token", cfg.Token)
	assert.Equal(t, 30*time.Second, cfg.IdlePollInterval)
	assert.Equal(t, 15*time.Minute, cfg.IdleTimeout)
	assert.Contains(t, cfg.DatabasePath, "_journal_mode=WAL")
	assert.False(t, cfg.Silent)
}

func TestLoadConfig_MissingToken(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("DISCORD_TOKEN", "")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfig_IdleOverrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("IDLE_POLL_INTERVAL", "10s")
	t.Setenv("IDLE_TIMEOUT", "5m")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.IdlePollInterval)
	assert.Equal(t, 5*time.Minute, cfg.IdleTimeout)
}

func TestLoadConfig_InvalidDurationsFallBack(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("IDLE_POLL_INTERVAL", "soon")
	t.Setenv("IDLE_TIMEOUT", "-5m")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.IdlePollInterval)
	assert.Equal(t, 15*time.Minute, cfg.IdleTimeout)
}

func TestConfigValidate(t *testing.T) {
	base := Config{
		Token:            "token",
		IdlePollInterval: 30 * time.Second,
		IdleTimeout:      15 * time.Minute,
	}

	cfg := base
	require.NoError(t, cfg.Validate())

	cfg = base
	cfg.GuildID = "123"
	assert.Error(t, cfg.Validate())

	cfg = base
	cfg.GuildID = "123456789012345678"
	assert.NoError(t, cfg.Validate())

	cfg = base
	cfg.IdlePollInterval = 20 * time.Minute
	assert.Error(t, cfg.Validate())
}
