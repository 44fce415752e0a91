package proc

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"

	"github.com/leeineian/hibiki/src/sys"
)

// StartInactivityMonitor launches the guild's idle supervisor. At most one
// runs per guild; if one is already registered this is a no-op and returns
// false.
func (m *MusicManager) StartInactivityMonitor(guildID, voiceChannelID, textChannelID snowflake.ID) bool {
	stop := make(chan struct{})
	if !m.registry.SetMonitor(guildID, stop) {
		return false
	}
	go m.superviseIdle(guildID, voiceChannelID, textChannelID, stop)
	return true
}

// superviseIdle polls the session at a fixed interval and tears it down once
// it has been idle for the configured timeout. Idle means nothing is in the
// playback pipeline, or nobody is left listening. Any non-idle observation
// resets the accumulated idle time to zero.
func (m *MusicManager) superviseIdle(guildID, voiceChannelID, textChannelID snowflake.ID, stop chan struct{}) {
	defer m.registry.ClearMonitor(guildID, stop)

	var idle time.Duration
	for {
		select {
		case <-stop:
			return
		case <-m.clock.After(m.pollInterval):
		}

		if m.isIdle(guildID, voiceChannelID) {
			idle += m.pollInterval
		} else {
			idle = 0
		}

		if idle >= m.idleTimeout {
			sys.LogMonitor(sys.MsgMusicIdleTeardown, guildID, idle)
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			m.provider.Leave(ctx, guildID)
			m.Cleanup(ctx, guildID)
			if m.sink != nil {
				_, err := m.sink.Send(ctx, textChannelID, Notification{
					Text: fmt.Sprintf(sys.MsgMusicIdleNotice, humanDuration(m.idleTimeout)),
				})
				if err != nil {
					sys.LogMonitor(sys.MsgMusicNowPlayingSendFail, err)
				}
			}
			cancel()
			return
		}
	}
}

func (m *MusicManager) isIdle(guildID, voiceChannelID snowflake.ID) bool {
	conn, ok := m.provider.Get(guildID)
	if !ok || conn.QueueEmpty() {
		return true
	}
	if m.presence != nil && m.presence.Listeners(guildID, voiceChannelID) == 0 {
		return true
	}
	return false
}

func humanDuration(d time.Duration) string {
	if d >= time.Hour {
		return fmt.Sprintf("%g hours", d.Hours())
	}
	if d >= time.Minute {
		return fmt.Sprintf("%g minutes", d.Minutes())
	}
	return fmt.Sprintf("%g seconds", d.Seconds())
}
