package proc

import (
	"context"

	"github.com/disgoorg/snowflake/v2"

	"github.com/leeineian/hibiki/src/sys"
)

// Cleanup tears down the guild's session state. Safe to call from any of
// its triggers (stop command, forced disconnect, idle timeout) in any
// combination; repeated calls find nothing left to detach and do nothing.
//
// Ordering matters: RemoveAll cancels bulk tasks before clearing the queue,
// so no cancelled task can repopulate a queue that was just emptied. The
// monitor is signalled and the now-playing message deleted afterwards, off
// the registry lock.
func (m *MusicManager) Cleanup(ctx context.Context, guildID snowflake.ID) {
	d := m.registry.RemoveAll(guildID)

	if d.Monitor != nil {
		close(d.Monitor)
	}
	if d.NowPlaying != nil && m.sink != nil {
		if err := m.sink.Delete(ctx, d.NowPlaying); err != nil {
			sys.LogVoice(sys.MsgMusicNowPlayingSendFail, err)
		}
	}

	if d.Monitor != nil || d.NowPlaying != nil || len(d.Flags) > 0 {
		sys.LogVoice(sys.MsgMusicCleanup, guildID)
	}
}
