package proc

import (
	"context"
	"errors"

	"github.com/disgoorg/snowflake/v2"

	"github.com/leeineian/hibiki/src/sys"
)

// ScheduleBulk enqueues a collection in the background. The cancellation
// flag is registered before this returns, so a Cleanup that runs after
// ScheduleBulk is guaranteed to stop the task. Tasks for the same guild run
// strictly one at a time in scheduling order; tasks for different guilds run
// independently.
func (m *MusicManager) ScheduleBulk(guildID snowflake.ID, tracks []Track) *CancelFlag {
	flag := NewCancelFlag()
	m.registry.AddCancelFlag(guildID, flag)
	go m.runBulk(guildID, tracks, flag)
	return flag
}

func (m *MusicManager) runBulk(guildID snowflake.ID, tracks []Track, flag *CancelFlag) {
	lock := m.registry.BulkLock(guildID)
	lock.Lock()
	defer lock.Unlock()
	defer m.registry.RemoveCancelFlag(guildID, flag)

	sys.LogEnqueue(sys.MsgMusicBulkStarted, len(tracks), guildID)
	queue := m.registry.EnsureQueue(guildID)

	done := 0
	for _, t := range tracks {
		// Checked between items, not mid-item. An item already being
		// submitted completes.
		if flag.Cancelled() {
			sys.LogEnqueue(sys.MsgMusicBulkCancelled, guildID, done, len(tracks))
			return
		}

		conn, ok := m.provider.Get(guildID)
		if !ok {
			sys.LogEnqueue(sys.MsgMusicBulkAborted, guildID, ErrConnClosed)
			return
		}

		// Push before submitting, same as the single-track path, and roll
		// back if the submission fails.
		queue.Push(t)
		ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
		err := conn.Submit(ctx, playableInput(t))
		cancel()
		if err != nil {
			queue.Remove(t)
			if errors.Is(err, ErrConnClosed) {
				sys.LogEnqueue(sys.MsgMusicBulkAborted, guildID, err)
				return
			}
			// A single bad item does not fail the collection.
			sys.LogEnqueue(sys.MsgMusicBulkSubmitFail, t.Title, guildID, err)
			continue
		}

		m.recordHistory(guildID, t)
		done++
	}

	sys.LogEnqueue(sys.MsgMusicBulkDone, guildID, done)
}
