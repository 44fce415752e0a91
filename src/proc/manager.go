package proc

import (
	"context"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/jonboulle/clockwork"

	"github.com/leeineian/hibiki/src/sys"
)

const submitTimeout = 30 * time.Second

// HistoryStore records what was enqueued. Nil disables recording.
type HistoryStore interface {
	Record(ctx context.Context, guildID snowflake.ID, t Track) error
}

// Deps bundles the capability implementations a MusicManager runs on.
type Deps struct {
	Provider ConnectionProvider
	Resolver MetadataResolver
	Sink     NotificationSink
	Presence PresenceCounter
	History  HistoryStore

	Clock        clockwork.Clock
	PollInterval time.Duration
	IdleTimeout  time.Duration
}

// MusicManager coordinates all per-guild playback sessions. It owns the
// session registry; everything stateful is reached through it, never through
// package-level state.
type MusicManager struct {
	registry *SessionRegistry
	provider ConnectionProvider
	resolver MetadataResolver
	sink     NotificationSink
	presence PresenceCounter
	history  HistoryStore

	clock        clockwork.Clock
	pollInterval time.Duration
	idleTimeout  time.Duration
}

func NewMusicManager(deps Deps) *MusicManager {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.PollInterval <= 0 {
		deps.PollInterval = 30 * time.Second
	}
	if deps.IdleTimeout <= 0 {
		deps.IdleTimeout = 15 * time.Minute
	}
	return &MusicManager{
		registry:     NewSessionRegistry(),
		provider:     deps.Provider,
		resolver:     deps.Resolver,
		sink:         deps.Sink,
		presence:     deps.Presence,
		history:      deps.History,
		clock:        deps.Clock,
		pollInterval: deps.PollInterval,
		idleTimeout:  deps.IdleTimeout,
	}
}

// Registry exposes the session registry for read-style command handlers.
func (m *MusicManager) Registry() *SessionRegistry {
	return m.registry
}

// EnsureConnection guarantees a live voice connection for the guild,
// serializing join attempts so at most one is in flight per guild. The fast
// path requires both a registered monitor and a live connection; either one
// missing means the previous session died half-way and the connection is
// rebuilt.
func (m *MusicManager) EnsureConnection(ctx context.Context, guildID, channelID snowflake.ID) error {
	if m.sessionAlive(guildID) {
		return nil
	}

	// A connection without a live monitor is stale state from a dead
	// session. Release it before queueing for the join mutex; a connection
	// observed under the mutex afterwards can only have been created by a
	// concurrent caller, whose join is reused.
	if _, ok := m.provider.Get(guildID); ok {
		m.provider.Leave(ctx, guildID)
	}

	lock := m.registry.JoinLock(guildID)
	lock.Lock()
	defer lock.Unlock()

	if _, ok := m.provider.Get(guildID); ok {
		return nil
	}

	sys.LogVoice(sys.MsgMusicJoining, channelID, guildID)
	if _, err := m.provider.Join(ctx, guildID, channelID); err != nil {
		sys.LogError(sys.MsgMusicJoinFail, guildID, err)
		return &JoinError{GuildID: guildID.String(), Reason: err}
	}
	return nil
}

func (m *MusicManager) sessionAlive(guildID snowflake.ID) bool {
	if !m.registry.HasMonitor(guildID) {
		return false
	}
	_, ok := m.provider.Get(guildID)
	return ok
}

// PlayResult describes what a play request enqueued.
type PlayResult struct {
	Track          Track
	QueueLen       int
	Collection     bool
	CollectionName string
	CollectionSize int
}

// Play resolves the query, ensures a connection and monitor, and enqueues
// the result. Collections are handed to the bulk scheduler and return
// immediately; single tracks are submitted synchronously.
func (m *MusicManager) Play(ctx context.Context, guildID, voiceChannelID, textChannelID snowflake.ID, query string) (*PlayResult, error) {
	res, err := m.resolver.Resolve(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(res.Tracks) == 0 {
		return nil, ErrNoResults
	}

	if err := m.EnsureConnection(ctx, guildID, voiceChannelID); err != nil {
		return nil, err
	}
	m.registry.SetNotifyChannel(guildID, textChannelID)
	m.StartInactivityMonitor(guildID, voiceChannelID, textChannelID)

	if res.Collection {
		m.ScheduleBulk(guildID, res.Tracks)
		return &PlayResult{
			Collection:     true,
			CollectionName: res.CollectionName,
			CollectionSize: len(res.Tracks),
			Track:          res.Tracks[0],
		}, nil
	}

	t := res.Tracks[0]
	conn, ok := m.provider.Get(guildID)
	if !ok {
		return nil, ErrConnClosed
	}

	// Push before submitting so the pipeline's track-started advance can
	// never observe the queue without this entry.
	queue := m.registry.EnsureQueue(guildID)
	queue.Push(t)
	subCtx, cancel := context.WithTimeout(ctx, submitTimeout)
	defer cancel()
	if err := conn.Submit(subCtx, playableInput(t)); err != nil {
		queue.Remove(t)
		return nil, err
	}
	m.recordHistory(guildID, t)
	sys.LogVoice(sys.MsgMusicQueued, 1, guildID, t.String())
	return &PlayResult{Track: t, QueueLen: queue.Len()}, nil
}

// Stop ends playback and tears down the session.
func (m *MusicManager) Stop(ctx context.Context, guildID snowflake.ID) {
	if conn, ok := m.provider.Get(guildID); ok {
		conn.StopAll()
	}
	m.provider.Leave(ctx, guildID)
	m.Cleanup(ctx, guildID)
}

// Skip stops the current track and reports what was skipped.
func (m *MusicManager) Skip(ctx context.Context, guildID snowflake.ID) (Track, error) {
	conn, ok := m.provider.Get(guildID)
	if !ok {
		return Track{}, ErrEmptyQueue
	}
	queue := m.registry.EnsureQueue(guildID)
	t, ok := queue.TakeCurrent()
	if !ok {
		return Track{}, ErrEmptyQueue
	}
	conn.Skip()
	return t, nil
}

// List returns the current track (if any) and a copy of the pending queue.
func (m *MusicManager) List(guildID snowflake.ID) (*Track, []Track) {
	queue := m.registry.EnsureQueue(guildID)
	var cur *Track
	if t, ok := queue.Current(); ok {
		cur = &t
	}
	return cur, queue.List()
}

// NowPlaying returns the current track.
func (m *MusicManager) NowPlaying(guildID snowflake.ID) (Track, bool) {
	return m.registry.EnsureQueue(guildID).Current()
}

// TogglePause pauses or resumes the current stream and reports whether
// playback is now paused.
func (m *MusicManager) TogglePause(guildID snowflake.ID) (bool, error) {
	conn, ok := m.provider.Get(guildID)
	if !ok {
		return false, ErrEmptyQueue
	}
	if conn.Paused() {
		conn.Resume()
		return false, nil
	}
	conn.Pause()
	return true, nil
}

// ToggleRepeat flips the guild's repeat flag and returns the new value.
func (m *MusicManager) ToggleRepeat(guildID snowflake.ID) bool {
	on := !m.registry.Repeat(guildID)
	m.registry.SetRepeat(guildID, on)
	return on
}

// Suggest serves autocomplete when the resolver supports it.
func (m *MusicManager) Suggest(ctx context.Context, query string, limit int) []Suggestion {
	if s, ok := m.resolver.(SuggestionSource); ok {
		return s.Suggest(ctx, query, limit)
	}
	return nil
}

// OnForcedDisconnect handles the bot being moved out of voice by an external
// actor (kick, channel delete). The connection is already gone; tear down
// the session state.
func (m *MusicManager) OnForcedDisconnect(guildID snowflake.ID) {
	sys.LogVoice(sys.MsgMusicForcedDisconnect, guildID)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	m.provider.Leave(ctx, guildID)
	m.Cleanup(ctx, guildID)
}

// TrackStarted is called by the playback pipeline when a stream begins. It
// advances the queue and refreshes the now-playing message.
func (m *MusicManager) TrackStarted(guildID snowflake.ID) {
	queue := m.registry.EnsureQueue(guildID)
	t, ok := queue.Advance()
	if !ok {
		return
	}
	textChannelID, chOK := m.registry.NotifyChannel(guildID)
	if m.sink == nil || !chOK {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	ref, err := m.sink.Send(ctx, textChannelID, Notification{Track: &t, Controls: true})
	if err != nil {
		sys.LogWarn(sys.MsgMusicNowPlayingSendFail, err)
		return
	}
	if prev := m.registry.SetNowPlaying(guildID, ref); prev != nil {
		_ = m.sink.Delete(ctx, prev)
	}
}

// TrackFinished is called by the playback pipeline when a stream ends. With
// repeat on, the finished track is resubmitted and requeued at the front;
// otherwise, once the pipeline drains, the current slot and now-playing
// message are cleared.
func (m *MusicManager) TrackFinished(guildID snowflake.ID) {
	queue := m.registry.EnsureQueue(guildID)

	if m.registry.Repeat(guildID) {
		if t, ok := queue.Current(); ok {
			conn, connOK := m.provider.Get(guildID)
			if connOK {
				ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
				err := conn.Submit(ctx, playableInput(t))
				cancel()
				if err == nil {
					queue.PushFront(t)
					return
				}
				sys.LogVoice(sys.MsgMusicStreamFail, t.Title, guildID, err)
			}
		}
	}

	conn, ok := m.provider.Get(guildID)
	if !ok || conn.QueueEmpty() {
		queue.TakeCurrent()
		if ref := m.registry.SetNowPlaying(guildID, nil); ref != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			_ = m.sink.Delete(ctx, ref)
			cancel()
		}
	}
}

func (m *MusicManager) recordHistory(guildID snowflake.ID, t Track) {
	if m.history == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.history.Record(ctx, guildID, t); err != nil {
		sys.LogWarn(sys.MsgMusicHistoryFail, err)
	}
}
