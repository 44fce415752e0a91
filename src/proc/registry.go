package proc

import (
	"sync"
	"sync/atomic"

	"github.com/disgoorg/snowflake/v2"
)

// CancelFlag is a cooperative cancellation token shared between a bulk
// enqueue task and the cleanup path. The task polls it between items.
type CancelFlag struct {
	cancelled atomic.Bool
}

func NewCancelFlag() *CancelFlag {
	return &CancelFlag{}
}

func (f *CancelFlag) Cancel() {
	f.cancelled.Store(true)
}

func (f *CancelFlag) Cancelled() bool {
	return f.cancelled.Load()
}

// MessageRef identifies a sent notification message so it can be updated or
// deleted later.
type MessageRef struct {
	ChannelID snowflake.ID
	MessageID snowflake.ID
}

// Detached is the session state RemoveAll pulls out from under the registry
// lock. The caller acts on it after the lock is released.
type Detached struct {
	Flags      []*CancelFlag
	Monitor    chan struct{}
	NowPlaying *MessageRef
	Queue      *GuildQueue
}

// SessionRegistry owns all guild-keyed session state behind a single mutex.
// Every operation is a plain map access; nothing here blocks on I/O.
//
// Queues and the two keyed mutex tables are created lazily and persist for
// the process lifetime. Cancel flags, monitor handles, message refs and
// repeat flags are transient and detached by RemoveAll.
type SessionRegistry struct {
	mu         sync.Mutex
	queues     map[snowflake.ID]*GuildQueue
	joinLocks  map[snowflake.ID]*sync.Mutex
	bulkLocks  map[snowflake.ID]*sync.Mutex
	flags      map[snowflake.ID][]*CancelFlag
	monitors   map[snowflake.ID]chan struct{}
	nowPlaying map[snowflake.ID]*MessageRef
	notify     map[snowflake.ID]snowflake.ID
	repeat     map[snowflake.ID]bool
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		queues:     map[snowflake.ID]*GuildQueue{},
		joinLocks:  map[snowflake.ID]*sync.Mutex{},
		bulkLocks:  map[snowflake.ID]*sync.Mutex{},
		flags:      map[snowflake.ID][]*CancelFlag{},
		monitors:   map[snowflake.ID]chan struct{}{},
		nowPlaying: map[snowflake.ID]*MessageRef{},
		notify:     map[snowflake.ID]snowflake.ID{},
		repeat:     map[snowflake.ID]bool{},
	}
}

// EnsureQueue returns the guild's queue, creating it on first use.
func (r *SessionRegistry) EnsureQueue(guildID snowflake.ID) *GuildQueue {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.queues[guildID]
	if !ok {
		q = NewGuildQueue()
		r.queues[guildID] = q
	}
	return q
}

// JoinLock returns the guild's join mutex, creating it on first use. The
// mutex itself is locked by the caller, never under the registry lock.
func (r *SessionRegistry) JoinLock(guildID snowflake.ID) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.joinLocks[guildID]
	if !ok {
		m = &sync.Mutex{}
		r.joinLocks[guildID] = m
	}
	return m
}

// BulkLock returns the guild's bulk-enqueue mutex, creating it on first use.
func (r *SessionRegistry) BulkLock(guildID snowflake.ID) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.bulkLocks[guildID]
	if !ok {
		m = &sync.Mutex{}
		r.bulkLocks[guildID] = m
	}
	return m
}

// AddCancelFlag attaches a bulk task's cancellation token to the guild.
func (r *SessionRegistry) AddCancelFlag(guildID snowflake.ID, f *CancelFlag) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flags[guildID] = append(r.flags[guildID], f)
}

// RemoveCancelFlag drops a finished task's token so the flag list does not
// grow unbounded across many bulk enqueues.
func (r *SessionRegistry) RemoveCancelFlag(guildID snowflake.ID, f *CancelFlag) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.flags[guildID]
	for i, x := range list {
		if x == f {
			r.flags[guildID] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// SetMonitor registers the guild's inactivity monitor stop handle. Returns
// false without replacing if one is already registered.
func (r *SessionRegistry) SetMonitor(guildID snowflake.ID, stop chan struct{}) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.monitors[guildID]; ok {
		return false
	}
	r.monitors[guildID] = stop
	return true
}

// HasMonitor reports whether an inactivity monitor is registered.
func (r *SessionRegistry) HasMonitor(guildID snowflake.ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.monitors[guildID]
	return ok
}

// ClearMonitor removes the monitor handle if it matches stop. The monitor
// calls this when it exits on its own so a later session can register anew.
func (r *SessionRegistry) ClearMonitor(guildID snowflake.ID, stop chan struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.monitors[guildID]; ok && cur == stop {
		delete(r.monitors, guildID)
	}
}

// SetNowPlaying replaces the tracked now-playing message ref, returning the
// previous ref so the caller can delete the old message.
func (r *SessionRegistry) SetNowPlaying(guildID snowflake.ID, ref *MessageRef) *MessageRef {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.nowPlaying[guildID]
	if ref == nil {
		delete(r.nowPlaying, guildID)
	} else {
		r.nowPlaying[guildID] = ref
	}
	return prev
}

// NowPlayingRef returns the tracked now-playing message ref, if any.
func (r *SessionRegistry) NowPlayingRef(guildID snowflake.ID) (*MessageRef, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ref, ok := r.nowPlaying[guildID]
	return ref, ok
}

// SetNotifyChannel records the text channel session messages go to.
func (r *SessionRegistry) SetNotifyChannel(guildID, channelID snowflake.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notify[guildID] = channelID
}

// NotifyChannel returns the guild's session text channel.
func (r *SessionRegistry) NotifyChannel(guildID snowflake.ID) (snowflake.ID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.notify[guildID]
	return ch, ok
}

// SetRepeat sets the guild's repeat flag.
func (r *SessionRegistry) SetRepeat(guildID snowflake.ID, on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if on {
		r.repeat[guildID] = true
	} else {
		delete(r.repeat, guildID)
	}
}

// Repeat reports whether repeat is enabled for the guild.
func (r *SessionRegistry) Repeat(guildID snowflake.ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.repeat[guildID]
}

// RemoveAll detaches the guild's transient session state in one critical
// section and clears the queue. The caller sets the detached flags, signals
// the monitor, and deletes the message after the lock is released; the
// ordering guarantee is that flags are detached before the queue is observed
// empty by anyone else.
func (r *SessionRegistry) RemoveAll(guildID snowflake.ID) Detached {
	r.mu.Lock()
	d := Detached{
		Flags:      r.flags[guildID],
		Monitor:    r.monitors[guildID],
		NowPlaying: r.nowPlaying[guildID],
		Queue:      r.queues[guildID],
	}
	delete(r.flags, guildID)
	delete(r.monitors, guildID)
	delete(r.nowPlaying, guildID)
	delete(r.notify, guildID)
	delete(r.repeat, guildID)
	r.mu.Unlock()

	for _, f := range d.Flags {
		f.Cancel()
	}
	if d.Queue != nil {
		d.Queue.Clear()
	}
	return d
}
