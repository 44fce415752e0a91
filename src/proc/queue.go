package proc

import "sync"

// GuildQueue is the per-guild track queue: an ordered pending sequence plus
// an optional "current" slot. Reads may run concurrently; mutations are
// exclusive. "current" only moves via Advance (playback moving on) or
// TakeCurrent (skip reporting).
type GuildQueue struct {
	mu      sync.RWMutex
	current *Track
	pending []Track
}

func NewGuildQueue() *GuildQueue {
	return &GuildQueue{}
}

// Push appends a track to the pending sequence.
func (q *GuildQueue) Push(t Track) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, t)
}

// PushFront prepends a track so the next Advance selects it. Used by repeat
// to requeue the track that just finished.
func (q *GuildQueue) PushFront(t Track) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append([]Track{t}, q.pending...)
}

// Advance pops the front of the pending sequence into the current slot and
// returns a copy. If the pending sequence is empty, current becomes absent.
func (q *GuildQueue) Advance() (Track, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		q.current = nil
		return Track{}, false
	}
	t := q.pending[0]
	q.pending = q.pending[1:]
	q.current = &t
	return t, true
}

// Current returns a copy of the currently playing track without mutating
// state.
func (q *GuildQueue) Current() (Track, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.current == nil {
		return Track{}, false
	}
	return *q.current, true
}

// TakeCurrent removes and returns the current track. Used by skip so the
// skipped track can be reported regardless of whether Advance has run since.
func (q *GuildQueue) TakeCurrent() (Track, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.current == nil {
		return Track{}, false
	}
	t := *q.current
	q.current = nil
	return t, true
}

// Remove deletes the first pending entry equal to t. Used to roll back an
// optimistic Push when the submission behind it fails.
func (q *GuildQueue) Remove(t Track) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, x := range q.pending {
		if x == t {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return true
		}
	}
	return false
}

// Clear resets both the pending sequence and the current slot.
func (q *GuildQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.current = nil
	q.pending = nil
}

// List returns a copy of the pending sequence in order.
func (q *GuildQueue) List() []Track {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]Track, len(q.pending))
	copy(out, q.pending)
	return out
}

// Len returns the number of pending tracks.
func (q *GuildQueue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.pending)
}
