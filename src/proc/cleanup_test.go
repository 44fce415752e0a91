package proc

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func populateSession(m *MusicManager) *CancelFlag {
	r := m.Registry()
	q := r.EnsureQueue(testGuild)
	q.Push(testTrack("a"))
	q.Advance()
	q.Push(testTrack("b"))

	r.SetMonitor(testGuild, make(chan struct{}))
	r.SetNowPlaying(testGuild, &MessageRef{ChannelID: 2, MessageID: 3})
	r.SetNotifyChannel(testGuild, 2)
	flag := NewCancelFlag()
	r.AddCancelFlag(testGuild, flag)
	return flag
}

func TestCleanup_DetachesEverythingOnce(t *testing.T) {
	p := newFakeProvider()
	sink := &fakeSink{}
	m := newTestManager(p, fakeResolver{}, sink)
	flag := populateSession(m)

	m.Cleanup(context.Background(), testGuild)

	assert.True(t, flag.Cancelled())
	assert.False(t, m.Registry().HasMonitor(testGuild))
	assert.Equal(t, 0, m.Registry().EnsureQueue(testGuild).Len())
	_, ok := m.Registry().EnsureQueue(testGuild).Current()
	assert.False(t, ok)
	assert.Equal(t, 1, sink.deletedCount())
}

func TestCleanup_RepeatedCallsAreNoOps(t *testing.T) {
	p := newFakeProvider()
	sink := &fakeSink{}
	m := newTestManager(p, fakeResolver{}, sink)
	populateSession(m)

	// A second and third pass find nothing; in particular the monitor
	// channel is not closed twice and the message not deleted twice.
	m.Cleanup(context.Background(), testGuild)
	m.Cleanup(context.Background(), testGuild)
	m.Cleanup(context.Background(), testGuild)

	assert.Equal(t, 1, sink.deletedCount())
}

func TestCleanup_ConcurrentCallsAreSafe(t *testing.T) {
	p := newFakeProvider()
	sink := &fakeSink{}
	m := newTestManager(p, fakeResolver{}, sink)
	populateSession(m)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			m.Cleanup(context.Background(), testGuild)
		}()
	}
	close(start)
	wg.Wait()

	// Exactly one caller got the detached state.
	require.Equal(t, 1, sink.deletedCount())
	assert.False(t, m.Registry().HasMonitor(testGuild))
}
