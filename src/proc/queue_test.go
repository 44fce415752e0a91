package proc

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuildQueue_FIFO(t *testing.T) {
	q := NewGuildQueue()
	for i := 0; i < 5; i++ {
		q.Push(testTrack(fmt.Sprintf("t%d", i)))
	}
	require.Equal(t, 5, q.Len())

	for i := 0; i < 5; i++ {
		got, ok := q.Advance()
		require.True(t, ok)
		assert.Equal(t, fmt.Sprintf("t%d", i), got.Title)
	}
	_, ok := q.Advance()
	assert.False(t, ok)
}

func TestGuildQueue_AdvanceSetsCurrent(t *testing.T) {
	q := NewGuildQueue()
	_, ok := q.Current()
	require.False(t, ok)

	q.Push(testTrack("a"))
	q.Push(testTrack("b"))

	got, ok := q.Advance()
	require.True(t, ok)
	assert.Equal(t, "a", got.Title)

	cur, ok := q.Current()
	require.True(t, ok)
	assert.Equal(t, "a", cur.Title)
	assert.Equal(t, 1, q.Len())

	// Advancing past the last pending track clears current.
	_, _ = q.Advance()
	_, ok = q.Advance()
	require.False(t, ok)
	_, ok = q.Current()
	assert.False(t, ok)
}

func TestGuildQueue_TakeCurrent(t *testing.T) {
	q := NewGuildQueue()
	q.Push(testTrack("a"))
	q.Advance()

	got, ok := q.TakeCurrent()
	require.True(t, ok)
	assert.Equal(t, "a", got.Title)

	_, ok = q.Current()
	assert.False(t, ok)
	_, ok = q.TakeCurrent()
	assert.False(t, ok)
}

func TestGuildQueue_PushFront(t *testing.T) {
	q := NewGuildQueue()
	q.Push(testTrack("a"))
	q.PushFront(testTrack("b"))

	got, ok := q.Advance()
	require.True(t, ok)
	assert.Equal(t, "b", got.Title)
}

func TestGuildQueue_RemoveFirstMatch(t *testing.T) {
	q := NewGuildQueue()
	q.Push(testTrack("a"))
	q.Push(testTrack("b"))
	q.Push(testTrack("a"))

	require.True(t, q.Remove(testTrack("a")))
	assert.Equal(t, 2, q.Len())

	list := q.List()
	assert.Equal(t, "b", list[0].Title)
	assert.Equal(t, "a", list[1].Title)

	assert.False(t, q.Remove(testTrack("missing")))
}

func TestGuildQueue_ClearResetsEverything(t *testing.T) {
	q := NewGuildQueue()
	q.Push(testTrack("a"))
	q.Push(testTrack("b"))
	q.Advance()

	q.Clear()
	assert.Equal(t, 0, q.Len())
	_, ok := q.Current()
	assert.False(t, ok)
	assert.Empty(t, q.List())
}

func TestGuildQueue_ListReturnsCopy(t *testing.T) {
	q := NewGuildQueue()
	q.Push(testTrack("a"))

	list := q.List()
	require.Len(t, list, 1)
	list[0].Title = "mutated"

	fresh := q.List()
	assert.Equal(t, "a", fresh[0].Title)
}

func TestGuildQueue_OrderUnderConcurrentReaders(t *testing.T) {
	q := NewGuildQueue()

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					q.List()
					q.Current()
					q.Len()
				}
			}
		}()
	}

	const n = 200
	for i := 0; i < n; i++ {
		q.Push(testTrack(fmt.Sprintf("t%d", i)))
	}
	close(stop)
	wg.Wait()

	list := q.List()
	require.Len(t, list, n)
	for i, tr := range list {
		assert.Equal(t, fmt.Sprintf("t%d", i), tr.Title)
	}
}
