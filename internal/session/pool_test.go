package session

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPool_AppendTrimsToCapacity(t *testing.T) {
	pool := NewPool(3)
	for i := 0; i < 6; i++ {
		pool.Append("s1", "vid1", fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
	}
	turns := pool.History("s1", "vid1")
	require.Len(t, turns, 3)
	require.Equal(t, "q3", turns[0].Question)
	require.Equal(t, "q5", turns[2].Question)
}

func TestPool_HistoryOldestFirst(t *testing.T) {
	pool := NewPool(10)
	pool.Append("s1", "vid1", "first", "a1")
	pool.Append("s1", "vid1", "second", "a2")
	turns := pool.History("s1", "vid1")
	require.Len(t, turns, 2)
	require.Equal(t, "first", turns[0].Question)
	require.Equal(t, "second", turns[1].Question)
}

func TestPool_PairsAreIsolated(t *testing.T) {
	pool := NewPool(10)
	pool.Append("s1", "vid1", "q", "a")
	pool.Append("s1", "vid2", "q", "a")
	pool.Append("s2", "vid1", "q", "a")

	require.Len(t, pool.History("s1", "vid1"), 1)
	require.Len(t, pool.History("s1", "vid2"), 1)
	require.Len(t, pool.History("s2", "vid1"), 1)
	require.Empty(t, pool.History("s2", "vid2"))
}

func TestPool_EmptySessionFallsBackToDefault(t *testing.T) {
	pool := NewPool(10)
	pool.Append("", "vid1", "q", "a")
	require.Len(t, pool.History(DefaultSessionID, "vid1"), 1)
	require.Len(t, pool.History("", "vid1"), 1)
}

func TestPool_DeleteSessionDropsAllVideos(t *testing.T) {
	pool := NewPool(10)
	pool.Append("s1", "vid1", "q", "a")
	pool.Append("s1", "vid2", "q", "a")
	pool.Append("s2", "vid1", "q", "a")

	removed := pool.DeleteSession("s1")
	require.Equal(t, 2, removed)
	require.Empty(t, pool.History("s1", "vid1"))
	require.Empty(t, pool.History("s1", "vid2"))
	require.Len(t, pool.History("s2", "vid1"), 1)
}

func TestPool_CleanupIdle(t *testing.T) {
	now := time.Now()
	pool := NewPool(10)
	pool.now = func() time.Time { return now }

	pool.Append("old", "vid1", "q", "a")
	now = now.Add(2 * time.Hour)
	pool.Append("fresh", "vid1", "q", "a")

	removed := pool.CleanupIdle(time.Hour)
	require.Equal(t, 1, removed)
	require.Empty(t, pool.History("old", "vid1"))
	require.Len(t, pool.History("fresh", "vid1"), 1)
	require.Equal(t, 1, pool.ActiveCount())
}
