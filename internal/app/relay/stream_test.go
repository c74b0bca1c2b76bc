package relay

import (
	"fmt"
	"testing"
	"time"

	"github.com/dkeye/DigitalRoom/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestStreamTable_ConcurrencyCap(t *testing.T) {
	st := NewStreamTable(DefaultMaxStreams)

	for i := 1; i <= 10; i++ {
		started, err := st.StartStream(core.SessionID(fmt.Sprintf("s%d", i)), "n", now)
		require.NoError(t, err, "stream %d", i)
		require.True(t, started)
	}
	started, err := st.StartStream("s11", "n", now)
	assert.ErrorIs(t, err, ErrStreamLimit)
	assert.False(t, started)
	assert.Equal(t, 10, st.Len())
	assert.False(t, st.HasStream("s11"))

	// a live broadcaster restarting is a no-op, not a cap hit
	started, err = st.StartStream("s1", "n", now)
	assert.NoError(t, err)
	assert.False(t, started)

	_, ok := st.StopStream("s3")
	require.True(t, ok)
	started, err = st.StartStream("s11", "n", now)
	assert.NoError(t, err)
	assert.True(t, started)
}

func TestStreamTable_Edges(t *testing.T) {
	st := NewStreamTable(0)
	_, _ = st.StartStream("b1", "one", now)
	_, _ = st.StartStream("b2", "two", now.Add(time.Second))

	assert.False(t, st.AddViewer("nobody", "v1"))
	assert.False(t, st.AddViewer("b1", "b1"))
	require.True(t, st.AddViewer("b1", "v1"))
	require.True(t, st.AddViewer("b2", "v1"))
	require.True(t, st.AddViewer("b1", "v2"))

	assert.Equal(t, []core.SessionID{"v1", "v2"}, st.Viewers("b1"))
	assert.Equal(t, []core.SessionID{"b1", "b2"}, st.Watched("v1"))
	assert.Equal(t, 3, st.EdgeCount())

	assert.True(t, st.CanRelay("b1", "v1", "b1"))
	assert.True(t, st.CanRelay("v1", "b1", "b1"))
	assert.False(t, st.CanRelay("v1", "b1", "b2"))
	assert.False(t, st.CanRelay("v1", "v2", "b1"))

	assert.True(t, st.RemoveViewer("b1", "v1"))
	assert.False(t, st.RemoveViewer("b1", "v1"))
	assert.False(t, st.IsWatching("v1", "b1"))
	assert.True(t, st.IsWatching("v1", "b2"))

	sessions := st.Sessions()
	require.Len(t, sessions, 2)
	assert.Equal(t, "b1", sessions[0].StreamerID)
	assert.Equal(t, "two", sessions[1].StreamerName)
}

func TestStreamTable_RemoveConnectionLeavesNoEdges(t *testing.T) {
	st := NewStreamTable(0)
	_, _ = st.StartStream("a", "a", now)
	_, _ = st.StartStream("b", "b", now)
	st.AddViewer("a", "b")
	st.AddViewer("b", "a")
	st.AddViewer("a", "c")

	td := st.RemoveConnection("a")

	assert.True(t, td.StreamEnded)
	assert.Equal(t, []core.SessionID{"b", "c"}, td.Viewers)
	assert.Equal(t, []core.SessionID{"b"}, td.Watched)
	assert.False(t, st.HasStream("a"))
	assert.Empty(t, st.Viewers("b"))
	assert.Empty(t, st.Watched("c"))
	assert.Zero(t, st.EdgeCount())
}

func TestStreamTable_Prune(t *testing.T) {
	st := NewStreamTable(0)
	_, _ = st.StartStream("live", "l", now)
	_, _ = st.StartStream("dead", "d", now)
	st.AddViewer("live", "ghost")
	st.AddViewer("dead", "watcher")

	ended := st.Prune(func(sid core.SessionID) bool { return sid == "live" || sid == "watcher" })

	assert.Equal(t, []core.SessionID{"dead"}, ended)
	assert.Empty(t, st.Viewers("live"))
	assert.Empty(t, st.Watched("watcher"))
	assert.Zero(t, st.EdgeCount())
}
