package relay

import (
	"errors"
	"sort"
	"time"

	"github.com/dkeye/DigitalRoom/internal/core"
	"github.com/dkeye/DigitalRoom/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

const DefaultMaxStreams = 10

var ErrStreamLimit = errors.New("relay: stream limit reached")

type set map[core.SessionID]struct{}

type streamEntry struct {
	session domain.StreamSession
	viewers set
	seq     uint64
}

// StreamTable tracks broadcasters and who watches whom. A viewer may watch
// several broadcasters; each (viewer, broadcaster) pair is a watch edge.
type StreamTable struct {
	max      int
	streams  map[core.SessionID]*streamEntry
	watching map[core.SessionID]set
	seq      uint64
}

func NewStreamTable(limit int) *StreamTable {
	if limit <= 0 {
		limit = DefaultMaxStreams
	}
	return &StreamTable{
		max:      limit,
		streams:  make(map[core.SessionID]*streamEntry),
		watching: make(map[core.SessionID]set),
	}
}

// StartStream registers sid as a broadcaster. Returns false without error
// when sid is already live, ErrStreamLimit when the cap is reached.
func (t *StreamTable) StartStream(sid core.SessionID, name string, now time.Time) (bool, error) {
	if _, ok := t.streams[sid]; ok {
		return false, nil
	}
	if len(t.streams) >= t.max {
		log.Info().Str("module", "relay.stream").Str("sid", string(sid)).Int("max", t.max).Msg("stream rejected, limit reached")
		return false, ErrStreamLimit
	}
	t.seq++
	t.streams[sid] = &streamEntry{
		session: domain.StreamSession{StreamerID: string(sid), StreamerName: name, StartedAt: now},
		viewers: make(set),
		seq:     t.seq,
	}
	log.Info().Str("module", "relay.stream").Str("sid", string(sid)).Msg("stream started")
	return true, nil
}

// StopStream ends the broadcast of sid and tears down its watch edges.
// Returns the viewers that were attached.
func (t *StreamTable) StopStream(sid core.SessionID) ([]core.SessionID, bool) {
	e, ok := t.streams[sid]
	if !ok {
		return nil, false
	}
	viewers := sortedSet(e.viewers)
	for _, v := range viewers {
		t.unwatch(v, sid)
	}
	delete(t.streams, sid)
	log.Info().Str("module", "relay.stream").Str("sid", string(sid)).Int("viewers", len(viewers)).Msg("stream stopped")
	return viewers, true
}

// AddViewer creates the edge viewer -> streamer. Self-watch and unknown
// broadcasters are refused.
func (t *StreamTable) AddViewer(streamer, viewer core.SessionID) bool {
	e, ok := t.streams[streamer]
	if !ok || streamer == viewer {
		return false
	}
	e.viewers[viewer] = struct{}{}
	w, ok := t.watching[viewer]
	if !ok {
		w = make(set)
		t.watching[viewer] = w
	}
	w[streamer] = struct{}{}
	return true
}

// RemoveViewer tears down one edge.
func (t *StreamTable) RemoveViewer(streamer, viewer core.SessionID) bool {
	e, ok := t.streams[streamer]
	if !ok {
		return false
	}
	if _, ok := e.viewers[viewer]; !ok {
		return false
	}
	delete(e.viewers, viewer)
	t.unwatch(viewer, streamer)
	return true
}

func (t *StreamTable) unwatch(viewer, streamer core.SessionID) {
	w, ok := t.watching[viewer]
	if !ok {
		return
	}
	delete(w, streamer)
	if len(w) == 0 {
		delete(t.watching, viewer)
	}
}

func (t *StreamTable) HasStream(sid core.SessionID) bool {
	_, ok := t.streams[sid]
	return ok
}

func (t *StreamTable) IsWatching(viewer, streamer core.SessionID) bool {
	_, ok := t.watching[viewer][streamer]
	return ok
}

// CanRelay reports whether a signal from -> to belongs to the broadcast of
// streamer: one side is the broadcaster, the other an attached viewer.
func (t *StreamTable) CanRelay(from, to, streamer core.SessionID) bool {
	if !t.HasStream(streamer) {
		return false
	}
	switch streamer {
	case from:
		return t.IsWatching(to, streamer)
	case to:
		return t.IsWatching(from, streamer)
	}
	return false
}

func (t *StreamTable) Viewers(streamer core.SessionID) []core.SessionID {
	e, ok := t.streams[streamer]
	if !ok {
		return nil
	}
	return sortedSet(e.viewers)
}

// Watched lists the broadcasters viewer is attached to.
func (t *StreamTable) Watched(viewer core.SessionID) []core.SessionID {
	return sortedSet(t.watching[viewer])
}

// Sessions lists active broadcasts in start order.
func (t *StreamTable) Sessions() []domain.StreamSession {
	entries := lo.Values(t.streams)
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	return lo.Map(entries, func(e *streamEntry, _ int) domain.StreamSession { return e.session })
}

// Teardown is what removing a connection did to the table.
type Teardown struct {
	StreamEnded bool
	Viewers     []core.SessionID // viewers of the ended stream
	Watched     []core.SessionID // broadcasters the connection was watching
}

// RemoveConnection drops every trace of sid: its own broadcast and all the
// edges it was part of.
func (t *StreamTable) RemoveConnection(sid core.SessionID) Teardown {
	var td Teardown
	td.Watched = t.Watched(sid)
	for _, streamer := range td.Watched {
		t.RemoveViewer(streamer, sid)
	}
	td.Viewers, td.StreamEnded = t.StopStream(sid)
	return td
}

// Prune removes every connection for which alive is false. Returns the
// broadcasters whose stream ended.
func (t *StreamTable) Prune(alive func(core.SessionID) bool) []core.SessionID {
	var ended []core.SessionID
	for _, sid := range lo.Union(lo.Keys(t.streams), lo.Keys(t.watching)) {
		if alive(sid) {
			continue
		}
		if td := t.RemoveConnection(sid); td.StreamEnded {
			ended = append(ended, sid)
		}
	}
	return ended
}

func (t *StreamTable) Len() int { return len(t.streams) }

// EdgeCount is the number of watch edges.
func (t *StreamTable) EdgeCount() int {
	return lo.SumBy(lo.Values(t.watching), func(w set) int { return len(w) })
}

func sortedSet(s set) []core.SessionID {
	out := lo.Keys(s)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
