package app

import (
	"context"
	"sort"
	"time"

	"github.com/dkeye/DigitalRoom/internal/core"
	"github.com/dkeye/DigitalRoom/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

type sessionEntry struct {
	Conn        core.SignalConnection
	User        *domain.Participant
	Cancel      context.CancelFunc
	ConnectedAt time.Time
	seq         uint64
}

// PublishResult reports a fan-out. Dropped holds sessions whose send
// buffer was full.
type PublishResult struct {
	SendTo  int
	Dropped []core.SessionID
}

// Registry tracks live connections and the participant bound to each.
// It is owned by the event loop and is not safe for concurrent use.
type Registry struct {
	sessions map[core.SessionID]*sessionEntry
	seq      uint64
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[core.SessionID]*sessionEntry),
	}
}

func (r *Registry) BindSignal(sid core.SessionID, conn core.SignalConnection, cancel context.CancelFunc, now time.Time) {
	r.seq++
	r.sessions[sid] = &sessionEntry{Conn: conn, Cancel: cancel, ConnectedAt: now, seq: r.seq}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("bound signal")
}

// Has reports whether sid still has a live transport.
func (r *Registry) Has(sid core.SessionID) bool {
	_, ok := r.sessions[sid]
	return ok
}

// Unbind forgets sid and returns the participant that was bound to it.
func (r *Registry) Unbind(sid core.SessionID) (*domain.Participant, bool) {
	e, ok := r.sessions[sid]
	if !ok {
		return nil, false
	}
	delete(r.sessions, sid)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unbind session")
	return e.User, e.User != nil
}

// BindUser attaches an authenticated participant to a live session.
// Returns false when the session is already gone.
func (r *Registry) BindUser(sid core.SessionID, p *domain.Participant) bool {
	e, ok := r.sessions[sid]
	if !ok {
		return false
	}
	p.ID = string(sid)
	e.User = p
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("username", p.Name).Msg("bound user")
	return true
}

// User returns the participant bound to sid, nil for guests.
func (r *Registry) User(sid core.SessionID) (*domain.Participant, bool) {
	e, ok := r.sessions[sid]
	if !ok || e.User == nil {
		return nil, false
	}
	return e.User, true
}

func (r *Registry) ordered() []core.SessionID {
	sids := lo.Keys(r.sessions)
	sort.Slice(sids, func(i, j int) bool {
		return r.sessions[sids[i]].seq < r.sessions[sids[j]].seq
	})
	return sids
}

// UniqueUsers is the live participant list, one entry per username. The
// oldest connection of a multi-tab user represents it.
func (r *Registry) UniqueUsers() []domain.Participant {
	out := make([]domain.Participant, 0, len(r.sessions))
	seen := make(map[string]struct{}, len(r.sessions))
	for _, sid := range r.ordered() {
		u := r.sessions[sid].User
		if u == nil {
			continue
		}
		if _, dup := seen[u.Name]; dup {
			continue
		}
		seen[u.Name] = struct{}{}
		out = append(out, *u)
	}
	return out
}

// SessionsOf lists every live session bound to username.
func (r *Registry) SessionsOf(username string) []core.SessionID {
	return lo.Filter(r.ordered(), func(sid core.SessionID, _ int) bool {
		u := r.sessions[sid].User
		return u != nil && u.Name == username
	})
}

// Len is the number of live connections.
func (r *Registry) Len() int { return len(r.sessions) }

// Send delivers data to one session. Unknown targets are a silent no-op.
func (r *Registry) Send(sid core.SessionID, data core.Frame) (bool, error) {
	e, ok := r.sessions[sid]
	if !ok {
		return false, nil
	}
	return true, e.Conn.TrySend(data)
}

// Broadcast fans data out to every session except `except` (may be empty).
func (r *Registry) Broadcast(except core.SessionID, data core.Frame) PublishResult {
	res := PublishResult{}
	for _, sid := range r.ordered() {
		if sid == except {
			continue
		}
		if err := r.sessions[sid].Conn.TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, sid)
			continue
		}
		res.SendTo++
	}
	log.Debug().Str("module", "app.registry").Str("except", string(except)).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

// Cancel stops the transport of sid. The session stays registered until
// the adapter reports the disconnect.
func (r *Registry) Cancel(sid core.SessionID) bool {
	e, ok := r.sessions[sid]
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("canceled session")
	return true
}
