package orch

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dkeye/DigitalRoom/internal/app"
	"github.com/dkeye/DigitalRoom/internal/core"
	"github.com/rs/zerolog/log"
)

var errBadSeek = errors.New("seekPosition out of range")

func (o *Orchestrator) onRequestDJ(r *responder) {
	if !o.allow(r) {
		r.fail("Rate limit exceeded. Please wait.")
		return
	}
	user, ok := o.Registry.User(r.sid)
	if !ok {
		o.advise(r.sid, "Log in to take the booth.")
		r.fail("not authenticated")
		return
	}
	if !o.Booth.Claim(r.sid, user.Name, o.Now()) {
		holder, name := o.Booth.Holder()
		o.Metrics.IncRejected("booth_busy")
		o.send(r.sid, core.OutDJChanged, core.NewDJChanged(holder, name))
		o.advise(r.sid, fmt.Sprintf("[!] BOOTH BUSY: %s is already at the booth.", name))
		r.reply(core.AckResult{Error: "booth busy"})
		return
	}
	o.broadcast("", core.OutDJChanged, core.NewDJChanged(r.sid, user.Name))
	r.ok()
}

// playbackUpdate validates a DJ report.
func playbackUpdate(req core.DJUpdateRequest) (app.PlaybackUpdate, error) {
	var seek time.Duration
	if req.SeekPosition != nil {
		ms := *req.SeekPosition
		if ms < 0 || math.IsNaN(ms) || ms > float64(math.MaxInt64/int64(time.Millisecond)) {
			return app.PlaybackUpdate{}, errBadSeek
		}
		seek = time.Duration(ms * float64(time.Millisecond))
	}
	u := app.PlaybackUpdate{
		Track:     req.CurrentTrack,
		Title:     req.TrackTitle,
		Theme:     req.CurrentTheme,
		IsPlaying: req.IsPlaying,
		Seek:      seek,
	}
	if u.Track == "" {
		u.Track = req.Track
	}
	if isNull(u.Theme) {
		u.Theme = req.Theme
	}
	if isNull(u.Theme) {
		u.Theme = nil
	}
	return u, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

func (o *Orchestrator) onDJUpdate(r *responder, raw json.RawMessage) {
	req, err := decode[core.DJUpdateRequest](raw)
	if err != nil {
		log.Debug().Str("module", "orch").Str("sid", string(r.sid)).Err(err).Msg("djUpdate dropped, bad payload")
		r.reply(core.AckResult{Error: "invalid payload"})
		return
	}
	update, err := playbackUpdate(req)
	if err != nil {
		log.Debug().Str("module", "orch").Str("sid", string(r.sid)).Err(err).Msg("djUpdate dropped")
		r.reply(core.AckResult{Error: "invalid payload"})
		return
	}

	name := ""
	if user, ok := o.Registry.User(r.sid); ok {
		name = user.Name
	}
	switch o.Booth.Authorize(r.sid, name) {
	case app.Rejected:
		o.Metrics.IncRejected("not_dj")
		log.Warn().Str("module", "orch").Str("sid", string(r.sid)).Msg("update rejected, not DJ")
		return
	case app.AcceptedHealed:
		o.broadcast("", core.OutDJChanged, core.NewDJChanged(r.sid, name))
	case app.Accepted:
	}

	now := o.Now()
	if o.Playback.Apply(update, now) {
		o.Metrics.IncResync()
	}
	o.broadcast(r.sid, core.OutRoomUpdate, core.NewRoomSnapshot(o.roomState(), now))
	r.ok()
}

// heartbeat re-sends the room to everyone while a DJ plays something.
func (o *Orchestrator) heartbeat() {
	if o.Booth.State() != app.Held || !o.Playback.HasTrack() {
		return
	}
	o.broadcast("", core.OutRoomSync, core.NewRoomSnapshot(o.roomState(), o.Now()))
}

// reconcile repairs bookkeeping that disconnects leave behind.
func (o *Orchestrator) reconcile() {
	now := o.Now()
	alive := o.Registry.Has

	if o.Booth.Reconcile(alive, now, o.opts.MaxDJHold) != app.NotVacated {
		o.broadcast("", core.OutDJChanged, core.NewDJChanged("", ""))
	}
	if gone := o.Voice.Prune(alive); len(gone) > 0 {
		o.broadcast("", core.OutVoiceUpdate, o.Voice.Members())
	}
	if ended := o.Streams.Prune(alive); len(ended) > 0 {
		o.broadcast("", core.OutStreamUpdate, o.Streams.Sessions())
	}
	if n := o.Limiter.Prune(now); n > 0 {
		log.Debug().Str("module", "orch").Int("pruned", n).Msg("rate limit records pruned")
	}
}

func (o *Orchestrator) onReportPing(r *responder, raw json.RawMessage) {
	req, err := decode[core.ReportPingRequest](raw)
	if err != nil || req.Latency < 0 {
		r.fail("invalid payload")
		return
	}
	user, ok := o.Registry.User(r.sid)
	if !ok {
		r.ok()
		return
	}
	latency := min(req.Latency, 60000)
	user.Ping = latency
	o.broadcast("", core.OutUserPartialUpdate, core.PartialUpdate{ID: r.sid, Ping: &latency})
	r.ok()
}
