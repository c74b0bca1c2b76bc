package orch

import (
	"encoding/json"
	"errors"

	"github.com/dkeye/DigitalRoom/internal/app/relay"
	"github.com/dkeye/DigitalRoom/internal/core"
	"github.com/dkeye/DigitalRoom/internal/domain"
	"github.com/rs/zerolog/log"
)

func (o *Orchestrator) onVoiceJoin(r *responder) {
	user, ok := o.Registry.User(r.sid)
	if !ok {
		r.fail("Log in to join voice")
		return
	}
	peers := o.Voice.Join(*domain.NewVoiceMember(user))
	o.broadcast("", core.OutVoiceUpdate, o.Voice.Members())
	o.send(r.sid, core.OutVoicePeerList, peers)
	r.ok()
}

func (o *Orchestrator) onVoiceLeave(r *responder) {
	if o.Voice.Leave(r.sid) {
		o.broadcast("", core.OutVoiceUpdate, o.Voice.Members())
	}
	r.ok()
}

func (o *Orchestrator) onVoiceState(r *responder, raw json.RawMessage) {
	req, err := decode[core.VoiceStateRequest](raw)
	if err != nil {
		r.fail("invalid payload")
		return
	}
	if o.Voice.SetState(r.sid, req.Muted, req.Deafened) {
		o.broadcast("", core.OutVoiceUpdate, o.Voice.Members())
	}
	r.ok()
}

// validSignal checks the payload shape. Without a validator any JSON object
// is forwarded.
func (o *Orchestrator) validSignal(raw json.RawMessage) (string, error) {
	if isNull(raw) {
		return "", errors.New("empty signal")
	}
	if o.Signals == nil {
		return "", nil
	}
	return o.Signals.Validate(raw)
}

// onVoiceSignal relays between two seated voice members. Anything else is
// dropped without a reply.
func (o *Orchestrator) onVoiceSignal(r *responder, raw json.RawMessage) {
	req, err := decode[core.SignalRequest](raw)
	if err != nil {
		return
	}
	to := core.SessionID(req.To)
	if to == r.sid || !o.Voice.Has(r.sid) || !o.Voice.Has(to) || !o.Registry.Has(to) {
		log.Debug().Str("module", "orch.media").Str("sid", string(r.sid)).Str("to", req.To).Msg("voice signal dropped")
		return
	}
	kind, err := o.validSignal(req.Signal)
	if err != nil {
		o.Metrics.IncRejected("bad_signal")
		log.Debug().Str("module", "orch.media").Str("sid", string(r.sid)).Err(err).Msg("voice signal malformed")
		return
	}
	o.send(to, core.OutVoiceSignal, core.SignalRelay{From: r.sid, Signal: req.Signal})
	o.Metrics.IncRelayed("voice")
	log.Debug().Str("module", "orch.media").Str("sid", string(r.sid)).Str("to", req.To).Str("kind", kind).Msg("voice signal relayed")
}

func (o *Orchestrator) setLive(sid core.SessionID, live bool) {
	user, ok := o.Registry.User(sid)
	if !ok || user.IsLive == live {
		return
	}
	user.IsLive = live
	o.broadcast("", core.OutUserPartialUpdate, core.PartialUpdate{ID: sid, IsLive: &live})
}

func (o *Orchestrator) onStreamStart(r *responder) {
	user, ok := o.Registry.User(r.sid)
	if !ok {
		r.fail("Log in to share your screen")
		return
	}
	started, err := o.Streams.StartStream(r.sid, user.Name, o.Now())
	if errors.Is(err, relay.ErrStreamLimit) {
		o.Metrics.IncRejected("stream_limit")
		o.advise(r.sid, "Stream limit reached. Try again later.")
		r.fail("Stream limit reached")
		return
	}
	if started {
		o.broadcast("", core.OutStreamUpdate, o.Streams.Sessions())
		o.setLive(r.sid, true)
	}
	r.ok()
}

func (o *Orchestrator) onStreamStop(r *responder) {
	if _, ok := o.Streams.StopStream(r.sid); ok {
		o.broadcast("", core.OutStreamUpdate, o.Streams.Sessions())
		o.setLive(r.sid, false)
	}
	r.ok()
}

func (o *Orchestrator) onStreamJoin(r *responder, raw json.RawMessage) {
	req, err := decode[core.StreamTarget](raw)
	if err != nil {
		r.fail("invalid payload")
		return
	}
	streamer := core.SessionID(req.StreamerID)
	if !o.Streams.AddViewer(streamer, r.sid) {
		log.Debug().Str("module", "orch.media").Str("sid", string(r.sid)).Str("streamer", req.StreamerID).Msg("watch refused")
		r.reply(core.AckResult{Error: "stream not found"})
		return
	}
	o.send(streamer, core.OutStreamPeerJoin, core.PeerNotice{PeerID: r.sid})
	r.ok()
}

func (o *Orchestrator) onStreamLeave(r *responder, raw json.RawMessage) {
	req, err := decode[core.StreamTarget](raw)
	if err != nil {
		r.fail("invalid payload")
		return
	}
	streamer := core.SessionID(req.StreamerID)
	if o.Streams.RemoveViewer(streamer, r.sid) {
		o.send(streamer, core.OutStreamPeerLeave, core.PeerNotice{PeerID: r.sid})
	}
	r.ok()
}

// onStreamSignal relays along a watch edge of the tagged broadcast.
func (o *Orchestrator) onStreamSignal(r *responder, raw json.RawMessage) {
	req, err := decode[core.SignalRequest](raw)
	if err != nil || req.StreamerID == "" {
		return
	}
	to := core.SessionID(req.To)
	if !o.Streams.CanRelay(r.sid, to, core.SessionID(req.StreamerID)) || !o.Registry.Has(to) {
		log.Debug().Str("module", "orch.media").Str("sid", string(r.sid)).Str("to", req.To).Str("streamer", req.StreamerID).Msg("stream signal dropped")
		return
	}
	kind, err := o.validSignal(req.Signal)
	if err != nil {
		o.Metrics.IncRejected("bad_signal")
		log.Debug().Str("module", "orch.media").Str("sid", string(r.sid)).Err(err).Msg("stream signal malformed")
		return
	}
	o.send(to, core.OutStreamSignal, core.SignalRelay{From: r.sid, Signal: req.Signal, StreamerID: req.StreamerID})
	o.Metrics.IncRelayed("stream")
	log.Debug().Str("module", "orch.media").Str("sid", string(r.sid)).Str("to", req.To).Str("kind", kind).Msg("stream signal relayed")
}

// dropMedia removes sid from both rosters and every watch edge.
func (o *Orchestrator) dropMedia(sid core.SessionID) {
	if o.Voice.Leave(sid) {
		o.broadcast("", core.OutVoiceUpdate, o.Voice.Members())
	}
	td := o.Streams.RemoveConnection(sid)
	if td.StreamEnded {
		o.broadcast("", core.OutStreamUpdate, o.Streams.Sessions())
	}
	for _, streamer := range td.Watched {
		o.send(streamer, core.OutStreamPeerLeave, core.PeerNotice{PeerID: sid})
	}
}
