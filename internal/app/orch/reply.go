package orch

import (
	"time"

	"github.com/dkeye/DigitalRoom/internal/app"
	"github.com/dkeye/DigitalRoom/internal/core"
	"github.com/dkeye/DigitalRoom/internal/domain"
	"github.com/rs/zerolog/log"
)

// responder answers one request at most once. Without an ack id, replies
// are dropped and failures go out as an error event.
type responder struct {
	o     *Orchestrator
	sid   core.SessionID
	event string
	ack   string
	done  bool
}

func (r *responder) reply(payload any) {
	if r.done {
		return
	}
	r.done = true
	if r.ack == "" {
		return
	}
	frame, err := core.EncodeAck(r.ack, payload)
	if err != nil {
		log.Error().Str("module", "orch").Err(err).Str("type", r.event).Msg("encode ack")
		return
	}
	r.o.deliver(r.sid, frame)
}

func (r *responder) ok() { r.reply(core.AckResult{Success: true}) }

func (r *responder) fail(msg string) {
	if r.done {
		return
	}
	if r.ack != "" {
		r.reply(core.AckResult{Error: msg})
		return
	}
	r.done = true
	r.o.send(r.sid, core.OutError, core.ErrorReply{Error: msg})
}

// guard converts a handler panic into a failure for that connection only.
func (o *Orchestrator) guard(r *responder, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Str("module", "orch").Str("sid", string(r.sid)).Str("type", r.event).Interface("panic", rec).Msg("handler panic")
			r.fail("internal error")
		}
	}()
	fn()
}

func (o *Orchestrator) send(sid core.SessionID, typ string, payload any) {
	frame, err := core.Encode(typ, payload)
	if err != nil {
		log.Error().Str("module", "orch").Err(err).Str("type", typ).Msg("encode frame")
		return
	}
	o.deliver(sid, frame)
}

func (o *Orchestrator) deliver(sid core.SessionID, frame core.Frame) {
	if _, err := o.Registry.Send(sid, frame); err != nil {
		o.onDropped([]core.SessionID{sid})
	}
}

// broadcast sends to every connection except `except`.
func (o *Orchestrator) broadcast(except core.SessionID, typ string, payload any) {
	frame, err := core.Encode(typ, payload)
	if err != nil {
		log.Error().Str("module", "orch").Err(err).Str("type", typ).Msg("encode frame")
		return
	}
	res := o.Registry.Broadcast(except, frame)
	o.onDropped(res.Dropped)
}

func (o *Orchestrator) onDropped(sids []core.SessionID) {
	if o.Policy == nil {
		return
	}
	for _, sid := range sids {
		switch o.Policy.OnBackPressure(sid) {
		case app.KickMember:
			log.Warn().Str("module", "orch").Str("sid", string(sid)).Msg("slow consumer kicked")
			o.Registry.Cancel(sid)
		case app.DropFrame:
			log.Debug().Str("module", "orch").Str("sid", string(sid)).Msg("frame dropped")
		}
	}
}

// advise sends a system chat line to one connection.
func (o *Orchestrator) advise(sid core.SessionID, text string) {
	msg := domain.ChatMessage{Text: text, Timestamp: o.Now().Format(domain.TimestampLayout), IsSystem: true}
	o.send(sid, core.OutNewMessage, msg)
}

func (o *Orchestrator) roomState() domain.RoomState {
	return o.Playback.State(o.Booth.Holder())
}

func (o *Orchestrator) initPayload(sid core.SessionID, now time.Time) core.InitPayload {
	st := o.roomState()
	serverTime := st.LastUpdateAt
	if serverTime.IsZero() {
		serverTime = now
	}
	return core.InitPayload{
		State: core.InitState{
			RoomSnapshot: core.NewRoomSnapshot(st, serverTime),
			Users:        o.Registry.UniqueUsers(),
			Messages:     o.Messages.List(),
			VoiceUsers:   o.Voice.Members(),
			Streams:      o.Streams.Sessions(),
		},
		YourID:     sid,
		ServerNow:  core.Millis(now),
		ICEServers: o.opts.ICEServers,
	}
}
