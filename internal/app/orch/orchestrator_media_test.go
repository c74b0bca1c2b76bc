package orch

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/dkeye/DigitalRoom/internal/core"
	"github.com/dkeye/DigitalRoom/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var offer = json.RawMessage(`{"type":"offer","sdp":"v=0"}`)

func TestVoiceJoinSendsPeerList(t *testing.T) {
	h := newHarness(t, Options{})
	a := h.join("a", "alice")
	b := h.join("b", "bob")

	h.send("a", core.EvVoiceJoin, nil)
	h.send("b", core.EvVoiceJoin, nil)

	assert.Equal(t, []core.SessionID{"a"}, decodeAs[[]core.SessionID](t, b.of(core.OutVoicePeerList)[0]))
	assert.Empty(t, decodeAs[[]core.SessionID](t, a.of(core.OutVoicePeerList)[0]))

	updates := a.of(core.OutVoiceUpdate)
	require.Len(t, updates, 2)
	assert.Len(t, decodeAs[[]domain.VoiceMember](t, updates[1]), 2)

	h.send("b", core.EvVoiceStateUpdate, core.VoiceStateRequest{Muted: true})
	roster := decodeAs[[]domain.VoiceMember](t, a.of(core.OutVoiceUpdate)[2])
	assert.True(t, roster[1].Muted)

	h.send("b", core.EvVoiceLeave, nil)
	assert.Len(t, decodeAs[[]domain.VoiceMember](t, a.of(core.OutVoiceUpdate)[3]), 1)
}

func TestVoiceJoinRequiresIdentity(t *testing.T) {
	h := newHarness(t, Options{})
	g := h.connect("g")
	h.send("g", core.EvVoiceJoin, nil)

	assert.Empty(t, g.of(core.OutVoicePeerList))
	assert.Len(t, g.of(core.OutError), 1)
}

func TestStreamStartRequiresIdentity(t *testing.T) {
	h := newHarness(t, Options{})
	h.connect("g")
	viewer := h.join("v", "vic")
	h.sendAck("g", core.EvStreamStart, nil, "st")

	ack := decodeAs[core.AckResult](t, h.conns["g"].acks("st")[0])
	assert.False(t, ack.Success)
	assert.Equal(t, "Log in to share your screen", ack.Error)
	assert.Empty(t, viewer.of(core.OutStreamUpdate))
	h.do(func() { assert.Zero(t, h.o.Streams.Len()) })
}

func TestVoiceSignalRelay(t *testing.T) {
	h := newHarness(t, Options{})
	h.join("a", "alice")
	b := h.join("b", "bob")
	outsider := h.join("x", "xena")
	h.send("a", core.EvVoiceJoin, nil)
	h.send("b", core.EvVoiceJoin, nil)

	h.send("a", core.EvVoiceSignal, core.SignalRequest{To: "b", Signal: offer})
	h.send("x", core.EvVoiceSignal, core.SignalRequest{To: "b", Signal: offer})
	h.send("a", core.EvVoiceSignal, core.SignalRequest{To: "x", Signal: offer})
	h.send("a", core.EvVoiceSignal, core.SignalRequest{To: "ghost", Signal: offer})

	got := b.of(core.OutVoiceSignal)
	require.Len(t, got, 1)
	relayed := decodeAs[core.SignalRelay](t, got[0])
	assert.Equal(t, core.SessionID("a"), relayed.From)
	assert.JSONEq(t, string(offer), string(relayed.Signal))
	assert.Empty(t, outsider.of(core.OutVoiceSignal))
	assert.Empty(t, h.conns["a"].of(core.OutError), "dropped relays are silent")
}

func TestStreamCapAllowsTen(t *testing.T) {
	h := newHarness(t, Options{MaxStreams: 10})
	for i := 1; i <= 11; i++ {
		sid := core.SessionID(fmt.Sprintf("s%d", i))
		h.join(sid, fmt.Sprintf("user%d", i))
		h.sendAck(sid, core.EvStreamStart, nil, "st")
	}

	for i := 1; i <= 10; i++ {
		ack := decodeAs[core.AckResult](t, h.conns[core.SessionID(fmt.Sprintf("s%d", i))].acks("st")[0])
		assert.True(t, ack.Success, "stream %d", i)
	}
	eleventh := decodeAs[core.AckResult](t, h.conns["s11"].acks("st")[0])
	assert.Equal(t, "Stream limit reached", eleventh.Error)
	h.do(func() {
		assert.Equal(t, 10, h.o.Streams.Len())
		assert.False(t, h.o.Streams.HasStream("s11"))
		u, _ := h.o.Registry.User("s11")
		assert.False(t, u.IsLive)
	})
}

func TestStreamJoinNotifiesOnlyBroadcaster(t *testing.T) {
	h := newHarness(t, Options{})
	s := h.join("s", "streamer")
	v := h.join("v", "viewer")
	other := h.join("o", "other")
	h.send("s", core.EvStreamStart, nil)

	assert.Len(t, other.of(core.OutStreamUpdate), 1)
	assert.Len(t, other.of(core.OutUserPartialUpdate), 1, "isLive flag")

	h.o.Dispatch("v", core.Request{Type: core.EvStreamJoin, Payload: []byte(`"s"`)})
	h.sync()

	joins := s.of(core.OutStreamPeerJoin)
	require.Len(t, joins, 1)
	assert.Equal(t, core.SessionID("v"), decodeAs[core.PeerNotice](t, joins[0]).PeerID)
	assert.Empty(t, other.of(core.OutStreamPeerJoin))
	assert.Empty(t, v.of(core.OutStreamPeerJoin))

	h.send("s", core.EvStreamSignal, core.SignalRequest{To: "v", Signal: offer, StreamerID: "s"})
	h.send("v", core.EvStreamSignal, core.SignalRequest{To: "s", Signal: offer, StreamerID: "s"})
	h.send("o", core.EvStreamSignal, core.SignalRequest{To: "s", Signal: offer, StreamerID: "s"})
	h.send("s", core.EvStreamSignal, core.SignalRequest{To: "v", Signal: offer})

	toViewer := v.of(core.OutStreamSignal)
	require.Len(t, toViewer, 1)
	assert.Equal(t, "s", decodeAs[core.SignalRelay](t, toViewer[0]).StreamerID)
	assert.Len(t, s.of(core.OutStreamSignal), 1, "unwatched sender dropped")

	h.send("v", core.EvStreamLeave, core.StreamTarget{StreamerID: "s"})
	assert.Len(t, s.of(core.OutStreamPeerLeave), 1)
	h.do(func() { assert.Zero(t, h.o.Streams.EdgeCount()) })
}

func TestDisconnectTearsDownVoiceAndStream(t *testing.T) {
	h := newHarness(t, Options{})
	h.join("x", "xavier")
	peer := h.join("p", "pat")
	h.join("w", "wendy")
	h.send("x", core.EvVoiceJoin, nil)
	h.send("p", core.EvStreamStart, nil)
	h.send("x", core.EvStreamStart, nil)
	h.send("w", core.EvStreamJoin, core.StreamTarget{StreamerID: "x"})
	h.send("x", core.EvStreamJoin, core.StreamTarget{StreamerID: "p"})
	peer.reset()

	h.disconnect("x")

	voice := peer.of(core.OutVoiceUpdate)
	require.Len(t, voice, 1)
	assert.Empty(t, decodeAs[[]domain.VoiceMember](t, voice[0]))
	streams := peer.of(core.OutStreamUpdate)
	require.Len(t, streams, 1)
	sessions := decodeAs[[]domain.StreamSession](t, streams[0])
	require.Len(t, sessions, 1)
	assert.Equal(t, "p", sessions[0].StreamerID)
	assert.Len(t, peer.of(core.OutStreamPeerLeave), 1, "p loses its viewer")

	h.do(func() {
		assert.False(t, h.o.Voice.Has("x"))
		assert.False(t, h.o.Streams.HasStream("x"))
		assert.Empty(t, h.o.Streams.Watched("w"))
		assert.Empty(t, h.o.Streams.Viewers("p"))
		assert.Zero(t, h.o.Streams.EdgeCount())
	})
}

type panickingValidator struct{}

func (panickingValidator) Validate(json.RawMessage) (string, error) { panic("boom") }

type rejectingValidator struct{}

func (rejectingValidator) Validate(json.RawMessage) (string, error) {
	return "", errors.New("bad")
}

func TestHandlerPanicStaysWithSender(t *testing.T) {
	h := newHarness(t, Options{})
	a := h.join("a", "alice")
	b := h.join("b", "bob")
	h.send("a", core.EvVoiceJoin, nil)
	h.send("b", core.EvVoiceJoin, nil)
	h.do(func() { h.o.Signals = panickingValidator{} })

	h.send("a", core.EvVoiceSignal, core.SignalRequest{To: "b", Signal: offer})

	errs := a.of(core.OutError)
	require.Len(t, errs, 1)
	assert.Equal(t, "internal error", decodeAs[core.ErrorReply](t, errs[0]).Error)
	assert.Empty(t, b.of(core.OutError))
	assert.Empty(t, b.of(core.OutVoiceSignal))

	h.do(func() { h.o.Signals = rejectingValidator{} })
	h.send("a", core.EvVoiceSignal, core.SignalRequest{To: "b", Signal: offer})
	assert.Empty(t, b.of(core.OutVoiceSignal))

	h.send("a", core.EvSendMessage, core.ChatRequest{Text: "still alive"})
	assert.Len(t, b.of(core.OutNewMessage), 1)
}
