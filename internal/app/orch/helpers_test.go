package orch

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/DigitalRoom/internal/core"
	"github.com/dkeye/DigitalRoom/internal/domain"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type received struct {
	Type    string          `json:"type"`
	Ack     string          `json:"ack"`
	Payload json.RawMessage `json:"payload"`
}

type fakeConn struct {
	mu       sync.Mutex
	frames   []received
	closed   bool
	canceled bool
}

func (c *fakeConn) TrySend(f core.Frame) error {
	var r received
	if err := json.Unmarshal(f, &r); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, r)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

// of returns payloads of the given event type.
func (c *fakeConn) of(typ string) []json.RawMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []json.RawMessage
	for _, f := range c.frames {
		if f.Type == typ {
			out = append(out, f.Payload)
		}
	}
	return out
}

func (c *fakeConn) acks(id string) []json.RawMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []json.RawMessage
	for _, f := range c.frames {
		if f.Type == core.OutAck && f.Ack == id {
			out = append(out, f.Payload)
		}
	}
	return out
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	t     *testing.T
	o     *Orchestrator
	clock *fakeClock
	conns map[core.SessionID]*fakeConn
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	// tickers stay quiet; tests drive heartbeat and reconcile by hand
	opts.HeartbeatInterval = time.Hour
	opts.ReconcileInterval = time.Hour

	o := New(opts)
	clk := &fakeClock{now: t0}
	o.Now = clk.Now

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = o.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return &harness{t: t, o: o, clock: clk, conns: map[core.SessionID]*fakeConn{}}
}

// do runs fn on the loop and waits.
func (h *harness) do(fn func()) {
	h.t.Helper()
	require.NoError(h.t, h.o.Query(context.Background(), fn))
}

func (h *harness) sync() { h.do(func() {}) }

func (h *harness) connect(sid core.SessionID) *fakeConn {
	h.t.Helper()
	c := &fakeConn{}
	h.conns[sid] = c
	h.o.Connect(sid, c, func() {
		c.mu.Lock()
		c.canceled = true
		c.mu.Unlock()
	})
	h.sync()
	return c
}

// join connects sid and binds it to username without the store round trip.
func (h *harness) join(sid core.SessionID, username string) *fakeConn {
	h.t.Helper()
	c := h.connect(sid)
	h.do(func() {
		h.o.Registry.BindUser(sid, &domain.Participant{Name: username, AccountID: domain.AccountID("acc-" + username), IsAuthenticated: true})
	})
	return c
}

func (h *harness) send(sid core.SessionID, typ string, payload any) {
	h.sendAck(sid, typ, payload, "")
}

func (h *harness) sendAck(sid core.SessionID, typ string, payload any, ack string) {
	h.t.Helper()
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(h.t, err)
		raw = b
	}
	h.o.Dispatch(sid, core.Request{Type: typ, Ack: ack, Payload: raw})
	h.sync()
}

func (h *harness) disconnect(sid core.SessionID) {
	h.o.Disconnect(sid)
	h.sync()
}

func (h *harness) resetAll() {
	for _, c := range h.conns {
		c.reset()
	}
}

func (h *harness) holder() core.SessionID {
	var sid core.SessionID
	h.do(func() { sid, _ = h.o.Booth.Holder() })
	return sid
}

func (h *harness) state() domain.RoomState {
	var st domain.RoomState
	h.do(func() { st = h.o.roomState() })
	return st
}

func decodeAs[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func playing(seekMs float64) core.DJUpdateRequest {
	return core.DJUpdateRequest{CurrentTrack: "https://soundcloud.com/a/b", IsPlaying: true, SeekPosition: &seekMs}
}
