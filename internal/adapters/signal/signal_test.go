package signal

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/DigitalRoom/internal/core"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRoom struct {
	mu           sync.Mutex
	conns        map[core.SessionID]core.SignalConnection
	cancels      map[core.SessionID]context.CancelFunc
	requests     []core.Request
	disconnected []core.SessionID
}

func newFakeRoom() *fakeRoom {
	return &fakeRoom{conns: map[core.SessionID]core.SignalConnection{}, cancels: map[core.SessionID]context.CancelFunc{}}
}

func (r *fakeRoom) Connect(sid core.SessionID, conn core.SignalConnection, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[sid] = conn
	r.cancels[sid] = cancel
	frame, _ := core.Encode(core.OutInit, map[string]string{"yourId": string(sid)})
	_ = conn.TrySend(frame)
}

func (r *fakeRoom) Disconnect(sid core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disconnected = append(r.disconnected, sid)
}

func (r *fakeRoom) Dispatch(_ core.SessionID, req core.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
}

func (r *fakeRoom) snapshot() ([]core.Request, []core.SessionID, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.Request(nil), r.requests...), append([]core.SessionID(nil), r.disconnected...), len(r.conns)
}

func (r *fakeRoom) cancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.cancels {
		c()
	}
}

func serve(t *testing.T, room Room, settings Settings) *websocket.Conn {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctl := NewSignalWSController(room, settings)
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) { ctl.HandleSignal(context.Background(), c) })
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func TestHandleSignalRoundTrip(t *testing.T) {
	room := newFakeRoom()
	ws := serve(t, room, Settings{})

	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"init"`)

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"djUpdate","ack":7,"payload":{"isPlaying":true}}`)))
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))

	require.Eventually(t, func() bool {
		reqs, _, _ := room.snapshot()
		return len(reqs) == 2
	}, 2*time.Second, 10*time.Millisecond)

	reqs, _, _ := room.snapshot()
	assert.Equal(t, core.EvDJUpdate, reqs[0].Type)
	assert.Equal(t, "7", reqs[0].Ack)
	assert.JSONEq(t, `{"isPlaying":true}`, string(reqs[0].Payload))
	assert.Equal(t, core.EvPing, reqs[1].Type)
	assert.Empty(t, reqs[1].Payload)
}

func TestHandleSignalRejectsMalformed(t *testing.T) {
	room := newFakeRoom()
	ws := serve(t, room, Settings{})
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := ws.ReadMessage()
	require.NoError(t, err)

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"payload":1}`)))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"error","payload":{"error":"bad_payload"}}`, string(data))

	reqs, _, _ := room.snapshot()
	assert.Empty(t, reqs)
}

func TestClientCloseDisconnects(t *testing.T) {
	room := newFakeRoom()
	ws := serve(t, room, Settings{})
	require.NoError(t, ws.Close())

	require.Eventually(t, func() bool {
		_, gone, _ := room.snapshot()
		return len(gone) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCancelClosesSocket(t *testing.T) {
	room := newFakeRoom()
	ws := serve(t, room, Settings{})
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := ws.ReadMessage()
	require.NoError(t, err)

	room.cancelAll()

	_, _, err = ws.ReadMessage()
	require.Error(t, err)
	require.Eventually(t, func() bool {
		_, gone, _ := room.snapshot()
		return len(gone) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestTrySendBackpressure(t *testing.T) {
	c := newWsSignalConn(nil, 1)
	require.NoError(t, c.TrySend(core.Frame("a")))
	assert.ErrorIs(t, c.TrySend(core.Frame("b")), core.ErrBackpressure)

	c.Close()
	c.Close()
	assert.ErrorIs(t, c.TrySend(core.Frame("c")), ErrClosed)
}

func TestParseRequest(t *testing.T) {
	req, ok := parseRequest([]byte(`{"type":"sendMessage","ack":"a1","payload":{"text":"hi"}}`))
	require.True(t, ok)
	assert.Equal(t, core.Request{Type: "sendMessage", Ack: "a1", Payload: []byte(`{"text":"hi"}`)}, req)

	for _, bad := range []string{`[]`, `{"type":5}`, `{"type":""}`, `not json`} {
		_, ok := parseRequest([]byte(bad))
		assert.False(t, ok, bad)
	}
}

func TestCheckOrigin(t *testing.T) {
	ctl := NewSignalWSController(newFakeRoom(), Settings{AllowedOrigins: []string{"https://room.example"}})
	req := httptest.NewRequest("GET", "/ws", nil)
	assert.True(t, ctl.checkOrigin(req))
	req.Header.Set("Origin", "https://room.example")
	assert.True(t, ctl.checkOrigin(req))
	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, ctl.checkOrigin(req))
}
