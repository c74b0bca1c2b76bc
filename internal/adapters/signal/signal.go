// Package signal carries room events over WebSocket.
package signal

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/dkeye/DigitalRoom/internal/config"
	"github.com/dkeye/DigitalRoom/internal/core"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// SessionTokenKey is where the HTTP login keeps the session token.
const SessionTokenKey = "token"

var ErrClosed = errors.New("signal: connection closed")

// Room is the part of the orchestrator the transport talks to.
type Room interface {
	Connect(sid core.SessionID, conn core.SignalConnection, cancel context.CancelFunc)
	Disconnect(sid core.SessionID)
	Dispatch(sid core.SessionID, req core.Request)
}

type Settings struct {
	ReadLimit      int64
	PingPeriod     time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	SendBuffer     int
	AllowedOrigins []string
}

func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		ReadLimit:      cfg.ReadLimit,
		PingPeriod:     cfg.PingPeriod,
		PongWait:       cfg.PongWait,
		WriteWait:      cfg.WriteWait,
		SendBuffer:     cfg.SendBuffer,
		AllowedOrigins: cfg.AllowedOrigins,
	}
}

func (s *Settings) fill() {
	if s.ReadLimit <= 0 {
		s.ReadLimit = 32 << 10
	}
	if s.PongWait <= 0 {
		s.PongWait = 60 * time.Second
	}
	if s.PingPeriod <= 0 || s.PingPeriod >= s.PongWait {
		s.PingPeriod = s.PongWait * 9 / 10
	}
	if s.WriteWait <= 0 {
		s.WriteWait = 10 * time.Second
	}
	if s.SendBuffer <= 0 {
		s.SendBuffer = 64
	}
}

type SignalWSController struct {
	Room     Room
	settings Settings
	upgrader websocket.Upgrader
}

func NewSignalWSController(room Room, settings Settings) *SignalWSController {
	settings.fill()
	ctl := &SignalWSController{Room: room, settings: settings}
	ctl.upgrader = websocket.Upgrader{CheckOrigin: ctl.checkOrigin}
	return ctl
}

// checkOrigin allows everything when no origins are configured.
func (ctl *SignalWSController) checkOrigin(r *http.Request) bool {
	if len(ctl.settings.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || slices.Contains(ctl.settings.AllowedOrigins, origin)
}

type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func newWsSignalConn(ws *websocket.Conn, buffer int) *WsSignalConn {
	return &WsSignalConn{conn: ws, send: make(chan core.Frame, buffer)}
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.mu.Unlock()
}

func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	sid := core.NewSessionID()
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("client", c.GetString("client_token")).Msg("new WS connection")

	conn := newWsSignalConn(ws, ctl.settings.SendBuffer)
	ctx, cancel := context.WithCancel(ctx)
	ctl.Room.Connect(sid, conn, cancel)

	if token := sessionToken(c); token != "" {
		ctl.Room.Dispatch(sid, core.Request{Type: core.EvAuthenticate, Payload: tokenPayload(token)})
	}

	go ctl.writePump(ctx, sid, conn)
	go ctl.readPump(ctx, cancel, sid, conn)
}

// sessionToken reads the token stored by a cookie login, if sessions are on.
func sessionToken(c *gin.Context) string {
	if _, ok := c.Get(sessions.DefaultKey); !ok {
		return ""
	}
	token, _ := sessions.Default(c).Get(SessionTokenKey).(string)
	return token
}
