package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dkeye/DigitalRoom/internal/core"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

func (ctl *SignalWSController) writePump(ctx context.Context, sid core.SessionID, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.settings.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("writePump ctx done")
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(ctl.settings.WriteWait))
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Str("sid", string(sid)).Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.settings.WriteWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ctl.settings.WriteWait)); err != nil {
				log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("writePump ping failed")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, sid core.SessionID, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		cancel()
		c.Close()
		ctl.Room.Disconnect(sid)
	}()

	c.conn.SetReadLimit(ctl.settings.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(ctl.settings.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(ctl.settings.PongWait))
	})

	for {
		if ctx.Err() != nil {
			return
		}
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(ctl.settings.PongWait))
		ctl.handleSignal(sid, c, data)
	}
}

// handleSignal peeks at the envelope and hands it to the room. The payload
// stays raw; the room decodes it per event type.
func (ctl *SignalWSController) handleSignal(sid core.SessionID, c *WsSignalConn, data []byte) {
	req, ok := parseRequest(data)
	if !ok {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Msg("bad json")
		ctl.sendError(c, "bad_payload")
		return
	}
	ctl.Room.Dispatch(sid, req)
}

func parseRequest(data []byte) (core.Request, bool) {
	if !gjson.ValidBytes(data) {
		return core.Request{}, false
	}
	env := gjson.ParseBytes(data)
	typ := env.Get("type")
	if !env.IsObject() || typ.Type != gjson.String || typ.Str == "" {
		return core.Request{}, false
	}
	req := core.Request{Type: typ.Str}
	if ack := env.Get("ack"); ack.Exists() {
		// clients may use numeric ids
		req.Ack = ack.String()
	}
	if p := env.Get("payload"); p.Exists() {
		req.Payload = json.RawMessage(p.Raw)
	}
	return req, true
}

func (ctl *SignalWSController) sendError(c *WsSignalConn, msg string) {
	frame, err := core.Encode(core.OutError, core.ErrorReply{Error: msg})
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendError marshal")
		return
	}
	_ = c.TrySend(frame)
}

func tokenPayload(token string) json.RawMessage {
	b, _ := json.Marshal(core.TokenRequest{Token: token})
	return b
}
