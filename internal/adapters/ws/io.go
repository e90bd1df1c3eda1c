package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/avdeck/cueroom/internal/app"
)

const writeDeadline = 5 * time.Second

func (ctl *Controller) writePump(ctx context.Context, c *Conn) {
	ticker := time.NewTicker(ctl.pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "ws").Msg("writePump ctx done")
			return
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Warn().Err(err).Str("module", "ws").Msg("writePump ping failed")
				return
			}
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
				log.Error().Err(err).Str("module", "ws").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "ws").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, conn app.ConnID, c *Conn) {
	defer func() {
		log.Info().Str("module", "ws").Str("conn", string(conn)).Msg("readPump closing")
		ctl.dispatcher.Disconnect(conn)
		c.Close()
	}()

	c.conn.SetReadLimit(ctl.readLimit)
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(2 * ctl.pingPeriod))
	})
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * ctl.pingPeriod))

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "ws").Str("conn", string(conn)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Warn().Err(err).Str("module", "ws").Str("conn", string(conn)).Msg("readPump read error")
				}
				return
			}
			ctl.handleMessage(ctx, conn, c, data)
		}
	}
}

// handleMessage routes one inbound envelope. The envelope is a flat
// JSON object carrying "type" next to the operation's own fields.
func (ctl *Controller) handleMessage(ctx context.Context, conn app.ConnID, c *Conn, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("bad json")
		return
	}

	switch env.Type {
	case app.MsgJoinProject:
		ctl.handleJoin(ctx, conn, c, data)
	case app.MsgLeaveProject:
		ctl.dispatcher.Leave(conn)
	case app.MsgCueCreate:
		var p app.CueCreatePayload
		if decode(c, data, &p) {
			ctl.dispatcher.CueCreate(ctx, conn, p)
		}
	case app.MsgCueUpdate:
		var p app.CueUpdatePayload
		if decode(c, data, &p) {
			ctl.dispatcher.CueUpdate(ctx, conn, p)
		}
	case app.MsgCueDelete:
		var p app.CueDeletePayload
		if decode(c, data, &p) {
			ctl.dispatcher.CueDelete(ctx, conn, p)
		}
	case app.MsgCueMove:
		var p app.CueMovePayload
		if decode(c, data, &p) {
			ctl.dispatcher.CueMove(ctx, conn, p)
		}
	case app.MsgTrackCreate:
		var p app.TrackCreatePayload
		if decode(c, data, &p) {
			ctl.dispatcher.TrackCreate(ctx, conn, p)
		}
	case app.MsgTrackUpdate:
		var p app.TrackUpdatePayload
		if decode(c, data, &p) {
			ctl.dispatcher.TrackUpdate(ctx, conn, p)
		}
	case app.MsgTrackDelete:
		var p app.TrackDeletePayload
		if decode(c, data, &p) {
			ctl.dispatcher.TrackDelete(ctx, conn, p)
		}
	case app.MsgSettingsUpdate:
		var p app.SettingsUpdatePayload
		if decode(c, data, &p) {
			ctl.dispatcher.SettingsUpdate(ctx, conn, p)
		}
	case app.MsgCursorPosition:
		var p app.CursorPayload
		if json.Unmarshal(data, &p) == nil {
			ctl.dispatcher.Cursor(conn, p)
		}
	default:
		log.Warn().Str("module", "ws").Str("type", env.Type).Msg("unknown message type")
	}
}

func (ctl *Controller) handleJoin(ctx context.Context, conn app.ConnID, c *Conn, data []byte) {
	var p app.JoinPayload
	if !decode(c, data, &p) {
		return
	}
	userID, _, ok := ctl.dispatcher.Identity(conn)
	if !ok {
		return
	}
	if !ctl.joinLimiter.Allow(userID) {
		log.Warn().Str("module", "ws").Str("user", userID).Msg("join rate limited")
		return
	}
	ctl.dispatcher.Join(ctx, conn, p)
}

func decode(c *Conn, data []byte, v any) bool {
	if err := json.Unmarshal(data, v); err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("bad payload")
		_ = c.Send(struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		}{Type: "error", Message: "Invalid payload"})
		return false
	}
	return true
}
