// Package ws exposes the realtime session protocol over a WebSocket
// endpoint: one connection per browser tab, JSON envelopes in both
// directions.
package ws

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var ErrBackpressure = errors.New("backpressure")

// Conn wraps a websocket connection with a buffered send channel so a
// slow reader never blocks a broadcast.
type Conn struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	closed bool
}

func newConn(ws *websocket.Conn) *Conn {
	return &Conn{
		conn: ws,
		send: make(chan []byte, 64),
	}
}

// Send marshals an outbound event and queues it. A full send buffer
// drops the event rather than stalling the room.
func (c *Conn) Send(event any) error {
	b, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("marshal outbound event")
		return err
	}
	return c.TrySend(b)
}

func (c *Conn) TrySend(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- data:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *Conn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}
