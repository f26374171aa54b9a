package ws

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"realtime-service/internal/models"
)

// Connection wraps a websocket conn with a write lock; gorilla/websocket
// allows only one concurrent writer. A fresh connection starts in the replay
// phase: live events are buffered until FlushReplay, so the peer always sees
// the catch-up batches before anything broadcast during the handshake.
type Connection struct {
	ws *websocket.Conn

	mu        sync.Mutex
	replaying bool
	pending   []models.StreamEvent
}

// NewConnection wraps an upgraded conn, buffering live events until
// FlushReplay is called.
func NewConnection(ws *websocket.Conn) *Connection {
	return &Connection{ws: ws, replaying: true}
}

// WriteEvent delivers a live event to the peer. During the replay phase the
// event is buffered instead, never lost.
func (c *Connection) WriteEvent(event models.StreamEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.replaying {
		c.pending = append(c.pending, event)
		return nil
	}
	return c.write(event)
}

// WriteReplay writes a catch-up batch, ahead of any buffered live events.
func (c *Connection) WriteReplay(event models.StreamEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.write(event)
}

// FlushReplay ends the replay phase and drains the events buffered during
// it. A message both replayed and broadcast reaches the peer twice; the
// client dedup layer drops the second copy.
func (c *Connection) FlushReplay() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replaying = false
	pending := c.pending
	c.pending = nil
	for _, event := range pending {
		if err := c.write(event); err != nil {
			return err
		}
	}
	return nil
}

func (c *Connection) write(event models.StreamEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

// ReadMessage blocks for the next frame from the peer.
func (c *Connection) ReadMessage() (int, []byte, error) {
	return c.ws.ReadMessage()
}

// Close closes the underlying conn.
func (c *Connection) Close() error {
	return c.ws.Close()
}
