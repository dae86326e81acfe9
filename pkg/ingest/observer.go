package ingest

import (
	"time"

	"github.com/gofiber/websocket/v2"
)

const (
	// writeWait is how long to wait for a write to complete
	writeWait = 10 * time.Second

	// pongWait is how long to wait for a pong response
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize is the maximum message size allowed
	maxMessageSize = 64 * 1024
)

// Observer represents a single dashboard websocket connection.
type Observer struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// NewObserver creates an observer and registers it with the hub.
func NewObserver(hub *Hub, conn *websocket.Conn) *Observer {
	obs := &Observer{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, 256), // Buffered channel for backpressure
	}
	hub.register <- obs
	return obs
}

// Run starts the observer's read and write pumps.
// This should be called in the websocket handler.
func (o *Observer) Run() {
	go o.writePump()
	o.readPump() // Blocks until connection closes
}

// readPump reads messages from the websocket connection.
// It keeps the connection alive and detects disconnection.
func (o *Observer) readPump() {
	defer func() {
		o.hub.unregister <- o
		o.conn.Close()
	}()

	o.conn.SetReadLimit(maxMessageSize)
	o.conn.SetReadDeadline(time.Now().Add(pongWait))
	o.conn.SetPongHandler(func(string) error {
		o.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		// Observers don't send messages, but we need to read
		// to detect disconnection and receive pong responses
		if _, _, err := o.conn.ReadMessage(); err != nil {
			break
		}
	}
}

// writePump writes messages to the websocket connection.
// Only this goroutine writes to the connection - no race conditions!
func (o *Observer) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		o.conn.Close()
	}()

	for {
		select {
		case message, ok := <-o.send:
			o.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel - send close frame
				o.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := o.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			o.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := o.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
