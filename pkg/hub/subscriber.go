package hub

import (
	"time"

	"github.com/gofiber/websocket/v2"
)

const (
	// writeWait is how long to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is how long to wait for a pong response.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize bounds inbound messages; subscribers only send pongs.
	maxMessageSize = 1024
)

// Subscriber is a single websocket connection attached to a hub.
type Subscriber struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// NewSubscriber registers a websocket connection with the hub.
func NewSubscriber(h *Hub, conn *websocket.Conn) *Subscriber {
	sub := &Subscriber{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 64),
	}
	h.register <- sub
	return sub
}

// Run starts the subscriber's read and write pumps. Call it from the
// websocket handler; it blocks until the connection closes.
func (s *Subscriber) Run() {
	go s.writePump()
	s.readPump()
}

// readPump drains the connection to detect disconnection and service pongs.
func (s *Subscriber) readPump() {
	defer func() {
		// The hub may already be stopped; don't block on unregister.
		select {
		case s.hub.unregister <- s:
		case <-s.hub.stop:
		}
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump is the only goroutine that writes to the connection.
func (s *Subscriber) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
