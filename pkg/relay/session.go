package relay

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/rs/zerolog/log"
)

// Conn is the part of a websocket connection the hub needs
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(deadline time.Time) error
}

// readLimiter is implemented by websocket connections that can cap inbound frames
type readLimiter interface {
	SetReadLimit(limit int64)
}

// Session is one authenticated subscriber and its room membership
type Session struct {
	ID          string    `json:"id"`
	Room        string    `json:"room"`
	Subject     string    `json:"subject"`
	Role        string    `json:"role,omitempty"`
	ConnectedAt time.Time `json:"connectedAt"`

	conn         Conn
	queue        *sendQueue
	writeTimeout time.Duration
	done         chan struct{}
}

// Send queues a frame without blocking
func (s *Session) Send(frame []byte) {
	if s.queue.push(frame) {
		log.Debug().Str("session", s.ID).Str("room", s.Room).Msg("Send queue full, dropped oldest frame")
	}
}

func (s *Session) Dropped() int {
	return s.queue.droppedCount()
}

func (s *Session) writeLoop() {
	defer close(s.done)

	for {
		frame, ok := s.queue.next()
		if !ok {
			return
		}

		if s.writeTimeout > 0 {
			s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
		}

		if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			log.Debug().Err(err).Str("session", s.ID).Msg("Write failed")

			// Keep draining so pushes never pile up behind a dead connection
			for {
				if _, ok := s.queue.next(); !ok {
					return
				}
			}
		}
	}
}
