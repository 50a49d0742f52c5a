package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"tangled.sh/cuesheet/hub"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 64 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Events upgrades to a websocket and attaches the connection to the hub
// until either side goes away.
func (s *Server) Events(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	l := s.l.With("handler", "Events", "client", id)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.Error("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()
	l.Info("client connected", "remote", r.RemoteAddr)

	c := hub.NewClient(id, hub.DefaultClientBuffer)
	if err := s.hub.Join(c); err != nil {
		l.Error("failed to join", "err", err)
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.readPump(conn, id)
	}()

	s.writePump(conn, c)

	// the write side ended first: unblock the reader and wait for it
	conn.Close()
	<-done
	if err := s.hub.Leave(id); err != nil {
		l.Debug("hub already stopped", "err", err)
	}
	l.Info("client disconnected")
}

func (s *Server) readPump(conn *websocket.Conn, id string) {
	defer func() {
		// leaving closes the outbox, which ends the write pump
		s.hub.Leave(id)
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		typ, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.l.Warn("failed to read", "client", id, "err", err)
			}
			return
		}
		if typ != websocket.TextMessage {
			continue
		}
		if err := s.hub.Handle(id, msg); err != nil {
			return
		}
	}
}

func (s *Server) writePump(conn *websocket.Conn, c *hub.Client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.Outbox():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.l.Warn("failed to write", "client", c.ID, "err", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeWait)); err != nil {
				s.l.Warn("failed to write control", "client", c.ID, "err", err)
				return
			}
		}
	}
}
