package httpapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsConn adapts a websocket connection to the hub's Conn interface.
// gorilla allows at most one concurrent writer per connection, so writes
// are serialized behind a mutex.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) Send(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, []byte(text))
}

func (s *Server) handleClientWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	id := uuid.NewString()
	s.hub.AddClient(id, &wsConn{conn: conn})
	defer s.hub.RemoveClient(id)

	s.logger.Info("client connected", "client", id, "remote", r.RemoteAddr)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Warn("client read error", "client", id, "error", err)
			}
			s.logger.Info("client disconnected", "client", id)
			return
		}
		s.hub.HandleClientFrame(string(data))
	}
}

func (s *Server) handleDeviceWS(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "device", deviceID, "error", err)
		return
	}
	defer conn.Close()

	s.hub.AddDevice(deviceID, &wsConn{conn: conn})
	defer s.hub.RemoveDevice(deviceID)

	s.logger.Info("device connected", "device", deviceID, "remote", r.RemoteAddr)

	if s.repo != nil {
		if err := s.repo.Touch(r.Context(), deviceID, time.Now()); err != nil {
			s.logger.Warn("updating last seen", "device", deviceID, "error", err)
		}
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Warn("device read error", "device", deviceID, "error", err)
			}
			s.logger.Info("device disconnected", "device", deviceID)
			return
		}
		// Status lines from firmware have no required grammar; log only.
		s.logger.Info("device status", "device", deviceID, "message", string(data))
	}
}
