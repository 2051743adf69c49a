package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultPushInterval = time.Second
	wsWriteTimeout      = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The dashboard is served from arbitrary hosts in deployments.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWS upgrades the connection and streams the cache view on the
// configured cadence until the client disconnects or the server stops.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	s.logger.Debug("websocket client connected", "remote", r.RemoteAddr)

	s.wg.Add(1)
	go s.pushLoop(conn)

	// Reader detects client close; pushed-only feed, inbound is discarded.
	go func() {
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// pushLoop writes the current cache view to one client on a ticker.
func (s *Server) pushLoop(conn *websocket.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	interval := s.cfg.PushInterval
	if interval <= 0 {
		interval = defaultPushInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ctx := s.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	// First view immediately, then on the ticker.
	if err := s.writeView(conn); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			deadline := time.Now().Add(wsWriteTimeout)
			conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
				deadline,
			)
			return
		case <-ticker.C:
			if err := s.writeView(conn); err != nil {
				s.logger.Debug("websocket client gone", "error", err)
				return
			}
		}
	}
}

func (s *Server) writeView(conn *websocket.Conn) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(s.cache.Get())
}
