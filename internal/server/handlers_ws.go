package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/CoreyFoshee/thatsamorepizza/internal/metrics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Displays live on the local network behind varying hostnames
	},
}

const snapshotEvent = "display-snapshot"

type wsEnvelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

func (s *Server) handleDisplayWS(c echo.Context) error {
	ip := c.RealIP()

	allowed, reason := s.limits.Acquire(ip)
	if !allowed {
		metrics.DisplayConnectionsRejected.WithLabelValues(string(reason)).Inc()
		slog.Warn("Display connection rejected", "remote_ip", ip, "reason", string(reason))
		return c.String(http.StatusServiceUnavailable, "too many connections")
	}
	defer s.limits.Release(ip)

	// Build the snapshot before upgrading so a store outage still
	// produces a clean HTTP error instead of a dead socket.
	snapshot, err := s.app.Snapshot(c.Request().Context())
	if err != nil {
		return err
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade WebSocket: %w", err)
	}

	payload, err := json.Marshal(wsEnvelope{Event: snapshotEvent, Data: snapshot})
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		conn.Close()
		return nil
	}

	if err := s.hub.Register(conn); err != nil {
		slog.Warn("Display registration rejected", "remote_ip", ip, "error", err)
		return nil
	}

	// Read pump. Displays never send application messages; this just
	// notices the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.hub.Unregister(conn)

	return nil
}
