package websocket

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/CoreyFoshee/thatsamorepizza/internal/metrics"
)

// DefaultMaxClients caps the number of simultaneously connected displays.
const DefaultMaxClients = 50

const (
	writeDeadline = 5 * time.Second
	pingInterval  = 30 * time.Second
	pongDeadline  = 60 * time.Second
)

// --- Command types ---

type hubCmd interface{ hubCmd() }

type cmdRegister struct {
	conn  *websocket.Conn
	errCh chan error
}

func (cmdRegister) hubCmd() {}

type cmdUnregister struct {
	conn *websocket.Conn
}

func (cmdUnregister) hubCmd() {}

type cmdBroadcast struct {
	data []byte
}

func (cmdBroadcast) hubCmd() {}

type cmdCount struct {
	replyCh chan int
}

func (cmdCount) hubCmd() {}

type cmdStop struct{}

func (cmdStop) hubCmd() {}

// --- Per-connection writer ---

type clientWriter struct {
	conn   *websocket.Conn
	ticker clockwork.Ticker
	sendCh chan []byte
	done   chan struct{}
}

func newClientWriter(conn *websocket.Conn, clock clockwork.Clock) *clientWriter {
	cw := &clientWriter{
		conn:   conn,
		ticker: clock.NewTicker(pingInterval),
		sendCh: make(chan []byte, 16),
		done:   make(chan struct{}),
	}

	// A display only ever answers pings. The read deadline makes a TV
	// that vanished without a close frame fail out of its read pump
	// instead of holding its slot forever; each pong pushes it back.
	cw.conn.SetReadDeadline(time.Now().Add(pongDeadline))
	cw.conn.SetPongHandler(func(string) error {
		return cw.conn.SetReadDeadline(time.Now().Add(pongDeadline))
	})

	go cw.run()
	return cw
}

func (cw *clientWriter) run() {
	defer cw.ticker.Stop()

	for {
		select {
		case msg, ok := <-cw.sendCh:
			if !ok {
				return
			}
			cw.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := cw.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				cw.conn.Close()
				return
			}
		case <-cw.ticker.Chan():
			cw.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := cw.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				metrics.DisplayPingFailures.Inc()
				cw.conn.Close()
				return
			}
		case <-cw.done:
			return
		}
	}
}

func (cw *clientWriter) stop() {
	close(cw.done)
	cw.conn.Close()
}

// --- Hub ---

// Hub fans display events out to every connected TV client. All state is
// owned by a single goroutine fed through a command channel, so no locks
// are needed. A client whose send buffer fills up is evicted rather than
// allowed to stall the broadcast.
type Hub struct {
	cmdCh      chan hubCmd
	clients    map[*websocket.Conn]*clientWriter
	maxClients int
	clock      clockwork.Clock
}

// NewHub creates a running hub. maxClients <= 0 uses DefaultMaxClients;
// a nil clock uses the real one. The clock drives the keepalive pings.
func NewHub(maxClients int, clock clockwork.Clock) *Hub {
	if maxClients <= 0 {
		maxClients = DefaultMaxClients
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	hub := &Hub{
		cmdCh:      make(chan hubCmd, 256),
		clients:    make(map[*websocket.Conn]*clientWriter),
		maxClients: maxClients,
		clock:      clock,
	}
	go hub.run()
	return hub
}

func (h *Hub) run() {
	for cmd := range h.cmdCh {
		switch c := cmd.(type) {
		case cmdRegister:
			h.handleRegister(c)
		case cmdUnregister:
			h.handleUnregister(c.conn)
		case cmdBroadcast:
			h.handleBroadcast(c.data)
		case cmdCount:
			c.replyCh <- len(h.clients)
		case cmdStop:
			h.handleStop()
			return
		}
	}
}

func (h *Hub) handleRegister(c cmdRegister) {
	if len(h.clients) >= h.maxClients {
		slog.Warn("Rejecting display client: max clients reached", "max", h.maxClients)
		metrics.DisplayConnectionsRejected.WithLabelValues("hub_full").Inc()
		c.conn.Close()
		c.errCh <- fmt.Errorf("max display clients (%d) reached", h.maxClients)
		return
	}

	h.clients[c.conn] = newClientWriter(c.conn, h.clock)
	metrics.DisplayClients.Set(float64(len(h.clients)))
	slog.Debug("Display client registered", "total", len(h.clients))
	c.errCh <- nil
}

func (h *Hub) handleUnregister(conn *websocket.Conn) {
	cw, exists := h.clients[conn]
	if !exists {
		return
	}

	cw.stop()
	delete(h.clients, conn)
	metrics.DisplayClients.Set(float64(len(h.clients)))
	slog.Debug("Display client unregistered", "remaining", len(h.clients))
}

func (h *Hub) handleBroadcast(data []byte) {
	var slow []*websocket.Conn
	for conn, cw := range h.clients {
		select {
		case cw.sendCh <- data:
			// sent successfully
		default:
			// client is slow, mark for removal
			slow = append(slow, conn)
		}
	}

	for _, conn := range slow {
		slog.Warn("Disconnecting slow display client")
		metrics.DisplaySlowClientsEvicted.Inc()
		h.handleUnregister(conn)
	}
}

func (h *Hub) handleStop() {
	for conn, cw := range h.clients {
		cw.stop()
		delete(h.clients, conn)
	}
	metrics.DisplayClients.Set(0)
}

// --- Public API ---

// Register adds a connection to the broadcast audience. The connection is
// closed and an error returned when the hub is full.
func (h *Hub) Register(conn *websocket.Conn) error {
	errCh := make(chan error, 1)
	h.cmdCh <- cmdRegister{conn: conn, errCh: errCh}
	return <-errCh
}

// Unregister removes a connection and stops its writer.
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.cmdCh <- cmdUnregister{conn: conn}
}

// Broadcast sends data to every connected client. Slow clients are evicted.
func (h *Hub) Broadcast(data []byte) {
	h.cmdCh <- cmdBroadcast{data: data}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	replyCh := make(chan int, 1)
	h.cmdCh <- cmdCount{replyCh: replyCh}
	return <-replyCh
}

// Stop disconnects every client and shuts the hub down.
func (h *Hub) Stop() {
	h.cmdCh <- cmdStop{}
}
