// telemetry/hub.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package telemetry

import (
	"cmp"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mmp/aitraffic/log"
	"github.com/mmp/aitraffic/sim"

	"github.com/gorilla/websocket"
)

const (
	MessageAircraftUpdate  = "aircraft_update"
	MessageAircraftRemoved = "aircraft_removed"

	clientBufferSize = 256
	writeWait        = 10 * time.Second
)

// Message is what's sent to websocket clients.
type Message struct {
	Type     string              `json:"type"`
	Aircraft *sim.KinematicState `json:"aircraft,omitempty"`
	ID       sim.AircraftID      `json:"id,omitempty"`
}

type client struct {
	conn   *websocket.Conn
	send   chan Message
	closed bool
}

// Hub is a sim.KinematicSink that streams aircraft updates to websocket
// clients. Sends never block: clients that can't keep up are
// disconnected.
type Hub struct {
	mu       sync.Mutex
	clients  map[*client]struct{}
	latest   map[sim.AircraftID]sim.KinematicState
	upgrader websocket.Upgrader
	dropped  atomic.Int64
	lg       *log.Logger
}

func NewHub(lg *log.Logger) *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		latest:  make(map[sim.AircraftID]sim.KinematicState),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		lg: lg,
	}
}

func (h *Hub) UpdateAircraft(s sim.KinematicState) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest[s.ID] = s
	h.broadcast(Message{Type: MessageAircraftUpdate, Aircraft: &s})
}

func (h *Hub) RemoveAircraft(id sim.AircraftID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.latest, id)
	h.broadcast(Message{Type: MessageAircraftRemoved, ID: id})
}

// broadcast must be called with h.mu held.
func (h *Hub) broadcast(m Message) {
	for c := range h.clients {
		select {
		case c.send <- m:
		default:
			h.dropped.Add(1)
			h.lg.Warn("telemetry client too slow; disconnecting", slog.String("remote", c.remote()))
			h.unregister(c)
		}
	}
}

// unregister must be called with h.mu held.
func (h *Hub) unregister(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *client) remote() string {
	if c.conn == nil {
		return ""
	}
	return c.conn.RemoteAddr().String()
}

// Latest returns the most recent state of each aircraft, ordered by id.
func (h *Hub) Latest() []sim.KinematicState {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := slices.Collect(maps.Values(h.latest))
	slices.SortFunc(s, func(a, b sim.KinematicState) int { return cmp.Compare(a.ID, b.ID) })
	return s
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Dropped returns the number of messages that couldn't be delivered.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// ServeWS upgrades the connection and streams updates to it, starting
// with the current state of every aircraft.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.lg.Warn("websocket upgrade failed", slog.Any("error", err), slog.String("remote", r.RemoteAddr))
		return
	}

	c := &client{conn: conn, send: make(chan Message, clientBufferSize)}
	h.mu.Lock()
	for _, id := range slices.Sorted(maps.Keys(h.latest)) {
		s := h.latest[id]
		select {
		case c.send <- Message{Type: MessageAircraftUpdate, Aircraft: &s}:
		default:
		}
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.lg.Info("telemetry client connected", slog.String("remote", r.RemoteAddr))

	go h.writePump(c)
	go h.readPump(c)
}

// readPump discards anything the client sends; it's there to notice
// when the connection closes.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.mu.Lock()
		h.unregister(c)
		h.mu.Unlock()
		c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.lg.Warn("websocket read error", slog.Any("error", err))
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	defer c.conn.Close()

	for m := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(m); err != nil {
			h.lg.Info("websocket write failed", slog.Any("error", err))
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// Close disconnects all of the clients.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.unregister(c)
	}
}
