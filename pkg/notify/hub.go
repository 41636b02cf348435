// Package notify bridges engine notifications onto websockets, so companion
// UIs (detail panels, dashboards) can follow the viewer's selection without
// linking against the renderer.
package notify

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/climateviz/station-map/pkg/mapengine"
)

// Event is the JSON frame written to every connected client.
type Event struct {
	Type    string          `json:"type"` // "hover", "lock", "unlock", "ready"
	Station *StationPayload `json:"station,omitempty"`
}

// StationPayload is the subset of a station exposed over the wire.
type StationPayload struct {
	ID      string  `json:"id"`
	City    string  `json:"city"`
	Country string  `json:"country"`
	Class   string  `json:"class"`
	Lon     float64 `json:"lon"`
	Lat     float64 `json:"lat"`
}

func payloadFor(st *mapengine.Station) *StationPayload {
	if st == nil {
		return nil
	}
	return &StationPayload{
		ID:      st.ID,
		City:    st.City,
		Country: st.Country,
		Class:   st.Class,
		Lon:     st.Lon,
		Lat:     st.Lat,
	}
}

// Hub fans engine events out to websocket clients. It implements
// mapengine.Listener; the engine calls it synchronously on its tick, so
// every write carries a deadline and runs outside the client-set lock. A
// client that stops reading fails its next write once the deadline expires
// and is dropped.
type Hub struct {
	upgrader websocket.Upgrader

	// WriteWait bounds how long a single client write may stall the
	// broadcasting tick before the client is dropped.
	WriteWait time.Duration

	mu    sync.Mutex
	conns map[*websocket.Conn]bool
}

func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			// The companion UI runs on its own origin during development.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		WriteWait: 2 * time.Second,
		conns:     make(map[*websocket.Conn]bool),
	}
}

// ServeHTTP upgrades the request and keeps the connection registered until
// the client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("notify: upgrade failed: %v", err)
		return
	}
	h.mu.Lock()
	h.conns[conn] = true
	n := len(h.conns)
	h.mu.Unlock()
	log.Printf("notify: client connected (%d total)", n)

	// Drain the read side to notice disconnects; inbound frames are ignored.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.drop(conn)
				return
			}
		}
	}()
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.conns[conn]; ok {
		delete(h.conns, conn)
		if err := conn.Close(); err != nil {
			log.Printf("notify: error closing connection: %v", err)
		}
	}
	h.mu.Unlock()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

func (h *Hub) broadcast(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("notify: encoding event: %v", err)
		return
	}
	// Snapshot the client set; writes happen outside the lock so a stalled
	// client never wedges ServeHTTP or drop. The hub is the only writer per
	// connection (broadcasts all run on the engine tick), so unlocked writes
	// cannot interleave.
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for conn := range h.conns {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		if err := conn.SetWriteDeadline(time.Now().Add(h.WriteWait)); err != nil {
			h.drop(conn)
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.drop(conn)
		}
	}
}

func (h *Hub) HoverChanged(st *mapengine.Station) {
	h.broadcast(Event{Type: "hover", Station: payloadFor(st)})
}

func (h *Hub) SelectionLocked(st *mapengine.Station) {
	h.broadcast(Event{Type: "lock", Station: payloadFor(st)})
}

func (h *Hub) SelectionUnlocked() {
	h.broadcast(Event{Type: "unlock"})
}

func (h *Hub) DataReady() {
	h.broadcast(Event{Type: "ready"})
}
