package bridge

import (
	log "log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"pawvox/internal/convo"
	"pawvox/internal/metrics"
	"pawvox/pkg/protocol"
	"pawvox/pkg/voice"
)

const (
	sendBuffer   = 16
	writeTimeout = 10 * time.Second
)

type peer struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub replicates the active pet and data changes to every connected
// websocket client. A client's active_pet frame updates the store and is
// relayed to the other clients.
type Hub struct {
	origin   string
	store    *convo.Store
	upgrader websocket.Upgrader

	mu    sync.Mutex
	peers map[*peer]struct{}
}

func NewHub(store *convo.Store) *Hub {
	return &Hub{
		origin: "hub-" + uuid.NewString(),
		store:  store,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		peers: make(map[*peer]struct{}),
	}
}

func (h *Hub) Origin() string { return h.origin }

// Attach forwards the manager's pet selections and data changes to the
// clients. The returned func detaches.
func (h *Hub) Attach(m *Manager) func() {
	offEvents := m.OnDashboardEvent(func(e DashboardEvent) {
		if e.Kind == EventPetSelection {
			h.Broadcast(protocol.ActivePet(h.origin, e.Pet))
		}
	})
	offChanges := m.OnDataChange(func(c voice.DataChange) {
		h.Broadcast(protocol.DataChange(h.origin, c))
	})
	return func() {
		offEvents()
		offChanges()
	}
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

// Broadcast sends msg to every client. A client whose buffer is full misses
// the frame.
func (h *Hub) Broadcast(msg protocol.Message) { h.broadcast(msg, nil) }

func (h *Hub) broadcast(msg protocol.Message, except *peer) {
	raw, err := msg.Bytes()
	if err != nil {
		log.Error("Failed to encode sync frame", "err", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for p := range h.peers {
		if p == except {
			continue
		}
		select {
		case p.send <- raw:
		default:
			log.Warn("Sync client is lagging, dropping frame", "kind", msg.Kind)
		}
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("Failed to upgrade sync connection", "err", err)
		return
	}
	p := &peer{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	h.peers[p] = struct{}{}
	metrics.SyncClients.Set(float64(len(h.peers)))
	h.mu.Unlock()
	log.Debug("Sync client connected", "remote", r.RemoteAddr)

	go h.writeLoop(p)
	h.readLoop(p)
}

func (h *Hub) readLoop(p *peer) {
	defer func() {
		h.mu.Lock()
		delete(h.peers, p)
		metrics.SyncClients.Set(float64(len(h.peers)))
		h.mu.Unlock()
		close(p.send)
		p.conn.Close()
	}()

	for {
		_, raw, err := p.conn.ReadMessage()
		if err != nil {
			if !protocol.WsIsClosed(err) {
				log.Debug("Sync client read failed", "err", err)
			}
			return
		}
		msg, err := protocol.Parse(raw)
		if err != nil {
			log.Warn("Dropping bad sync frame", "err", err)
			continue
		}
		if msg.Kind == protocol.KindActivePet {
			h.store.SetActivePet(msg.Pet)
			h.broadcast(*msg, p)
		}
	}
}

func (h *Hub) writeLoop(p *peer) {
	for raw := range p.send {
		p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := p.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
			log.Debug("Sync client write failed", "err", err)
			p.conn.Close()
			return
		}
	}
}
