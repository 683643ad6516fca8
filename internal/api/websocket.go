package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"matchday/internal/config"
	"matchday/internal/match"
	"matchday/internal/metrics"
)

const (
	// BroadcastInterval is how often live matches are pushed to clients
	BroadcastInterval = 100 * time.Millisecond

	writeTimeout = 2 * time.Second
)

// LiveSource is what the hub needs from the match pool.
type LiveSource interface {
	Live() []uuid.UUID
	Snapshot(id uuid.UUID) (*match.Snapshot, bool)
}

// wsClient tracks a WebSocket connection, its source IP and the match it
// follows (uuid.Nil follows the score of every live match).
type wsClient struct {
	conn  *websocket.Conn
	ip    string
	match uuid.UUID
}

type wsMessage struct {
	match   uuid.UUID // uuid.Nil goes to every client
	payload []byte
}

// ScoreUpdate is the light message sent to clients following all matches.
type ScoreUpdate struct {
	ID     uuid.UUID     `json:"id"`
	Tick   uint64        `json:"tick"`
	Clock  time.Duration `json:"clock"`
	Period match.Period  `json:"period"`
	Score  match.Score   `json:"score"`
}

// WebSocketHub manages all WebSocket connections with DoS protection
type WebSocketHub struct {
	clients    map[*websocket.Conn]*wsClient
	broadcast  chan wsMessage
	register   chan *wsClient
	unregister chan *websocket.Conn
	stop       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex

	upgrader websocket.Upgrader
	origins  []string

	// Open or reserved feeds per client address, guarded by mu
	perIP    map[string]int
	reserved int
	maxPerIP int
	maxTotal int
}

// NewWebSocketHub creates a hub limited by the live feed settings of cfg.
// Browser origins other than localhost must be listed in cfg.CORSOrigins.
func NewWebSocketHub(cfg config.ServerConfig) *WebSocketHub {
	h := &WebSocketHub{
		clients:    make(map[*websocket.Conn]*wsClient),
		broadcast:  make(chan wsMessage, 256),
		register:   make(chan *wsClient),
		unregister: make(chan *websocket.Conn),
		stop:       make(chan struct{}),
		origins:    append([]string(nil), cfg.CORSOrigins...),
		perIP:      make(map[string]int),
		maxPerIP:   cfg.FeedsPerClient,
		maxTotal:   cfg.MaxFeeds,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *WebSocketHub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")

	// Non-browser clients send no Origin
	if origin == "" || originAllowed(origin, h.origins) {
		return true
	}

	log.Printf("⚠️ WebSocket connection rejected from origin: %s", origin)
	metrics.RecordConnectionRejected("origin")
	return false
}

// reserve takes a feed slot for ip. It reports the rejection reason when
// a limit is reached.
func (h *WebSocketHub) reserve(ip string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.reserved >= h.maxTotal {
		return "total limit reached", false
	}
	if h.perIP[ip] >= h.maxPerIP {
		return "per-client limit reached", false
	}
	h.perIP[ip]++
	h.reserved++
	return "", true
}

// release returns a feed slot. Callers hold mu.
func (h *WebSocketHub) release(ip string) {
	if h.perIP[ip] <= 1 {
		delete(h.perIP, ip)
	} else {
		h.perIP[ip]--
	}
	h.reserved--
}

func (h *WebSocketHub) releaseLocked(ip string) {
	h.mu.Lock()
	h.release(ip)
	h.mu.Unlock()
}

// Run starts the hub. It returns after Stop.
func (h *WebSocketHub) Run() {
	for {
		select {
		case <-h.stop:
			h.mu.Lock()
			for conn, client := range h.clients {
				h.release(client.ip)
				conn.Close()
				delete(h.clients, conn)
			}
			h.mu.Unlock()
			metrics.UpdateWSConnections(0)
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.conn] = client
			count := len(h.clients)
			h.mu.Unlock()

			log.Printf("📱 Client connected from %s (%d total)", client.ip, count)
			metrics.UpdateWSConnections(count)

		case conn := <-h.unregister:
			h.drop(conn)

		case msg := <-h.broadcast:
			h.mu.RLock()
			var failed []*websocket.Conn
			for conn, client := range h.clients {
				if msg.match != uuid.Nil && client.match != msg.match {
					continue
				}
				if msg.match == uuid.Nil && client.match != uuid.Nil {
					continue
				}
				conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteMessage(websocket.TextMessage, msg.payload); err != nil {
					failed = append(failed, conn)
				}
			}
			h.mu.RUnlock()

			for _, conn := range failed {
				h.drop(conn)
			}
			metrics.IncrementWSMessages()
		}
	}
}

func (h *WebSocketHub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	client, ok := h.clients[conn]
	if ok {
		h.release(client.ip)
		delete(h.clients, conn)
		conn.Close()
	}
	count := len(h.clients)
	h.mu.Unlock()

	if ok {
		log.Printf("📱 Client disconnected (%d remaining)", count)
		metrics.UpdateWSConnections(count)
	}
}

// Stop closes every connection and ends Run and the broadcast loop.
func (h *WebSocketHub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

// Broadcast queues an event for the followers of id, or for the followers
// of every match when id is uuid.Nil.
func (h *WebSocketHub) Broadcast(id uuid.UUID, event string, data interface{}) {
	msg := map[string]interface{}{
		"event": event,
		"data":  data,
	}

	jsonBytes, err := json.Marshal(msg)
	if err != nil {
		return
	}

	select {
	case h.broadcast <- wsMessage{match: id, payload: jsonBytes}:
	default:
		// Channel full, skip (backpressure)
	}
}

// ClientCount returns the number of connected clients
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// StartBroadcastLoop pushes every new snapshot of a live match to its
// followers and the score to everyone else.
func (h *WebSocketHub) StartBroadcastLoop(src LiveSource) {
	ticker := time.NewTicker(BroadcastInterval)

	go func() {
		defer ticker.Stop()
		sent := map[uuid.UUID]uint64{} // last broadcast snapshot sequence

		for {
			select {
			case <-h.stop:
				return
			case <-ticker.C:
			}
			if h.ClientCount() == 0 {
				continue
			}

			live := src.Live()
			seen := make(map[uuid.UUID]bool, len(live))
			for _, id := range live {
				seen[id] = true
				snap, ok := src.Snapshot(id)
				if !ok || snap == nil || sent[id] == snap.Sequence {
					continue
				}
				sent[id] = snap.Sequence

				h.Broadcast(id, "match:snapshot", snap)
				h.Broadcast(uuid.Nil, "match:score", ScoreUpdate{
					ID:     id,
					Tick:   snap.Tick,
					Clock:  snap.Clock,
					Period: snap.Period,
					Score:  snap.Score,
				})
			}
			for id := range sent {
				if !seen[id] {
					delete(sent, id)
				}
			}
		}
	}()
}

// HandleWebSocket handles incoming WebSocket connections with DoS protection.
// The optional "match" query parameter picks the match to follow.
func (h *WebSocketHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	follow := uuid.Nil
	if q := r.URL.Query().Get("match"); q != "" {
		id, err := uuid.Parse(q)
		if err != nil {
			writeError(w, "Invalid match id", http.StatusBadRequest)
			return
		}
		follow = id
	}
	h.serve(w, r, follow)
}

func (h *WebSocketHub) serve(w http.ResponseWriter, r *http.Request, follow uuid.UUID) {
	ip := clientIP(r)

	if why, ok := h.reserve(ip); !ok {
		log.Printf("⚠️ WebSocket connection rejected from %s: %s", ip, why)
		metrics.RecordConnectionRejected("ws_limit")
		http.Error(w, "Too many connections", http.StatusTooManyRequests)
		return
	}

	// Upgrade to WebSocket
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		h.releaseLocked(ip)
		return
	}

	// Register the connection
	client := &wsClient{conn: conn, ip: ip, match: follow}
	select {
	case h.register <- client:
	case <-h.stop:
		h.releaseLocked(ip)
		conn.Close()
		return
	}

	// Drain reads so control frames are handled; the feed is one-way.
	go func() {
		defer func() {
			select {
			case h.unregister <- conn:
			case <-h.stop:
			}
		}()

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
