package httpapi

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// statusEvent is one message pushed to every connected operator: an
// execution outcome, or an emergency-stop flip.
type statusEvent struct {
	Type          string    `json:"type"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	OrderID       string    `json:"order_id,omitempty"`
	Status        string    `json:"status,omitempty"`
	Success       bool      `json:"success,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	At            time.Time `json:"at"`
}

// wsClient is one connected operator.
type wsClient struct {
	id   string
	send chan statusEvent
}

// statusBroadcaster fans status events out to every connected /ws/status
// client. Adapted from the teacher's internal/dashboard.Broadcaster:
// the same register/unregister/broadcast channel trio and non-blocking
// per-client send, generalized from metrics snapshots to execution events.
type statusBroadcaster struct {
	logger     *log.Logger
	mu         sync.RWMutex
	clients    map[*wsClient]bool
	broadcast  chan statusEvent
	register   chan *wsClient
	unregister chan *wsClient
	done       chan struct{}
}

func newStatusBroadcaster(logger *log.Logger) *statusBroadcaster {
	return &statusBroadcaster{
		logger:     logger,
		clients:    make(map[*wsClient]bool),
		broadcast:  make(chan statusEvent, 256),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		done:       make(chan struct{}),
	}
}

func (b *statusBroadcaster) run() {
	for {
		select {
		case c := <-b.register:
			b.mu.Lock()
			b.clients[c] = true
			b.mu.Unlock()

		case c := <-b.unregister:
			b.mu.Lock()
			if _, ok := b.clients[c]; ok {
				delete(b.clients, c)
				close(c.send)
			}
			b.mu.Unlock()

		case evt := <-b.broadcast:
			b.mu.RLock()
			clients := make([]*wsClient, 0, len(b.clients))
			for c := range b.clients {
				clients = append(clients, c)
			}
			b.mu.RUnlock()
			for _, c := range clients {
				select {
				case c.send <- evt:
				default:
					b.logger.Printf("[httpapi] ws client %s send buffer full, dropping event", c.id)
				}
			}

		case <-b.done:
			return
		}
	}
}

func (b *statusBroadcaster) publish(evt statusEvent) {
	select {
	case b.broadcast <- evt:
	case <-b.done:
	}
}

func (b *statusBroadcaster) shutdown() {
	close(b.done)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("[httpapi] ws upgrade failed: %v", err)
		return
	}

	client := &wsClient{id: r.RemoteAddr, send: make(chan statusEvent, 64)}
	s.events.register <- client
	defer func() { s.events.unregister <- client }()

	go s.wsWritePump(conn, client)
	s.wsReadPump(conn)
}

func (s *Server) wsWritePump(conn *websocket.Conn, client *wsClient) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case evt, ok := <-client.send:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// wsReadPump just drains the connection for ping/pong and disconnect
// detection; operators never send commands over this stream.
func (s *Server) wsReadPump(conn *websocket.Conn) {
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
