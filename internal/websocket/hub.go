package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/weft/internal/logging"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Send pings to peer with this period.
	pingPeriod = 54 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

// Hub tracks connected reload clients and fans broadcasts out to them. A
// single goroutine owns registration and delivery, so a client's send channel
// is only ever written and closed from there.
type Hub struct {
	clients      map[*websocket.Conn]*Client
	clientsMutex sync.RWMutex

	broadcast  chan []byte
	register   chan *Client
	unregister chan *websocket.Conn

	originValidator OriginValidator
	logger          logging.Logger

	ctx          context.Context
	cancel       context.CancelFunc
	shutdownOnce sync.Once
}

// NewHub creates a hub and starts its goroutine.
func NewHub(originValidator OriginValidator, logger logging.Logger) *Hub {
	if originValidator == nil {
		originValidator = NewAllowList(nil)
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		clients:         make(map[*websocket.Conn]*Client),
		broadcast:       make(chan []byte, 256),
		register:        make(chan *Client, 32),
		unregister:      make(chan *websocket.Conn, 32),
		originValidator: originValidator,
		logger:          logger.WithComponent("websocket"),
		ctx:             ctx,
		cancel:          cancel,
	}

	go h.run()
	return h
}

// ServeHTTP upgrades the request and registers the connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.ctx.Err() != nil {
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}

	origin := r.Header.Get("Origin")
	if !h.originValidator.IsAllowedOrigin(origin) {
		h.logger.Warn(r.Context(), nil, "WebSocket connection rejected", "origin", origin, "remote", r.RemoteAddr)
		http.Error(w, "Origin not allowed", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Origin was validated above.
		OriginPatterns:  []string{"*"},
		CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		h.logger.Warn(r.Context(), err, "WebSocket upgrade failed", "remote", r.RemoteAddr)
		return
	}
	conn.SetReadLimit(maxMessageSize)

	client := &Client{
		conn:   conn,
		send:   make(chan []byte, 256),
		remote: r.RemoteAddr,
	}

	select {
	case h.register <- client:
	case <-h.ctx.Done():
		_ = conn.Close(websocket.StatusServiceRestart, "Server shutting down")
		return
	}

	go h.writeToClient(client)
	h.readFromClient(client)
}

func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.clientsMutex.Lock()
			h.clients[client.conn] = client
			total := len(h.clients)
			h.clientsMutex.Unlock()
			h.logger.Debug(h.ctx, "WebSocket client connected", "remote", client.remote, "clients", total)

		case conn := <-h.unregister:
			h.clientsMutex.Lock()
			client, exists := h.clients[conn]
			if exists {
				delete(h.clients, conn)
				close(client.send)
			}
			total := len(h.clients)
			h.clientsMutex.Unlock()
			if exists {
				h.logger.Debug(h.ctx, "WebSocket client disconnected", "remote", client.remote, "clients", total)
			}

		case message := <-h.broadcast:
			h.clientsMutex.RLock()
			for conn, client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow client; drop it rather than stall every other page.
					go h.drop(conn)
				}
			}
			h.clientsMutex.RUnlock()

		case <-h.ctx.Done():
			return
		}
	}
}

func (h *Hub) drop(conn *websocket.Conn) {
	select {
	case h.unregister <- conn:
	case <-h.ctx.Done():
	}
}

// readFromClient blocks until the peer goes away. Browsers never send
// anything, but reading is what processes pongs and close frames.
func (h *Hub) readFromClient(client *Client) {
	defer h.drop(client.conn)

	for {
		_, _, err := client.conn.Read(h.ctx)
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure &&
				websocket.CloseStatus(err) != websocket.StatusGoingAway &&
				h.ctx.Err() == nil {
				h.logger.Debug(h.ctx, "WebSocket read ended", "remote", client.remote, "error", err.Error())
			}
			return
		}
	}
}

func (h *Hub) writeToClient(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer client.conn.Close(websocket.StatusNormalClosure, "")

	for {
		select {
		case message, ok := <-client.send:
			if !ok {
				return
			}
			ctx, cancel := context.WithTimeout(h.ctx, writeWait)
			err := client.conn.Write(ctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				h.logger.Debug(h.ctx, "WebSocket write failed", "remote", client.remote, "error", err.Error())
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(h.ctx, writeWait)
			err := client.conn.Ping(ctx)
			cancel()
			if err != nil {
				return
			}

		case <-h.ctx.Done():
			return
		}
	}
}

// Broadcast sends message to every connected client. It never blocks; when
// the queue is full or the hub is shut down the message is dropped and
// Broadcast reports false.
func (h *Hub) Broadcast(message UpdateMessage) bool {
	if h.ctx.Err() != nil {
		return false
	}
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error(h.ctx, err, "Failed to marshal broadcast message")
		return false
	}

	select {
	case h.broadcast <- data:
		return true
	default:
		h.logger.Warn(h.ctx, nil, "Broadcast queue full, dropping message", "type", message.Type)
		return false
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.clientsMutex.RLock()
	defer h.clientsMutex.RUnlock()
	return len(h.clients)
}

// Shutdown closes every connection and stops the hub. Safe to call twice.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.shutdownOnce.Do(func() {
		h.cancel()

		h.clientsMutex.Lock()
		for conn := range h.clients {
			_ = conn.Close(websocket.StatusGoingAway, "Server shutdown")
		}
		h.clients = make(map[*websocket.Conn]*Client)
		h.clientsMutex.Unlock()
	})
	return ctx.Err()
}
