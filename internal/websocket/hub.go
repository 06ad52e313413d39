// Package websocket broadcasts live-reload messages to connected browsers.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/weft/pkg/logging"
)

const (
	sendBuffer   = 16
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

// Message is sent to browsers as JSON.
type Message struct {
	Type      string    `json:"type"`
	Target    string    `json:"target,omitempty"`
	Content   string    `json:"content,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Message types.
const (
	TypeReload  = "reload"
	TypeError   = "error"
	TypeRemoved = "removed"
)

// Hub tracks connected clients and fans messages out to them. A client
// whose send buffer is full is disconnected.
type Hub struct {
	clients map[*client]struct{}
	mu      sync.RWMutex

	broadcast  chan []byte
	register   chan *client
	unregister chan *client

	originPatterns []string
	logger         logging.Logger

	ctx          context.Context
	cancel       context.CancelFunc
	done         chan struct{}
	shutdownOnce sync.Once
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub starts a hub. originPatterns are passed to the websocket
// handshake; with none, only same-host origins are accepted.
func NewHub(logger logging.Logger, originPatterns ...string) *Hub {
	if logger == nil {
		logger = logging.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	h := &Hub{
		clients:        make(map[*client]struct{}),
		broadcast:      make(chan []byte, 64),
		register:       make(chan *client),
		unregister:     make(chan *client),
		originPatterns: originPatterns,
		logger:         logger.WithComponent("websocket"),
		ctx:            ctx,
		cancel:         cancel,
		done:           make(chan struct{}),
	}
	go h.run()

	return h
}

// ServeHTTP upgrades the request and serves the connection until the
// browser goes away or the hub shuts down.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.ctx.Err() != nil {
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  h.originPatterns,
		CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		h.logger.Warn(r.Context(), err, "WebSocket upgrade failed", "remote", r.RemoteAddr)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	select {
	case h.register <- c:
	case <-h.ctx.Done():
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}

	// Browsers never send; CloseRead handles control frames and cancels
	// ctx when the connection closes. It must outlive the hub's context so
	// shutdown can still send a close frame.
	ctx := conn.CloseRead(context.Background())
	h.write(ctx, c)

	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) write(ctx context.Context, c *client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				_ = c.conn.Close(websocket.StatusPolicyViolation, "client too slow")
				return
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Write(wctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				h.logger.Debug(ctx, "WebSocket write failed", "error", err)
				return
			}
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Ping(pctx)
			cancel()
			if err != nil {
				return
			}
		case <-h.ctx.Done():
			_ = c.conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) run() {
	defer close(h.done)

	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug(h.ctx, "WebSocket client connected", "clients", n)

		case c := <-h.unregister:
			h.remove(c)

		case message := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- message:
				default:
					delete(h.clients, c)
					close(c.send)
				}
			}
			h.mu.Unlock()

		case <-h.ctx.Done():
			return
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Broadcast queues msg for every connected client. It never blocks; when
// the queue is full the message is dropped.
func (h *Hub) Broadcast(msg Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error(h.ctx, err, "Encoding broadcast failed")
		return
	}

	select {
	case h.broadcast <- data:
	case <-h.ctx.Done():
	default:
		h.logger.Warn(h.ctx, nil, "Broadcast queue full, dropping message", "type", msg.Type)
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

// Shutdown disconnects every client and stops the hub.
func (h *Hub) Shutdown() {
	h.shutdownOnce.Do(func() {
		h.cancel()
		<-h.done
	})
}
