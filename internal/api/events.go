package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Event types pushed to the browser
const (
	EventNotification   = "notification"
	EventLoading        = "loading"
	EventSessionWarning = "session_warning"
	EventRedirect       = "redirect"
	EventPing           = "ping"
)

// Message types from the browser
const (
	MessageActivity = "activity"
	MessagePong     = "pong"
)

const writeWait = 10 * time.Second

// Event is one message on the websocket stream.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Hub fans console events out to every open browser tab
type Hub struct {
	pingInterval time.Duration
	upgrader     websocket.Upgrader

	mu        sync.Mutex
	clients   map[*wsClient]struct{}
	closed    bool
	onMessage func(Event)
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *wsClient) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// NewHub creates a hub that pings its clients every pingInterval.
func NewHub(pingInterval time.Duration) *Hub {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &Hub{
		pingInterval: pingInterval,
		clients:      make(map[*wsClient]struct{}),
	}
}

// OnMessage sets the handler for messages sent by the browser.
func (h *Hub) OnMessage(fn func(Event)) {
	h.mu.Lock()
	h.onMessage = fn
	h.mu.Unlock()
}

// Clients returns the number of connected tabs.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast queues an event for every client. Slow clients drop events
// rather than block the caller.
func (h *Hub) Broadcast(eventType string, data any) {
	msg, err := json.Marshal(Event{Type: eventType, Data: data})
	if err != nil {
		log.Printf("ERROR: Failed to marshal %s event: %v", eventType, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			log.Printf("WARN: Send channel full, dropping %s event", eventType)
		}
	}
}

// ServeWS upgrades the request and runs the client until it disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WARN: WebSocket upgrade failed: %v", err)
		return
	}

	c := &wsClient{
		conn: conn,
		send: make(chan []byte, 16),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		c.close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		h.readLoop(c)
	}()
	go func() {
		defer wg.Done()
		h.writeLoop(c)
	}()
	wg.Wait()

	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

func (h *Hub) readLoop(c *wsClient) {
	defer c.close()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WARN: WebSocket read error: %v", err)
			}
			return
		}

		var msg Event
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("WARN: Failed to parse browser message: %v", err)
			continue
		}
		if msg.Type == MessagePong {
			continue
		}

		h.mu.Lock()
		fn := h.onMessage
		h.mu.Unlock()
		if fn != nil {
			fn(msg)
		}
	}
}

func (h *Hub) writeLoop(c *wsClient) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()
	defer c.close()

	ping, _ := json.Marshal(Event{Type: EventPing})
	for {
		var msg []byte
		select {
		case <-c.done:
			return
		case msg = <-c.send:
		case <-ticker.C:
			msg = ping
		}

		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			log.Printf("WARN: WebSocket write error: %v", err)
			return
		}
	}
}
