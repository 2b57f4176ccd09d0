package realtime

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096

	// DefaultSendBuffer is the per-client queue length before a client is
	// considered too slow and dropped.
	DefaultSendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub fans events out to the websocket clients of this instance. Delivery
// is at-most-once: a client whose queue is full is disconnected.
type Hub struct {
	mu         sync.RWMutex
	clients    map[string]*Client
	sendBuffer int
	inbound    InboundHandler
}

// InboundHandler processes a frame written by a client.
type InboundHandler func(ctx context.Context, c *Client, data []byte) error

var _ Sink = (*Hub)(nil)

// Client is one websocket connection and its topic subscriptions.
type Client struct {
	ID     string
	Conn   *websocket.Conn
	Send   chan []byte
	topics map[string]struct{}

	closeOnce sync.Once
}

// NewHub creates a Hub. A non-positive sendBuffer uses DefaultSendBuffer.
func NewHub(sendBuffer int) *Hub {
	if sendBuffer <= 0 {
		sendBuffer = DefaultSendBuffer
	}
	return &Hub{
		clients:    make(map[string]*Client),
		sendBuffer: sendBuffer,
	}
}

// Name implements Sink.
func (h *Hub) Name() string { return "hub" }

// Send delivers event to every client subscribed to one of its topics.
func (h *Hub) Send(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	h.Broadcast(event.Topics(), data)
	return nil
}

// Broadcast queues message for clients subscribed to any of topics.
func (h *Hub) Broadcast(topics []string, message []byte) {
	var slow []*Client

	h.mu.RLock()
	for _, client := range h.clients {
		if !client.subscribed(topics) {
			continue
		}
		select {
		case client.Send <- message:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		log.Printf("[REALTIME] dropping slow client %s", client.ID)
		h.RemoveClient(client)
	}
}

// OnInbound sets the handler for client frames. Without one, inbound
// frames are discarded.
func (h *Hub) OnInbound(fn InboundHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.inbound = fn
}

// AddClient registers a client.
func (h *Hub) AddClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ID] = c
}

// RemoveClient unregisters a client and closes its queue and connection.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if existing, ok := h.clients[c.ID]; ok && existing == c {
		delete(h.clients, c.ID)
	}
	h.mu.Unlock()

	c.closeOnce.Do(func() {
		close(c.Send)
		if c.Conn != nil {
			_ = c.Conn.Close()
		}
	})
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// NewClient creates an unregistered client with the hub's buffer size.
func (h *Hub) NewClient(conn *websocket.Conn, topics []string) *Client {
	c := &Client{
		ID:     uuid.NewString(),
		Conn:   conn,
		Send:   make(chan []byte, h.sendBuffer),
		topics: make(map[string]struct{}, len(topics)),
	}
	for _, t := range topics {
		c.topics[t] = struct{}{}
	}
	return c
}

func (c *Client) subscribed(topics []string) bool {
	for _, t := range topics {
		if _, ok := c.topics[t]; ok {
			return true
		}
	}
	return false
}

// ServeWS upgrades the request and serves the connection until it closes.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, topics []string) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	client := h.NewClient(conn, topics)
	h.AddClient(client)
	log.Printf("[REALTIME] client %s connected topics=%v", client.ID, topics)

	go h.writePump(client)
	h.readPump(client)
	return nil
}

// readPump hands inbound frames to the inbound handler and keeps the pong
// deadline fresh.
func (h *Hub) readPump(c *Client) {
	defer h.RemoveClient(c)

	h.mu.RLock()
	inbound := h.inbound
	h.mu.RUnlock()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[REALTIME] client %s read error: %v", c.ID, err)
			}
			return
		}
		if inbound == nil {
			continue
		}
		if err := inbound(context.Background(), c, data); err != nil {
			log.Printf("[REALTIME] client %s frame rejected: %v", c.ID, err)
		}
	}
}

func (h *Hub) writePump(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		h.RemoveClient(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
