package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	TypeSnapshot = "state.snapshot"
	TypeUpdated  = "state.updated"

	writeWait  = 10 * time.Second
	sendBuffer = 16
)

type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// wsClient is written to only by its own StateWS goroutine. The hub hands it
// updates through send and closes dropped when it falls behind.
type wsClient struct {
	conn     *websocket.Conn
	send     chan Message
	dropOnce sync.Once
	dropped  chan struct{}
}

func newClient(conn *websocket.Conn) *wsClient {
	return &wsClient{
		conn:    conn,
		send:    make(chan Message, sendBuffer),
		dropped: make(chan struct{}),
	}
}

func (c *wsClient) writeJSON(value any) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(value)
}

func (c *wsClient) ping() error {
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// offer queues msg without blocking. It reports false when the client's
// buffer is full.
func (c *wsClient) offer(msg Message) bool {
	select {
	case <-c.dropped:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *wsClient) drop() {
	c.dropOnce.Do(func() { close(c.dropped) })
}

// Hub fans state updates out to every connected UI.
type Hub struct {
	logger *zap.Logger

	mu   sync.RWMutex
	subs map[*wsClient]struct{}
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{logger: logger.Named("ws"), subs: make(map[*wsClient]struct{})}
}

func (h *Hub) subscribe(client *wsClient) (unsubscribe func()) {
	h.mu.Lock()
	h.subs[client] = struct{}{}
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.subs, client)
		h.mu.Unlock()
	}
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Broadcast queues data as a state.updated message for every client and
// never waits on the network. A client whose buffer is full is dropped; the
// UI reconnects and receives a fresh snapshot.
func (h *Hub) Broadcast(data any) {
	msg := Message{Type: TypeUpdated, Data: data}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.subs {
		if !c.offer(msg) {
			h.logger.Debug("dropping slow websocket client")
			c.drop()
			delete(h.subs, c)
		}
	}
}
