package notify

import (
	"context"
	"net/http"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/yanun0323/logs"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub broadcasts events to connected websocket clients so operators can
// watch pipeline activity live. Slow consumers are dropped, never waited
// on.
type Hub struct {
	mu        sync.Mutex
	clients   map[*websocket.Conn]bool
	broadcast chan []byte
}

func NewHub() *Hub {
	return &Hub{
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan []byte, 256),
	}
}

type hubEvent struct {
	Severity string `json:"severity"`
	Category string `json:"category"`
	Message  string `json:"message"`
	At       string `json:"at"`
}

func (h *Hub) Notify(e Event) {
	payload, err := sonic.ConfigFastest.Marshal(hubEvent{
		Severity: e.Severity.String(),
		Category: e.Category,
		Message:  e.Message,
		At:       e.At.Format("2006-01-02T15:04:05Z07:00"),
	})
	if err != nil {
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		// full buffer means a stuck writer; drop rather than block a pipeline
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
					client.Close()
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Handler upgrades an HTTP request into a subscribed websocket client.
func (h *Hub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logs.Errorf("hub: upgrade, err: %+v", err)
			return
		}
		h.mu.Lock()
		h.clients[conn] = true
		h.mu.Unlock()
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		client.Close()
		delete(h.clients, client)
	}
}
