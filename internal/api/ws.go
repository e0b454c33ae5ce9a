package api

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"energy-monitor/internal/logging"
	"energy-monitor/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The dashboard is served from another origin in development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub fans freshly detected anomaly events out to dashboard websocket
// clients. It satisfies the ingestion pipeline's EventSink.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
	logger  *logging.Logger
}

// NewHub builds an empty hub.
func NewHub(logger *logging.Logger) *Hub {
	return &Hub{clients: make(map[*websocket.Conn]bool), logger: logger}
}

// Publish broadcasts one event to every connected client. Dead connections
// are dropped on write failure.
func (h *Hub) Publish(ev models.AnomalyEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.logger.Errorf("encode anomaly for websocket: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.logger.Warnf("drop websocket client: %v", err)
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

// Serve upgrades an HTTP request and registers the client until it closes.
func (h *Hub) Serve(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Errorf("websocket upgrade failed: %v", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	total := len(h.clients)
	h.mu.Unlock()
	h.logger.Infof("websocket client connected (total: %d)", total)

	// Drain reads so close frames are processed; the hub only pushes.
	go func() {
		defer func() {
			h.mu.Lock()
			delete(h.clients, conn)
			h.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
