package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/insights/internal/logging"
	"github.com/GriffinCanCode/insights/internal/monitoring"
	"github.com/GriffinCanCode/insights/internal/telemetry"
)

const (
	writeWait      = 10 * time.Second
	subscriberSend = 64
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // development collector
	},
}

// Hub broadcasts accepted envelopes to live-tail websocket subscribers.
// Slow subscribers miss batches rather than block ingestion.
type Hub struct {
	logger  *logging.Logger
	metrics *monitoring.Metrics

	mu          sync.Mutex
	subscribers map[*subscriber]struct{}
	closed      bool
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.send) })
}

// NewHub creates an empty hub.
func NewHub(logger *logging.Logger, metrics *monitoring.Metrics) *Hub {
	return &Hub{
		logger:      logger.Named("live"),
		metrics:     metrics,
		subscribers: make(map[*subscriber]struct{}),
	}
}

// Accept implements Sink by broadcasting the batch as one JSON array.
func (h *Hub) Accept(envelopes []telemetry.Envelope) {
	if len(envelopes) == 0 {
		return
	}
	data, err := sonic.Marshal(envelopes)
	if err != nil {
		h.logger.Warn("Failed to encode live batch", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subscribers {
		select {
		case sub.send <- data:
		default:
			h.logger.Debug("Dropping batch for slow subscriber")
		}
	}
}

// Subscribers returns the number of connected subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// ServeWS upgrades the request and streams batches until the client leaves.
func (h *Hub) ServeWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	sub := &subscriber{conn: conn, send: make(chan []byte, subscriberSend)}
	if !h.register(sub) {
		conn.Close()
		return
	}
	defer h.unregister(sub)

	go h.writeLoop(sub)

	// Reads only detect the client going away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(sub *subscriber) {
	defer sub.conn.Close()
	for data := range sub.send {
		sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := sub.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
	sub.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (h *Hub) register(sub *subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.subscribers[sub] = struct{}{}
	if h.metrics != nil {
		h.metrics.LiveSubscribers.Inc()
	}
	return true
}

func (h *Hub) unregister(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subscribers[sub]; !ok {
		return
	}
	delete(h.subscribers, sub)
	sub.close()
	if h.metrics != nil {
		h.metrics.LiveSubscribers.Dec()
	}
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for sub := range h.subscribers {
		delete(h.subscribers, sub)
		sub.close()
		if h.metrics != nil {
			h.metrics.LiveSubscribers.Dec()
		}
	}
}
