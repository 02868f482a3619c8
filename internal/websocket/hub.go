package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric/noop"

	"bankcap/internal/pipeline"
)

// Message types
const (
	TypeConnection = "connection"
	TypeRunEvent   = "run:event"
)

// broadcastBuffer bounds events waiting for the hub loop
const broadcastBuffer = 256

// Message is the envelope written to every client
type Message struct {
	Type      string    `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Hub maintains the set of active clients and fans run events out to them.
// It implements pipeline.EventSink.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu      sync.RWMutex
	running bool
	quit    chan struct{}
	done    chan struct{}

	metrics *hubMetrics
	logger  *slog.Logger
}

// NewHub creates a hub. Metrics go to the global meter provider.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "websocket.hub"))

	metrics, err := newHubMetrics(otel.Meter(meterName))
	if err != nil {
		logger.Warn("websocket_metrics_disabled", slog.String("error", err.Error()))
		metrics, _ = newHubMetrics(noop.NewMeterProvider().Meter(meterName))
	}

	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		metrics:    metrics,
		logger:     logger,
	}
}

// Start runs the hub loop in its own goroutine
func (h *Hub) Start() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	go h.run()
}

// Stop ends the hub loop and disconnects every client
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.mu.Unlock()

	close(h.quit)
	<-h.done
}

func (h *Hub) run() {
	defer close(h.done)
	ctx := context.Background()

	for {
		select {
		case <-h.quit:
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
				h.metrics.disconnected(ctx)
			}
			h.mu.Unlock()
			h.logger.Info("hub_stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.metrics.connected(ctx)

			h.logger.Info("client_registered",
				slog.String("client_id", client.id),
				slog.String("remote_addr", client.remoteAddr),
				slog.Int("total_clients", count))

			if data, err := encode(TypeConnection, map[string]string{
				"status":    "connected",
				"client_id": client.id,
			}); err == nil {
				select {
				case client.send <- data:
				default:
					h.metrics.drop(ctx, "client_buffer_full")
				}
			}

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.metrics.disconnected(ctx)
			}
			count := len(h.clients)
			h.mu.Unlock()

			h.logger.Info("client_unregistered",
				slog.String("client_id", client.id),
				slog.Int("total_clients", count),
				slog.Duration("connection_duration", time.Since(client.connectedAt)))

		case message := <-h.broadcast:
			h.fanOut(ctx, message)
		}
	}
}

// fanOut queues message on every client; a client whose buffer is full is disconnected
func (h *Hub) fanOut(ctx context.Context, message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sent := 0
	for client := range h.clients {
		select {
		case client.send <- message:
			sent++
		default:
			close(client.send)
			delete(h.clients, client)
			h.metrics.disconnected(ctx)
			h.metrics.drop(ctx, "client_buffer_full")
			h.logger.Warn("client_send_buffer_full",
				slog.String("client_id", client.id))
		}
	}
	h.metrics.sent(ctx, TypeRunEvent, sent)
}

// Publish queues a run event for broadcast. It never blocks: when the queue is full
// the event is dropped.
func (h *Hub) Publish(event pipeline.Event) {
	data, err := encode(TypeRunEvent, event)
	if err != nil {
		h.logger.Error("event_encode_failed",
			slog.String("run_id", event.RunID),
			slog.String("error", err.Error()))
		return
	}

	select {
	case h.broadcast <- data:
	default:
		h.metrics.drop(context.Background(), "broadcast_queue_full")
		h.logger.Warn("event_dropped",
			slog.String("run_id", event.RunID),
			slog.String("event", string(event.Type)))
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Register adds a client. It reports false once the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.quit:
		return false
	}
}

func (h *Hub) unregisterClient(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}

func encode(messageType string, data any) ([]byte, error) {
	return json.Marshal(Message{Type: messageType, Data: data, Timestamp: time.Now().UTC()})
}
