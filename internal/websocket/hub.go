package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"psvs-console-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const clusterChannel = "cluster_events"

// InboundHandler receives frames sent by a practitioner's console.
type InboundHandler func(practitionerID string, data []byte)

// Envelope is the shape of every outbound frame.
type Envelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type clusterMessage struct {
	Origin         string          `json:"origin"`
	PractitionerID string          `json:"practitioner_id"`
	Message        json.RawMessage `json:"message"`
}

type Hub struct {
	// Registered clients: practitioner id -> connections (multi-tab)
	clients map[string][]*Client

	register   chan *Client
	unregister chan *Client
	// done is closed once Run has returned and every connection was released.
	done chan struct{}

	mu sync.RWMutex

	// Redis connection for cross-instance delivery
	rdb *redis.Client
	// instanceID tags our own cluster messages so we skip them on receipt
	instanceID string

	inbound InboundHandler
	logger  logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[string][]*Client),
		rdb:        rdb,
		instanceID: uuid.NewString(),
		logger:     log,
	}
}

// OnInbound sets the handler for client frames. Call before Run.
func (h *Hub) OnInbound(fn InboundHandler) {
	h.inbound = fn
}

func (h *Hub) Run(ctx context.Context) {
	if h.rdb != nil {
		go h.subscribeToRedis(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.PractitionerID] = append(h.clients[client.PractitionerID], client)
			h.mu.Unlock()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"practitioner_id": client.PractitionerID})

		case client := <-h.unregister:
			h.remove(client)
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.clients[client.PractitionerID]
	if !ok {
		return
	}
	for i, c := range clients {
		if c == client {
			h.clients[client.PractitionerID] = append(clients[:i], clients[i+1:]...)
			close(client.Send)
			break
		}
	}
	if len(h.clients[client.PractitionerID]) == 0 {
		delete(h.clients, client.PractitionerID)
		h.logger.Info("Hub", "Client completely unregistered", map[string]interface{}{"practitioner_id": client.PractitionerID})
	}
}

// closeAll releases every connection; the write pumps then close the sockets.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, clients := range h.clients {
		for _, c := range clients {
			close(c.Send)
		}
		delete(h.clients, id)
	}
	close(h.done)
}

func (h *Hub) join(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Connected reports whether the practitioner has a socket on this instance.
func (h *Hub) Connected(practitionerID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[practitionerID]) > 0
}

// Send delivers a frame to every connection of the practitioner, here and
// on other instances.
func (h *Hub) Send(practitionerID, msgType string, payload interface{}) {
	data, err := json.Marshal(Envelope{Type: msgType, Data: payload})
	if err != nil {
		h.logger.Error("Hub", "Failed to marshal frame", map[string]interface{}{"error": err.Error(), "type": msgType})
		return
	}

	h.deliverLocal(practitionerID, data)

	if h.rdb != nil {
		msg, _ := json.Marshal(clusterMessage{
			Origin:         h.instanceID,
			PractitionerID: practitionerID,
			Message:        data,
		})
		if err := h.rdb.Publish(context.Background(), clusterChannel, msg).Err(); err != nil {
			h.logger.Warn("Hub", "Redis publish failed", map[string]interface{}{"error": err.Error()})
		}
	}
}

func (h *Hub) deliverLocal(practitionerID string, data []byte) {
	// Held while sending so remove cannot close a channel mid-send.
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients[practitionerID] {
		select {
		case client.Send <- data:
		default:
			h.logger.Warn("Hub", "Client Send buffer full, dropping connection", map[string]interface{}{"practitioner_id": practitionerID})
			go h.leave(client)
		}
	}
}

func (h *Hub) handleInbound(client *Client, data []byte) {
	if h.inbound == nil {
		return
	}
	h.inbound(client.PractitionerID, data)
}

func (h *Hub) subscribeToRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, clusterChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var payload clusterMessage
			if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
				h.logger.Warn("Hub", "Redis msg parse error", map[string]interface{}{"error": err.Error()})
				continue
			}
			if payload.Origin == h.instanceID {
				continue
			}
			h.deliverLocal(payload.PractitionerID, payload.Message)
		}
	}
}
