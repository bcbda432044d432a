package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"etaservice/pkg/logger"
)

// Message types understood by the hub. Anything else is passed to the
// configured MessageHandler.
const (
	TypeWelcome      = "welcome"
	TypeSubscribe    = "subscribe"
	TypeUnsubscribe  = "unsubscribe"
	TypeSubscribed   = "subscribed"
	TypeUnsubscribed = "unsubscribed"
	TypeError        = "error"
)

type Message struct {
	Type       string          `json:"type"`
	ShipmentID string          `json:"shipment_id,omitempty"`
	ClientID   string          `json:"client_id,omitempty"`
	Timestamp  int64           `json:"timestamp"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// MessageHandler receives client messages the hub does not handle itself.
type MessageHandler interface {
	HandleMessage(ctx context.Context, client *Client, msg *Message)
}

type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	rooms      map[string]map[*Client]bool
	mutex      sync.RWMutex
	handler    MessageHandler
	logger     *logger.Logger
}

func NewHub(handler MessageHandler, log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Discard()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		rooms:      make(map[string]map[*Client]bool),
		handler:    handler,
		logger:     log.WithField("component", "websocket"),
	}
}

// SetHandler replaces the MessageHandler. It must be called before Run.
func (h *Hub) SetHandler(handler MessageHandler) {
	h.handler = handler
}

// Run processes registrations until ctx is cancelled, then disconnects
// every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.removeClient(client)

		case <-ctx.Done():
			h.mutex.Lock()
			for client := range h.clients {
				h.dropLocked(client)
			}
			h.mutex.Unlock()
			return
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mutex.Lock()
	h.clients[client] = true
	h.mutex.Unlock()

	h.logger.WithField("client_id", client.ID).Debug("Client registered")

	client.Send(newMessage(TypeWelcome, "", map[string]interface{}{
		"client_id": client.ID,
		"message":   "Connected successfully",
	}))
}

func (h *Hub) removeClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.dropLocked(client) {
		h.logger.WithField("client_id", client.ID).Debug("Client unregistered")
	}
}

// dropLocked detaches client from the hub and closes its send queue. The
// caller holds the write lock.
func (h *Hub) dropLocked(client *Client) bool {
	if _, ok := h.clients[client]; !ok {
		return false
	}
	delete(h.clients, client)
	close(client.send)

	for room := range client.rooms {
		if members, exists := h.rooms[room]; exists {
			delete(members, client)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	return true
}

// ShipmentRoom is the room a shipment's updates are broadcast to.
func ShipmentRoom(shipmentID string) string {
	return "shipment_" + shipmentID
}

func (h *Hub) Subscribe(client *Client, shipmentID string) {
	room := ShipmentRoom(shipmentID)

	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]bool)
	}
	h.rooms[room][client] = true
	client.rooms[room] = true
}

func (h *Hub) Unsubscribe(client *Client, shipmentID string) {
	room := ShipmentRoom(shipmentID)

	h.mutex.Lock()
	defer h.mutex.Unlock()

	if members, exists := h.rooms[room]; exists {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(client.rooms, room)
}

// BroadcastToShipment sends data to every subscriber of shipmentID and
// returns how many clients were reached. Subscribers whose queue is full
// are disconnected.
func (h *Hub) BroadcastToShipment(shipmentID, messageType string, data interface{}) int {
	payload, err := json.Marshal(newMessage(messageType, shipmentID, data))
	if err != nil {
		h.logger.WithError(err).Error("Failed to encode broadcast")
		return 0
	}

	var slow []*Client
	sent := 0

	h.mutex.RLock()
	for client := range h.rooms[ShipmentRoom(shipmentID)] {
		select {
		case client.send <- payload:
			sent++
		default:
			slow = append(slow, client)
		}
	}
	h.mutex.RUnlock()

	if len(slow) > 0 {
		h.mutex.Lock()
		for _, client := range slow {
			h.dropLocked(client)
		}
		h.mutex.Unlock()
		h.logger.WithField("dropped", len(slow)).Warn("Disconnected slow websocket clients")
	}
	return sent
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// SubscriberCount returns the number of clients following shipmentID.
func (h *Hub) SubscriberCount(shipmentID string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.rooms[ShipmentRoom(shipmentID)])
}

func (h *Hub) dispatch(ctx context.Context, client *Client, msg *Message) {
	switch msg.Type {
	case TypeSubscribe:
		if msg.ShipmentID == "" {
			client.SendError("shipment_id is required")
			return
		}
		h.Subscribe(client, msg.ShipmentID)
		client.Send(newMessage(TypeSubscribed, msg.ShipmentID, nil))

	case TypeUnsubscribe:
		if msg.ShipmentID == "" {
			client.SendError("shipment_id is required")
			return
		}
		h.Unsubscribe(client, msg.ShipmentID)
		client.Send(newMessage(TypeUnsubscribed, msg.ShipmentID, nil))

	default:
		if h.handler == nil {
			client.SendError("unsupported message type " + msg.Type)
			return
		}
		h.handler.HandleMessage(ctx, client, msg)
	}
}

// NewMessage builds a message stamped with the current time.
func NewMessage(messageType, shipmentID string, data interface{}) *Message {
	return newMessage(messageType, shipmentID, data)
}

func newMessage(messageType, shipmentID string, data interface{}) *Message {
	msg := &Message{
		Type:       messageType,
		ShipmentID: shipmentID,
		Timestamp:  time.Now().Unix(),
	}
	if data != nil {
		if raw, err := json.Marshal(data); err == nil {
			msg.Data = raw
		}
	}
	return msg
}
