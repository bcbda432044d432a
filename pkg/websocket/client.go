package websocket

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	sendQueue = 64
)

type Client struct {
	ID    string
	hub   *Hub
	conn  *websocket.Conn
	send  chan []byte
	rooms map[string]bool
	opts  Options
}

func newClient(hub *Hub, conn *websocket.Conn, id string, opts Options) *Client {
	return &Client{
		ID:    id,
		hub:   hub,
		conn:  conn,
		send:  make(chan []byte, sendQueue),
		rooms: make(map[string]bool),
		opts:  opts,
	}
}

// Send queues msg for delivery. It never blocks; a message is dropped if the
// client is gone or its queue is full.
func (c *Client) Send(msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	c.hub.mutex.RLock()
	defer c.hub.mutex.RUnlock()
	if _, ok := c.hub.clients[c]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
		c.hub.logger.WithField("client_id", c.ID).Warn("Websocket send queue full, dropping message")
	}
}

func (c *Client) SendError(message string) {
	c.Send(newMessage(TypeError, "", map[string]string{"message": message}))
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-ctx.Done():
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.opts.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.opts.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.opts.PongTimeout))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.hub.logger.WithError(err).WithField("client_id", c.ID).Warn("WebSocket read error")
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.SendError("invalid message")
			continue
		}
		msg.ClientID = c.ID
		c.hub.dispatch(ctx, c, &msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
