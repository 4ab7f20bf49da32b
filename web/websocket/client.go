package websocket

import (
	"net/http"
	"time"

	"github.com/hivedesk/portal/database/model"
	"github.com/hivedesk/portal/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 16
)

// Upgrader keeps gorilla's default same-origin check.
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Client is one browser tab. UID and Role decide which messages it gets.
type Client struct {
	ID   string
	UID  string
	Role model.Role
	Send chan []byte

	hub  *Hub
	conn *websocket.Conn
}

func NewClient(hub *Hub, conn *websocket.Conn, s model.Session) *Client {
	return &Client{
		ID:   uuid.NewString(),
		UID:  s.UID,
		Role: s.Role,
		Send: make(chan []byte, sendBuffer),
		hub:  hub,
		conn: conn,
	}
}

// Serve upgrades the request and blocks until the connection closes.
func Serve(hub *Hub, w http.ResponseWriter, r *http.Request, s model.Session) error {
	conn, err := Upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	client := NewClient(hub, conn, s)
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(Message{
		Type:    MessageTypeHello,
		Payload: HelloPayload{ClientID: client.ID},
		Time:    time.Now().UnixMilli(),
	}); err != nil {
		conn.Close()
		return err
	}
	hub.Register(client)

	go client.writePump()
	client.readPump()
	return nil
}

// readPump discards client frames; it only exists to process control
// frames and notice disconnects.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("WebSocket read error:", err)
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Debug("WebSocket write error:", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
