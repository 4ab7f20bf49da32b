// Package websocket pushes auth-state and record changes to open browser
// tabs.
package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/hivedesk/portal/database/model"
	"github.com/hivedesk/portal/logger"
	"github.com/hivedesk/portal/web/service"

	"github.com/goccy/go-json"
)

// MessageType represents the type of WebSocket message
type MessageType string

const (
	MessageTypeAuthState MessageType = "auth_state" // sign-in, sign-out or expiry of the connected user
	MessageTypeRecords   MessageType = "records"    // employee list changed, dashboards should refresh
	MessageTypeHello     MessageType = "hello"      // first frame; carries the tab's client id
)

// Message is the JSON frame written to clients.
type Message struct {
	Type    MessageType `json:"type"`
	Payload any         `json:"payload"`
	Time    int64       `json:"time"`
}

// AuthStatePayload tells a tab whether its user is still signed in.
type AuthStatePayload struct {
	UID      string     `json:"uid"`
	LoggedIn bool       `json:"loggedIn"`
	Role     model.Role `json:"role,omitempty"`
}

// HelloPayload gives a tab the id it sends back with its own mutations.
type HelloPayload struct {
	ClientID string `json:"clientId"`
}

// RecordsPayload names the mutation that invalidated the list.
type RecordsPayload struct {
	Action service.RecordAction `json:"action"`
	ID     string               `json:"id"`
}

type envelope struct {
	data   []byte
	accept func(*Client) bool
}

// Hub maintains the set of active clients and fans messages out to them.
// Only Run touches the client set for writes.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan envelope
	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan envelope, 256),
		register:   make(chan *Client, 16),
		unregister: make(chan *Client, 16),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Run starts the hub's main loop. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.Send)
			}
			h.clients = make(map[*Client]bool)
			h.mu.Unlock()
			logger.Info("WebSocket hub stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			logger.Debugf("WebSocket client connected: %s (total: %d)", client.ID, count)

		case client := <-h.unregister:
			h.remove(client)

		case env := <-h.broadcast:
			h.mu.RLock()
			targets := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				if env.accept == nil || env.accept(client) {
					targets = append(targets, client)
				}
			}
			h.mu.RUnlock()

			for _, client := range targets {
				select {
				case client.Send <- env.data:
				default:
					logger.Debugf("WebSocket client %s send buffer full, disconnecting", client.ID)
					h.remove(client)
				}
			}
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.Send)
	}
	count := len(h.clients)
	h.mu.Unlock()
	logger.Debugf("WebSocket client disconnected: %s (total: %d)", client.ID, count)
}

// Broadcast sends a message to all connected clients
func (h *Hub) Broadcast(messageType MessageType, payload any) {
	h.send(messageType, payload, nil)
}

func (h *Hub) send(messageType MessageType, payload any, accept func(*Client) bool) {
	if h == nil {
		return
	}
	data, err := json.Marshal(Message{
		Type:    messageType,
		Payload: payload,
		Time:    time.Now().UnixMilli(),
	})
	if err != nil {
		logger.Error("Failed to marshal WebSocket message:", err)
		return
	}

	select {
	case h.broadcast <- envelope{data: data, accept: accept}:
	case <-time.After(100 * time.Millisecond):
		logger.Warning("WebSocket broadcast channel is full, dropping message")
	case <-h.ctx.Done():
	}
}

// RecordsChanged tells every HR tab to reload the employee list, except the
// tab that made the change; it is already following the redirect.
func (h *Hub) RecordsChanged(ctx context.Context, change service.RecordChange) {
	h.send(MessageTypeRecords, RecordsPayload{Action: change.Action, ID: change.ID}, func(c *Client) bool {
		return c.Role == model.RoleHR && (change.Origin == "" || c.ID != change.Origin)
	})
}

// AuthStateChanged is the auth gateway subscriber. A nil session means uid
// signed out or expired; its tabs are told to return to the login page.
func (h *Hub) AuthStateChanged(uid string, s *model.Session) {
	payload := AuthStatePayload{UID: uid}
	if s != nil {
		payload.LoggedIn = s.LoggedIn
		payload.Role = s.Role
	}
	h.send(MessageTypeAuthState, payload, func(c *Client) bool {
		return c.UID == uid
	})
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Register(client *Client) {
	if h == nil || client == nil {
		return
	}
	select {
	case h.register <- client:
	case <-h.ctx.Done():
	}
}

func (h *Hub) Unregister(client *Client) {
	if h == nil || client == nil {
		return
	}
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// Stop closes every client and ends Run.
func (h *Hub) Stop() {
	if h != nil && h.cancel != nil {
		h.cancel()
	}
}
