package services

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const wsWriteTimeout = 10 * time.Second

// WebSocket event types sent by the server
const (
	EventMatches      = "matches"
	EventMessages     = "messages"
	EventChatPartner  = "chat_partner"
	EventMatchCreated = "match_created"
	EventLikes        = "likes"
	EventError        = "error"
)

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string      `json:"type"`
	MatchID string      `json:"match_id,omitempty"`
	Text    string      `json:"text,omitempty"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// WSClient is one live connection. Writes are serialized because several
// subscriptions may push to the same socket.
type WSClient struct {
	UserID string
	conn   *websocket.Conn
	mu     sync.Mutex
}

// Send writes one message to the connection
func (c *WSClient) Send(message WSMessage) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// Ping sends a keepalive control frame
func (c *WSClient) Ping() error {
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout))
}

// Close closes the underlying connection
func (c *WSClient) Close() error {
	return c.conn.Close()
}

// WSHub manages WebSocket connections
type WSHub struct {
	mu          sync.RWMutex
	connections map[string]*WSClient
}

// NewWSHub creates a new WebSocket hub
func NewWSHub() *WSHub {
	return &WSHub{
		connections: make(map[string]*WSClient),
	}
}

// Register registers a new WebSocket connection for a user, closing any
// previous connection of the same user.
func (h *WSHub) Register(userID string, conn *websocket.Conn) *WSClient {
	client := &WSClient{UserID: userID, conn: conn}

	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, exists := h.connections[userID]; exists {
		existing.Close()
	}
	h.connections[userID] = client

	log.Info().Str("user_id", userID).Msg("WebSocket connection registered")
	return client
}

// Unregister removes the connection if it is still the current one for the user
func (h *WSHub) Unregister(client *WSClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, exists := h.connections[client.UserID]; exists && current == client {
		delete(h.connections, client.UserID)
		log.Info().Str("user_id", client.UserID).Msg("WebSocket connection unregistered")
	}
	client.Close()
}

// SendToUser sends a message to a specific user
func (h *WSHub) SendToUser(userID string, message WSMessage) error {
	h.mu.RLock()
	client, exists := h.connections[userID]
	h.mu.RUnlock()

	if !exists {
		return fmt.Errorf("user %s is not connected", userID)
	}

	if err := client.Send(message); err != nil {
		h.Unregister(client)
		return err
	}
	return nil
}

// IsOnline checks if a user is online
func (h *WSHub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, exists := h.connections[userID]
	return exists
}
