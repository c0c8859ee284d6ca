package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"spark-backend/internal/apperr"
	"spark-backend/internal/changefeed"
	"spark-backend/internal/middleware"
	"spark-backend/internal/models"
	"spark-backend/internal/services"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 << 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // mobile clients send no Origin
	},
}

// Client message types
const (
	msgSubscribeMatches  = "subscribe_matches"
	msgSubscribeLikes    = "subscribe_likes"
	msgOpenConversation  = "open_conversation"
	msgCloseConversation = "close_conversation"
	msgSendMessage       = "send_message"
)

// WebSocketHandler handles WebSocket connections
type WebSocketHandler struct {
	hub          *services.WSHub
	validator    middleware.TokenValidator
	chatService  *services.ChatService
	matchService *services.MatchService
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(
	hub *services.WSHub,
	validator middleware.TokenValidator,
	chatService *services.ChatService,
	matchService *services.MatchService,
) *WebSocketHandler {
	return &WebSocketHandler{
		hub:          hub,
		validator:    validator,
		chatService:  chatService,
		matchService: matchService,
	}
}

// HandleWebSocket handles WebSocket connections
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		respondError(w, "token required", http.StatusUnauthorized)
		return
	}

	userID, err := h.validator.ValidateJWT(token)
	if err != nil {
		respondError(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	client := h.hub.Register(userID, conn)
	defer h.hub.Unregister(client)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	session := &wsSession{
		ctx:    ctx,
		userID: userID,
		client: client,
		chat:   h.chatService,
		match:  h.matchService,
	}
	defer session.close()

	go keepAlive(ctx, client)

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	log.Info().Str("user_id", userID).Msg("WebSocket connection established")

	for {
		_, messageBytes, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("user_id", userID).Msg("WebSocket error")
			}
			break
		}

		var msg services.WSMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			session.sendError("", "Invalid message format")
			continue
		}

		if err := session.handle(msg); err != nil {
			log.Warn().Err(err).Str("user_id", userID).Str("type", msg.Type).Msg("Failed to handle message")
			session.sendError(msg.MatchID, apperr.PublicMessage(err))
		}
	}
}

func keepAlive(ctx context.Context, client *services.WSClient) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := client.Ping(); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// wsSession is the per-connection state: at most one open conversation and
// one subscription each for the chat list and the likes view. Starting a new
// one replaces the previous.
type wsSession struct {
	ctx    context.Context
	userID string
	client *services.WSClient
	chat   *services.ChatService
	match  *services.MatchService

	mu           sync.Mutex
	conversation *services.Conversation
	chatList     *changefeed.Subscription[[]*models.MatchWithUser]
	likes        *changefeed.Subscription[[]*models.User]
}

func (s *wsSession) handle(msg services.WSMessage) error {
	switch msg.Type {
	case msgSubscribeMatches:
		s.subscribeMatches()
		return nil
	case msgSubscribeLikes:
		s.subscribeLikes()
		return nil
	case msgOpenConversation:
		if msg.MatchID == "" {
			return apperr.Invalid("match_id is required")
		}
		return s.openConversation(msg.MatchID)
	case msgCloseConversation:
		s.closeConversation()
		return nil
	case msgSendMessage:
		if msg.MatchID == "" {
			return apperr.Invalid("match_id is required")
		}
		_, err := s.chat.SendMessage(s.ctx, s.userID, msg.MatchID, msg.Text)
		if errors.Is(err, services.ErrBlankMessage) {
			return nil
		}
		return err
	default:
		return apperr.Invalid("unknown message type")
	}
}

func (s *wsSession) subscribeMatches() {
	sub := s.chat.WatchChatList(s.ctx, s.userID)

	s.mu.Lock()
	prev := s.chatList
	s.chatList = sub
	s.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
	go forward(s, sub, services.EventMatches, "")
}

func (s *wsSession) subscribeLikes() {
	sub := s.match.WatchLikes(s.ctx, s.userID)

	s.mu.Lock()
	prev := s.likes
	s.likes = sub
	s.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
	go forward(s, sub, services.EventLikes, "")
}

func (s *wsSession) openConversation(matchID string) error {
	s.closeConversation()

	conv, err := s.chat.OpenConversation(s.ctx, s.userID, matchID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.conversation = conv
	s.mu.Unlock()

	if err := s.client.Send(services.WSMessage{Type: services.EventChatPartner, MatchID: matchID, Data: conv.Partner}); err != nil {
		return err
	}
	go forward(s, conv.Messages, services.EventMessages, matchID)
	return nil
}

func (s *wsSession) closeConversation() {
	s.mu.Lock()
	conv := s.conversation
	s.conversation = nil
	s.mu.Unlock()

	if conv != nil {
		conv.Close()
	}
}

func (s *wsSession) close() {
	s.closeConversation()

	s.mu.Lock()
	chatList, likes := s.chatList, s.likes
	s.chatList, s.likes = nil, nil
	s.mu.Unlock()

	if chatList != nil {
		chatList.Close()
	}
	if likes != nil {
		likes.Close()
	}
}

func (s *wsSession) sendError(matchID, message string) {
	if err := s.client.Send(services.WSMessage{Type: services.EventError, MatchID: matchID, Message: message}); err != nil {
		log.Debug().Err(err).Str("user_id", s.userID).Msg("Failed to send error event")
	}
}

// forward relays every snapshot of sub to the client until the
// subscription ends
func forward[T any](s *wsSession, sub *changefeed.Subscription[T], event, matchID string) {
	for snap := range sub.C {
		if snap.Err != nil {
			s.sendError(matchID, apperr.PublicMessage(snap.Err))
			continue
		}
		if err := s.client.Send(services.WSMessage{Type: event, MatchID: matchID, Data: snap.Value}); err != nil {
			log.Debug().Err(err).Str("user_id", s.userID).Str("event", event).Msg("Failed to forward snapshot")
			return
		}
	}
}
