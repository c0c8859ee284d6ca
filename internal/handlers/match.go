package handlers

import (
	"errors"
	"net/http"

	"spark-backend/internal/apperr"
	"spark-backend/internal/middleware"
	"spark-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// MatchHandler handles likes, matches and messages
type MatchHandler struct {
	matchService *services.MatchService
	chatService  *services.ChatService
}

// NewMatchHandler creates a new match handler
func NewMatchHandler(matchService *services.MatchService, chatService *services.ChatService) *MatchHandler {
	return &MatchHandler{
		matchService: matchService,
		chatService:  chatService,
	}
}

// SendMessageRequest is the body of POST /matches/{match_id}/messages
type SendMessageRequest struct {
	Text string `json:"text"`
}

// Likes handles GET /api/v1/likes
func (h *MatchHandler) Likes(w http.ResponseWriter, r *http.Request) {
	users, err := h.matchService.LikesReceived(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondAppError(w, err)
		return
	}

	out := make([]ProfileResponse, 0, len(users))
	for _, u := range users {
		out = append(out, newProfileResponse(u))
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"likes": out})
}

// LikeBack handles POST /api/v1/likes/{user_id}/like-back
func (h *MatchHandler) LikeBack(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	partnerID := chi.URLParam(r, "user_id")

	match, err := h.matchService.LikeBack(ctx, userID, partnerID)
	if err != nil {
		respondAppError(w, err)
		return
	}

	log.Info().
		Str("user_id", userID).
		Str("partner_id", partnerID).
		Str("match_id", match.ID).
		Msg("Liked back")

	respondJSON(w, http.StatusOK, map[string]interface{}{"match_id": match.ID, "match": match})
}

// PairState handles GET /api/v1/users/{user_id}/state
func (h *MatchHandler) PairState(w http.ResponseWriter, r *http.Request) {
	state, err := h.matchService.PairState(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "user_id"))
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"state": state.String()})
}

// Matches handles GET /api/v1/matches
func (h *MatchHandler) Matches(w http.ResponseWriter, r *http.Request) {
	list, err := h.chatService.ChatList(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondAppError(w, err)
		return
	}

	unread := 0
	for _, m := range list {
		if m.Unread {
			unread++
		}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"matches": list, "unread_count": unread})
}

// Messages handles GET /api/v1/matches/{match_id}/messages
func (h *MatchHandler) Messages(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.chatService.Messages(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "match_id"))
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"messages": msgs})
}

// SendMessage handles POST /api/v1/matches/{match_id}/messages.
// A blank text is accepted and ignored.
func (h *MatchHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	msg, err := h.chatService.SendMessage(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "match_id"), req.Text)
	switch {
	case errors.Is(err, services.ErrBlankMessage):
		w.WriteHeader(http.StatusNoContent)
	case msg != nil:
		// stored; a summary failure is reported alongside
		body := map[string]interface{}{"message": msg}
		if err != nil {
			body["warning"] = apperr.PublicMessage(err)
		}
		respondJSON(w, http.StatusCreated, body)
	default:
		respondAppError(w, err)
	}
}

// MarkSeen handles POST /api/v1/matches/{match_id}/seen
func (h *MatchHandler) MarkSeen(w http.ResponseWriter, r *http.Request) {
	if err := h.chatService.MarkSeen(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "match_id")); err != nil {
		respondAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
