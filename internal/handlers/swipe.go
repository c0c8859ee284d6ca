package handlers

import (
	"net/http"

	"spark-backend/internal/middleware"
	"spark-backend/internal/models"
	"spark-backend/internal/services"
)

// SwipeHandler serves the discovery deck and records swipes
type SwipeHandler struct {
	swipeService *services.SwipeService
}

// NewSwipeHandler creates a new swipe handler
func NewSwipeHandler(swipeService *services.SwipeService) *SwipeHandler {
	return &SwipeHandler{swipeService: swipeService}
}

// SwipeRequest is the body of POST /swipes
type SwipeRequest struct {
	TargetID string           `json:"target_id"`
	Type     models.SwipeType `json:"type"`
}

// Discovery handles GET /api/v1/discovery
func (h *SwipeHandler) Discovery(w http.ResponseWriter, r *http.Request) {
	candidates, err := h.swipeService.LoadCandidates(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondAppError(w, err)
		return
	}

	out := make([]ProfileResponse, 0, len(candidates))
	for _, u := range candidates {
		out = append(out, newProfileResponse(u))
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"candidates": out})
}

// Swipe handles POST /api/v1/swipes
func (h *SwipeHandler) Swipe(w http.ResponseWriter, r *http.Request) {
	var req SwipeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.swipeService.RecordSwipe(r.Context(), middleware.GetUserID(r.Context()), req.TargetID, req.Type)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, res)
}
