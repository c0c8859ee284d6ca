package handlers

import (
	"net/http"

	"spark-backend/internal/middleware"
	"spark-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// UserHandler handles account HTTP requests
type UserHandler struct {
	userService *services.UserService
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

// RegisterRequest is the body of POST /auth/register
type RegisterRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// LoginRequest is the body of POST /auth/login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register handles POST /api/v1/auth/register
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.userService.Register(r.Context(), req.Email, req.Password, req.ConfirmPassword)
	if err != nil {
		respondAppError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, res)
}

// Login handles POST /api/v1/auth/login
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.userService.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		respondAppError(w, err)
		return
	}

	log.Info().Str("user_id", res.UserID).Msg("User signed in")
	respondJSON(w, http.StatusOK, res)
}

// Logout handles POST /api/v1/auth/logout
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.userService.SignOut(r.Context(), middleware.GetUserID(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}

// DeleteAccount handles DELETE /api/v1/account
func (h *UserHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.userService.DeleteAccount(r.Context(), middleware.GetUserID(r.Context())); err != nil {
		respondAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
