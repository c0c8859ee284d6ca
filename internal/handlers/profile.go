package handlers

import (
	"net/http"

	"spark-backend/internal/middleware"
	"spark-backend/internal/models"
	"spark-backend/internal/services"
)

// ProfileHandler handles profile HTTP requests
type ProfileHandler struct {
	profileService *services.ProfileService
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(profileService *services.ProfileService) *ProfileHandler {
	return &ProfileHandler{profileService: profileService}
}

// ProfileResponse is a profile with its derived fields
type ProfileResponse struct {
	*models.User
	Age      int  `json:"age"`
	Complete bool `json:"profile_complete"`
}

func newProfileResponse(u *models.User) ProfileResponse {
	return ProfileResponse{User: u, Age: u.Age(), Complete: u.IsComplete()}
}

// UpdateProfileRequest is the body of PATCH /profile
type UpdateProfileRequest struct {
	Name     string `json:"name"`
	Birthday string `json:"birthday"`
	Gender   string `json:"gender"`
}

// PushTokenRequest is the body of PUT /profile/push-token
type PushTokenRequest struct {
	PushToken string `json:"push_token"`
}

// GetProfile handles GET /api/v1/profile
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user, err := h.profileService.GetProfile(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, newProfileResponse(user))
}

// SaveProfile handles PUT /api/v1/profile as multipart: form fields plus
// one or more "photos" files
func (h *ProfileHandler) SaveProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		respondError(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}
	photos, err := readPhotos(r.MultipartForm, "photos")
	if err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	form := services.ProfileForm{
		Name:         r.FormValue("name"),
		Gender:       r.FormValue("gender"),
		Birthday:     r.FormValue("birthday"),
		InterestedIn: r.FormValue("interested_in"),
		PhoneNumber:  r.FormValue("phone_number"),
	}

	user, err := h.profileService.SaveProfile(ctx, middleware.GetUserID(ctx), form, photos)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, newProfileResponse(user))
}

// UpdateProfile handles PATCH /api/v1/profile
func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req UpdateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.profileService.UpdateProfile(r.Context(), middleware.GetUserID(r.Context()), req.Name, req.Birthday, req.Gender)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, newProfileResponse(user))
}

// UpdatePushToken handles PUT /api/v1/profile/push-token
func (h *ProfileHandler) UpdatePushToken(w http.ResponseWriter, r *http.Request) {
	var req PushTokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.profileService.UpdatePushToken(r.Context(), middleware.GetUserID(r.Context()), req.PushToken); err != nil {
		respondAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
