package handlers

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"spark-backend/internal/middleware"
	"spark-backend/internal/services"

	"github.com/rs/zerolog/log"
)

const multipartMemory = 32 << 20

// PhotoHandler handles photo-related HTTP requests
type PhotoHandler struct {
	photoService *services.PhotoService
}

// NewPhotoHandler creates a new photo handler
func NewPhotoHandler(photoService *services.PhotoService) *PhotoHandler {
	return &PhotoHandler{
		photoService: photoService,
	}
}

// UploadRequest represents a request to get a pre-signed URL
type UploadRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

// UploadPhoto handles POST /api/v1/photos/upload with a multipart "photo" field
func (h *PhotoHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		respondError(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}
	files, err := readPhotos(r.MultipartForm, "photo")
	if err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(files) != 1 {
		respondError(w, "exactly one photo is required", http.StatusBadRequest)
		return
	}

	url, err := h.photoService.Upload(ctx, userID, files[0])
	if err != nil {
		respondAppError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"url": url})
}

// PresignPhoto handles POST /api/v1/photos/presign
func (h *PhotoHandler) PresignPhoto(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req UploadRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Filename == "" {
		respondError(w, "filename is required", http.StatusBadRequest)
		return
	}
	if req.ContentType == "" {
		req.ContentType = "image/jpeg"
	}

	response, err := h.photoService.GetPreSignedURL(ctx, userID, req.Filename, req.ContentType)
	if err != nil {
		respondAppError(w, err)
		return
	}

	log.Info().
		Str("user_id", userID).
		Str("filename", req.Filename).
		Msg("Pre-signed URL generated")

	respondJSON(w, http.StatusOK, response)
}

// readPhotos loads every file of a multipart field in submission order
func readPhotos(form *multipart.Form, field string) ([]services.PhotoFile, error) {
	if form == nil {
		return nil, nil
	}
	headers := form.File[field]
	out := make([]services.PhotoFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", fh.Filename, err)
		}
		out = append(out, services.PhotoFile{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return out, nil
}
