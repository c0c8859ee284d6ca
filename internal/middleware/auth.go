package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"spark-backend/internal/apperr"

	"github.com/rs/zerolog/log"
)

type contextKey string

const userIDKey contextKey = "user_id"

// TokenValidator resolves a bearer token to a user id
type TokenValidator interface {
	ValidateJWT(token string) (string, error)
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header. The scheme is matched case-insensitively.
func BearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", apperr.New(apperr.Unauthorized, "authorization header required", nil)
	}
	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", apperr.New(apperr.InvalidToken, "invalid authorization header format", nil)
	}
	return token, nil
}

// AuthMiddleware rejects requests without a valid bearer token and stores
// the caller's user id in the request context
func AuthMiddleware(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := BearerToken(r)
			if err != nil {
				reject(w, r, err)
				return
			}

			userID, err := validator.ValidateJWT(token)
			if err != nil {
				if apperr.CodeOf(err) == "" {
					err = apperr.New(apperr.InvalidToken, "invalid token", err)
				}
				reject(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// WithUserID stores the authenticated user id in ctx
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// GetUserID extracts user ID from context
func GetUserID(ctx context.Context) string {
	userID, ok := ctx.Value(userIDKey).(string)
	if !ok {
		return ""
	}
	return userID
}

// reject answers 401 with the same body shape the handlers use
func reject(w http.ResponseWriter, r *http.Request, err error) {
	log.Debug().Err(err).Str("path", r.URL.Path).Msg("Request rejected")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(apperr.ResponseOf(err))
}
