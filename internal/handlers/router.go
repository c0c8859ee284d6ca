package handlers

import (
	"net/http"

	"spark-backend/internal/middleware"
	"spark-backend/internal/services"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// Services are the dependencies of the HTTP surface
type Services struct {
	Users    *services.UserService
	Profiles *services.ProfileService
	Photos   *services.PhotoService
	Swipes   *services.SwipeService
	Matches  *services.MatchService
	Chat     *services.ChatService
	Hub      *services.WSHub
}

// NewRouter wires every route
func NewRouter(s Services) http.Handler {
	userHandler := NewUserHandler(s.Users)
	profileHandler := NewProfileHandler(s.Profiles)
	photoHandler := NewPhotoHandler(s.Photos)
	swipeHandler := NewSwipeHandler(s.Swipes)
	matchHandler := NewMatchHandler(s.Matches, s.Chat)
	wsHandler := NewWebSocketHandler(s.Hub, s.Users, s.Chat, s.Matches)

	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(corsMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/auth/register", userHandler.Register)
		r.Post("/auth/login", userHandler.Login)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(s.Users))

			r.Post("/auth/logout", userHandler.Logout)
			r.Delete("/account", userHandler.DeleteAccount)

			r.Get("/profile", profileHandler.GetProfile)
			r.Put("/profile", profileHandler.SaveProfile)
			r.Patch("/profile", profileHandler.UpdateProfile)
			r.Put("/profile/push-token", profileHandler.UpdatePushToken)

			r.Post("/photos/upload", photoHandler.UploadPhoto)
			r.Post("/photos/presign", photoHandler.PresignPhoto)

			r.Get("/discovery", swipeHandler.Discovery)
			r.Post("/swipes", swipeHandler.Swipe)

			r.Get("/likes", matchHandler.Likes)
			r.Post("/likes/{user_id}/like-back", matchHandler.LikeBack)
			r.Get("/users/{user_id}/state", matchHandler.PairState)

			r.Get("/matches", matchHandler.Matches)
			r.Get("/matches/{match_id}/messages", matchHandler.Messages)
			r.Post("/matches/{match_id}/messages", matchHandler.SendMessage)
			r.Post("/matches/{match_id}/seen", matchHandler.MarkSeen)
		})
	})

	// WebSocket route
	r.Get("/ws", wsHandler.HandleWebSocket)

	return r
}

// corsMiddleware handles CORS
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
