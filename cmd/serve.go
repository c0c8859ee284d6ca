package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"spark-backend/internal/config"
	"spark-backend/internal/handlers"
	"spark-backend/internal/services"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and WebSocket server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	be, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		if err := be.stores.Close(closeCtx); err != nil {
			log.Error().Err(err).Msg("Failed to close storage")
		}
	}()
	if be.relay != nil {
		go be.relay(ctx)
	}
	log.Info().Str("driver", cfg.Database.Driver).Msg("Storage ready")

	s3Client, err := services.NewS3Client(ctx, cfg.AWS)
	if err != nil {
		return fmt.Errorf("failed to create S3 client: %w", err)
	}
	photoService := services.NewPhotoService(s3Client, s3.NewPresignClient(s3Client), cfg.AWS)

	var pusher services.Pusher = services.NopPusher{}
	if cfg.APNs.KeyFile != "" {
		apns, err := services.NewAPNsPusher(cfg.APNs)
		if err != nil {
			return err
		}
		pusher = apns
	} else {
		log.Warn().Msg("APNs key not configured; push notifications disabled")
	}

	clock := services.SystemClock{}
	stores := be.stores
	wsHub := services.NewWSHub()
	announcer := services.NewAnnouncer(wsHub, stores.Users, services.NewNotifier(stores.Users, pusher))

	deck := services.NewDeck(cfg.Matching.DeckSize, cfg.Matching.DeckTTL)
	userService := services.NewUserService(stores, be.publisher, deck, clock, cfg.JWT.Secret, cfg.JWT.TTLDays)
	profileService := services.NewProfileService(stores, photoService, be.publisher, clock)
	matchService := services.NewMatchService(stores, be.broker, be.publisher, announcer, clock, cfg.Matching.DeterministicIDs)
	swipeService := services.NewSwipeService(stores, matchService, deck, be.publisher, clock)
	chatService := services.NewChatService(stores, be.broker, be.publisher, announcer, clock)

	router := handlers.NewRouter(handlers.Services{
		Users:    userService,
		Profiles: profileService,
		Photos:   photoService,
		Swipes:   swipeService,
		Matches:  matchService,
		Chat:     chatService,
		Hub:      wsHub,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	}

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	// stop the change feed first so open subscriptions end
	cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
	return nil
}
