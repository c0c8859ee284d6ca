package services

import (
	"context"
	"errors"
	"fmt"

	appconfig "spark-backend/internal/config"
	"spark-backend/internal/repository"

	"github.com/rs/zerolog/log"
	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"
)

// PushNotification is a device alert
type PushNotification struct {
	Title string
	Body  string
	Data  map[string]string
}

// Pusher delivers an alert to one device token
type Pusher interface {
	Push(ctx context.Context, deviceToken string, n PushNotification) error
}

// APNsPusher sends alerts through Apple Push Notification service
type APNsPusher struct {
	client *apns2.Client
	topic  string
}

// NewAPNsPusher creates a token-authenticated APNs client
func NewAPNsPusher(cfg appconfig.APNsConfig) (*APNsPusher, error) {
	authKey, err := token.AuthKeyFromFile(cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load APNs auth key: %w", err)
	}

	client := apns2.NewTokenClient(&token.Token{
		AuthKey: authKey,
		KeyID:   cfg.KeyID,
		TeamID:  cfg.TeamID,
	})
	if cfg.Production {
		client = client.Production()
	} else {
		client = client.Development()
	}

	return &APNsPusher{client: client, topic: cfg.Topic}, nil
}

func (p *APNsPusher) Push(ctx context.Context, deviceToken string, n PushNotification) error {
	pl := payload.NewPayload().AlertTitle(n.Title).AlertBody(n.Body).Sound("default")
	for k, v := range n.Data {
		pl = pl.Custom(k, v)
	}

	res, err := p.client.PushWithContext(ctx, &apns2.Notification{
		DeviceToken: deviceToken,
		Topic:       p.topic,
		Payload:     pl,
	})
	if err != nil {
		return fmt.Errorf("failed to push notification: %w", err)
	}
	if !res.Sent() {
		return fmt.Errorf("push rejected with status %d: %s", res.StatusCode, res.Reason)
	}
	return nil
}

// NopPusher drops notifications; used when APNs is not configured
type NopPusher struct{}

func (NopPusher) Push(_ context.Context, deviceToken string, n PushNotification) error {
	log.Debug().Str("title", n.Title).Msg("Push disabled, notification dropped")
	return nil
}

// Notifier resolves a user's push token and sends them an alert
type Notifier struct {
	users  repository.UserStore
	pusher Pusher
}

// NewNotifier creates a new notifier
func NewNotifier(users repository.UserStore, pusher Pusher) *Notifier {
	return &Notifier{users: users, pusher: pusher}
}

// Notify pushes n to userID. Failures are logged and otherwise ignored.
func (nt *Notifier) Notify(ctx context.Context, userID string, n PushNotification) {
	user, err := nt.users.GetByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			log.Error().Err(err).Str("user_id", userID).Msg("Failed to load user for push")
		}
		return
	}
	if user.PushToken == nil || *user.PushToken == "" {
		return
	}

	if err := nt.pusher.Push(ctx, *user.PushToken, n); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("Failed to send push notification")
	}
}
