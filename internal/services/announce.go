package services

import (
	"context"
	"errors"

	"spark-backend/internal/matching"
	"spark-backend/internal/models"
	"spark-backend/internal/repository"

	"github.com/rs/zerolog/log"
)

// Announcer tells users about new matches and messages over their live
// socket and by push notification. A nil Announcer announces nothing.
type Announcer struct {
	hub      *WSHub
	users    repository.UserStore
	notifier *Notifier
}

// NewAnnouncer creates a new announcer
func NewAnnouncer(hub *WSHub, users repository.UserStore, notifier *Notifier) *Announcer {
	return &Announcer{hub: hub, users: users, notifier: notifier}
}

// MatchCreated notifies both participants of a freshly created match
func (a *Announcer) MatchCreated(ctx context.Context, match *models.Match) {
	if a == nil {
		return
	}
	for _, userID := range match.Users {
		partnerID, _ := match.Partner(userID)
		partner, err := a.users.GetByID(ctx, partnerID)
		if err != nil {
			if !errors.Is(err, repository.ErrNotFound) {
				log.Error().Err(err).Str("user_id", partnerID).Msg("Failed to load match partner")
			}
			continue
		}

		if a.hub.IsOnline(userID) {
			err := a.hub.SendToUser(userID, WSMessage{
				Type:    EventMatchCreated,
				MatchID: match.ID,
				Data:    &models.MatchWithUser{Match: match, User: partner, Preview: matching.Preview(match)},
			})
			if err != nil {
				log.Warn().Err(err).Str("user_id", userID).Msg("Failed to send match_created")
			}
		}

		a.notifier.Notify(ctx, userID, PushNotification{
			Title: "It's a match!",
			Body:  "You and " + partner.Name + " liked each other",
			Data:  map[string]string{"match_id": match.ID},
		})
	}
}

// MessageSent pushes a new message alert to the recipient
func (a *Announcer) MessageSent(ctx context.Context, msg *models.Message, recipientID string) {
	if a == nil {
		return
	}
	title := "New message"
	if sender, err := a.users.GetByID(ctx, msg.SenderID); err == nil && sender.Name != "" {
		title = sender.Name
	}
	a.notifier.Notify(ctx, recipientID, PushNotification{
		Title: title,
		Body:  msg.Text,
		Data:  map[string]string{"match_id": msg.MatchID},
	})
}
