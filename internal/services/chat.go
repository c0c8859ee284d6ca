package services

import (
	"context"
	"errors"

	"spark-backend/internal/apperr"
	"spark-backend/internal/changefeed"
	"spark-backend/internal/matching"
	"spark-backend/internal/models"
	"spark-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrBlankMessage is returned when the text is empty after trimming.
// Nothing is written in that case.
var ErrBlankMessage = apperr.Invalid("message is empty")

// ChatService is the conversation store: per-match messages and the match summary
type ChatService struct {
	users     repository.UserStore
	matches   repository.MatchStore
	messages  repository.MessageStore
	broker    *changefeed.Broker
	publisher changefeed.Publisher
	announcer *Announcer
	clock     Clock
}

// NewChatService creates a new chat service
func NewChatService(
	stores *repository.Stores,
	broker *changefeed.Broker,
	publisher changefeed.Publisher,
	announcer *Announcer,
	clock Clock,
) *ChatService {
	return &ChatService{
		users:     stores.Users,
		matches:   stores.Matches,
		messages:  stores.Messages,
		broker:    broker,
		publisher: publisher,
		announcer: announcer,
		clock:     clock,
	}
}

// Conversation is an open chat: the match, the other participant and a
// live stream of the message list.
type Conversation struct {
	Match    *models.Match
	Partner  *models.User
	Messages *changefeed.Subscription[[]*models.Message]
}

// Close releases the message subscription. Seen state is left untouched.
func (c *Conversation) Close() {
	c.Messages.Close()
}

// member loads the match and checks that userID takes part in it
func (s *ChatService) member(ctx context.Context, userID, matchID string) (*models.Match, error) {
	match, err := s.matches.GetByID(ctx, matchID)
	if err != nil {
		return nil, storeError("match", err)
	}
	if !match.Has(userID) {
		return nil, apperr.New(apperr.Forbidden, "you are not part of this match", nil)
	}
	return match, nil
}

// OpenConversation marks the match seen by userID and starts streaming its
// messages. The stream ends when ctx is cancelled or the conversation is closed.
func (s *ChatService) OpenConversation(ctx context.Context, userID, matchID string) (*Conversation, error) {
	match, err := s.member(ctx, userID, matchID)
	if err != nil {
		return nil, err
	}

	if err := s.matches.MarkSeen(ctx, matchID, userID); err != nil {
		return nil, storeError("match", err)
	}
	match = matching.ApplySeen(match, userID)
	s.publisher.Publish(ctx, changefeed.MatchesTopic(userID))

	var partner *models.User
	if partnerID, ok := match.Partner(userID); ok {
		partner, err = s.users.GetByID(ctx, partnerID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, storeError("user", err)
		}
	}

	sub := changefeed.Watch(ctx, s.broker, []string{changefeed.MessagesTopic(matchID)}, func(ctx context.Context) ([]*models.Message, error) {
		msgs, err := s.messages.List(ctx, matchID)
		if err != nil {
			return nil, storeError("messages", err)
		}
		return msgs, nil
	})

	log.Debug().Str("user_id", userID).Str("match_id", matchID).Msg("Conversation opened")
	return &Conversation{Match: match, Partner: partner, Messages: sub}, nil
}

// SendMessage appends a message and then updates the match summary. The
// writes are independent: when the summary update fails the message is kept
// and returned together with the error.
func (s *ChatService) SendMessage(ctx context.Context, userID, matchID, text string) (*models.Message, error) {
	text, ok := matching.NormalizeMessage(text)
	if !ok {
		return nil, ErrBlankMessage
	}

	match, err := s.member(ctx, userID, matchID)
	if err != nil {
		return nil, err
	}

	msg := &models.Message{
		ID:        uuid.New().String(),
		MatchID:   matchID,
		SenderID:  userID,
		Text:      text,
		Timestamp: s.clock.Now(),
	}
	if err := s.messages.Append(ctx, msg); err != nil {
		return nil, storeError("message", err)
	}
	s.publisher.Publish(ctx, changefeed.MessagesTopic(matchID))

	var summaryErr error
	if err := s.matches.UpdateSummary(ctx, matchID, text, msg.Timestamp, userID); err != nil {
		log.Error().Err(err).Str("match_id", matchID).Msg("Message stored but match summary not updated")
		summaryErr = apperr.DB(err)
	}

	topics := make([]string, 0, len(match.Users))
	for _, u := range match.Users {
		topics = append(topics, changefeed.MatchesTopic(u))
	}
	s.publisher.Publish(ctx, topics...)

	if partnerID, ok := match.Partner(userID); ok {
		s.announcer.MessageSent(ctx, msg, partnerID)
	}

	return msg, summaryErr
}

// MarkSeen adds userID to the match's seen-by set
func (s *ChatService) MarkSeen(ctx context.Context, userID, matchID string) error {
	if _, err := s.member(ctx, userID, matchID); err != nil {
		return err
	}
	if err := s.matches.MarkSeen(ctx, matchID, userID); err != nil {
		return storeError("match", err)
	}
	s.publisher.Publish(ctx, changefeed.MatchesTopic(userID))
	return nil
}

// Messages returns the message list of a match, oldest first
func (s *ChatService) Messages(ctx context.Context, userID, matchID string) ([]*models.Message, error) {
	if _, err := s.member(ctx, userID, matchID); err != nil {
		return nil, err
	}
	msgs, err := s.messages.List(ctx, matchID)
	if err != nil {
		return nil, storeError("messages", err)
	}
	return msgs, nil
}

// ChatList returns userID's matches with partner profiles, one per partner,
// most recent conversation first.
func (s *ChatService) ChatList(ctx context.Context, userID string) ([]*models.MatchWithUser, error) {
	matches, err := s.matches.ListForUser(ctx, userID)
	if err != nil {
		return nil, storeError("matches", err)
	}

	partnerIDs := make([]string, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		p, ok := m.Partner(userID)
		if !ok {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		partnerIDs = append(partnerIDs, p)
	}

	profiles, err := resolveProfiles(ctx, s.users, partnerIDs)
	if err != nil {
		return nil, err
	}
	partners := make(map[string]*models.User, len(profiles))
	for _, u := range profiles {
		partners[u.ID] = u
	}

	return matching.ChatList(matches, partners, userID), nil
}

// WatchChatList streams the chat list, reloading on every match change
func (s *ChatService) WatchChatList(ctx context.Context, userID string) *changefeed.Subscription[[]*models.MatchWithUser] {
	return changefeed.Watch(ctx, s.broker, []string{changefeed.MatchesTopic(userID)}, func(ctx context.Context) ([]*models.MatchWithUser, error) {
		return s.ChatList(ctx, userID)
	})
}

// UnreadCount counts conversations with a message userID has not seen
func (s *ChatService) UnreadCount(ctx context.Context, userID string) (int, error) {
	matches, err := s.matches.ListForUser(ctx, userID)
	if err != nil {
		return 0, storeError("matches", err)
	}
	return matching.UnreadCount(matches, userID), nil
}
