package mongostore

import (
	"time"

	"spark-backend/internal/models"
)

type userDocument struct {
	ID           string    `bson:"_id"`
	Name         string    `bson:"name"`
	Gender       string    `bson:"gender"`
	Birthday     string    `bson:"birthday"`
	InterestedIn string    `bson:"interestedin"`
	PhoneNumber  string    `bson:"phoneNumber"`
	Photos       []string  `bson:"photos"`
	PushToken    *string   `bson:"pushToken,omitempty"`
	CreatedAt    time.Time `bson:"createdAt"`
}

func (d *userDocument) model() *models.User {
	return &models.User{
		ID:           d.ID,
		Name:         d.Name,
		Gender:       d.Gender,
		Birthday:     d.Birthday,
		InterestedIn: d.InterestedIn,
		PhoneNumber:  d.PhoneNumber,
		Photos:       d.Photos,
		PushToken:    d.PushToken,
		CreatedAt:    d.CreatedAt,
	}
}

type accountDocument struct {
	ID           string    `bson:"_id"`
	Email        string    `bson:"email"`
	PasswordHash string    `bson:"passwordHash"`
	CreatedAt    time.Time `bson:"createdAt"`
}

type swipeDocument struct {
	ID        string    `bson:"_id"`
	SwiperID  string    `bson:"swiperId"`
	TargetID  string    `bson:"targetId"`
	Type      string    `bson:"type"`
	Timestamp time.Time `bson:"timestamp"`
}

func (d *swipeDocument) model() *models.Swipe {
	return &models.Swipe{
		ID:        d.ID,
		SwiperID:  d.SwiperID,
		TargetID:  d.TargetID,
		Type:      models.SwipeType(d.Type),
		Timestamp: d.Timestamp,
	}
}

type matchDocument struct {
	ID                   string     `bson:"_id"`
	Users                []string   `bson:"users"`
	LastMessage          *string    `bson:"lastMessage"`
	LastMessageTimestamp *time.Time `bson:"lastMessageTimestamp"`
	LastMessageSenderID  *string    `bson:"lastMessageSenderId"`
	SeenBy               []string   `bson:"seenBy"`
	CreatedAt            time.Time  `bson:"createdAt"`
}

func newMatchDocument(m *models.Match) *matchDocument {
	seenBy := m.SeenBy
	if seenBy == nil {
		seenBy = []string{}
	}
	return &matchDocument{
		ID:                   m.ID,
		Users:                m.Users,
		LastMessage:          m.LastMessage,
		LastMessageTimestamp: m.LastMessageTimestamp,
		LastMessageSenderID:  m.LastMessageSenderID,
		SeenBy:               seenBy,
		CreatedAt:            m.CreatedAt,
	}
}

func (d *matchDocument) model() *models.Match {
	seenBy := d.SeenBy
	if seenBy == nil {
		seenBy = []string{}
	}
	return &models.Match{
		ID:                   d.ID,
		Users:                d.Users,
		LastMessage:          d.LastMessage,
		LastMessageTimestamp: d.LastMessageTimestamp,
		LastMessageSenderID:  d.LastMessageSenderID,
		SeenBy:               seenBy,
		CreatedAt:            d.CreatedAt,
	}
}

type messageDocument struct {
	ID        string    `bson:"_id"`
	MatchID   string    `bson:"matchId"`
	SenderID  string    `bson:"senderId"`
	Text      string    `bson:"text"`
	Timestamp time.Time `bson:"timestamp"`
}
