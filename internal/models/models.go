package models

import (
	"strings"
	"time"
)

// SwipeType is the decision recorded for a discovery candidate
type SwipeType string

const (
	SwipeLike SwipeType = "like"
	SwipePass SwipeType = "pass"
)

// Valid reports whether t is a known decision
func (t SwipeType) Valid() bool {
	return t == SwipeLike || t == SwipePass
}

// User represents a profile in the user directory
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Gender       string    `json:"gender"`
	Birthday     string    `json:"birthday"`
	InterestedIn string    `json:"interested_in"`
	PhoneNumber  string    `json:"phone_number,omitempty"`
	Photos       []string  `json:"photos"`
	PushToken    *string   `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// IsComplete reports whether the profile can leave onboarding
func (u *User) IsComplete() bool {
	return strings.TrimSpace(u.Name) != "" && len(u.Photos) > 0
}

// Account holds the credentials for a user
type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Swipe is an immutable like/pass decision by one user about another
type Swipe struct {
	ID        string    `json:"id"`
	SwiperID  string    `json:"swiper_id"`
	TargetID  string    `json:"target_id"`
	Type      SwipeType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// Match represents a mutual like between exactly two users
type Match struct {
	ID                   string     `json:"id"`
	Users                []string   `json:"users"`
	LastMessage          *string    `json:"last_message,omitempty"`
	LastMessageTimestamp *time.Time `json:"last_message_timestamp,omitempty"`
	LastMessageSenderID  *string    `json:"last_message_sender_id,omitempty"`
	SeenBy               []string   `json:"seen_by"`
	CreatedAt            time.Time  `json:"created_at"`
}

// Has reports whether userID participates in the match
func (m *Match) Has(userID string) bool {
	for _, u := range m.Users {
		if u == userID {
			return true
		}
	}
	return false
}

// Partner returns the participant that is not userID
func (m *Match) Partner(userID string) (string, bool) {
	if len(m.Users) != 2 || !m.Has(userID) {
		return "", false
	}
	for _, u := range m.Users {
		if u != userID {
			return u, true
		}
	}
	return "", false
}

// Message is a single chat line inside a match
type Message struct {
	ID        string    `json:"id"`
	MatchID   string    `json:"match_id"`
	SenderID  string    `json:"sender_id"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// MatchWithUser pairs a match with the other participant's profile
type MatchWithUser struct {
	Match   *Match `json:"match"`
	User    *User  `json:"user"`
	Unread  bool   `json:"unread"`
	Preview string `json:"preview"`
}
