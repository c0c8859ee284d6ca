package repository

import (
	"context"
	"errors"
	"time"

	"spark-backend/internal/models"
)

// MaxInQuery is the largest id set a directory lookup accepts in one call
const MaxInQuery = 10

var (
	// ErrNotFound is returned when a document does not exist
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a create collides with an existing key
	ErrDuplicate = errors.New("duplicate key")
	// ErrTooManyIDs is returned by GetByIDs for batches over MaxInQuery
	ErrTooManyIDs = errors.New("too many ids in one lookup")
)

// UserStore is the user directory
type UserStore interface {
	Save(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	// GetByIDs resolves at most MaxInQuery ids; unknown ids are skipped
	GetByIDs(ctx context.Context, ids []string) ([]*models.User, error)
	ListByGender(ctx context.Context, gender string) ([]*models.User, error)
	UpdateProfile(ctx context.Context, id, name, birthday, gender string) error
	UpdatePushToken(ctx context.Context, id string, pushToken *string) error
	Delete(ctx context.Context, id string) error
}

// AccountStore holds login credentials
type AccountStore interface {
	Create(ctx context.Context, account *models.Account) error
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	Delete(ctx context.Context, id string) error
}

// SwipeStore is the append-only swipe ledger
type SwipeStore interface {
	Append(ctx context.Context, swipe *models.Swipe) error
	// TargetsOf returns every target id swiperID has swiped on
	TargetsOf(ctx context.Context, swiperID string) ([]string, error)
	HasLike(ctx context.Context, swiperID, targetID string) (bool, error)
	// LikesFor returns like swipes whose target is targetID, oldest first
	LikesFor(ctx context.Context, targetID string) ([]*models.Swipe, error)
}

// MatchStore holds match documents and their summaries
type MatchStore interface {
	Create(ctx context.Context, match *models.Match) error
	GetByID(ctx context.Context, id string) (*models.Match, error)
	// ListForUser returns every match whose users array contains userID
	ListForUser(ctx context.Context, userID string) ([]*models.Match, error)
	// MarkSeen adds userID to seen_by atomically, never removing members
	MarkSeen(ctx context.Context, matchID, userID string) error
	// UpdateSummary sets the last message fields and resets seen_by to the sender
	UpdateSummary(ctx context.Context, matchID, text string, ts time.Time, senderID string) error
	// DeleteForUser removes the user's matches with their messages
	DeleteForUser(ctx context.Context, userID string) ([]string, error)
}

// MessageStore is the per-match ordered message log
type MessageStore interface {
	Append(ctx context.Context, msg *models.Message) error
	// List returns the messages of a match ordered by timestamp ascending
	List(ctx context.Context, matchID string) ([]*models.Message, error)
}

// Stores bundles one implementation of every collection
type Stores struct {
	Users    UserStore
	Accounts AccountStore
	Swipes   SwipeStore
	Matches  MatchStore
	Messages MessageStore
	Close    func(ctx context.Context) error
}
