// Package memory is an in-process implementation of the repository stores.
// It backs the test suite and the "memory" database driver for local runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"spark-backend/internal/models"
	"spark-backend/internal/repository"
)

// DB holds every collection behind one lock
type DB struct {
	mu       sync.RWMutex
	users    map[string]*models.User
	accounts map[string]*models.Account // by email
	swipes   []*models.Swipe
	matches  []*models.Match
	messages map[string][]*models.Message

	// FailNext makes the next call of the named operation return the error.
	// Keys look like "swipes.Append" or "matches.UpdateSummary".
	failNext map[string]error
}

// New creates an empty database
func New() *DB {
	return &DB{
		users:    make(map[string]*models.User),
		accounts: make(map[string]*models.Account),
		messages: make(map[string][]*models.Message),
		failNext: make(map[string]error),
	}
}

// Stores returns the repository bundle backed by db
func (db *DB) Stores() *repository.Stores {
	return &repository.Stores{
		Users:    &Users{db: db},
		Accounts: &Accounts{db: db},
		Swipes:   &Swipes{db: db},
		Matches:  &Matches{db: db},
		Messages: &Messages{db: db},
		Close:    func(context.Context) error { return nil },
	}
}

// FailNext arranges for the next call to op to fail with err
func (db *DB) FailNext(op string, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.failNext[op] = err
}

// must be called with the write lock held
func (db *DB) injected(op string) error {
	if err, ok := db.failNext[op]; ok {
		delete(db.failNext, op)
		return err
	}
	return nil
}

func cloneUser(u *models.User) *models.User {
	c := *u
	c.Photos = append([]string(nil), u.Photos...)
	return &c
}

func cloneMatch(m *models.Match) *models.Match {
	c := *m
	c.Users = append([]string(nil), m.Users...)
	c.SeenBy = append([]string{}, m.SeenBy...)
	return &c
}

// Users implements repository.UserStore
type Users struct{ db *DB }

func (s *Users) Save(_ context.Context, user *models.User) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.injected("users.Save"); err != nil {
		return err
	}
	stored := cloneUser(user)
	if prev, ok := s.db.users[user.ID]; ok && stored.PushToken == nil {
		stored.PushToken = prev.PushToken
	}
	s.db.users[user.ID] = stored
	return nil
}

func (s *Users) GetByID(_ context.Context, id string) (*models.User, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	u, ok := s.db.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, repository.ErrNotFound)
	}
	return cloneUser(u), nil
}

func (s *Users) GetByIDs(_ context.Context, ids []string) ([]*models.User, error) {
	if len(ids) > repository.MaxInQuery {
		return nil, fmt.Errorf("%d ids: %w", len(ids), repository.ErrTooManyIDs)
	}
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	var out []*models.User
	for _, id := range ids {
		if u, ok := s.db.users[id]; ok {
			out = append(out, cloneUser(u))
		}
	}
	return out, nil
}

func (s *Users) ListByGender(_ context.Context, gender string) ([]*models.User, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	var out []*models.User
	for _, u := range s.db.users {
		if u.Gender == gender {
			out = append(out, cloneUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Users) UpdateProfile(_ context.Context, id, name, birthday, gender string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[id]
	if !ok {
		return fmt.Errorf("user %s: %w", id, repository.ErrNotFound)
	}
	u.Name, u.Birthday, u.Gender = name, birthday, gender
	return nil
}

func (s *Users) UpdatePushToken(_ context.Context, id string, pushToken *string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[id]
	if !ok {
		return fmt.Errorf("user %s: %w", id, repository.ErrNotFound)
	}
	u.PushToken = pushToken
	return nil
}

func (s *Users) Delete(_ context.Context, id string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	delete(s.db.users, id)
	return nil
}

// Accounts implements repository.AccountStore
type Accounts struct{ db *DB }

func (s *Accounts) Create(_ context.Context, account *models.Account) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	key := strings.ToLower(account.Email)
	if _, ok := s.db.accounts[key]; ok {
		return fmt.Errorf("account %s: %w", account.Email, repository.ErrDuplicate)
	}
	c := *account
	s.db.accounts[key] = &c
	return nil
}

func (s *Accounts) GetByEmail(_ context.Context, email string) (*models.Account, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	a, ok := s.db.accounts[strings.ToLower(email)]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", email, repository.ErrNotFound)
	}
	c := *a
	return &c, nil
}

func (s *Accounts) Delete(_ context.Context, id string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for k, a := range s.db.accounts {
		if a.ID == id {
			delete(s.db.accounts, k)
			return nil
		}
	}
	return fmt.Errorf("account %s: %w", id, repository.ErrNotFound)
}

// Swipes implements repository.SwipeStore
type Swipes struct{ db *DB }

func (s *Swipes) Append(_ context.Context, swipe *models.Swipe) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.injected("swipes.Append"); err != nil {
		return err
	}
	c := *swipe
	s.db.swipes = append(s.db.swipes, &c)
	return nil
}

func (s *Swipes) TargetsOf(_ context.Context, swiperID string) ([]string, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	seen := make(map[string]struct{})
	var out []string
	for _, sw := range s.db.swipes {
		if sw.SwiperID != swiperID {
			continue
		}
		if _, ok := seen[sw.TargetID]; ok {
			continue
		}
		seen[sw.TargetID] = struct{}{}
		out = append(out, sw.TargetID)
	}
	return out, nil
}

func (s *Swipes) HasLike(_ context.Context, swiperID, targetID string) (bool, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	for _, sw := range s.db.swipes {
		if sw.SwiperID == swiperID && sw.TargetID == targetID && sw.Type == models.SwipeLike {
			return true, nil
		}
	}
	return false, nil
}

func (s *Swipes) LikesFor(_ context.Context, targetID string) ([]*models.Swipe, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	var out []*models.Swipe
	for _, sw := range s.db.swipes {
		if sw.TargetID == targetID && sw.Type == models.SwipeLike {
			c := *sw
			out = append(out, &c)
		}
	}
	return out, nil
}

// All returns a copy of the ledger
func (s *Swipes) All() []*models.Swipe {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	out := make([]*models.Swipe, 0, len(s.db.swipes))
	for _, sw := range s.db.swipes {
		c := *sw
		out = append(out, &c)
	}
	return out
}

// Matches implements repository.MatchStore
type Matches struct{ db *DB }

func (s *Matches) find(id string) *models.Match {
	for _, m := range s.db.matches {
		if m.ID == id {
			return m
		}
	}
	return nil
}

func (s *Matches) Create(_ context.Context, match *models.Match) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.injected("matches.Create"); err != nil {
		return err
	}
	if s.find(match.ID) != nil {
		return fmt.Errorf("match %s: %w", match.ID, repository.ErrDuplicate)
	}
	s.db.matches = append(s.db.matches, cloneMatch(match))
	return nil
}

func (s *Matches) GetByID(_ context.Context, id string) (*models.Match, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	m := s.find(id)
	if m == nil {
		return nil, fmt.Errorf("match %s: %w", id, repository.ErrNotFound)
	}
	return cloneMatch(m), nil
}

func (s *Matches) ListForUser(_ context.Context, userID string) ([]*models.Match, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	var out []*models.Match
	for _, m := range s.db.matches {
		if m.Has(userID) {
			out = append(out, cloneMatch(m))
		}
	}
	return out, nil
}

func (s *Matches) MarkSeen(_ context.Context, matchID, userID string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.injected("matches.MarkSeen"); err != nil {
		return err
	}
	m := s.find(matchID)
	if m == nil {
		return fmt.Errorf("match %s: %w", matchID, repository.ErrNotFound)
	}
	for _, id := range m.SeenBy {
		if id == userID {
			return nil
		}
	}
	m.SeenBy = append(m.SeenBy, userID)
	return nil
}

func (s *Matches) UpdateSummary(_ context.Context, matchID, text string, ts time.Time, senderID string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.injected("matches.UpdateSummary"); err != nil {
		return err
	}
	m := s.find(matchID)
	if m == nil {
		return fmt.Errorf("match %s: %w", matchID, repository.ErrNotFound)
	}
	m.LastMessage = &text
	m.LastMessageTimestamp = &ts
	m.LastMessageSenderID = &senderID
	m.SeenBy = []string{senderID}
	return nil
}

func (s *Matches) DeleteForUser(_ context.Context, userID string) ([]string, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var ids []string
	kept := s.db.matches[:0]
	for _, m := range s.db.matches {
		if m.Has(userID) {
			ids = append(ids, m.ID)
			delete(s.db.messages, m.ID)
			continue
		}
		kept = append(kept, m)
	}
	s.db.matches = kept
	return ids, nil
}

// Messages implements repository.MessageStore
type Messages struct{ db *DB }

func (s *Messages) Append(_ context.Context, msg *models.Message) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.injected("messages.Append"); err != nil {
		return err
	}
	c := *msg
	s.db.messages[msg.MatchID] = append(s.db.messages[msg.MatchID], &c)
	return nil
}

func (s *Messages) List(_ context.Context, matchID string) ([]*models.Message, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	src := s.db.messages[matchID]
	out := make([]*models.Message, 0, len(src))
	for _, m := range src {
		c := *m
		out = append(out, &c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

var (
	_ repository.UserStore    = (*Users)(nil)
	_ repository.AccountStore = (*Accounts)(nil)
	_ repository.SwipeStore   = (*Swipes)(nil)
	_ repository.MatchStore   = (*Matches)(nil)
	_ repository.MessageStore = (*Messages)(nil)
)
