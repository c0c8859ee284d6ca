package services

import (
	"context"
	"sync"
	"time"

	"spark-backend/internal/apperr"
	"spark-backend/internal/changefeed"
	"spark-backend/internal/matching"
	"spark-backend/internal/models"
	"spark-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/log"
)

// Deck keeps each user's loaded discovery candidates. It is local to one
// server instance: entries expire after ttl and the least recently loaded
// users are evicted beyond size, so a user routed to another instance or
// returning later simply reloads.
type Deck struct {
	mu    sync.Mutex
	cards *expirable.LRU[string, []*models.User]
}

// NewDeck creates an empty deck holding at most size users for ttl each
func NewDeck(size int, ttl time.Duration) *Deck {
	return &Deck{cards: expirable.NewLRU[string, []*models.User](size, nil, ttl)}
}

// Set replaces the user's candidates
func (d *Deck) Set(userID string, candidates []*models.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cards.Add(userID, append([]*models.User(nil), candidates...))
}

// Get returns a copy of the user's candidates
func (d *Deck) Get(userID string) []*models.User {
	d.mu.Lock()
	defer d.mu.Unlock()
	cards, _ := d.cards.Peek(userID)
	return append([]*models.User{}, cards...)
}

// Remove drops targetID from the user's candidates and reports whether it was there
func (d *Deck) Remove(userID, targetID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	cards, ok := d.cards.Peek(userID)
	if !ok {
		return false
	}
	for i, u := range cards {
		if u.ID == targetID {
			d.cards.Add(userID, append(cards[:i:i], cards[i+1:]...))
			return true
		}
	}
	return false
}

// Forget drops the user's own deck and removes them from every other deck
func (d *Deck) Forget(userID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.cards.Remove(userID)
	for _, owner := range d.cards.Keys() {
		cards, ok := d.cards.Peek(owner)
		if !ok {
			continue
		}
		for i, u := range cards {
			if u.ID == userID {
				d.cards.Add(owner, append(cards[:i:i], cards[i+1:]...))
				break
			}
		}
	}
}

// Len reports how many users currently hold a deck
func (d *Deck) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cards.Len()
}

// SwipeResult is the outcome of recording a swipe
type SwipeResult struct {
	Swipe       *models.Swipe `json:"swipe"`
	Matched     bool          `json:"matched"`
	Match       *models.Match `json:"match,omitempty"`
	MatchedUser *models.User  `json:"matched_user,omitempty"`
}

// SwipeService records decisions on discovery candidates
type SwipeService struct {
	users     repository.UserStore
	swipes    repository.SwipeStore
	matches   repository.MatchStore
	matcher   *MatchService
	deck      *Deck
	publisher changefeed.Publisher
	clock     Clock
}

// NewSwipeService creates a new swipe service
func NewSwipeService(stores *repository.Stores, matcher *MatchService, deck *Deck, publisher changefeed.Publisher, clock Clock) *SwipeService {
	return &SwipeService{
		users:     stores.Users,
		swipes:    stores.Swipes,
		matches:   stores.Matches,
		matcher:   matcher,
		deck:      deck,
		publisher: publisher,
		clock:     clock,
	}
}

// LoadCandidates builds the user's deck: profiles of the gender they are
// interested in that they have not swiped on and are not matched with.
func (s *SwipeService) LoadCandidates(ctx context.Context, userID string) ([]*models.User, error) {
	me, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, storeError("profile", err)
	}

	pool, err := s.users.ListByGender(ctx, me.InterestedIn)
	if err != nil {
		return nil, storeError("users", err)
	}
	swiped, err := s.swipes.TargetsOf(ctx, userID)
	if err != nil {
		return nil, storeError("swipes", err)
	}
	matches, err := s.matches.ListForUser(ctx, userID)
	if err != nil {
		return nil, storeError("matches", err)
	}

	candidates := matching.Candidates(pool, userID, swiped, matches)
	s.deck.Set(userID, candidates)
	return candidates, nil
}

// Deck returns the candidates still waiting for a decision
func (s *SwipeService) Deck(userID string) []*models.User {
	return s.deck.Get(userID)
}

// RecordSwipe runs the two-step swipe workflow. Step one removes the target
// from the caller's deck; step two appends the swipe to the ledger. The
// steps are not atomic: if the append fails the error is returned and the
// card stays removed. A like then goes through reconciliation.
func (s *SwipeService) RecordSwipe(ctx context.Context, swiperID, targetID string, decision models.SwipeType) (*SwipeResult, error) {
	if !decision.Valid() {
		return nil, apperr.Invalid("swipe type must be like or pass")
	}
	if targetID == "" {
		return nil, apperr.Invalid("target_id is required")
	}
	if swiperID == targetID {
		return nil, apperr.Invalid("cannot swipe on yourself")
	}

	s.deck.Remove(swiperID, targetID)

	swipe := &models.Swipe{
		ID:        uuid.New().String(),
		SwiperID:  swiperID,
		TargetID:  targetID,
		Type:      decision,
		Timestamp: s.clock.Now(),
	}
	if err := s.swipes.Append(ctx, swipe); err != nil {
		log.Warn().Err(err).Str("user_id", swiperID).Str("target_id", targetID).Msg("Swipe not recorded, card already removed")
		return nil, storeError("swipe", err)
	}

	result := &SwipeResult{Swipe: swipe}
	if decision != models.SwipeLike {
		return result, nil
	}

	s.publisher.Publish(ctx, changefeed.LikesTopic(targetID))

	outcome, err := s.matcher.Reconcile(ctx, swiperID, targetID)
	if err != nil {
		return nil, err
	}
	if outcome.Action == matching.ActionNone {
		return result, nil
	}

	result.Matched = true
	result.Match = outcome.Match
	if target, err := s.users.GetByID(ctx, targetID); err == nil {
		result.MatchedUser = target
	}
	return result, nil
}
