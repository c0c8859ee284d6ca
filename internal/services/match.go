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

// MatchService turns reciprocal likes into matches
type MatchService struct {
	users     repository.UserStore
	swipes    repository.SwipeStore
	matches   repository.MatchStore
	broker    *changefeed.Broker
	publisher changefeed.Publisher
	announcer *Announcer
	clock     Clock

	// deterministicIDs derives match ids from the user pair
	deterministicIDs bool
}

// NewMatchService creates a new match service
func NewMatchService(
	stores *repository.Stores,
	broker *changefeed.Broker,
	publisher changefeed.Publisher,
	announcer *Announcer,
	clock Clock,
	deterministicIDs bool,
) *MatchService {
	return &MatchService{
		users:            stores.Users,
		swipes:           stores.Swipes,
		matches:          stores.Matches,
		broker:           broker,
		publisher:        publisher,
		announcer:        announcer,
		clock:            clock,
		deterministicIDs: deterministicIDs,
	}
}

// Reconcile runs after a like from a on b. With no like from b on a it does
// nothing; otherwise it reuses the pair's match or creates one.
func (s *MatchService) Reconcile(ctx context.Context, a, b string) (matching.Decision, error) {
	reciprocal, err := s.swipes.HasLike(ctx, b, a)
	if err != nil {
		return matching.Decision{}, storeError("swipes", err)
	}

	var matchesOfA []*models.Match
	if reciprocal {
		matchesOfA, err = s.matches.ListForUser(ctx, a)
		if err != nil {
			return matching.Decision{}, storeError("matches", err)
		}
	}

	decision := matching.Reconcile(reciprocal, matchesOfA, a, b)
	if decision.Action == matching.ActionCreate {
		return s.create(ctx, a, b)
	}
	return decision, nil
}

// LikeBack matches userID with someone who already liked them. An existing
// match is reused; otherwise a like is appended to the ledger and the match
// is created.
func (s *MatchService) LikeBack(ctx context.Context, userID, partnerID string) (*models.Match, error) {
	if userID == partnerID {
		return nil, apperr.Invalid("cannot match with yourself")
	}
	if _, err := s.users.GetByID(ctx, partnerID); err != nil {
		return nil, storeError("user", err)
	}

	matches, err := s.matches.ListForUser(ctx, userID)
	if err != nil {
		return nil, storeError("matches", err)
	}
	if decision := matching.Pair(matches, userID, partnerID); decision.Action == matching.ActionReuse {
		return decision.Match, nil
	}

	// only a pending like can be answered
	liked, err := s.swipes.HasLike(ctx, partnerID, userID)
	if err != nil {
		return nil, storeError("swipes", err)
	}
	if !liked {
		return nil, apperr.New(apperr.Forbidden, "user has not liked you", nil)
	}

	swipe := &models.Swipe{
		ID:        uuid.New().String(),
		SwiperID:  userID,
		TargetID:  partnerID,
		Type:      models.SwipeLike,
		Timestamp: s.clock.Now(),
	}
	if err := s.swipes.Append(ctx, swipe); err != nil {
		return nil, storeError("swipe", err)
	}

	decision, err := s.create(ctx, userID, partnerID)
	if err != nil {
		return nil, err
	}
	return decision.Match, nil
}

// create writes a new match for the pair. With deterministic ids a
// concurrent create of the same pair surfaces as a duplicate and the
// stored match is reused instead.
func (s *MatchService) create(ctx context.Context, a, b string) (matching.Decision, error) {
	id := uuid.New().String()
	if s.deterministicIDs {
		id = matching.PairID(a, b)
	}
	match := matching.NewMatch(id, a, b, s.clock.Now())

	if err := s.matches.Create(ctx, match); err != nil {
		if s.deterministicIDs && errors.Is(err, repository.ErrDuplicate) {
			existing, getErr := s.matches.GetByID(ctx, id)
			if getErr != nil {
				return matching.Decision{}, storeError("match", getErr)
			}
			return matching.Decision{Action: matching.ActionReuse, Match: existing}, nil
		}
		return matching.Decision{}, storeError("match", err)
	}

	log.Info().Str("match_id", match.ID).Strs("users", match.Users).Msg("Match created")

	s.publisher.Publish(ctx,
		changefeed.MatchesTopic(a), changefeed.MatchesTopic(b),
		changefeed.LikesTopic(a), changefeed.LikesTopic(b),
	)
	s.announcer.MatchCreated(ctx, match)

	return matching.Decision{Action: matching.ActionCreate, Match: match}, nil
}

// LikesReceived lists the profiles of users who liked userID and are not
// matched with them yet, in the order of their first like.
func (s *MatchService) LikesReceived(ctx context.Context, userID string) ([]*models.User, error) {
	likes, err := s.swipes.LikesFor(ctx, userID)
	if err != nil {
		return nil, storeError("swipes", err)
	}
	matches, err := s.matches.ListForUser(ctx, userID)
	if err != nil {
		return nil, storeError("matches", err)
	}

	ids := matching.PendingLikers(likes, matches, userID)
	if len(ids) == 0 {
		return []*models.User{}, nil
	}
	return resolveProfiles(ctx, s.users, ids)
}

// WatchLikes streams the likes-received view
func (s *MatchService) WatchLikes(ctx context.Context, userID string) *changefeed.Subscription[[]*models.User] {
	return changefeed.Watch(ctx, s.broker, []string{changefeed.LikesTopic(userID)}, func(ctx context.Context) ([]*models.User, error) {
		return s.LikesReceived(ctx, userID)
	})
}

// PairState reports where userID and otherID stand with each other
func (s *MatchService) PairState(ctx context.Context, userID, otherID string) (matching.PairState, error) {
	matches, err := s.matches.ListForUser(ctx, userID)
	if err != nil {
		return matching.NoInteraction, storeError("matches", err)
	}

	var swipes []*models.Swipe
	for _, pair := range [][2]string{{userID, otherID}, {otherID, userID}} {
		liked, err := s.swipes.HasLike(ctx, pair[0], pair[1])
		if err != nil {
			return matching.NoInteraction, storeError("swipes", err)
		}
		if liked {
			swipes = append(swipes, &models.Swipe{SwiperID: pair[0], TargetID: pair[1], Type: models.SwipeLike})
		}
	}
	return matching.StateOf(swipes, matches, userID, otherID, userID), nil
}
