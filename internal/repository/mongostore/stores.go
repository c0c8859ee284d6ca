package mongostore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"spark-backend/internal/models"
	"spark-backend/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UserStore implements repository.UserStore
type UserStore struct {
	coll *mongo.Collection
}

func (s *UserStore) Save(ctx context.Context, user *models.User) error {
	photos := user.Photos
	if photos == nil {
		photos = []string{}
	}
	set := bson.M{
		"name":         user.Name,
		"gender":       user.Gender,
		"birthday":     user.Birthday,
		"interestedin": user.InterestedIn,
		"phoneNumber":  user.PhoneNumber,
		"photos":       photos,
	}
	update := bson.M{
		"$set":         set,
		"$setOnInsert": bson.M{"createdAt": user.CreatedAt},
	}
	_, err := s.coll.UpdateByID(ctx, user.ID, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	var doc userDocument
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, notFound(err, "user", id)
	}
	return doc.model(), nil
}

func (s *UserStore) GetByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	if len(ids) > repository.MaxInQuery {
		return nil, fmt.Errorf("%d ids: %w", len(ids), repository.ErrTooManyIDs)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return s.find(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

func (s *UserStore) ListByGender(ctx context.Context, gender string) ([]*models.User, error) {
	return s.find(ctx, bson.M{"gender": gender}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
}

func (s *UserStore) find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]*models.User, error) {
	cur, err := s.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	docs, err := decodeAll[userDocument](ctx, cur, "users")
	if err != nil {
		return nil, err
	}
	users := make([]*models.User, 0, len(docs))
	for _, d := range docs {
		users = append(users, d.model())
	}
	return users, nil
}

func (s *UserStore) UpdateProfile(ctx context.Context, id, name, birthday, gender string) error {
	return s.update(ctx, id, bson.M{"name": name, "birthday": birthday, "gender": gender})
}

func (s *UserStore) UpdatePushToken(ctx context.Context, id string, pushToken *string) error {
	return s.update(ctx, id, bson.M{"pushToken": pushToken})
}

func (s *UserStore) update(ctx context.Context, id string, set bson.M) error {
	res, err := s.coll.UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("user %s: %w", id, repository.ErrNotFound)
	}
	return nil
}

func (s *UserStore) Delete(ctx context.Context, id string) error {
	if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

// AccountStore implements repository.AccountStore
type AccountStore struct {
	coll *mongo.Collection
}

func (s *AccountStore) Create(ctx context.Context, account *models.Account) error {
	doc := accountDocument{
		ID:           account.ID,
		Email:        strings.ToLower(account.Email),
		PasswordHash: account.PasswordHash,
		CreatedAt:    account.CreatedAt,
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("account %s: %w", account.Email, repository.ErrDuplicate)
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (s *AccountStore) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	var doc accountDocument
	if err := s.coll.FindOne(ctx, bson.M{"email": strings.ToLower(email)}).Decode(&doc); err != nil {
		return nil, notFound(err, "account", email)
	}
	return &models.Account{
		ID:           doc.ID,
		Email:        doc.Email,
		PasswordHash: doc.PasswordHash,
		CreatedAt:    doc.CreatedAt,
	}, nil
}

func (s *AccountStore) Delete(ctx context.Context, id string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("account %s: %w", id, repository.ErrNotFound)
	}
	return nil
}

// SwipeStore implements repository.SwipeStore
type SwipeStore struct {
	coll *mongo.Collection
}

func (s *SwipeStore) Append(ctx context.Context, swipe *models.Swipe) error {
	doc := swipeDocument{
		ID:        swipe.ID,
		SwiperID:  swipe.SwiperID,
		TargetID:  swipe.TargetID,
		Type:      string(swipe.Type),
		Timestamp: swipe.Timestamp,
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to append swipe: %w", err)
	}
	return nil
}

func (s *SwipeStore) TargetsOf(ctx context.Context, swiperID string) ([]string, error) {
	values, err := s.coll.Distinct(ctx, "targetId", bson.M{"swiperId": swiperID})
	if err != nil {
		return nil, fmt.Errorf("failed to get swiped targets: %w", err)
	}
	targets := make([]string, 0, len(values))
	for _, v := range values {
		if id, ok := v.(string); ok {
			targets = append(targets, id)
		}
	}
	return targets, nil
}

func (s *SwipeStore) HasLike(ctx context.Context, swiperID, targetID string) (bool, error) {
	n, err := s.coll.CountDocuments(ctx,
		bson.M{"swiperId": swiperID, "targetId": targetID, "type": string(models.SwipeLike)},
		options.Count().SetLimit(1),
	)
	if err != nil {
		return false, fmt.Errorf("failed to check like: %w", err)
	}
	return n > 0, nil
}

func (s *SwipeStore) LikesFor(ctx context.Context, targetID string) ([]*models.Swipe, error) {
	cur, err := s.coll.Find(ctx,
		bson.M{"targetId": targetID, "type": string(models.SwipeLike)},
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get likes: %w", err)
	}
	docs, err := decodeAll[swipeDocument](ctx, cur, "swipes")
	if err != nil {
		return nil, err
	}
	swipes := make([]*models.Swipe, 0, len(docs))
	for _, d := range docs {
		swipes = append(swipes, d.model())
	}
	return swipes, nil
}

// MatchStore implements repository.MatchStore
type MatchStore struct {
	coll     *mongo.Collection
	messages *mongo.Collection
}

func (s *MatchStore) Create(ctx context.Context, match *models.Match) error {
	if _, err := s.coll.InsertOne(ctx, newMatchDocument(match)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("match %s: %w", match.ID, repository.ErrDuplicate)
		}
		return fmt.Errorf("failed to create match: %w", err)
	}
	return nil
}

func (s *MatchStore) GetByID(ctx context.Context, id string) (*models.Match, error) {
	var doc matchDocument
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, notFound(err, "match", id)
	}
	return doc.model(), nil
}

func (s *MatchStore) ListForUser(ctx context.Context, userID string) ([]*models.Match, error) {
	// equality on an array field matches any element
	cur, err := s.coll.Find(ctx, bson.M{"users": userID},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to get matches: %w", err)
	}
	docs, err := decodeAll[matchDocument](ctx, cur, "matches")
	if err != nil {
		return nil, err
	}
	matches := make([]*models.Match, 0, len(docs))
	for _, d := range docs {
		matches = append(matches, d.model())
	}
	return matches, nil
}

func (s *MatchStore) MarkSeen(ctx context.Context, matchID, userID string) error {
	res, err := s.coll.UpdateByID(ctx, matchID, bson.M{"$addToSet": bson.M{"seenBy": userID}})
	if err != nil {
		return fmt.Errorf("failed to mark match seen: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("match %s: %w", matchID, repository.ErrNotFound)
	}
	return nil
}

func (s *MatchStore) UpdateSummary(ctx context.Context, matchID, text string, ts time.Time, senderID string) error {
	res, err := s.coll.UpdateByID(ctx, matchID, bson.M{"$set": bson.M{
		"lastMessage":          text,
		"lastMessageTimestamp": ts,
		"lastMessageSenderId":  senderID,
		"seenBy":               []string{senderID},
	}})
	if err != nil {
		return fmt.Errorf("failed to update match summary: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("match %s: %w", matchID, repository.ErrNotFound)
	}
	return nil
}

func (s *MatchStore) DeleteForUser(ctx context.Context, userID string) ([]string, error) {
	values, err := s.coll.Distinct(ctx, "_id", bson.M{"users": userID})
	if err != nil {
		return nil, fmt.Errorf("failed to list matches for deletion: %w", err)
	}
	ids := make([]string, 0, len(values))
	for _, v := range values {
		if id, ok := v.(string); ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if _, err := s.messages.DeleteMany(ctx, bson.M{"matchId": bson.M{"$in": ids}}); err != nil {
		return nil, fmt.Errorf("failed to delete messages: %w", err)
	}
	if _, err := s.coll.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}}); err != nil {
		return nil, fmt.Errorf("failed to delete matches: %w", err)
	}
	return ids, nil
}

// MessageStore implements repository.MessageStore
type MessageStore struct {
	coll *mongo.Collection
}

func (s *MessageStore) Append(ctx context.Context, msg *models.Message) error {
	doc := messageDocument{
		ID:        msg.ID,
		MatchID:   msg.MatchID,
		SenderID:  msg.SenderID,
		Text:      msg.Text,
		Timestamp: msg.Timestamp,
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

func (s *MessageStore) List(ctx context.Context, matchID string) ([]*models.Message, error) {
	cur, err := s.coll.Find(ctx, bson.M{"matchId": matchID},
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	docs, err := decodeAll[messageDocument](ctx, cur, "messages")
	if err != nil {
		return nil, err
	}
	messages := make([]*models.Message, 0, len(docs))
	for _, d := range docs {
		messages = append(messages, &models.Message{
			ID:        d.ID,
			MatchID:   d.MatchID,
			SenderID:  d.SenderID,
			Text:      d.Text,
			Timestamp: d.Timestamp,
		})
	}
	return messages, nil
}

var (
	_ repository.UserStore    = (*UserStore)(nil)
	_ repository.AccountStore = (*AccountStore)(nil)
	_ repository.SwipeStore   = (*SwipeStore)(nil)
	_ repository.MatchStore   = (*MatchStore)(nil)
	_ repository.MessageStore = (*MessageStore)(nil)
)
