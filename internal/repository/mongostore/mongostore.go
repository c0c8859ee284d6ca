// Package mongostore implements the repository stores on MongoDB. Collections
// mirror the document layout: users, accounts, swipes, matches, messages.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"spark-backend/internal/repository"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DB wraps the client and the collections used by the stores
type DB struct {
	client   *mongo.Client
	users    *mongo.Collection
	accounts *mongo.Collection
	swipes   *mongo.Collection
	matches  *mongo.Collection
	messages *mongo.Collection
}

// Connect dials MongoDB and verifies the connection
func Connect(ctx context.Context, uri, database string) (*DB, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(database)
	log.Info().Str("database", database).Msg("Connected to MongoDB")

	return &DB{
		client:   client,
		users:    db.Collection("users"),
		accounts: db.Collection("accounts"),
		swipes:   db.Collection("swipes"),
		matches:  db.Collection("matches"),
		messages: db.Collection("messages"),
	}, nil
}

// EnsureIndexes creates the indexes the queries rely on
func (db *DB) EnsureIndexes(ctx context.Context) error {
	indexes := []struct {
		coll  *mongo.Collection
		model mongo.IndexModel
	}{
		{db.accounts, mongo.IndexModel{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)}},
		{db.users, mongo.IndexModel{Keys: bson.D{{Key: "gender", Value: 1}}}},
		{db.swipes, mongo.IndexModel{Keys: bson.D{{Key: "swiperId", Value: 1}, {Key: "targetId", Value: 1}}}},
		{db.swipes, mongo.IndexModel{Keys: bson.D{{Key: "targetId", Value: 1}, {Key: "type", Value: 1}}}},
		{db.matches, mongo.IndexModel{Keys: bson.D{{Key: "users", Value: 1}}}},
		{db.messages, mongo.IndexModel{Keys: bson.D{{Key: "matchId", Value: 1}, {Key: "timestamp", Value: 1}}}},
	}
	for _, idx := range indexes {
		if _, err := idx.coll.Indexes().CreateOne(ctx, idx.model); err != nil {
			return fmt.Errorf("failed to create index on %s: %w", idx.coll.Name(), err)
		}
	}
	return nil
}

// Stores returns the repository bundle backed by MongoDB
func (db *DB) Stores() *repository.Stores {
	return &repository.Stores{
		Users:    &UserStore{coll: db.users},
		Accounts: &AccountStore{coll: db.accounts},
		Swipes:   &SwipeStore{coll: db.swipes},
		Matches:  &MatchStore{coll: db.matches, messages: db.messages},
		Messages: &MessageStore{coll: db.messages},
		Close:    db.client.Disconnect,
	}
}

func notFound(err error, what, id string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%s %s: %w", what, id, repository.ErrNotFound)
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}

// decodeAll decodes a cursor, skipping documents that do not fit the shape
func decodeAll[T any](ctx context.Context, cur *mongo.Cursor, what string) ([]*T, error) {
	defer cur.Close(ctx)

	var out []*T
	for cur.Next(ctx) {
		var doc T
		if err := cur.Decode(&doc); err != nil {
			log.Warn().Err(err).Str("collection", what).Msg("Skipping malformed document")
			continue
		}
		out = append(out, &doc)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", what, err)
	}
	return out, nil
}
