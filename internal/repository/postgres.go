package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		gender TEXT NOT NULL DEFAULT '',
		birthday TEXT NOT NULL DEFAULT '',
		interested_in TEXT NOT NULL DEFAULT '',
		phone_number TEXT NOT NULL DEFAULT '',
		photos TEXT[] NOT NULL DEFAULT '{}',
		push_token TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS users_gender_idx ON users (gender)`,
	`CREATE TABLE IF NOT EXISTS swipes (
		id TEXT PRIMARY KEY,
		swiper_id TEXT NOT NULL,
		target_id TEXT NOT NULL,
		type TEXT NOT NULL CHECK (type IN ('like', 'pass')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS swipes_swiper_idx ON swipes (swiper_id, target_id)`,
	`CREATE INDEX IF NOT EXISTS swipes_target_idx ON swipes (target_id, type)`,
	`CREATE TABLE IF NOT EXISTS matches (
		id TEXT PRIMARY KEY,
		users TEXT[] NOT NULL CHECK (cardinality(users) = 2),
		last_message TEXT,
		last_message_at TIMESTAMPTZ,
		last_message_sender_id TEXT,
		seen_by TEXT[] NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS matches_users_idx ON matches USING GIN (users)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		match_id TEXT NOT NULL REFERENCES matches (id) ON DELETE CASCADE,
		sender_id TEXT NOT NULL,
		text TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS messages_match_idx ON messages (match_id, created_at)`,
}

// Migrate creates the tables and indexes if they do not exist
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	log.Info().Int("statements", len(schema)).Msg("Database schema applied")
	return nil
}

// OpenPostgres connects to PostgreSQL and returns the stores backed by it
func OpenPostgres(ctx context.Context, dsn string) (*Stores, *pgxpool.Pool, error) {
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	stores := &Stores{
		Users:    NewUserRepository(db),
		Accounts: NewAccountRepository(db),
		Swipes:   NewSwipeRepository(db),
		Matches:  NewMatchRepository(db),
		Messages: NewMessageRepository(db),
		Close: func(context.Context) error {
			db.Close()
			return nil
		},
	}
	return stores, db, nil
}

var (
	_ UserStore    = (*UserRepository)(nil)
	_ AccountStore = (*AccountRepository)(nil)
	_ SwipeStore   = (*SwipeRepository)(nil)
	_ MatchStore   = (*MatchRepository)(nil)
	_ MessageStore = (*MessageRepository)(nil)
)
