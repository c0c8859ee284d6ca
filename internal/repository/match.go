package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"spark-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const matchColumns = `id, users, last_message, last_message_at, last_message_sender_id, seen_by, created_at`

// MatchRepository handles database operations for matches
type MatchRepository struct {
	db *pgxpool.Pool
}

// NewMatchRepository creates a new match repository
func NewMatchRepository(db *pgxpool.Pool) *MatchRepository {
	return &MatchRepository{db: db}
}

// Create creates a new match; an id collision yields ErrDuplicate
func (r *MatchRepository) Create(ctx context.Context, match *models.Match) error {
	query := `
		INSERT INTO matches (` + matchColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	seenBy := match.SeenBy
	if seenBy == nil {
		seenBy = []string{}
	}
	_, err := r.db.Exec(ctx, query,
		match.ID, match.Users, match.LastMessage, match.LastMessageTimestamp,
		match.LastMessageSenderID, seenBy, match.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("match %s: %w", match.ID, ErrDuplicate)
		}
		return fmt.Errorf("failed to create match: %w", err)
	}
	return nil
}

// GetByID retrieves a match by ID
func (r *MatchRepository) GetByID(ctx context.Context, id string) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1`
	match, err := scanMatch(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("match %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	return match, nil
}

// ListForUser retrieves every match a user participates in
func (r *MatchRepository) ListForUser(ctx context.Context, userID string) ([]*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE $1 = ANY(users) ORDER BY created_at, id`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get matches: %w", err)
	}
	defer rows.Close()

	var matches []*models.Match
	for rows.Next() {
		match, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		matches = append(matches, match)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating matches: %w", err)
	}
	return matches, nil
}

// MarkSeen adds userID to seen_by in a single statement
func (r *MatchRepository) MarkSeen(ctx context.Context, matchID, userID string) error {
	query := `
		UPDATE matches SET seen_by = array_append(seen_by, $2)
		WHERE id = $1 AND NOT ($2 = ANY(seen_by))
	`
	result, err := r.db.Exec(ctx, query, matchID, userID)
	if err != nil {
		return fmt.Errorf("failed to mark match seen: %w", err)
	}
	if result.RowsAffected() > 0 {
		return nil
	}

	// nothing updated: either already seen or no such match
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM matches WHERE id = $1)`, matchID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check match: %w", err)
	}
	if !exists {
		return fmt.Errorf("match %s: %w", matchID, ErrNotFound)
	}
	return nil
}

// UpdateSummary records the latest message on the match
func (r *MatchRepository) UpdateSummary(ctx context.Context, matchID, text string, ts time.Time, senderID string) error {
	query := `
		UPDATE matches
		SET last_message = $1, last_message_at = $2, last_message_sender_id = $3, seen_by = ARRAY[$3]::text[]
		WHERE id = $4
	`
	result, err := r.db.Exec(ctx, query, text, ts, senderID, matchID)
	if err != nil {
		return fmt.Errorf("failed to update match summary: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("match %s: %w", matchID, ErrNotFound)
	}
	return nil
}

// DeleteForUser deletes a user's matches; messages go with them via ON DELETE CASCADE
func (r *MatchRepository) DeleteForUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.Query(ctx, `DELETE FROM matches WHERE $1 = ANY(users) RETURNING id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete matches: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan match id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deleted matches: %w", err)
	}
	return ids, nil
}

func scanMatch(row pgx.Row) (*models.Match, error) {
	var match models.Match
	err := row.Scan(
		&match.ID, &match.Users, &match.LastMessage, &match.LastMessageTimestamp,
		&match.LastMessageSenderID, &match.SeenBy, &match.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &match, nil
}
