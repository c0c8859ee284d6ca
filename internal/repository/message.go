package repository

import (
	"context"
	"fmt"

	"spark-backend/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// MessageRepository handles database operations for chat messages
type MessageRepository struct {
	db *pgxpool.Pool
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: db}
}

// Append adds a message to a match's log
func (r *MessageRepository) Append(ctx context.Context, msg *models.Message) error {
	query := `
		INSERT INTO messages (id, match_id, sender_id, text, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.Exec(ctx, query, msg.ID, msg.MatchID, msg.SenderID, msg.Text, msg.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

// List retrieves the messages of a match, oldest first
func (r *MessageRepository) List(ctx context.Context, matchID string) ([]*models.Message, error) {
	query := `
		SELECT id, match_id, sender_id, text, created_at
		FROM messages
		WHERE match_id = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.db.Query(ctx, query, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(&msg.ID, &msg.MatchID, &msg.SenderID, &msg.Text, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}
	return messages, nil
}
