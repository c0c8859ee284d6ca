package repository

import (
	"context"
	"fmt"

	"spark-backend/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SwipeRepository handles database operations for the swipe ledger.
// Rows are only ever inserted.
type SwipeRepository struct {
	db *pgxpool.Pool
}

// NewSwipeRepository creates a new swipe repository
func NewSwipeRepository(db *pgxpool.Pool) *SwipeRepository {
	return &SwipeRepository{db: db}
}

// Append records a swipe
func (r *SwipeRepository) Append(ctx context.Context, swipe *models.Swipe) error {
	query := `
		INSERT INTO swipes (id, swiper_id, target_id, type, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.Exec(ctx, query, swipe.ID, swipe.SwiperID, swipe.TargetID, string(swipe.Type), swipe.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to append swipe: %w", err)
	}
	return nil
}

// TargetsOf returns the distinct targets a user has swiped on
func (r *SwipeRepository) TargetsOf(ctx context.Context, swiperID string) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT DISTINCT target_id FROM swipes WHERE swiper_id = $1`, swiperID)
	if err != nil {
		return nil, fmt.Errorf("failed to get swiped targets: %w", err)
	}
	defer rows.Close()

	var targets []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan target: %w", err)
		}
		targets = append(targets, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating targets: %w", err)
	}
	return targets, nil
}

// HasLike checks whether swiperID has liked targetID at least once
func (r *SwipeRepository) HasLike(ctx context.Context, swiperID, targetID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM swipes WHERE swiper_id = $1 AND target_id = $2 AND type = 'like')`
	var exists bool
	if err := r.db.QueryRow(ctx, query, swiperID, targetID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check like: %w", err)
	}
	return exists, nil
}

// LikesFor returns the like swipes targeting a user
func (r *SwipeRepository) LikesFor(ctx context.Context, targetID string) ([]*models.Swipe, error) {
	query := `
		SELECT id, swiper_id, target_id, type, created_at
		FROM swipes
		WHERE target_id = $1 AND type = 'like'
		ORDER BY created_at ASC
	`
	rows, err := r.db.Query(ctx, query, targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to get likes: %w", err)
	}
	defer rows.Close()

	var swipes []*models.Swipe
	for rows.Next() {
		var s models.Swipe
		var typ string
		if err := rows.Scan(&s.ID, &s.SwiperID, &s.TargetID, &typ, &s.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan swipe: %w", err)
		}
		s.Type = models.SwipeType(typ)
		swipes = append(swipes, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating swipes: %w", err)
	}
	return swipes, nil
}
