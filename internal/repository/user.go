package repository

import (
	"context"
	"errors"
	"fmt"

	"spark-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, name, gender, birthday, interested_in, phone_number, photos, push_token, created_at`

// UserRepository handles database operations for user profiles
type UserRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// Save creates or replaces a user profile
func (r *UserRepository) Save(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			gender = EXCLUDED.gender,
			birthday = EXCLUDED.birthday,
			interested_in = EXCLUDED.interested_in,
			phone_number = EXCLUDED.phone_number,
			photos = EXCLUDED.photos
	`
	photos := user.Photos
	if photos == nil {
		photos = []string{}
	}
	_, err := r.db.Exec(ctx, query,
		user.ID, user.Name, user.Gender, user.Birthday, user.InterestedIn,
		user.PhoneNumber, photos, user.PushToken, user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetByIDs retrieves up to MaxInQuery users in one round trip
func (r *UserRepository) GetByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	if len(ids) > MaxInQuery {
		return nil, fmt.Errorf("%d ids: %w", len(ids), ErrTooManyIDs)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ANY($1)`
	return r.queryUsers(ctx, query, ids)
}

// ListByGender retrieves every user with the given gender
func (r *UserRepository) ListByGender(ctx context.Context, gender string) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE gender = $1 ORDER BY created_at`
	return r.queryUsers(ctx, query, gender)
}

// UpdateProfile updates the editable profile fields
func (r *UserRepository) UpdateProfile(ctx context.Context, id, name, birthday, gender string) error {
	query := `UPDATE users SET name = $1, birthday = $2, gender = $3 WHERE id = $4`
	result, err := r.db.Exec(ctx, query, name, birthday, gender, id)
	if err != nil {
		return fmt.Errorf("failed to update user profile: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return nil
}

// UpdatePushToken updates the push token for a user
func (r *UserRepository) UpdatePushToken(ctx context.Context, id string, pushToken *string) error {
	query := `UPDATE users SET push_token = $1 WHERE id = $2`
	result, err := r.db.Exec(ctx, query, pushToken, id)
	if err != nil {
		return fmt.Errorf("failed to update push token: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return nil
}

// Delete deletes a user profile
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

func (r *UserRepository) queryUsers(ctx context.Context, query string, args ...any) ([]*models.User, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID, &user.Name, &user.Gender, &user.Birthday, &user.InterestedIn,
		&user.PhoneNumber, &user.Photos, &user.PushToken, &user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}
