package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"spark-backend/internal/apperr"
	"spark-backend/internal/changefeed"
	"spark-backend/internal/models"
	"spark-backend/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

// UserService handles accounts and bearer tokens
type UserService struct {
	accounts  repository.AccountStore
	users     repository.UserStore
	matches   repository.MatchStore
	publisher changefeed.Publisher
	deck      *Deck
	clock     Clock
	jwtSecret string
	tokenTTL  time.Duration
}

// NewUserService creates a new user service
func NewUserService(stores *repository.Stores, publisher changefeed.Publisher, deck *Deck, clock Clock, jwtSecret string, ttlDays int) *UserService {
	return &UserService{
		accounts:  stores.Accounts,
		users:     stores.Users,
		matches:   stores.Matches,
		publisher: publisher,
		deck:      deck,
		clock:     clock,
		jwtSecret: jwtSecret,
		tokenTTL:  time.Duration(ttlDays) * 24 * time.Hour,
	}
}

// AuthResult is returned by Register and SignIn
type AuthResult struct {
	UserID          string `json:"user_id"`
	Email           string `json:"email"`
	Token           string `json:"token"`
	ProfileComplete bool   `json:"profile_complete"`
}

// Register creates an account. The profile is filled in later by SaveProfile.
func (s *UserService) Register(ctx context.Context, email, password, confirm string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, apperr.Invalid("email is required")
	}
	if password != confirm {
		return nil, apperr.Invalid("passwords do not match")
	}
	if len(password) < minPasswordLength {
		return nil, apperr.Invalid(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	account := &models.Account{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    s.clock.Now(),
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperr.New(apperr.UserAlreadyExists, "an account with this email already exists", err)
		}
		return nil, storeError("account", err)
	}

	token, err := s.GenerateJWT(account.ID)
	if err != nil {
		return nil, err
	}

	log.Info().Str("user_id", account.ID).Msg("Account registered")

	return &AuthResult{UserID: account.ID, Email: email, Token: token}, nil
}

// SignIn checks credentials and issues a token
func (s *UserService) SignIn(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperr.Invalid("email and password are required")
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.New(apperr.InvalidCredentials, "invalid email or password", nil)
		}
		return nil, storeError("account", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, apperr.New(apperr.InvalidCredentials, "invalid email or password", nil)
	}

	token, err := s.GenerateJWT(account.ID)
	if err != nil {
		return nil, err
	}

	complete := false
	user, err := s.users.GetByID(ctx, account.ID)
	switch {
	case err == nil:
		complete = user.IsComplete()
	case !errors.Is(err, repository.ErrNotFound):
		return nil, storeError("user", err)
	}

	return &AuthResult{UserID: account.ID, Email: account.Email, Token: token, ProfileComplete: complete}, nil
}

// SignOut ends a session. Tokens are stateless so there is nothing to revoke.
func (s *UserService) SignOut(_ context.Context, userID string) {
	log.Info().Str("user_id", userID).Msg("User signed out")
}

// GenerateJWT generates a JWT token for a user
func (s *UserService) GenerateJWT(userID string) (string, error) {
	now := s.clock.Now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     now.Add(s.tokenTTL).Unix(),
		"iat":     now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ValidateJWT validates a JWT token and returns the user ID
func (s *UserService) ValidateJWT(tokenString string) (string, error) {
	if tokenString == "" {
		return "", apperr.New(apperr.Unauthorized, "token required", nil)
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	}, jwt.WithTimeFunc(s.clock.Now))
	if err != nil || !token.Valid {
		return "", apperr.New(apperr.InvalidToken, "invalid token", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", apperr.New(apperr.InvalidToken, "invalid token claims", nil)
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", apperr.New(apperr.InvalidToken, "user_id not found in token", nil)
	}

	return userID, nil
}

// DeleteAccount removes the user's matches and messages, profile and credentials.
// Swipes stay in the ledger; with the profile gone they no longer surface anywhere.
func (s *UserService) DeleteAccount(ctx context.Context, userID string) error {
	matches, err := s.matches.ListForUser(ctx, userID)
	if err != nil {
		return storeError("matches", err)
	}

	if _, err := s.matches.DeleteForUser(ctx, userID); err != nil {
		return storeError("matches", err)
	}
	if err := s.users.Delete(ctx, userID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return storeError("user", err)
	}
	if err := s.accounts.Delete(ctx, userID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return storeError("account", err)
	}

	if s.deck != nil {
		s.deck.Forget(userID)
	}

	topics := []string{changefeed.MatchesTopic(userID)}
	for _, m := range matches {
		topics = append(topics, changefeed.MessagesTopic(m.ID))
		if p, ok := m.Partner(userID); ok {
			topics = append(topics, changefeed.MatchesTopic(p), changefeed.LikesTopic(p))
		}
	}
	s.publisher.Publish(ctx, topics...)

	log.Info().Str("user_id", userID).Int("matches", len(matches)).Msg("Account deleted")
	return nil
}
