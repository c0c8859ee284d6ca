package services

import (
	"context"
	"errors"
	"strings"

	"spark-backend/internal/apperr"
	"spark-backend/internal/changefeed"
	"spark-backend/internal/models"
	"spark-backend/internal/repository"

	"github.com/rs/zerolog/log"
)

// ProfileForm is the onboarding form submitted with the photos
type ProfileForm struct {
	Name         string `json:"name"`
	Gender       string `json:"gender"`
	Birthday     string `json:"birthday"`
	InterestedIn string `json:"interested_in"`
	PhoneNumber  string `json:"phone_number"`
}

func (f ProfileForm) validate() error {
	switch {
	case strings.TrimSpace(f.Name) == "":
		return apperr.Invalid("name is required")
	case strings.TrimSpace(f.Gender) == "":
		return apperr.Invalid("gender is required")
	case strings.TrimSpace(f.Birthday) == "":
		return apperr.Invalid("birthday is required")
	case strings.TrimSpace(f.InterestedIn) == "":
		return apperr.Invalid("interested_in is required")
	}
	return nil
}

// ProfileService reads and writes the user directory
type ProfileService struct {
	users     repository.UserStore
	matches   repository.MatchStore
	uploader  PhotoUploader
	publisher changefeed.Publisher
	clock     Clock
}

// NewProfileService creates a new profile service
func NewProfileService(stores *repository.Stores, uploader PhotoUploader, publisher changefeed.Publisher, clock Clock) *ProfileService {
	return &ProfileService{
		users:     stores.Users,
		matches:   stores.Matches,
		uploader:  uploader,
		publisher: publisher,
		clock:     clock,
	}
}

// SaveProfile uploads the photos one after another and then writes the
// profile. The first failed upload aborts the save; photos already stored
// are left in the bucket.
func (s *ProfileService) SaveProfile(ctx context.Context, userID string, form ProfileForm, photos []PhotoFile) (*models.User, error) {
	if err := form.validate(); err != nil {
		return nil, err
	}
	if len(photos) == 0 {
		return nil, apperr.New(apperr.ProfileIncomplete, "at least one photo is required", nil)
	}

	urls := make([]string, 0, len(photos))
	for i, photo := range photos {
		url, err := s.uploader.Upload(ctx, userID, photo)
		if err != nil {
			log.Warn().Err(err).Str("user_id", userID).Int("photo", i).Msg("Profile save aborted")
			return nil, err
		}
		urls = append(urls, url)
	}

	createdAt := s.clock.Now()
	existing, err := s.users.GetByID(ctx, userID)
	switch {
	case err == nil:
		createdAt = existing.CreatedAt
	case !errors.Is(err, repository.ErrNotFound):
		return nil, storeError("user", err)
	}

	user := &models.User{
		ID:           userID,
		Name:         strings.TrimSpace(form.Name),
		Gender:       strings.TrimSpace(form.Gender),
		Birthday:     strings.TrimSpace(form.Birthday),
		InterestedIn: strings.TrimSpace(form.InterestedIn),
		PhoneNumber:  strings.TrimSpace(form.PhoneNumber),
		Photos:       urls,
		CreatedAt:    createdAt,
	}
	if err := s.users.Save(ctx, user); err != nil {
		return nil, storeError("user", err)
	}

	s.publishPartners(ctx, userID)
	log.Info().Str("user_id", userID).Int("photos", len(urls)).Msg("Profile saved")
	return user, nil
}

// GetProfile returns the user's profile
func (s *ProfileService) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, storeError("profile", err)
	}
	return user, nil
}

// UpdateProfile changes the editable profile fields
func (s *ProfileService) UpdateProfile(ctx context.Context, userID, name, birthday, gender string) (*models.User, error) {
	name, birthday, gender = strings.TrimSpace(name), strings.TrimSpace(birthday), strings.TrimSpace(gender)
	if name == "" {
		return nil, apperr.Invalid("name is required")
	}

	if err := s.users.UpdateProfile(ctx, userID, name, birthday, gender); err != nil {
		return nil, storeError("profile", err)
	}

	s.publishPartners(ctx, userID)
	return s.GetProfile(ctx, userID)
}

// UpdatePushToken stores the device token, or clears it when empty
func (s *ProfileService) UpdatePushToken(ctx context.Context, userID, pushToken string) error {
	var tok *string
	if t := strings.TrimSpace(pushToken); t != "" {
		tok = &t
	}
	if err := s.users.UpdatePushToken(ctx, userID, tok); err != nil {
		return storeError("profile", err)
	}
	return nil
}

// publishPartners refreshes the chat lists that show this profile
func (s *ProfileService) publishPartners(ctx context.Context, userID string) {
	matches, err := s.matches.ListForUser(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("Failed to list matches for profile change")
		return
	}
	var topics []string
	for _, m := range matches {
		if p, ok := m.Partner(userID); ok {
			topics = append(topics, changefeed.MatchesTopic(p))
		}
	}
	if len(topics) > 0 {
		s.publisher.Publish(ctx, topics...)
	}
}
