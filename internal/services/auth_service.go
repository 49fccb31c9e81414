package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gigauth/internal/models"
	"gigauth/internal/repositories"

	"github.com/rs/zerolog"
)

// maxPasswordBytes is the longest password bcrypt accepts.
const maxPasswordBytes = 72

// EventPublisher delivers account events to interested consumers.
type EventPublisher interface {
	PublishAccountEvent(event models.AccountEvent) error
}

// AuthService orchestrates the account and session lifecycle: registration, login, token
// validation, logout and profile updates.
type AuthService struct {
	userRepo  repositories.UserRepository
	tokens    *TokenService
	hasher    PasswordHasher
	publisher EventPublisher
	logger    zerolog.Logger
}

// NewAuthService creates a new AuthService. publisher may be nil.
func NewAuthService(userRepo repositories.UserRepository, tokens *TokenService, hasher PasswordHasher, publisher EventPublisher, logger zerolog.Logger) *AuthService {
	return &AuthService{
		userRepo:  userRepo,
		tokens:    tokens,
		hasher:    hasher,
		publisher: publisher,
		logger:    logger.With().Str("service", "auth").Logger(),
	}
}

// RegisterInput holds the fields accepted at registration.
type RegisterInput struct {
	Name            string
	Email           string
	Password        string
	Phone           string
	Country         string
	City            string
	Preferences     []string
	FavoriteArtists []string
	FavoriteVenues  []string
	Meta            models.ClientMeta
}

// Register creates an account and logs it in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, string, error) {
	email := models.NormalizeEmail(in.Email)
	if !models.IsEmailShape(email) {
		return nil, "", models.ErrInvalidEmail
	}
	if err := checkPassword(in.Password); err != nil {
		return nil, "", err
	}

	if _, err := s.userRepo.GetByEmail(ctx, email); err == nil {
		return nil, "", &models.DuplicateError{Field: "email"}
	} else if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error().Err(err).Msg("failed to check email availability")
		return nil, "", err
	}

	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to hash password")
		return nil, "", models.Internal("register", err)
	}

	user := &models.User{
		ID:              models.NewUserID(),
		Name:            strings.TrimSpace(in.Name),
		Email:           email,
		PasswordDigest:  digest,
		Phone:           strings.TrimSpace(in.Phone),
		Country:         strings.TrimSpace(in.Country),
		City:            strings.TrimSpace(in.City),
		Preferences:     orEmpty(in.Preferences),
		FavoriteArtists: orEmpty(in.FavoriteArtists),
		FavoriteVenues:  orEmpty(in.FavoriteVenues),
		AccountVerified: false,
	}
	user.RecomputeProfileComplete()

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, models.ErrInternal) {
			s.logger.Error().Err(err).Msg("failed to create user")
		}
		return nil, "", err
	}

	token, _, err := s.tokens.Issue(ctx, user.ID, in.Meta)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", user.ID).Msg("failed to issue token for new user")
		return nil, "", err
	}

	s.logger.Info().Str("user_id", user.ID).Bool("profile_complete", user.ProfileComplete).Msg("user registered")
	s.publish(models.EventUserRegistered, user.ID)
	return user, token, nil
}

// Login verifies the credentials and replaces any existing session with a new one.
func (s *AuthService) Login(ctx context.Context, email, password string, meta models.ClientMeta) (*models.User, string, error) {
	email = models.NormalizeEmail(email)
	if !models.IsEmailShape(email) {
		return nil, "", models.ErrInvalidEmail
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, "", err
	}
	if !s.hasher.Verify(password, user.PasswordDigest) {
		s.logger.Debug().Str("user_id", user.ID).Msg("incorrect password")
		return nil, "", models.ErrInvalidCredentials
	}

	token, _, err := s.tokens.Issue(ctx, user.ID, meta)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", user.ID).Msg("failed to issue token")
		return nil, "", err
	}

	s.logger.Info().Str("user_id", user.ID).Msg("user logged in")
	s.publish(models.EventUserLoggedIn, user.ID)
	return user, token, nil
}

// ValidateToken resolves a token to its user.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (*models.User, error) {
	session, err := s.tokens.Find(ctx, token)
	if err != nil {
		return nil, err
	}
	user, err := s.userRepo.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Warn().Str("user_id", session.UserID).Msg("token references a missing user")
		}
		return nil, err
	}
	return user, nil
}

// Logout deletes the session for token. Logging out twice with the same token fails the
// second time.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	session, err := s.tokens.Revoke(ctx, token)
	if err != nil {
		return err
	}
	if session == nil {
		return models.ErrTokenNotFound
	}
	s.logger.Info().Str("user_id", session.UserID).Msg("user logged out")
	s.publish(models.EventUserLoggedOut, session.UserID)
	return nil
}

// UpdateProfile applies the supplied whitelisted fields to the token's user. An update
// with no recognized fields returns the user unchanged without writing.
func (s *AuthService) UpdateProfile(ctx context.Context, token string, update models.ProfileUpdate) (*models.User, error) {
	user, err := s.ValidateToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if update.IsEmpty() {
		return user, nil
	}

	updated, err := s.userRepo.Update(ctx, user.ID, update)
	if err != nil {
		if errors.Is(err, models.ErrInternal) {
			s.logger.Error().Err(err).Str("user_id", user.ID).Msg("failed to update profile")
		}
		return nil, err
	}

	s.logger.Info().Str("user_id", updated.ID).Bool("profile_complete", updated.ProfileComplete).Msg("profile updated")
	s.publish(models.EventUserProfileUpdated, updated.ID)
	return updated, nil
}

func (s *AuthService) publish(eventType, userID string) {
	if s.publisher == nil {
		return
	}
	event := models.AccountEvent{Type: eventType, UserID: userID, OccurredAt: time.Now().UTC()}
	if err := s.publisher.PublishAccountEvent(event); err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Str("user_id", userID).Msg("failed to publish account event")
	}
}

func checkPassword(password string) error {
	switch {
	case password == "":
		return &models.ValidationError{Fields: []models.FieldError{{Field: "password", Reason: "is required"}}}
	case len(password) > maxPasswordBytes:
		return &models.ValidationError{Fields: []models.FieldError{{Field: "password", Reason: "cannot exceed 72 bytes"}}}
	}
	return nil
}

func orEmpty(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
