package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gigauth/internal/metrics"
	"gigauth/internal/models"
	"gigauth/internal/repositories"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultTokenTTL is how long a session token stays valid.
const DefaultTokenTTL = 24 * time.Hour

// TokenService mints, looks up and revokes session tokens. Token values are HS256 JWTs
// carrying the user ID and expiry; a token is only live while its row exists in the
// repository.
type TokenService struct {
	repo   repositories.TokenRepository
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	logger zerolog.Logger
}

// TokenOption customises a TokenService.
type TokenOption func(*TokenService)

// WithClock replaces the wall clock used for issuance and expiry checks.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) { s.now = now }
}

// NewTokenService creates a TokenService. A non-positive ttl selects DefaultTokenTTL.
func NewTokenService(repo repositories.TokenRepository, secret string, ttl time.Duration, logger zerolog.Logger, opts ...TokenOption) *TokenService {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	s := &TokenService{
		repo:   repo,
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
		logger: logger.With().Str("service", "token").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue revokes every existing token of the user and persists a fresh one.
func (s *TokenService) Issue(ctx context.Context, userID string, meta models.ClientMeta) (string, *models.Session, error) {
	if !strings.HasPrefix(userID, models.UserIDPrefix) {
		return "", nil, &models.ValidationError{Fields: []models.FieldError{{Field: "user_id", Reason: "invalid user ID format"}}}
	}
	if _, err := s.RevokeAllForUser(ctx, userID); err != nil {
		return "", nil, err
	}

	now := s.now().UTC().Truncate(time.Second)
	expiresAt := now.Add(s.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     expiresAt.Unix(),
		"iat":     now.Unix(),
		"jti":     uuid.New().String(),
	})
	value, err := token.SignedString(s.secret)
	if err != nil {
		return "", nil, models.Internal("failed to sign token", err)
	}

	meta = meta.Sanitize()
	session := &models.Session{
		Token:     value,
		UserID:    userID,
		ExpiresAt: expiresAt,
		IssuedAt:  now,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	}
	if err := models.ValidateSession(session, now); err != nil {
		return "", nil, err
	}
	if err := s.repo.Create(ctx, session); err != nil {
		return "", nil, err
	}
	return value, session, nil
}

// Find returns the live session for token. Malformed or badly signed tokens fail with
// ErrInvalidToken before the repository is consulted. Expired sessions are deleted and
// reported as ErrTokenExpired.
func (s *TokenService) Find(ctx context.Context, token string) (*models.Session, error) {
	claims, err := s.parse(token)
	if err != nil {
		return nil, err
	}

	session, err := s.repo.FindByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, models.ErrTokenNotFound
	}
	if session.UserID != claims.userID {
		return nil, models.ErrInvalidToken
	}
	if claims.expired || session.Expired(s.now()) {
		if _, err := s.repo.DeleteByToken(ctx, token); err != nil {
			s.logger.Warn().Err(err).Str("user_id", session.UserID).Msg("failed to clean up expired token")
		}
		return nil, models.ErrTokenExpired
	}
	return session, nil
}

// Revoke deletes the session for token and returns it, or nil if none existed.
func (s *TokenService) Revoke(ctx context.Context, token string) (*models.Session, error) {
	if _, err := s.parse(token); err != nil {
		return nil, err
	}
	return s.repo.DeleteByToken(ctx, token)
}

// RevokeByToken deletes the session for token and reports whether one existed.
func (s *TokenService) RevokeByToken(ctx context.Context, token string) (bool, error) {
	session, err := s.Revoke(ctx, token)
	if err != nil {
		return false, err
	}
	return session != nil, nil
}

// RevokeAllForUser deletes every session of the user and returns how many were removed.
func (s *TokenService) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	n, err := s.repo.DeleteByUserID(ctx, userID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Debug().Str("user_id", userID).Int64("revoked", n).Msg("revoked previous sessions")
	}
	return n, nil
}

// Sweep deletes every session that has already expired.
func (s *TokenService) Sweep(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx, s.now().UTC())
}

// RunSweeper calls Sweep every interval until ctx is cancelled.
func (s *TokenService) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				s.logger.Error().Err(err).Msg("token sweep failed")
				continue
			}
			if n > 0 {
				metrics.TokensSweptTotal.Add(float64(n))
				s.logger.Info().Int64("removed", n).Msg("swept expired tokens")
			}
		}
	}
}

type tokenClaims struct {
	userID  string
	expired bool
}

// parse verifies the signature of token. An expired but otherwise valid token is
// accepted and flagged so the caller can clean up its row.
func (s *TokenService) parse(token string) (tokenClaims, error) {
	if token == "" {
		return tokenClaims{}, models.ErrMissingToken
	}
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})

	var out tokenClaims
	if err != nil {
		var ve *jwt.ValidationError
		if !errors.As(err, &ve) || ve.Errors != jwt.ValidationErrorExpired || parsed == nil {
			return tokenClaims{}, models.ErrInvalidToken
		}
		out.expired = true
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return tokenClaims{}, models.ErrInvalidToken
	}
	userID, _ := claims["user_id"].(string)
	if !strings.HasPrefix(userID, models.UserIDPrefix) {
		return tokenClaims{}, models.ErrInvalidToken
	}
	out.userID = userID
	return out, nil
}
