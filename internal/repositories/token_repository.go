package repositories

import (
	"context"
	"time"

	"gigauth/internal/models"
)

// TokenRepository defines the interface for session token persistence.
//
// FindByToken returns (nil, nil) when no row matches; expiry is judged by the caller.
// DeleteByToken returns the removed row, or nil if nothing matched.
type TokenRepository interface {
	Create(ctx context.Context, session *models.Session) error
	FindByToken(ctx context.Context, token string) (*models.Session, error)
	DeleteByToken(ctx context.Context, token string) (*models.Session, error)
	DeleteByUserID(ctx context.Context, userID string) (int64, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
