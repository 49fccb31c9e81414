package repositories

import (
	"context"
	"errors"
	"time"

	"gigauth/internal/models"

	"gorm.io/gorm"
)

// GORMTokenRepository is a GORM implementation of TokenRepository. SQL engines have no
// row TTL, so expired rows linger until DeleteExpired runs or a lookup trips over them.
type GORMTokenRepository struct {
	db *gorm.DB
}

// NewGORMTokenRepository creates a new instance of GORMTokenRepository.
func NewGORMTokenRepository(db *gorm.DB) *GORMTokenRepository {
	return &GORMTokenRepository{db: db}
}

// Create inserts a session row.
func (r *GORMTokenRepository) Create(ctx context.Context, session *models.Session) error {
	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		return classifyWriteError("failed to create session", err)
	}
	return nil
}

// FindByToken returns the session with the given token value, or nil.
func (r *GORMTokenRepository) FindByToken(ctx context.Context, token string) (*models.Session, error) {
	var session models.Session
	if err := r.db.WithContext(ctx).First(&session, "token = ?", token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.Internal("failed to find session", err)
	}
	return &session, nil
}

// DeleteByToken removes the session with the given token value and returns it.
func (r *GORMTokenRepository) DeleteByToken(ctx context.Context, token string) (*models.Session, error) {
	var deleted *models.Session
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var session models.Session
		if err := tx.First(&session, "token = ?", token).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		res := tx.Where("token = ?", token).Delete(&models.Session{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			deleted = &session
		}
		return nil
	})
	if err != nil {
		return nil, models.Internal("failed to delete session", err)
	}
	return deleted, nil
}

// DeleteByUserID removes every session belonging to the user.
func (r *GORMTokenRepository) DeleteByUserID(ctx context.Context, userID string) (int64, error) {
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Session{})
	if res.Error != nil {
		return 0, models.Internal("failed to delete user sessions", res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteExpired removes sessions whose expiry is before the given instant.
func (r *GORMTokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at < ?", before).Delete(&models.Session{})
	if res.Error != nil {
		return 0, models.Internal("failed to delete expired sessions", res.Error)
	}
	return res.RowsAffected, nil
}
