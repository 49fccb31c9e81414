package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gigauth/internal/models"

	"gorm.io/gorm"
)

// GORMUserRepository is a GORM implementation of UserRepository.
type GORMUserRepository struct {
	db *gorm.DB
}

// NewGORMUserRepository creates a new instance of GORMUserRepository.
func NewGORMUserRepository(db *gorm.DB) *GORMUserRepository {
	return &GORMUserRepository{
		db: db,
	}
}

// Create validates and inserts a new user. Uniqueness is checked up front so the error can
// name the field; the unique indexes catch whatever slips through concurrently.
func (r *GORMUserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = models.NewUserID()
	}
	user.Email = models.NormalizeEmail(user.Email)
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	if err := models.ValidateUser(user); err != nil {
		return err
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, check := range []struct{ field, column, value string }{
			{"email", "email", user.Email},
			{"phone", "phone", user.Phone},
			{"id", "id", user.ID},
		} {
			taken, err := exists(tx, check.column, check.value, "")
			if err != nil {
				return err
			}
			if taken {
				return &models.DuplicateError{Field: check.field}
			}
		}
		return tx.Create(user).Error
	})
	if err != nil {
		return classifyWriteError("failed to create user", err)
	}
	return nil
}

// GetByEmail retrieves a user by their email from the database.
func (r *GORMUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "email = ?", models.NormalizeEmail(email)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user with email %s: %w", email, models.ErrUserNotFound)
		}
		return nil, models.Internal("failed to get user by email", err)
	}
	return &user, nil
}

// GetByID retrieves a user by their ID from the database.
func (r *GORMUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user with ID %s: %w", id, models.ErrUserNotFound)
		}
		return nil, models.Internal("failed to get user by ID", err)
	}
	return &user, nil
}

// Update applies the supplied profile fields to the user with the given ID.
func (r *GORMUserRepository) Update(ctx context.Context, id string, update models.ProfileUpdate) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&user, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("user with ID %s: %w", id, models.ErrUserNotFound)
			}
			return err
		}
		update.Apply(&user)
		if err := models.ValidateUser(&user); err != nil {
			return err
		}
		if update.Phone != nil {
			taken, err := exists(tx, "phone", user.Phone, user.ID)
			if err != nil {
				return err
			}
			if taken {
				return &models.DuplicateError{Field: "phone"}
			}
		}
		user.UpdatedAt = time.Now().UTC()
		return tx.Save(&user).Error
	})
	if err != nil {
		return nil, classifyWriteError("failed to update user", err)
	}
	return &user, nil
}

func exists(tx *gorm.DB, column, value, excludeID string) (bool, error) {
	var count int64
	q := tx.Model(&models.User{}).Where(column+" = ?", value)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// classifyWriteError passes domain errors through and converts unique index violations
// into a DuplicateError naming the offending column.
func classifyWriteError(op string, err error) error {
	var dup *models.DuplicateError
	var verr *models.ValidationError
	switch {
	case errors.As(err, &dup), errors.As(err, &verr), errors.Is(err, models.ErrNotFound):
		return err
	case errors.Is(err, gorm.ErrDuplicatedKey), isUniqueViolation(err.Error()):
		return &models.DuplicateError{Field: duplicateField(err.Error())}
	}
	return models.Internal(op, err)
}

func isUniqueViolation(msg string) bool {
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "E11000")
}

// duplicateField guesses the conflicting field from a driver error message.
func duplicateField(msg string) string {
	switch {
	case strings.Contains(msg, "email"):
		return "email"
	case strings.Contains(msg, "phone"):
		return "phone"
	case strings.Contains(msg, "token"):
		return "token"
	}
	return "id"
}
