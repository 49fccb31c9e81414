package repositories

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gigauth/internal/models"
)

// MockUserRepository is an in-memory implementation of UserRepository.
type MockUserRepository struct {
	users map[string]models.User
	mu    sync.RWMutex
}

// NewMockUserRepository creates a new instance of MockUserRepository.
func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		users: make(map[string]models.User),
	}
}

// Create adds a new user.
func (r *MockUserRepository) Create(_ context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = models.NewUserID()
	}
	user.Email = models.NormalizeEmail(user.Email)
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	if err := models.ValidateUser(user); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if field := r.conflict(user, ""); field != "" {
		return &models.DuplicateError{Field: field}
	}
	r.users[user.ID] = cloneUser(*user)
	return nil
}

// GetByEmail returns a user by email.
func (r *MockUserRepository) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	email = models.NormalizeEmail(email)
	for _, u := range r.users {
		if u.Email == email {
			found := cloneUser(u)
			return &found, nil
		}
	}
	return nil, fmt.Errorf("user with email %s: %w", email, models.ErrUserNotFound)
}

// GetByID returns a user by its ID.
func (r *MockUserRepository) GetByID(_ context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, fmt.Errorf("user with ID %s: %w", id, models.ErrUserNotFound)
	}
	found := cloneUser(u)
	return &found, nil
}

// Update applies the supplied profile fields to an existing user.
func (r *MockUserRepository) Update(_ context.Context, id string, update models.ProfileUpdate) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, fmt.Errorf("user with ID %s: %w", id, models.ErrUserNotFound)
	}
	u = cloneUser(u)
	update.Apply(&u)
	if err := models.ValidateUser(&u); err != nil {
		return nil, err
	}
	if update.Phone != nil {
		if field := r.conflict(&u, u.ID); field == "phone" {
			return nil, &models.DuplicateError{Field: field}
		}
	}
	u.UpdatedAt = time.Now().UTC()
	r.users[id] = u
	updated := cloneUser(u)
	return &updated, nil
}

// Delete removes a user outright. Accounts are never deleted by the service; this exists
// so tests can produce orphaned sessions.
func (r *MockUserRepository) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, id)
}

// conflict returns the first unique field user shares with a stored user other than
// excludeID. Callers must hold the lock.
func (r *MockUserRepository) conflict(user *models.User, excludeID string) string {
	if excludeID == "" {
		if _, ok := r.users[user.ID]; ok {
			return "id"
		}
	}
	for id, existing := range r.users {
		if id == excludeID {
			continue
		}
		if existing.Email == user.Email {
			return "email"
		}
		if existing.Phone == user.Phone {
			return "phone"
		}
	}
	return ""
}

func cloneUser(u models.User) models.User {
	u.Preferences = append([]string(nil), u.Preferences...)
	u.FavoriteArtists = append([]string(nil), u.FavoriteArtists...)
	u.FavoriteVenues = append([]string(nil), u.FavoriteVenues...)
	return u
}
