package repositories

import (
	"context"
	"sync"
	"time"

	"gigauth/internal/models"
)

// MockTokenRepository is an in-memory implementation of TokenRepository.
type MockTokenRepository struct {
	sessions map[string]models.Session
	mu       sync.RWMutex
}

// NewMockTokenRepository creates a new instance of MockTokenRepository.
func NewMockTokenRepository() *MockTokenRepository {
	return &MockTokenRepository{
		sessions: make(map[string]models.Session),
	}
}

// Create stores a session, rejecting a token value that is already present.
func (r *MockTokenRepository) Create(_ context.Context, session *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[session.Token]; ok {
		return &models.DuplicateError{Field: "token"}
	}
	r.sessions[session.Token] = *session
	return nil
}

// FindByToken returns the session with the given token, or nil.
func (r *MockTokenRepository) FindByToken(_ context.Context, token string) (*models.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[token]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

// DeleteByToken removes and returns the session with the given token.
func (r *MockTokenRepository) DeleteByToken(_ context.Context, token string) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[token]
	if !ok {
		return nil, nil
	}
	delete(r.sessions, token)
	return &s, nil
}

// DeleteByUserID removes all sessions of a user.
func (r *MockTokenRepository) DeleteByUserID(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for token, s := range r.sessions {
		if s.UserID == userID {
			delete(r.sessions, token)
			n++
		}
	}
	return n, nil
}

// DeleteExpired removes sessions that expired before the given instant.
func (r *MockTokenRepository) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for token, s := range r.sessions {
		if s.ExpiresAt.Before(before) {
			delete(r.sessions, token)
			n++
		}
	}
	return n, nil
}

// Count returns the number of stored sessions.
func (r *MockTokenRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
