package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gigauth/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix     = "session:"
	userSessionKeyPrefix = "user_sessions:"
)

// RedisTokenRepository stores sessions as JSON values whose key TTL matches the session
// expiry, so Redis evicts expired tokens on its own. A per-user set indexes the tokens of
// each user for bulk revocation.
type RedisTokenRepository struct {
	client *redis.Client
}

// NewRedisTokenRepository wraps an established Redis client.
func NewRedisTokenRepository(client *redis.Client) *RedisTokenRepository {
	return &RedisTokenRepository{client: client}
}

// Create stores the session with a TTL equal to its remaining lifetime.
func (r *RedisTokenRepository) Create(ctx context.Context, session *models.Session) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return &models.ValidationError{Fields: []models.FieldError{{Field: "expires_at", Reason: "cannot save expired token"}}}
	}
	body, err := json.Marshal(session)
	if err != nil {
		return models.Internal("failed to encode session", err)
	}

	ok, err := r.client.SetNX(ctx, sessionKeyPrefix+session.Token, body, ttl).Result()
	if err != nil {
		return models.Internal("failed to store session", err)
	}
	if !ok {
		return &models.DuplicateError{Field: "token"}
	}

	userKey := userSessionKeyPrefix + session.UserID
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, userKey, session.Token)
		pipe.Expire(ctx, userKey, ttl)
		return nil
	})
	if err != nil {
		return models.Internal("failed to index session", err)
	}
	return nil
}

// FindByToken returns the session with the given token value, or nil.
func (r *RedisTokenRepository) FindByToken(ctx context.Context, token string) (*models.Session, error) {
	val, err := r.client.Get(ctx, sessionKeyPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, models.Internal("failed to find session", err)
	}
	return decodeSession(val)
}

// DeleteByToken atomically removes the session and returns it.
func (r *RedisTokenRepository) DeleteByToken(ctx context.Context, token string) (*models.Session, error) {
	val, err := r.client.GetDel(ctx, sessionKeyPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, models.Internal("failed to delete session", err)
	}
	session, err := decodeSession(val)
	if err != nil {
		return nil, err
	}
	if err := r.client.SRem(ctx, userSessionKeyPrefix+session.UserID, token).Err(); err != nil {
		return nil, models.Internal("failed to unindex session", err)
	}
	return session, nil
}

// DeleteByUserID removes every live session of the user. Tokens Redis already evicted
// are not counted.
func (r *RedisTokenRepository) DeleteByUserID(ctx context.Context, userID string) (int64, error) {
	userKey := userSessionKeyPrefix + userID
	tokens, err := r.client.SMembers(ctx, userKey).Result()
	if err != nil {
		return 0, models.Internal("failed to list user sessions", err)
	}
	keys := make([]string, 0, len(tokens))
	for _, t := range tokens {
		keys = append(keys, sessionKeyPrefix+t)
	}

	var removed *redis.IntCmd
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(keys) > 0 {
			removed = pipe.Del(ctx, keys...)
		}
		pipe.Del(ctx, userKey)
		return nil
	})
	if err != nil {
		return 0, models.Internal("failed to delete user sessions", err)
	}
	if removed == nil {
		return 0, nil
	}
	return removed.Val(), nil
}

// DeleteExpired is a no-op: key TTLs already evict expired sessions.
func (r *RedisTokenRepository) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func decodeSession(val []byte) (*models.Session, error) {
	var session models.Session
	if err := json.Unmarshal(val, &session); err != nil {
		return nil, models.Internal("failed to decode session", fmt.Errorf("corrupt session payload: %w", err))
	}
	return &session, nil
}
