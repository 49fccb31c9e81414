package repositories

import (
	"context"
	"errors"
	"time"

	"gigauth/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoTokenRepository is a MongoDB implementation of TokenRepository. The TTL index on
// expires_at lets the server evict expired sessions in the background.
type MongoTokenRepository struct {
	coll *mongo.Collection
}

// NewMongoTokenRepository creates a repository over the tokens collection of db.
func NewMongoTokenRepository(db *mongo.Database) *MongoTokenRepository {
	return &MongoTokenRepository{coll: db.Collection(sessionsCollection)}
}

// Create inserts a session document.
func (r *MongoTokenRepository) Create(ctx context.Context, session *models.Session) error {
	if _, err := r.coll.InsertOne(ctx, session); err != nil {
		return mongoWriteError("insert session", err)
	}
	return nil
}

// FindByToken returns the session with the given token, or nil.
func (r *MongoTokenRepository) FindByToken(ctx context.Context, token string) (*models.Session, error) {
	var session models.Session
	if err := r.coll.FindOne(ctx, bson.M{"token": token}).Decode(&session); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, models.Internal("find session", err)
	}
	return &session, nil
}

// DeleteByToken removes and returns the session with the given token.
func (r *MongoTokenRepository) DeleteByToken(ctx context.Context, token string) (*models.Session, error) {
	var session models.Session
	if err := r.coll.FindOneAndDelete(ctx, bson.M{"token": token}).Decode(&session); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, models.Internal("delete session", err)
	}
	return &session, nil
}

// DeleteByUserID removes all sessions of the user.
func (r *MongoTokenRepository) DeleteByUserID(ctx context.Context, userID string) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, models.Internal("delete user sessions", err)
	}
	return res.DeletedCount, nil
}

// DeleteExpired removes sessions the TTL monitor has not reached yet.
func (r *MongoTokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lt": before}})
	if err != nil {
		return 0, models.Internal("delete expired sessions", err)
	}
	return res.DeletedCount, nil
}
