package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gigauth/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoUserRepository is a MongoDB implementation of UserRepository. Uniqueness rests on
// the indexes created by EnsureMongoIndexes.
type MongoUserRepository struct {
	coll *mongo.Collection
}

// NewMongoUserRepository creates a repository over the users collection of db.
func NewMongoUserRepository(db *mongo.Database) *MongoUserRepository {
	return &MongoUserRepository{coll: db.Collection(usersCollection)}
}

// Create validates and inserts a new user.
func (r *MongoUserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = models.NewUserID()
	}
	user.Email = models.NormalizeEmail(user.Email)
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	if err := models.ValidateUser(user); err != nil {
		return err
	}
	if _, err := r.coll.InsertOne(ctx, user); err != nil {
		return mongoWriteError("insert user", err)
	}
	return nil
}

// GetByEmail retrieves a user by email.
func (r *MongoUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"email": models.NormalizeEmail(email)}, "email "+email)
}

// GetByID retrieves a user by ID.
func (r *MongoUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"id": id}, "ID "+id)
}

// Update applies the supplied profile fields and replaces the stored document.
func (r *MongoUserRepository) Update(ctx context.Context, id string, update models.ProfileUpdate) (*models.User, error) {
	user, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	update.Apply(user)
	if err := models.ValidateUser(user); err != nil {
		return nil, err
	}
	user.UpdatedAt = time.Now().UTC()
	res, err := r.coll.ReplaceOne(ctx, bson.M{"id": id}, user)
	if err != nil {
		return nil, mongoWriteError("update user", err)
	}
	if res.MatchedCount == 0 {
		return nil, fmt.Errorf("user with ID %s: %w", id, models.ErrUserNotFound)
	}
	return user, nil
}

func (r *MongoUserRepository) findOne(ctx context.Context, filter bson.M, desc string) (*models.User, error) {
	var user models.User
	if err := r.coll.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("user with %s: %w", desc, models.ErrUserNotFound)
		}
		return nil, models.Internal("find user", err)
	}
	return &user, nil
}

func mongoWriteError(op string, err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return &models.DuplicateError{Field: duplicateField(err.Error())}
	}
	return models.Internal(op, err)
}
