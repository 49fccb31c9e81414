package repositories_test

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"gigauth/internal/models"
	"gigauth/internal/repositories"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// newTestDB opens a private in-memory SQLite database for the calling test.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := repositories.OpenGORM("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// newTestMongo connects to the server named by MONGO_TEST_URI and returns a throwaway
// database, skipping the test when no server is configured.
func newTestMongo(t *testing.T) *mongo.Database {
	t.Helper()
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	name := "gigauth_test_" + strings.ReplaceAll(models.NewUserID(), models.UserIDPrefix, "")
	client, db, err := repositories.ConnectMongo(ctx, repositories.MongoConfig{URI: uri, Database: name})
	require.NoError(t, err)
	require.NoError(t, repositories.EnsureMongoIndexes(ctx, db))
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})
	return db
}

func newUser(email, phone string) *models.User {
	return &models.User{
		Name:            "Ann Lee",
		Email:           email,
		PasswordDigest:  "$2a$04$" + strings.Repeat("a", 53),
		Phone:           phone,
		Country:         "US",
		City:            "NY",
		Preferences:     []string{},
		FavoriteArtists: []string{"Nina Simone"},
		FavoriteVenues:  []string{},
		ProfileComplete: true,
	}
}

func newSession(userID string, ttl time.Duration) *models.Session {
	now := time.Now().UTC().Truncate(time.Second)
	return &models.Session{
		Token:     "tok-" + strings.TrimPrefix(models.NewUserID(), models.UserIDPrefix),
		UserID:    userID,
		ExpiresAt: now.Add(ttl),
		IssuedAt:  now,
		IPAddress: "10.0.0.1",
		UserAgent: "test-agent",
	}
}
