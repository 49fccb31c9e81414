package models_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"gigauth/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// digest has the length of a bcrypt digest.
var digest = "$2a$04$" + strings.Repeat("a", 53)

func validUser() *models.User {
	return &models.User{
		ID:             models.NewUserID(),
		Name:           "Ann Lee",
		Email:          "ann@x.com",
		PasswordDigest: digest,
		Phone:          "+15550001111",
		Country:        "US",
		City:           "NY",
	}
}

func TestValidateUser_Valid(t *testing.T) {
	assert.NoError(t, models.ValidateUser(validUser()))

	u := validUser()
	u.Country, u.City = "", ""
	assert.NoError(t, models.ValidateUser(u), "country and city are optional")
}

func TestValidateUser_ReportsEveryField(t *testing.T) {
	u := validUser()
	u.ID = "42"
	u.Name = "R2-D2"
	u.Email = "not-an-email"
	u.Phone = "5550001111"
	u.City = "X"
	u.Preferences = make([]string, models.MaxPreferences+1)

	err := models.ValidateUser(u)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrInvalidInput))

	var verr *models.ValidationError
	require.True(t, errors.As(err, &verr))
	fields := verr.Map()
	assert.Equal(t, "has an invalid format", fields["id"])
	assert.Equal(t, "can only contain letters and spaces", fields["name"])
	assert.Equal(t, "must be a valid email address", fields["email"])
	assert.Contains(t, fields["phone"], "country code")
	assert.Equal(t, "must be at least 2 characters long", fields["city"])
	assert.Equal(t, "cannot have more than 20 entries", fields["preferences"])
	assert.Len(t, fields, 6)
}

func TestValidateUser_ListCaps(t *testing.T) {
	u := validUser()
	u.FavoriteArtists = make([]string, models.MaxFavoriteArtists)
	u.FavoriteVenues = make([]string, models.MaxFavoriteVenues)
	assert.NoError(t, models.ValidateUser(u))

	u.FavoriteVenues = append(u.FavoriteVenues, "one too many")
	var verr *models.ValidationError
	require.ErrorAs(t, models.ValidateUser(u), &verr)
	assert.Contains(t, verr.Map(), "favoriteVenues")
}

func TestNewUserID(t *testing.T) {
	a, b := models.NewUserID(), models.NewUserID()
	assert.True(t, strings.HasPrefix(a, models.UserIDPrefix))
	assert.NotEqual(t, a, b)
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "ann@x.com", models.NormalizeEmail("  Ann@X.com "))
}

func TestIsEmailShape(t *testing.T) {
	assert.True(t, models.IsEmailShape("ann@x.com"))
	assert.False(t, models.IsEmailShape("ann@x"))
	assert.False(t, models.IsEmailShape("ann x@x.com"))
	assert.False(t, models.IsEmailShape(""))
}

func TestProfileUpdate_Apply(t *testing.T) {
	u := validUser()
	u.City = ""
	u.RecomputeProfileComplete()
	require.False(t, u.ProfileComplete)

	prefs := []string{"jazz"}
	models.ProfileUpdate{Preferences: &prefs}.Apply(u)
	assert.Equal(t, []string{"jazz"}, u.Preferences)
	assert.Equal(t, "Ann Lee", u.Name)
	assert.False(t, u.ProfileComplete, "non-profile fields never complete a profile")

	city := " Boston "
	models.ProfileUpdate{City: &city}.Apply(u)
	assert.Equal(t, "Boston", u.City)
	assert.True(t, u.ProfileComplete)
}

func TestProfileUpdate_IsEmpty(t *testing.T) {
	assert.True(t, models.ProfileUpdate{}.IsEmpty())
	name := "Bo"
	assert.False(t, models.ProfileUpdate{Name: &name}.IsEmpty())
}

func TestSummaryOmitsDigest(t *testing.T) {
	s := validUser().Summary()
	assert.Equal(t, "ann@x.com", s.Email)
	assert.Equal(t, "Ann Lee", s.Name)
}

func TestDuplicateError(t *testing.T) {
	err := error(&models.DuplicateError{Field: "phone"})
	assert.True(t, errors.Is(err, models.ErrConflict))
	assert.Equal(t, "phone already exists", err.Error())
}

func TestInternal(t *testing.T) {
	cause := errors.New("connection reset")
	err := models.Internal("failed to find session", cause)
	assert.True(t, errors.Is(err, models.ErrInternal))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "failed to find session: connection reset", err.Error())
}

func TestValidateSession(t *testing.T) {
	now := time.Now()
	s := &models.Session{
		Token:     "header.payload.signature",
		UserID:    models.NewUserID(),
		ExpiresAt: now.Add(time.Hour),
		IssuedAt:  now,
		IPAddress: "10.0.0.1",
	}
	assert.NoError(t, models.ValidateSession(s, now))

	s.UserID = "42"
	s.ExpiresAt = now.Add(-time.Second)
	s.IPAddress = "not an ip"
	var verr *models.ValidationError
	require.ErrorAs(t, models.ValidateSession(s, now), &verr)
	fields := verr.Map()
	assert.Contains(t, fields, "user_id")
	assert.Contains(t, fields, "expires_at")
	assert.Contains(t, fields, "ip_address")
}

func TestClientMetaSanitize(t *testing.T) {
	m := models.ClientMeta{IPAddress: "bogus!", UserAgent: strings.Repeat("a", 600)}.Sanitize()
	assert.Empty(t, m.IPAddress)
	assert.Len(t, m.UserAgent, 500)

	m = models.ClientMeta{IPAddress: "::1"}.Sanitize()
	assert.Equal(t, "::1", m.IPAddress)
}
