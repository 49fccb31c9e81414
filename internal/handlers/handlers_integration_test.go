package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"gigauth/internal/app"
	"gigauth/internal/repositories"
	"gigauth/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testJWTSecret = "test_jwt_secret"

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// setupApp builds the full application over a private in-memory SQLite database.
func setupApp(t *testing.T) (*fiber.App, *clock) {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := repositories.OpenGORM("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	clk := &clock{now: time.Now()}
	tokenService := services.NewTokenService(
		repositories.NewGORMTokenRepository(db),
		testJWTSecret,
		services.DefaultTokenTTL,
		zerolog.Nop(),
		services.WithClock(clk.Now),
	)
	authService := services.NewAuthService(
		repositories.NewGORMUserRepository(db),
		tokenService,
		services.NewBcryptHasher(bcrypt.MinCost),
		nil,
		zerolog.Nop(),
	)
	return app.NewApp(app.Options{AuthService: authService, Logger: zerolog.Nop()}), clk
}

type response struct {
	status int
	body   map[string]interface{}
}

func doRequest(t *testing.T, a *fiber.App, method, path string, body interface{}, token string) response {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := a.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := response{status: resp.StatusCode, body: map[string]interface{}{}}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out.body))
	return out
}

func annLee() map[string]interface{} {
	return map[string]interface{}{
		"name":     "Ann Lee",
		"email":    "ann@x.com",
		"password": "pw123456",
		"phone":    "+15550001111",
		"country":  "US",
		"city":     "NY",
	}
}

func register(t *testing.T, a *fiber.App, body map[string]interface{}) string {
	t.Helper()
	resp := doRequest(t, a, http.MethodPost, "/api/v1/auth/create-user", body, "")
	require.Equal(t, http.StatusOK, resp.status, resp.body)
	token, _ := resp.body["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestAccountLifecycle(t *testing.T) {
	a, _ := setupApp(t)

	resp := doRequest(t, a, http.MethodPost, "/api/v1/auth/create-user", annLee(), "")
	require.Equal(t, http.StatusOK, resp.status)
	assert.Equal(t, "User created successfully", resp.body["msg"])
	user := resp.body["user"].(map[string]interface{})
	assert.True(t, strings.HasPrefix(user["id"].(string), "usr_"))
	assert.Equal(t, "ann@x.com", user["email"])
	assert.Equal(t, true, user["profileComplete"])
	assert.Equal(t, false, user["accountVerified"])
	t1 := resp.body["token"].(string)

	resp = doRequest(t, a, http.MethodGet, "/api/v1/auth/get-user", nil, t1)
	require.Equal(t, http.StatusOK, resp.status)
	assert.Equal(t, "User found", resp.body["msg"])
	profile := resp.body["user"].(map[string]interface{})
	assert.Equal(t, "Ann Lee", profile["name"])
	assert.Equal(t, "+15550001111", profile["phone"])
	assert.Equal(t, []interface{}{}, profile["preferences"])
	assert.NotContains(t, profile, "password")
	assert.NotContains(t, profile, "PasswordDigest")

	resp = doRequest(t, a, http.MethodPost, "/api/v1/auth/login", map[string]string{"email": "ANN@x.com", "password": "pw123456"}, "")
	require.Equal(t, http.StatusOK, resp.status)
	assert.Equal(t, "Login successful", resp.body["msg"])
	t2 := resp.body["token"].(string)
	assert.NotEqual(t, t1, t2)

	resp = doRequest(t, a, http.MethodGet, "/api/v1/auth/get-user", nil, t1)
	assert.Equal(t, http.StatusUnauthorized, resp.status)
	assert.Equal(t, "Invalid token", resp.body["msg"])

	resp = doRequest(t, a, http.MethodPost, "/api/v1/auth/logout", nil, t2)
	require.Equal(t, http.StatusOK, resp.status)
	assert.Equal(t, "Logged out successfully", resp.body["msg"])

	resp = doRequest(t, a, http.MethodPost, "/api/v1/auth/logout", nil, t2)
	assert.Equal(t, http.StatusUnauthorized, resp.status)

	resp = doRequest(t, a, http.MethodGet, "/api/v1/auth/get-user", nil, t2)
	assert.Equal(t, http.StatusUnauthorized, resp.status)
}

func TestRegisterErrors(t *testing.T) {
	a, _ := setupApp(t)
	register(t, a, annLee())

	badEmail := annLee()
	badEmail["email"] = "ann@x"
	resp := doRequest(t, a, http.MethodPost, "/api/v1/auth/create-user", badEmail, "")
	assert.Equal(t, http.StatusBadRequest, resp.status)
	assert.Equal(t, "Invalid email format", resp.body["msg"])

	noPassword := annLee()
	delete(noPassword, "password")
	noPassword["email"] = "bo@x.com"
	resp = doRequest(t, a, http.MethodPost, "/api/v1/auth/create-user", noPassword, "")
	assert.Equal(t, http.StatusBadRequest, resp.status)
	missing := resp.body["errors"].(map[string]interface{})
	assert.Equal(t, "is required", missing["password"])
	assert.NotContains(t, missing, "Password")

	dup := annLee()
	dup["email"] = "Ann@X.com"
	dup["phone"] = "+15550002222"
	resp = doRequest(t, a, http.MethodPost, "/api/v1/auth/create-user", dup, "")
	assert.Equal(t, http.StatusBadRequest, resp.status)
	assert.Equal(t, "Email already exists", resp.body["msg"])

	dupPhone := annLee()
	dupPhone["email"] = "bo@x.com"
	resp = doRequest(t, a, http.MethodPost, "/api/v1/auth/create-user", dupPhone, "")
	assert.Equal(t, http.StatusBadRequest, resp.status)
	assert.Equal(t, "Phone number already exists", resp.body["msg"])

	badPhone := annLee()
	badPhone["email"] = "cy@x.com"
	badPhone["phone"] = "5550003333"
	resp = doRequest(t, a, http.MethodPost, "/api/v1/auth/create-user", badPhone, "")
	assert.Equal(t, http.StatusBadRequest, resp.status)
	assert.Equal(t, "Validation failed", resp.body["msg"])
	fields := resp.body["errors"].(map[string]interface{})
	assert.Contains(t, fields, "phone")

	resp = doRequest(t, a, http.MethodPost, "/api/v1/auth/create-user", "{not json", "")
	assert.Equal(t, http.StatusBadRequest, resp.status)
}

func TestLoginErrors(t *testing.T) {
	a, _ := setupApp(t)
	register(t, a, annLee())

	resp := doRequest(t, a, http.MethodPost, "/api/v1/auth/login", map[string]string{"email": "nobody@x.com", "password": "pw123456"}, "")
	assert.Equal(t, http.StatusNotFound, resp.status)
	assert.Equal(t, "User not found", resp.body["msg"])

	resp = doRequest(t, a, http.MethodPost, "/api/v1/auth/login", map[string]string{"email": "ann@x.com", "password": "wrong"}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.status)
	assert.Equal(t, "Incorrect password", resp.body["msg"])

	resp = doRequest(t, a, http.MethodPost, "/api/v1/auth/login", map[string]string{"email": "ann"}, "")
	assert.Equal(t, http.StatusBadRequest, resp.status)
}

func TestTokenRequired(t *testing.T) {
	a, _ := setupApp(t)

	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/auth/get-user"},
		{http.MethodPost, "/api/v1/auth/logout"},
		{http.MethodPut, "/api/v1/auth/update-profile"},
	} {
		resp := doRequest(t, a, route.method, route.path, nil, "")
		assert.Equal(t, http.StatusUnauthorized, resp.status, route.path)
		assert.Equal(t, "No token provided", resp.body["msg"], route.path)
	}

	resp := doRequest(t, a, http.MethodGet, "/api/v1/auth/get-user", nil, "garbage")
	assert.Equal(t, http.StatusUnauthorized, resp.status)
	assert.Equal(t, "Invalid token", resp.body["msg"])
}

func TestMissingTokenIsCounted(t *testing.T) {
	a, _ := setupApp(t)

	resp := doRequest(t, a, http.MethodPost, "/api/v1/auth/logout", nil, "")
	require.Equal(t, http.StatusUnauthorized, resp.status)
	assert.Equal(t, "No token provided", resp.body["msg"])
	assert.Contains(t, resp.body, "error")

	metricsResp, err := a.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	defer metricsResp.Body.Close()
	raw, err := io.ReadAll(metricsResp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `gigauth_auth_operations_total{operation="logout",outcome="unauthorized"}`)
}

func TestUpdateProfileChecksTokenBeforeBody(t *testing.T) {
	a, clk := setupApp(t)
	token := register(t, a, annLee())

	resp := doRequest(t, a, http.MethodPut, "/api/v1/auth/update-profile", `{"name":`, "garbage.token.value")
	assert.Equal(t, http.StatusUnauthorized, resp.status)
	assert.Equal(t, "Invalid token", resp.body["msg"])

	resp = doRequest(t, a, http.MethodPut, "/api/v1/auth/update-profile", `{"name":`, token)
	assert.Equal(t, http.StatusBadRequest, resp.status)

	clk.Advance(services.DefaultTokenTTL + time.Minute)
	resp = doRequest(t, a, http.MethodPut, "/api/v1/auth/update-profile", `{"name":`, token)
	assert.Equal(t, http.StatusUnauthorized, resp.status)
	assert.Equal(t, "Token expired", resp.body["msg"])
}

func TestUpdatePreferencesOnlyKeepsProfileIncomplete(t *testing.T) {
	a, _ := setupApp(t)
	body := annLee()
	delete(body, "city")
	token := register(t, a, body)

	resp := doRequest(t, a, http.MethodPut, "/api/v1/auth/update-profile", map[string]interface{}{
		"preferences": []string{"jazz", "folk"},
	}, token)
	require.Equal(t, http.StatusOK, resp.status)
	user := resp.body["user"].(map[string]interface{})
	assert.Equal(t, []interface{}{"jazz", "folk"}, user["preferences"])
	assert.Equal(t, false, user["profileComplete"])
	assert.Equal(t, "Ann Lee", user["name"])
	assert.Equal(t, "+15550001111", user["phone"])
	assert.Equal(t, "US", user["country"])
	assert.Equal(t, "", user["city"])
}

func TestExpiredToken(t *testing.T) {
	a, clk := setupApp(t)
	token := register(t, a, annLee())

	clk.Advance(services.DefaultTokenTTL + time.Minute)
	resp := doRequest(t, a, http.MethodGet, "/api/v1/auth/get-user", nil, token)
	assert.Equal(t, http.StatusUnauthorized, resp.status)
	assert.Equal(t, "Token expired", resp.body["msg"])

	resp = doRequest(t, a, http.MethodGet, "/api/v1/auth/get-user", nil, token)
	assert.Equal(t, http.StatusUnauthorized, resp.status)
	assert.Equal(t, "Invalid token", resp.body["msg"])
}

func TestUpdateProfile(t *testing.T) {
	a, _ := setupApp(t)
	body := annLee()
	delete(body, "city")
	resp := doRequest(t, a, http.MethodPost, "/api/v1/auth/create-user", body, "")
	require.Equal(t, http.StatusOK, resp.status)
	assert.Equal(t, false, resp.body["user"].(map[string]interface{})["profileComplete"])
	token := resp.body["token"].(string)

	resp = doRequest(t, a, http.MethodPut, "/api/v1/auth/update-profile", map[string]interface{}{
		"city":        "Boston",
		"preferences": []string{"jazz"},
		"email":       "hijack@x.com",
	}, token)
	require.Equal(t, http.StatusOK, resp.status)
	assert.Equal(t, "Profile updated successfully", resp.body["msg"])
	user := resp.body["user"].(map[string]interface{})
	assert.Equal(t, "Boston", user["city"])
	assert.Equal(t, []interface{}{"jazz"}, user["preferences"])
	assert.Equal(t, true, user["profileComplete"])
	assert.Equal(t, "ann@x.com", user["email"])

	resp = doRequest(t, a, http.MethodPut, "/api/v1/auth/update-profile", map[string]string{"name": "R2-D2"}, token)
	assert.Equal(t, http.StatusBadRequest, resp.status)
	assert.Contains(t, resp.body["errors"], "name")

	resp = doRequest(t, a, http.MethodPut, "/api/v1/auth/update-profile", nil, token)
	require.Equal(t, http.StatusOK, resp.status)
	assert.Equal(t, "Ann Lee", resp.body["user"].(map[string]interface{})["name"])
}
