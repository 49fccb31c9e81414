package middleware

import (
	"strings"

	"gigauth/internal/models"
	"gigauth/internal/services"

	"github.com/gofiber/fiber/v2"
)

// Locals keys set by the middleware.
const (
	TokenKey = "token"
	UserKey  = "user"
)

// BearerToken extracts the token from an "Authorization: Bearer <token>" header and stores
// it in the Fiber context. Requests without one are passed to onError with ErrMissingToken.
func BearerToken(onError func(*fiber.Ctx, error) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := ExtractBearer(c.Get(fiber.HeaderAuthorization))
		if token == "" {
			return onError(c, models.ErrMissingToken)
		}
		c.Locals(TokenKey, token)
		return c.Next()
	}
}

// AuthRequired resolves the bearer token to its user and stores both in the Fiber
// context. Token failures surface through onError so they render like any handler error.
func AuthRequired(authService *services.AuthService, onError func(*fiber.Ctx, error) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := ExtractBearer(c.Get(fiber.HeaderAuthorization))
		if token == "" {
			return onError(c, models.ErrMissingToken)
		}
		user, err := authService.ValidateToken(c.UserContext(), token)
		if err != nil {
			return onError(c, err)
		}
		c.Locals(TokenKey, token)
		c.Locals(UserKey, user)
		return c.Next()
	}
}

// ExtractBearer returns the token of a Bearer authorization header, or "".
func ExtractBearer(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
