package handlers

import (
	"reflect"
	"strings"

	"gigauth/internal/metrics"
	"gigauth/internal/middleware"
	"gigauth/internal/models"
	"gigauth/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// AuthHandler handles HTTP requests for the account lifecycle.
type AuthHandler struct {
	authService *services.AuthService
	errors      *ErrorResponder
	validate    *validator.Validate
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *services.AuthService, errors *ErrorResponder) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		errors:      errors,
		validate:    newRequestValidator(),
	}
}

// newRequestValidator reports request fields by their JSON names.
func newRequestValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// RegisterRoutes registers the authentication routes with the Fiber router.
func (h *AuthHandler) RegisterRoutes(router fiber.Router) {
	authRoutes := router.Group("/auth")
	authRoutes.Post("/create-user", h.HandleRegister)
	authRoutes.Post("/login", h.HandleLogin)
	authRoutes.Get("/get-user", middleware.AuthRequired(h.authService, h.errors.Guard(opGetUser)), h.HandleGetUser)
	authRoutes.Post("/logout", middleware.BearerToken(h.errors.Guard(opLogout)), h.HandleLogout)
	authRoutes.Put("/update-profile", middleware.AuthRequired(h.authService, h.errors.Guard(opUpdateProfile)), h.HandleUpdateProfile)
}

const (
	opRegister      = "register"
	opLogin         = "login"
	opGetUser       = "get_user"
	opLogout        = "logout"
	opUpdateProfile = "update_profile"
)

// RegisterRequest represents the request body for registration.
type RegisterRequest struct {
	Name            string   `json:"name"`
	Email           string   `json:"email" validate:"required"`
	Password        string   `json:"password" validate:"required"`
	Phone           string   `json:"phone"`
	Country         string   `json:"country"`
	City            string   `json:"city"`
	Preferences     []string `json:"preferences"`
	FavoriteArtists []string `json:"favoriteArtists"`
	FavoriteVenues  []string `json:"favoriteVenues"`
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// HandleRegister creates an account and returns its first session token.
func (h *AuthHandler) HandleRegister(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := h.parse(c, &req); err != nil {
		return h.fail(c, opRegister, err)
	}

	user, token, err := h.authService.Register(c.UserContext(), services.RegisterInput{
		Name:            req.Name,
		Email:           req.Email,
		Password:        req.Password,
		Phone:           req.Phone,
		Country:         req.Country,
		City:            req.City,
		Preferences:     req.Preferences,
		FavoriteArtists: req.FavoriteArtists,
		FavoriteVenues:  req.FavoriteVenues,
		Meta:            clientMeta(c),
	})
	if err != nil {
		return h.fail(c, opRegister, err)
	}

	h.succeed(opRegister)
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"msg":   "User created successfully",
		"user":  user.Summary(),
		"token": token,
	})
}

// HandleLogin authenticates a user and issues a fresh session token.
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	var req LoginRequest
	if err := h.parse(c, &req); err != nil {
		return h.fail(c, opLogin, err)
	}

	user, token, err := h.authService.Login(c.UserContext(), req.Email, req.Password, clientMeta(c))
	if err != nil {
		return h.fail(c, opLogin, err)
	}

	h.succeed(opLogin)
	return c.JSON(fiber.Map{
		"msg":   "Login successful",
		"token": token,
		"user":  user.Summary(),
	})
}

// HandleGetUser returns the full profile of the authenticated user.
func (h *AuthHandler) HandleGetUser(c *fiber.Ctx) error {
	user, ok := c.Locals(middleware.UserKey).(*models.User)
	if !ok {
		return h.fail(c, opGetUser, models.ErrMissingToken)
	}
	h.succeed(opGetUser)
	return c.JSON(fiber.Map{
		"msg":  "User found",
		"user": profile(user),
	})
}

// HandleLogout deletes the session of the bearer token.
func (h *AuthHandler) HandleLogout(c *fiber.Ctx) error {
	token, _ := c.Locals(middleware.TokenKey).(string)
	if err := h.authService.Logout(c.UserContext(), token); err != nil {
		return h.fail(c, opLogout, err)
	}
	h.succeed(opLogout)
	return c.JSON(fiber.Map{"msg": "Logged out successfully"})
}

// HandleUpdateProfile applies the whitelisted profile fields in the body. Unknown fields
// are ignored. The token is checked by AuthRequired before the body is read.
func (h *AuthHandler) HandleUpdateProfile(c *fiber.Ctx) error {
	token, _ := c.Locals(middleware.TokenKey).(string)

	var update models.ProfileUpdate
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&update); err != nil {
			return h.fail(c, opUpdateProfile, badBody(err))
		}
	}

	user, err := h.authService.UpdateProfile(c.UserContext(), token, update)
	if err != nil {
		return h.fail(c, opUpdateProfile, err)
	}

	h.succeed(opUpdateProfile)
	return c.JSON(fiber.Map{
		"msg":  "Profile updated successfully",
		"user": profile(user),
	})
}

func (h *AuthHandler) parse(c *fiber.Ctx, req interface{}) error {
	if err := c.BodyParser(req); err != nil {
		return badBody(err)
	}
	if err := h.validate.Struct(req); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return badBody(err)
		}
		out := &models.ValidationError{}
		for _, e := range verrs {
			out.Fields = append(out.Fields, models.FieldError{
				Field:  e.Field(),
				Reason: models.FieldReason(e),
			})
		}
		return out
	}
	return nil
}

func (h *AuthHandler) fail(c *fiber.Ctx, operation string, err error) error {
	metrics.AuthOperationsTotal.WithLabelValues(operation, outcome(err)).Inc()
	return h.errors.Respond(c, err)
}

func (h *AuthHandler) succeed(operation string) {
	metrics.AuthOperationsTotal.WithLabelValues(operation, outcome(nil)).Inc()
}

func badBody(err error) error {
	return &models.ValidationError{Fields: []models.FieldError{{Field: "body", Reason: err.Error()}}}
}

func clientMeta(c *fiber.Ctx) models.ClientMeta {
	return models.ClientMeta{
		IPAddress: c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
	}
}

// profile returns the full public projection of u. List fields are never null.
func profile(u *models.User) *models.User {
	out := *u
	if out.Preferences == nil {
		out.Preferences = []string{}
	}
	if out.FavoriteArtists == nil {
		out.FavoriteArtists = []string{}
	}
	if out.FavoriteVenues == nil {
		out.FavoriteVenues = []string{}
	}
	return &out
}
