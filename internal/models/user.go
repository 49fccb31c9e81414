package models

import (
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// UserIDPrefix marks every generated user identifier.
const UserIDPrefix = "usr_"

// List caps.
const (
	MaxPreferences     = 20
	MaxFavoriteArtists = 100
	MaxFavoriteVenues  = 100
)

// User represents a registered account.
type User struct {
	ID              string    `json:"id" gorm:"primaryKey;type:varchar(64)" bson:"id" validate:"required,startswith=usr_"`
	Name            string    `json:"name" gorm:"type:varchar(50)" bson:"name" validate:"required,min=2,max=50,personname"`
	Email           string    `json:"email" gorm:"uniqueIndex;type:varchar(255)" bson:"email" validate:"required,emailaddr"`
	PasswordDigest  string    `json:"-" gorm:"column:password_hash;type:varchar(255)" bson:"password_hash" validate:"required,min=60"`
	Phone           string    `json:"phone" gorm:"uniqueIndex;type:varchar(16)" bson:"phone" validate:"required,phone"`
	Country         string    `json:"country" gorm:"type:varchar(50)" bson:"country" validate:"omitempty,min=2,max=50"`
	City            string    `json:"city" gorm:"type:varchar(50)" bson:"city" validate:"omitempty,min=2,max=50"`
	Preferences     []string  `json:"preferences" gorm:"serializer:json;type:text" bson:"preferences" validate:"max=20"`
	FavoriteArtists []string  `json:"favoriteArtists" gorm:"serializer:json;type:text" bson:"favorite_artists" validate:"max=100"`
	FavoriteVenues  []string  `json:"favoriteVenues" gorm:"serializer:json;type:text" bson:"favorite_venues" validate:"max=100"`
	ProfileComplete bool      `json:"profileComplete" bson:"profile_complete"`
	AccountVerified bool      `json:"accountVerified" bson:"account_verified"`
	CreatedAt       time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt       time.Time `json:"updatedAt" bson:"updated_at"`
}

// NewUserID generates a fresh opaque user identifier.
func NewUserID() string {
	return UserIDPrefix + strings.ReplaceAll(uuid.New().String(), "-", "")
}

// NormalizeEmail trims and lower-cases an address; emails compare case-insensitively.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RecomputeProfileComplete derives ProfileComplete from the four required profile fields.
func (u *User) RecomputeProfileComplete() {
	u.ProfileComplete = u.Name != "" && u.Phone != "" && u.Country != "" && u.City != ""
}

// ProfileUpdate carries the whitelisted fields of a profile update. A nil field was not
// supplied and is left untouched.
type ProfileUpdate struct {
	Name            *string   `json:"name"`
	Phone           *string   `json:"phone"`
	Country         *string   `json:"country"`
	City            *string   `json:"city"`
	Preferences     *[]string `json:"preferences"`
	FavoriteArtists *[]string `json:"favoriteArtists"`
	FavoriteVenues  *[]string `json:"favoriteVenues"`
}

// IsEmpty reports whether no recognized field was supplied.
func (p ProfileUpdate) IsEmpty() bool {
	return p.Name == nil && p.Phone == nil && p.Country == nil && p.City == nil &&
		p.Preferences == nil && p.FavoriteArtists == nil && p.FavoriteVenues == nil
}

// Apply copies the supplied fields onto u and recomputes ProfileComplete.
func (p ProfileUpdate) Apply(u *User) {
	if p.Name != nil {
		u.Name = strings.TrimSpace(*p.Name)
	}
	if p.Phone != nil {
		u.Phone = strings.TrimSpace(*p.Phone)
	}
	if p.Country != nil {
		u.Country = strings.TrimSpace(*p.Country)
	}
	if p.City != nil {
		u.City = strings.TrimSpace(*p.City)
	}
	if p.Preferences != nil {
		u.Preferences = *p.Preferences
	}
	if p.FavoriteArtists != nil {
		u.FavoriteArtists = *p.FavoriteArtists
	}
	if p.FavoriteVenues != nil {
		u.FavoriteVenues = *p.FavoriteVenues
	}
	u.RecomputeProfileComplete()
}

// PublicUser is the summary projection returned by register and login.
type PublicUser struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	ProfileComplete bool   `json:"profileComplete"`
	AccountVerified bool   `json:"accountVerified"`
}

// Summary returns the register/login projection of u.
func (u *User) Summary() PublicUser {
	return PublicUser{
		ID:              u.ID,
		Name:            u.Name,
		Email:           u.Email,
		ProfileComplete: u.ProfileComplete,
		AccountVerified: u.AccountVerified,
	}
}

var (
	emailShape   = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	emailAddress = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	phoneNumber  = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)
	personName   = regexp.MustCompile(`^[a-zA-Z\s]+$`)
)

// IsEmailShape is the quick request-level check applied before any store lookup.
func IsEmailShape(email string) bool {
	return emailShape.MatchString(email)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("emailaddr", func(fl validator.FieldLevel) bool {
		return emailAddress.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phoneNumber.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("personname", func(fl validator.FieldLevel) bool {
		return personName.MatchString(fl.Field().String())
	})
	return v
}

var fieldNames = map[string]string{
	"ID":              "id",
	"Name":            "name",
	"Email":           "email",
	"PasswordDigest":  "passwordDigest",
	"Phone":           "phone",
	"Country":         "country",
	"City":            "city",
	"Preferences":     "preferences",
	"FavoriteArtists": "favoriteArtists",
	"FavoriteVenues":  "favoriteVenues",
}

var tagReasons = map[string]string{
	"required":   "is required",
	"startswith": "has an invalid format",
	"emailaddr":  "must be a valid email address",
	"phone":      "must be a valid phone number with country code (e.g., +11234567890)",
	"personname": "can only contain letters and spaces",
}

// ValidateUser checks every field of u and returns a *ValidationError listing all failures,
// or nil when u may be persisted.
func ValidateUser(u *User) error {
	err := validate.Struct(u)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return &ValidationError{Fields: []FieldError{{Field: "user", Reason: err.Error()}}}
	}
	out := &ValidationError{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{Field: jsonField(fe.StructField()), Reason: FieldReason(fe)})
	}
	return out
}

func jsonField(structField string) string {
	if name, ok := fieldNames[structField]; ok {
		return name
	}
	return structField
}

// FieldReason renders a validator failure as a readable reason.
func FieldReason(fe validator.FieldError) string {
	if r, ok := tagReasons[fe.Tag()]; ok {
		return r
	}
	switch fe.Tag() {
	case "min":
		if fe.Kind().String() == "slice" {
			return "must have at least " + fe.Param() + " entries"
		}
		return "must be at least " + fe.Param() + " characters long"
	case "max":
		if fe.Kind().String() == "slice" {
			return "cannot have more than " + fe.Param() + " entries"
		}
		return "cannot exceed " + fe.Param() + " characters"
	}
	return "failed on the '" + fe.Tag() + "' rule"
}
