package models

import (
	"regexp"
	"strings"
	"time"
)

// Session is a persisted login token bound to one user.
type Session struct {
	Token     string    `json:"token" gorm:"primaryKey;type:varchar(500)" bson:"token"`
	UserID    string    `json:"user_id" gorm:"index;type:varchar(64);not null" bson:"user_id"`
	ExpiresAt time.Time `json:"expires_at" gorm:"index;not null" bson:"expires_at"`
	IssuedAt  time.Time `json:"issued_at" bson:"issued_at"`
	IPAddress string    `json:"ip_address,omitempty" gorm:"type:varchar(45)" bson:"ip_address,omitempty"`
	UserAgent string    `json:"user_agent,omitempty" gorm:"type:varchar(500)" bson:"user_agent,omitempty"`
}

// Expired reports whether the session is no longer valid at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// ClientMeta is the audit metadata recorded alongside a new session.
type ClientMeta struct {
	IPAddress string
	UserAgent string
}

const maxUserAgent = 500

var ipAddress = regexp.MustCompile(`^(?:[0-9]{1,3}\.){3}[0-9]{1,3}$|^[0-9a-fA-F:]+$`)

// Sanitize drops metadata that would not pass session validation. Audit fields never
// block a login.
func (m ClientMeta) Sanitize() ClientMeta {
	if !ipAddress.MatchString(m.IPAddress) {
		m.IPAddress = ""
	}
	if len(m.UserAgent) > maxUserAgent {
		m.UserAgent = m.UserAgent[:maxUserAgent]
	}
	return m
}

// ValidateSession checks a session before it is written.
func ValidateSession(s *Session, now time.Time) error {
	var fields []FieldError
	if !strings.HasPrefix(s.UserID, UserIDPrefix) {
		fields = append(fields, FieldError{Field: "user_id", Reason: "invalid user ID format"})
	}
	if s.Token == "" {
		fields = append(fields, FieldError{Field: "token", Reason: "is required"})
	} else if len(s.Token) > 500 {
		fields = append(fields, FieldError{Field: "token", Reason: "token too long"})
	}
	if s.Expired(now) {
		fields = append(fields, FieldError{Field: "expires_at", Reason: "token expiration date must be in the future"})
	}
	if s.IPAddress != "" && !ipAddress.MatchString(s.IPAddress) {
		fields = append(fields, FieldError{Field: "ip_address", Reason: "invalid IP address format"})
	}
	if len(s.UserAgent) > maxUserAgent {
		fields = append(fields, FieldError{Field: "user_agent", Reason: "user agent too long"})
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
