package identity

import (
	"regexp"
	"strings"
	"time"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type User struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	Role         string `json:"role"`
	Department   string `json:"department,omitempty"`
	PasswordHash string `json:"passwordHash,omitempty"`

	// LegacyPassword is the plaintext password of imported browser-era
	// accounts. The first successful login replaces it with a hash.
	LegacyPassword string     `json:"password,omitempty"`
	Active         bool       `json:"active"`
	LastLoginAt    *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt,omitzero"`
	UpdatedAt      time.Time  `json:"updatedAt,omitzero"`
}

// Public strips credentials for API responses.
func (u User) Public() User {
	u.PasswordHash = ""
	u.LegacyPassword = ""
	return u
}

// roleAliases maps role names used by older deployments.
var roleAliases = map[string]string{
	"LAB":        "LAB_TECHNICIAN",
	"LABORATORY": "LAB_TECHNICIAN",
}

// NormalizeRole upper-cases a role and resolves known aliases.
func NormalizeRole(role string) string {
	r := strings.ToUpper(strings.TrimSpace(role))
	if alias, ok := roleAliases[r]; ok {
		return alias
	}
	return r
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type CreateUserRequest struct {
	Email      string `json:"email"`
	Name       string `json:"name"`
	Role       string `json:"role"`
	Department string `json:"department"`
	Password   string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token       string    `json:"token"`
	ExpiresAt   time.Time `json:"expiresAt"`
	User        User      `json:"user"`
	Permissions []string  `json:"permissions"`
}
