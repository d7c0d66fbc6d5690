package auth

import (
	"crypto/subtle"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLength = 8
	maxUsernameLength = 32
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9._-]*[a-z0-9])?$`)

// BasicCredentials is the single basic auth account a server accepts.
type BasicCredentials struct {
	Username     string
	PasswordHash string
}

// NewBasicCredentials normalizes username. Invalid or incomplete settings
// yield credentials that never match.
func NewBasicCredentials(username, passwordHash string) BasicCredentials {
	normalized, err := NormalizeUsername(username)
	passwordHash = strings.TrimSpace(passwordHash)
	if err != nil || passwordHash == "" {
		return BasicCredentials{}
	}
	return BasicCredentials{Username: normalized, PasswordHash: passwordHash}
}

func (c BasicCredentials) Configured() bool {
	return c.Username != "" && c.PasswordHash != ""
}

// Verify checks a username and password pair presented by a client.
func (c BasicCredentials) Verify(username, password string) (string, bool) {
	if !c.Configured() {
		return "", false
	}
	normalized, err := NormalizeUsername(username)
	if err != nil {
		return "", false
	}
	userOK := subtle.ConstantTimeCompare([]byte(normalized), []byte(c.Username)) == 1
	passOK := VerifyPassword(c.PasswordHash, password)
	if !userOK || !passOK {
		return "", false
	}
	return normalized, true
}

// NormalizeUsername lowercases and validates a basic auth username.
func NormalizeUsername(raw string) (string, error) {
	username := strings.TrimSpace(strings.ToLower(raw))
	switch {
	case username == "":
		return "", fmt.Errorf("username is required")
	case len(username) > maxUsernameLength:
		return "", fmt.Errorf("username longer than %d characters", maxUsernameLength)
	case !usernamePattern.MatchString(username):
		return "", fmt.Errorf("invalid username %q", raw)
	}
	return username, nil
}

// ValidatePassword enforces the length bounds bcrypt can honor.
func ValidatePassword(password string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}
	if len(password) > 72 {
		return fmt.Errorf("password must be at most 72 bytes")
	}
	return nil
}

// HashPassword returns the bcrypt hash stored in auth.basic_auth_password_hash.
func HashPassword(password string) (string, error) {
	if err := ValidatePassword(password); err != nil {
		return "", err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

func VerifyPassword(passwordHash, candidate string) bool {
	if passwordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(candidate)) == nil
}
