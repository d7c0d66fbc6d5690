package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "tams"

var ErrInvalidToken = errors.New("invalid token")

// Claims are the registered claims of a tams bearer token. The subject
// names the client.
type Claims struct {
	jwt.RegisteredClaims
}

// GenerateToken signs an HS256 token for subject valid for ttl.
func GenerateToken(subject string, secret []byte, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", fmt.Errorf("jwt secret is required")
	}
	if subject == "" {
		return "", fmt.Errorf("token subject is required")
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString(secret)
}

// ParseToken verifies signature, algorithm and expiry and returns the claims.
func ParseToken(tokenString string, secret []byte) (*Claims, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("%w: no secret configured", ErrInvalidToken)
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(tokenIssuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
