package auth

import (
	"errors"
	"net/http"
	"strings"
)

var (
	ErrMissingCredentials = errors.New("missing credentials")
	ErrBadCredentials     = errors.New("invalid credentials")
)

// Principal identifies an authenticated caller.
type Principal struct {
	Subject string
	Method  string
}

// Gate checks request credentials: a bearer JWT signed with the shared
// secret, or basic auth against one configured user.
type Gate struct {
	secret []byte
	basic  BasicCredentials
}

func NewGate(jwtSecret, basicUsername, basicPasswordHash string) *Gate {
	return &Gate{secret: []byte(jwtSecret), basic: NewBasicCredentials(basicUsername, basicPasswordHash)}
}

// Configured reports whether any credential method can succeed.
func (g *Gate) Configured() bool {
	return len(g.secret) > 0 || g.basic.Configured()
}

// Authenticate validates the Authorization header of r.
func (g *Gate) Authenticate(r *http.Request) (Principal, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return Principal{}, ErrMissingCredentials
	}
	scheme, value, _ := strings.Cut(header, " ")
	value = strings.TrimSpace(value)

	switch {
	case strings.EqualFold(scheme, "Bearer"):
		if value == "" {
			return Principal{}, ErrMissingCredentials
		}
		claims, err := ParseToken(value, g.secret)
		if err != nil {
			return Principal{}, errors.Join(ErrBadCredentials, err)
		}
		return Principal{Subject: claims.Subject, Method: "bearer"}, nil
	case strings.EqualFold(scheme, "Basic"):
		user, pass, ok := r.BasicAuth()
		if !ok {
			return Principal{}, ErrBadCredentials
		}
		username, ok := g.basic.Verify(user, pass)
		if !ok {
			return Principal{}, ErrBadCredentials
		}
		return Principal{Subject: username, Method: "basic"}, nil
	default:
		return Principal{}, ErrBadCredentials
	}
}
