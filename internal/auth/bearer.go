package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	// ErrTokenNotConfigured means the deployment is restricted but no
	// migration token was provisioned, so nothing can be authorized.
	ErrTokenNotConfigured = fmt.Errorf("%w: migration token not configured", ErrUnauthorized)
)

// Check decides whether an Authorization header value may run privileged
// operations. Unrestricted environments are always allowed.
func Check(restricted bool, token, authorization string) error {
	if !restricted {
		return nil
	}
	if token == "" {
		return ErrTokenNotConfigured
	}
	presented, ok := bearerToken(authorization)
	if !ok {
		return fmt.Errorf("%w: bearer token required", ErrUnauthorized)
	}
	if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
		return fmt.Errorf("%w: invalid token", ErrUnauthorized)
	}
	return nil
}

// Gate applies Check to incoming requests.
type Gate struct {
	Restricted bool
	Token      string
}

func NewGate(restricted bool, token string) *Gate {
	return &Gate{Restricted: restricted, Token: token}
}

func (g *Gate) Authorize(r *http.Request) error {
	return Check(g.Restricted, g.Token, r.Header.Get("Authorization"))
}

func bearerToken(header string) (string, bool) {
	scheme, value, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}
