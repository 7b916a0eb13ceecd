package model

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const bearerPrefix = "Bearer "

// SessionToken is a bearer header value with what could be decoded from it.
type SessionToken struct {
	Value     string
	Parsed    bool
	ExpiresAt *time.Time
}

// ParseSessionToken decodes value as "Bearer <jwt>". The signature is not
// verified; only the backend can do that. A value that does not decode yields
// a token with Parsed false.
func ParseSessionToken(value string) SessionToken {
	token := SessionToken{Value: value}
	if !strings.HasPrefix(value, bearerPrefix) {
		return token
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(value[len(bearerPrefix):], claims); err != nil {
		return token
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return token
	}
	if exp != nil {
		t := exp.Time
		token.ExpiresAt = &t
	}
	token.Parsed = true
	return token
}

// Valid reports whether the token decoded and has not expired at now. A token
// without an exp claim never expires.
func (t SessionToken) Valid(now time.Time) bool {
	if !t.Parsed {
		return false
	}
	return t.ExpiresAt == nil || t.ExpiresAt.After(now)
}
