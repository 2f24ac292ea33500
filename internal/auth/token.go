package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// DriverClaims is the payload of the bearer token issued to the driver by the
// booking backend. The agent holds the token but not the signing secret, so
// claims are inspected without signature verification. The backend remains
// the authority; inspection is only used to learn the driver identity and to
// warn before the token lapses.
type DriverClaims struct {
	DriverID string `json:"driver_id"`
	Phone    string `json:"phone,omitempty"`
	jwt.RegisteredClaims
}

// Inspect decodes the token's claims without verifying the signature.
// An expired token is returned together with ErrExpiredToken so callers can
// still read the identity while reporting the problem.
func Inspect(tokenString string) (*DriverClaims, error) {
	claims := &DriverClaims{}

	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.DriverID == "" {
		claims.DriverID = claims.Subject
	}
	if claims.DriverID == "" {
		return nil, fmt.Errorf("%w: no driver identity in claims", ErrInvalidToken)
	}

	if claims.ExpiresAt != nil && time.Now().After(claims.ExpiresAt.Time) {
		return claims, ErrExpiredToken
	}

	return claims, nil
}

// ExpiresWithin reports whether the token lapses before the given duration
// passes. Tokens without an expiry never expire.
func (c *DriverClaims) ExpiresWithin(d time.Duration) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return time.Now().Add(d).After(c.ExpiresAt.Time)
}
