package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the subset of a bearer credential the client can read.
type Claims struct {
	Subject string `json:"sub"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

var errNoExpiry = errors.New("credential carries no expiry")

// inspect reads the claims of a JWT credential without verifying it; the
// signing key lives with the backend. Opaque credentials return an error.
func inspect(credential string) (Claims, error) {
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(credential, &claims); err != nil {
		return Claims{}, err
	}
	return claims, nil
}

// expiry returns when credential stops being accepted, if it says so.
func expiry(credential string) (time.Time, error) {
	claims, err := inspect(credential)
	if err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, errNoExpiry
	}
	return claims.ExpiresAt.Time, nil
}
