package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoSubject is returned when a token carries no usable user claim.
var ErrNoSubject = errors.New("token has no subject")

// UserIDFromToken reads the user ID from a JWT without verifying its
// signature. The server verifies tokens; the client only needs the claim to
// key local state. Claims are tried in order: sub, userId, user_id.
func UserIDFromToken(token string) (string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}

	for _, key := range []string{"sub", "userId", "user_id"} {
		if v, ok := claims[key].(string); ok && v != "" {
			return v, nil
		}
	}
	return "", ErrNoSubject
}
