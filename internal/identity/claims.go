package identity

import (
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

var ErrTokenExpired = errors.New("access token expired")

// Claims is the subset of access-token claims the client cares about.
type Claims struct {
	Subject   string
	Email     string
	ExpiresAt time.Time
}

func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// InspectToken decodes claims without verifying the signature. The backend
// remains the authority; this only lets the client skip a token it can
// already tell is stale.
func InspectToken(token string) (Claims, error) {
	parser := gojwt.NewParser()
	parsed, _, err := parser.ParseUnverified(token, gojwt.MapClaims{})
	if err != nil {
		return Claims{}, fmt.Errorf("inspect access token: %w", err)
	}
	mapClaims, ok := parsed.Claims.(gojwt.MapClaims)
	if !ok {
		return Claims{}, errors.New("inspect access token: unexpected claims type")
	}

	claims := Claims{}
	if sub, err := mapClaims.GetSubject(); err == nil {
		claims.Subject = sub
	}
	if claims.Subject == "" {
		if id, ok := mapClaims["userId"].(string); ok {
			claims.Subject = id
		}
	}
	if email, ok := mapClaims["email"].(string); ok {
		claims.Email = email
	}
	if exp, err := mapClaims.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}
	return claims, nil
}

// CheckToken returns ErrTokenExpired when token carries an exp in the past.
// Tokens that cannot be decoded are left for the server to judge.
func CheckToken(token string, now time.Time) error {
	claims, err := InspectToken(token)
	if err != nil {
		return nil
	}
	if claims.Expired(now) {
		return ErrTokenExpired
	}
	return nil
}
