package token

import (
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-brief-portal/internal/errors"
)

// Claims are the fields of an access token the client cares about.
type Claims struct {
	ID        string     `json:"jti,omitempty"`   // Token identifier, used for revocation
	Subject   string     `json:"sub,omitempty"`   // User ID
	Email     string     `json:"email,omitempty"` // User's email address
	Role      string     `json:"role,omitempty"`  // Portal role
	ExpiresAt *time.Time `json:"exp,omitempty"`   // Nil when the token carries no expiry
	IssuedAt  *time.Time `json:"iat,omitempty"`
}

// Parse decodes the payload segment of raw without verifying its signature.
// The client never holds the signing key; it only reads the claims.
func Parse(raw string) (*Claims, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, errors.ErrInvalidToken
	}

	unverified, _, err := jwtlib.NewParser().ParseUnverified(raw, jwtlib.MapClaims{})
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidToken, "[token.Parse] %s", err.Error())
	}

	claims, ok := unverified.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, errors.Wrapf(errors.ErrInvalidToken, "[token.Parse] error extracting claims")
	}
	return fromMapClaims(claims)
}

func fromMapClaims(claims jwtlib.MapClaims) (*Claims, error) {
	c := &Claims{}
	c.ID, _ = claims["jti"].(string)
	c.Subject, _ = claims["sub"].(string)
	c.Email, _ = claims["email"].(string)
	c.Role, _ = claims["role"].(string)

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidToken, "[token.Parse] exp claim")
	}
	if exp != nil {
		c.ExpiresAt = &exp.Time
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		c.IssuedAt = &iat.Time
	}
	return c, nil
}

// IsExpired reports whether raw has passed its expiry at now. Any token that
// cannot be decoded counts as expired. A token without an exp claim never expires.
func IsExpired(raw string, now time.Time) bool {
	claims, err := Parse(raw)
	if err != nil {
		return true
	}
	return claims.ExpiresAt != nil && claims.ExpiresAt.Before(now)
}

// Expiry returns the exp claim of raw, or the zero time when it has none.
func Expiry(raw string) (time.Time, error) {
	claims, err := Parse(raw)
	if err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, nil
	}
	return *claims.ExpiresAt, nil
}
