package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// HMACSigner signs and verifies access tokens with a shared HS256 secret.
// Only the backend side (the mock server and tests) holds one.
type HMACSigner struct {
	secret []byte
}

// NewHMACSigner creates a new HMAC signer with the given secret
func NewHMACSigner(secret string) *HMACSigner {
	return &HMACSigner{
		secret: []byte(secret),
	}
}

func (h *HMACSigner) Sign(claims jwtlib.MapClaims) (string, error) {
	tok := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	signed, err := tok.SignedString(h.secret)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token with HMAC")
	}
	return signed, nil
}

func (h *HMACSigner) verificationKey(tok *jwtlib.Token) (any, error) {
	if _, ok := tok.Method.(*jwtlib.SigningMethodHMAC); !ok {
		return nil, errors.Errorf("unexpected signing method: %v", tok.Header["alg"])
	}
	return h.secret, nil
}

// Issuer mints access tokens for a user.
type Issuer struct {
	mu      sync.RWMutex
	signer  *HMACSigner
	ttl     time.Duration
	nowFunc func() time.Time
}

type IssuerOption func(*Issuer)

func WithNowFunc(now func() time.Time) IssuerOption {
	return func(i *Issuer) {
		i.nowFunc = now
	}
}

// WithTTL sets the lifetime of issued access tokens. Zero or negative values
// produce tokens that are already expired, which tests use to force a refresh.
func WithTTL(ttl time.Duration) IssuerOption {
	return func(i *Issuer) {
		i.ttl = ttl
	}
}

func NewIssuer(signer *HMACSigner, options ...IssuerOption) *Issuer {
	i := &Issuer{
		signer:  signer,
		ttl:     15 * time.Minute,
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(i)
	}
	return i
}

// SetTTL changes the lifetime of tokens issued from now on.
func (i *Issuer) SetTTL(ttl time.Duration) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.ttl = ttl
}

// Issue creates a signed access token for the given subject.
func (i *Issuer) Issue(subject, email, role string) (string, *Claims, error) {
	i.mu.RLock()
	ttl := i.ttl
	i.mu.RUnlock()

	now := i.nowFunc()
	exp := now.Add(ttl)
	claims := &Claims{
		ID:        uuid.NewString(),
		Subject:   subject,
		Email:     email,
		Role:      role,
		ExpiresAt: &exp,
		IssuedAt:  &now,
	}
	signed, err := i.signer.Sign(jwtlib.MapClaims{
		"jti":   claims.ID,
		"sub":   subject,
		"email": email,
		"role":  role,
		"iat":   now.Unix(),
		"exp":   exp.Unix(),
	})
	if err != nil {
		return "", nil, errors.Wrap(err, "[Issuer.Issue] sign")
	}
	return signed, claims, nil
}

// Verify checks the signature and expiry of raw and returns its claims.
func (i *Issuer) Verify(raw string) (*Claims, error) {
	parsed, err := jwtlib.Parse(raw, i.signer.verificationKey,
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithTimeFunc(i.nowFunc),
	)
	if err != nil {
		return nil, errors.Wrap(err, "[Issuer.Verify] invalid token")
	}
	if !parsed.Valid {
		return nil, errors.New("[Issuer.Verify] invalid token")
	}
	mapClaims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, errors.New("[Issuer.Verify] error extracting claims")
	}
	return fromMapClaims(mapClaims)
}

// GenerateRefreshToken returns an opaque random refresh token of length bytes.
func GenerateRefreshToken(length int) (string, error) {
	tokenBytes := make([]byte, length)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(tokenBytes), nil
}
