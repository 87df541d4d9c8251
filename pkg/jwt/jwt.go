package jwt

import (
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

const (
	DefaultTTL = 24 * time.Hour
	issuer     = "party-queue"
)

var (
	ErrMissingSecret = errors.New("jwt: signing secret must be provided")
	ErrMissingUserID = errors.New("jwt: user_id claim must be provided")
)

// Claims identifies the guest holding the token.
type Claims struct {
	UserID string `json:"user_id"`
	gojwt.RegisteredClaims
}

type Config struct {
	SigningSecret []byte
	TTL           time.Duration
	Clock         func() time.Time
}

// Manager issues and validates HS256 guest tokens.
type Manager struct {
	secret []byte
	ttl    time.Duration
	clock  func() time.Time
}

func NewManager(cfg Config) *Manager {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Manager{secret: cfg.SigningSecret, ttl: ttl, clock: clock}
}

// TTL is how long issued tokens stay valid.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// GenerateToken signs a token for userID and returns it with its expiry.
func (m *Manager) GenerateToken(userID string) (string, time.Time, error) {
	if len(m.secret) == 0 {
		return "", time.Time{}, ErrMissingSecret
	}
	if userID == "" {
		return "", time.Time{}, ErrMissingUserID
	}

	now := m.clock().UTC()
	expiresAt := now.Add(m.ttl)
	claims := Claims{
		UserID: userID,
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    issuer,
			IssuedAt:  gojwt.NewNumericDate(now),
			ExpiresAt: gojwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateToken checks the signature, issuer and expiry of tokenString.
func (m *Manager) ValidateToken(tokenString string) (*Claims, error) {
	if len(m.secret) == 0 {
		return nil, ErrMissingSecret
	}

	claims := &Claims{}
	_, err := gojwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *gojwt.Token) (interface{}, error) {
			if token.Method.Alg() != gojwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("unexpected signing algorithm: %s", token.Method.Alg())
			}
			return m.secret, nil
		},
		gojwt.WithIssuer(issuer),
		gojwt.WithExpirationRequired(),
		gojwt.WithTimeFunc(m.clock),
	)
	if err != nil {
		return nil, err
	}
	if claims.UserID == "" {
		return nil, ErrMissingUserID
	}
	return claims, nil
}
