// Package auth issues and verifies the bearer tokens that guard write
// endpoints.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const (
	// RoleAdmin may create questions.
	RoleAdmin = "admin"

	issuer     = "quizstore"
	defaultTTL = 24 * time.Hour
	minSecret  = 32
)

var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrInvalidPassword  = errors.New("invalid password")
	ErrSecretTooShort   = fmt.Errorf("jwt secret must be at least %d bytes", minSecret)
	ErrPasswordDisabled = errors.New("admin password is not configured")
)

// Claims are the claims carried by a token.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Manager signs and verifies HS256 tokens.
type Manager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewManager creates a Manager. ttl defaults to 24 hours.
func NewManager(secret string, ttl time.Duration) (*Manager, error) {
	if len(secret) < minSecret {
		return nil, ErrSecretTooShort
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Manager{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Issue creates a token for subject with the given role.
func (m *Manager) Issue(subject, role string) (string, error) {
	now := m.now()
	claims := &Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// Verify parses token and checks its signature, expiry and issuer.
// Every failure wraps ErrInvalidToken.
func (m *Manager) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if !claims.VerifyIssuer(issuer, true) {
		return nil, fmt.Errorf("%w: unexpected issuer %q", ErrInvalidToken, claims.Issuer)
	}
	return claims, nil
}

// CheckPassword compares password with the configured admin password in
// constant time. An empty admin password disables password login.
func CheckPassword(password, adminPassword string) error {
	if adminPassword == "" {
		return ErrPasswordDisabled
	}
	if subtle.ConstantTimeCompare([]byte(password), []byte(adminPassword)) != 1 {
		return ErrInvalidPassword
	}
	return nil
}
