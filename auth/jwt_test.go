package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestNewManager_ShortSecret(t *testing.T) {
	if _, err := NewManager("short", 0); !errors.Is(err, ErrSecretTooShort) {
		t.Errorf("expected ErrSecretTooShort, got %v", err)
	}
}

func TestIssueAndVerify(t *testing.T) {
	m, err := NewManager(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	token, err := m.Issue("ops", RoleAdmin)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	claims, err := m.Verify(token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claims.Subject != "ops" || claims.Role != RoleAdmin {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestVerify_Rejects(t *testing.T) {
	m, _ := NewManager(testSecret, time.Hour)
	other, _ := NewManager(strings.Repeat("x", 32), time.Hour)

	expired, _ := NewManager(testSecret, time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	foreignToken, _ := other.Issue("ops", RoleAdmin)
	expiredToken, _ := expired.Issue("ops", RoleAdmin)
	noneToken, _ := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{Role: RoleAdmin}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	foreignIssuer, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		Role:             RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "someone-else"},
	}).SignedString([]byte(testSecret))

	tests := map[string]string{
		"garbage":        "not-a-token",
		"wrong secret":   foreignToken,
		"expired":        expiredToken,
		"alg none":       noneToken,
		"foreign issuer": foreignIssuer,
	}

	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := m.Verify(token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestCheckPassword(t *testing.T) {
	if err := CheckPassword("secret", "secret"); err != nil {
		t.Errorf("expected match, got %v", err)
	}
	if err := CheckPassword("guess", "secret"); !errors.Is(err, ErrInvalidPassword) {
		t.Errorf("expected ErrInvalidPassword, got %v", err)
	}
	if err := CheckPassword("", ""); !errors.Is(err, ErrPasswordDisabled) {
		t.Errorf("expected ErrPasswordDisabled, got %v", err)
	}
}
