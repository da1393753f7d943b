package identity

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func TestIsExpired_FreshToken(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
		"sub": "acc-1",
	})

	if IsExpired(token, time.Minute) {
		t.Error("IsExpired = true for a token valid for an hour")
	}
}

func TestIsExpired_PastExpiry(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	if !IsExpired(token, 0) {
		t.Error("IsExpired = false for an expired token")
	}
}

func TestIsExpired_WithinSkew(t *testing.T) {
	// Expires in 30 seconds but the skew asks for a full minute of margin.
	token := signedToken(t, jwt.MapClaims{
		"exp": time.Now().Add(30 * time.Second).Unix(),
	})

	if !IsExpired(token, time.Minute) {
		t.Error("IsExpired = false for a token inside the skew window")
	}
	if IsExpired(token, 0) {
		t.Error("IsExpired = true with zero skew for a still-valid token")
	}
}

func TestIsExpired_NoExpiryClaim(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{"sub": "acc-1"})

	if !IsExpired(token, 0) {
		t.Error("IsExpired = false for a token without an exp claim")
	}
}

func TestIsExpired_Garbage(t *testing.T) {
	if !IsExpired("not-a-jwt", 0) {
		t.Error("IsExpired = false for an unparsable token")
	}
	if !IsExpired("", 0) {
		t.Error("IsExpired = false for an empty token")
	}
}
