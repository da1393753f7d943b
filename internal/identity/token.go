package identity

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// IsExpired reports whether the JWT access token has expired, or will expire
// within the given skew. The claims are read without signature verification;
// the token is only inspected, never trusted, and the backing service
// verifies it on use. A token that cannot be parsed or carries no expiry is
// treated as expired so the caller refreshes it.
func IsExpired(token string, skew time.Duration) bool {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())

	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return true
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return true
	}

	return time.Now().Add(skew).After(exp.Time)
}
