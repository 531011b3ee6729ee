// Package auth parses the platform-issued bearer tokens that carry the
// caller context: user id, display name and capability overrides.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// OverrideCanRead lets a caller bypass the read-permission filter in
// search.
const OverrideCanRead = "CAN_READ"

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("expired token")
)

type Claims struct {
	UserID      string   `json:"userId"`
	DisplayName string   `json:"name,omitempty"`
	Override    []string `json:"override,omitempty"`
	jwt.RegisteredClaims
}

// IssueToken signs a caller-context token, used by tests and tooling;
// production tokens come from the consuming platform.
func IssueToken(secret []byte, claims Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseToken verifies signature and expiry and returns the claims.
func ParseToken(secret []byte, tokenString string) (Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if errors.Is(err, jwt.ErrTokenExpired) {
		return Claims{}, ErrExpiredToken
	}
	if err != nil || !token.Valid {
		return Claims{}, ErrInvalidToken
	}
	if claims.UserID == "" {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}

// HasOverride reports whether the claims carry a capability override.
func (c Claims) HasOverride(name string) bool {
	for _, item := range c.Override {
		if item == name {
			return true
		}
	}
	return false
}
