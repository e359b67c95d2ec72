// Package auth provides the JWT validator backing the admin middleware.
package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"vigil/internal/platform/middleware"
)

// JWTValidator validates HS256-signed admin tokens.
type JWTValidator struct {
	signingKey []byte
}

// NewJWTValidator creates a validator with the shared signing key.
func NewJWTValidator(signingKey string) *JWTValidator {
	return &JWTValidator{signingKey: []byte(signingKey)}
}

// ValidateToken parses and verifies a token, extracting the admin claims.
func (v *JWTValidator) ValidateToken(tokenString string) (*middleware.AdminClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.signingKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	subject, _ := claims["sub"].(string)
	role, _ := claims["role"].(string)
	if subject == "" {
		return nil, fmt.Errorf("token missing subject")
	}

	return &middleware.AdminClaims{Subject: subject, Role: role}, nil
}
