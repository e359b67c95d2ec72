package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSigningKey = "test-signing-key-at-least-32-bytes!"

func signToken(t *testing.T, key string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(key))
	require.NoError(t, err)
	return signed
}

// TestValidateToken covers the trust boundary for operational tokens:
// wrong key, wrong algorithm, expiry, and missing claims must all reject.
func TestValidateToken(t *testing.T) {
	validator := NewJWTValidator(testSigningKey)

	t.Run("valid admin token yields claims", func(t *testing.T) {
		token := signToken(t, testSigningKey, jwt.MapClaims{
			"sub":  "ops-1",
			"role": "admin",
			"exp":  time.Now().Add(time.Hour).Unix(),
		})

		claims, err := validator.ValidateToken(token)
		require.NoError(t, err)
		assert.Equal(t, "ops-1", claims.Subject)
		assert.Equal(t, "admin", claims.Role)
	})

	t.Run("wrong signing key rejected", func(t *testing.T) {
		token := signToken(t, "some-other-key-that-is-long-enough", jwt.MapClaims{
			"sub": "ops-1", "role": "admin",
		})

		_, err := validator.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("expired token rejected", func(t *testing.T) {
		token := signToken(t, testSigningKey, jwt.MapClaims{
			"sub":  "ops-1",
			"role": "admin",
			"exp":  time.Now().Add(-time.Hour).Unix(),
		})

		_, err := validator.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("unsigned token rejected", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
			"sub": "ops-1", "role": "admin",
		})
		unsigned, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = validator.ValidateToken(unsigned)
		assert.Error(t, err)
	})

	t.Run("missing subject rejected", func(t *testing.T) {
		token := signToken(t, testSigningKey, jwt.MapClaims{
			"role": "admin",
			"exp":  time.Now().Add(time.Hour).Unix(),
		})

		_, err := validator.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("garbage input rejected", func(t *testing.T) {
		_, err := validator.ValidateToken("not.a.jwt")
		assert.Error(t, err)
	})
}
