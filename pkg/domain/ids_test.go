package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "vigil/pkg/domain-errors"
)

// TestParseIdentity_Invariants validates the parsing invariant:
// "Identity keys must be non-empty, bounded, valid UTF-8, and whitespace-free"
//
// Justification: This is a pure function enforcing a domain invariant
// at trust boundaries. The engine never interprets identity contents, so
// parsing is the only place malformed keys can be rejected.
func TestParseIdentity_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseIdentity("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects oversized keys", func(t *testing.T) {
		_, err := ParseIdentity(strings.Repeat("a", 257))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts key at the length bound", func(t *testing.T) {
		identity, err := ParseIdentity(strings.Repeat("a", 256))
		require.NoError(t, err)
		assert.Len(t, identity.String(), 256)
	})

	t.Run("accepts opaque keys", func(t *testing.T) {
		identity, err := ParseIdentity("device:ab12-cd34")
		require.NoError(t, err)
		assert.Equal(t, Identity("device:ab12-cd34"), identity)
		assert.False(t, identity.IsNil())
	})
}

// TestParseIdentity_SecurityInvariants validates security-critical parsing
// rules at API entry points.
//
// Justification: Identity keys flow into storage keys and log lines; parsing
// must reject inputs that could break either.
func TestParseIdentity_SecurityInvariants(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"Embedded space", "user 1", true},
		{"Embedded tab", "user\t1", true},
		{"Embedded newline", "user\n1", true},
		{"Carriage return", "user\r1", true},
		{"Invalid UTF-8", "user-\xff", true},
		{"Whitespace only", "   ", true},
		{"Oversized input", strings.Repeat("x", 1000), true},

		{"Plain key", "user-42", false},
		{"UUID-shaped key", "550e8400-e29b-41d4-a716-446655440000", false},
		{"Key with colon", "tenant:user:42", false},
		{"Unicode key", "ユーザー-1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseIdentity(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
			} else {
				require.NoError(t, err)
			}
		})
	}
}
