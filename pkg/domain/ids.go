// Package domain holds typed identifiers shared across the engine.
// Wrapping raw strings in distinct types lets the compiler catch
// cross-wiring between identity keys and other opaque strings.
package domain

import (
	"strings"
	"unicode/utf8"

	dErrors "vigil/pkg/domain-errors"
)

// Identity is the opaque stable key identifying a user or device across
// actions. The engine never interprets its contents.
type Identity string

// maxIdentityLen bounds identity keys so they stay usable as storage keys.
const maxIdentityLen = 256

// ParseIdentity validates an identity key at trust boundaries.
// Identities must be non-empty, valid UTF-8, and free of whitespace.
func ParseIdentity(s string) (Identity, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "identity cannot be empty")
	}
	if len(s) > maxIdentityLen {
		return "", dErrors.New(dErrors.CodeInvalidInput, "identity exceeds maximum length")
	}
	if !utf8.ValidString(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "identity must be valid UTF-8")
	}
	if strings.ContainsFunc(s, func(r rune) bool { return r == ' ' || r == '\t' || r == '\n' || r == '\r' }) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "identity cannot contain whitespace")
	}
	return Identity(s), nil
}

// String returns the raw key.
func (i Identity) String() string {
	return string(i)
}

// IsNil reports whether the identity is the zero value.
func (i Identity) IsNil() bool {
	return i == ""
}
