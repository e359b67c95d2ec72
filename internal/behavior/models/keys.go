package models

import "strings"

// SanitizeKeySegment escapes delimiter characters in storage key segments to
// prevent collision attacks where a user-controlled identity containing ':'
// could shadow another identity's baseline or quota entry.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}

// QuotaKey builds the cache key for a per-(identity, category) quota entry.
func QuotaKey(identity, category string) string {
	return SanitizeKeySegment(identity) + ":" + SanitizeKeySegment(category)
}
