// Package fingerprint derives a deterministic digest of an action's
// environment attributes (platform, user agent, screen size). The digest is
// stable under attribute reordering and is used to detect device or context
// changes between an identity's baseline and its current activity.
package fingerprint

import (
	"encoding/hex"
	"sort"
	"strings"

	"github.com/mssola/useragent"
	"golang.org/x/crypto/blake2b"
)

// userAgentKey is the attribute normalized through the UA parser so that
// patch-level browser churn does not flip the fingerprint.
const userAgentKey = "user_agent"

// Compute returns the fingerprint of an attribute set. Identical attribute
// sets always produce identical fingerprints regardless of map iteration
// order. An empty or nil set yields a stable sentinel digest.
func Compute(attributes map[string]string) string {
	keys := make([]string, 0, len(attributes))
	for k := range attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		v := attributes[k]
		if k == userAgentKey {
			v = normalizeUserAgent(v)
		}
		// Unit/record separator bytes keep "a"/"bc" and "ab"/"c" distinct.
		b.WriteString(k)
		b.WriteByte(0x1f)
		b.WriteString(v)
		b.WriteByte(0x1e)
	}

	sum := blake2b.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:16])
}

// normalizeUserAgent reduces a raw user agent string to its stable parts:
// browser family, major version, and platform/OS.
func normalizeUserAgent(raw string) string {
	if raw == "" {
		return ""
	}
	ua := useragent.New(raw)
	name, version := ua.Browser()
	major := version
	if i := strings.IndexByte(version, '.'); i > 0 {
		major = version[:i]
	}
	parts := []string{name, major, ua.Platform(), ua.OS()}
	return strings.Join(parts, "/")
}
