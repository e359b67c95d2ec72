package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

// =============================================================================
// Fingerprint Test Suite
// =============================================================================
// Justification for unit tests: The fingerprint feeds directly into anomaly
// scoring; an unstable digest would flag every action as a device change.
// Determinism under map reordering and user agent churn must hold exactly.

type FingerprintSuite struct {
	suite.Suite
}

func TestFingerprintSuite(t *testing.T) {
	suite.Run(t, new(FingerprintSuite))
}

func (s *FingerprintSuite) TestDeterminism() {
	attrs := map[string]string{
		"platform":    "macos",
		"screen_size": "2560x1440",
		"timezone":    "Europe/Berlin",
	}

	s.Run("identical attribute sets produce identical digests", func() {
		s.Equal(Compute(attrs), Compute(attrs))
	})

	s.Run("independently built maps produce identical digests", func() {
		other := map[string]string{
			"timezone":    "Europe/Berlin",
			"platform":    "macos",
			"screen_size": "2560x1440",
		}
		s.Equal(Compute(attrs), Compute(other))
	})

	s.Run("digest is hex and fixed length", func() {
		s.Len(Compute(attrs), 32)
	})
}

func (s *FingerprintSuite) TestSensitivity() {
	base := map[string]string{"platform": "macos", "screen_size": "2560x1440"}

	s.Run("changed value changes the digest", func() {
		changed := map[string]string{"platform": "linux", "screen_size": "2560x1440"}
		s.NotEqual(Compute(base), Compute(changed))
	})

	s.Run("added attribute changes the digest", func() {
		extended := map[string]string{"platform": "macos", "screen_size": "2560x1440", "timezone": "UTC"}
		s.NotEqual(Compute(base), Compute(extended))
	})

	s.Run("key value boundary cannot be forged", func() {
		s.NotEqual(
			Compute(map[string]string{"ab": "c"}),
			Compute(map[string]string{"a": "bc"}),
		)
	})
}

func (s *FingerprintSuite) TestEmptyAttributes() {
	s.Run("nil and empty maps share one stable sentinel digest", func() {
		s.Equal(Compute(nil), Compute(map[string]string{}))
		s.NotEmpty(Compute(nil))
	})
}

func (s *FingerprintSuite) TestUserAgentNormalization() {
	const chrome120 = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.6099.109 Safari/537.36"
	const chrome120Patch = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.6099.225 Safari/537.36"
	const firefox121 = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:121.0) Gecko/20100101 Firefox/121.0"

	s.Run("patch-level browser updates keep the digest stable", func() {
		s.Equal(
			Compute(map[string]string{"user_agent": chrome120}),
			Compute(map[string]string{"user_agent": chrome120Patch}),
		)
	})

	s.Run("different browser families differ", func() {
		s.NotEqual(
			Compute(map[string]string{"user_agent": chrome120}),
			Compute(map[string]string{"user_agent": firefox121}),
		)
	})

	s.Run("empty user agent is handled", func() {
		s.NotEmpty(Compute(map[string]string{"user_agent": ""}))
	})
}
