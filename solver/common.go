package solver

import (
	"fmt"
	"math/rand"
	"net/url"
	"time"
)

// hostOf extracts the hostname (no port) a solver needs to parameterize the
// interpreter prelude or a fingerprint/TLS lookup.
func hostOf(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("solver: parsing url %q: %w", rawURL, err)
	}
	if parsed.Hostname() == "" {
		return "", fmt.Errorf("solver: url %q has no host", rawURL)
	}
	return parsed.Hostname(), nil
}

// uniformDuration returns a uniformly random duration in [min, max), or min
// when max <= min.
func uniformDuration(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	span := max - min
	return min + time.Duration(rand.Int63n(int64(span)))
}
