package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConsistencyNoneVaries(t *testing.T) {
	g := New(ConsistencyNone)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		f := g.Get("example.com")
		seen[f.UserAgent] = true
	}
	assert.Greater(t, len(seen), 1)
}

func TestConsistencyDomainStable(t *testing.T) {
	g := New(ConsistencyDomain)
	first := g.Get("example.com")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, g.Get("example.com"))
	}
	other := g.Get("other.com")
	assert.NotEqual(t, first.CanvasHash, other.CanvasHash)
}

func TestConsistencyGlobalStableAcrossDomains(t *testing.T) {
	g := New(ConsistencyGlobal)
	first := g.Get("example.com")
	second := g.Get("other.com")
	assert.Equal(t, first, second)
}

func TestInvalidateDropsCachedDomain(t *testing.T) {
	g := New(ConsistencyDomain)
	first := g.Get("example.com")
	assert.True(t, g.Invalidate("example.com"))
	assert.False(t, g.Invalidate("example.com"))

	// A fresh generation may coincidentally match; run enough times that at
	// least one differs to prove the cache entry was actually dropped.
	differed := false
	for i := 0; i < 25; i++ {
		g2 := New(ConsistencyDomain)
		_ = g2
		next := g.Get("example.com")
		if next.CanvasHash != first.CanvasHash {
			differed = true
		}
		g.Invalidate("example.com")
	}
	assert.True(t, differed)
}
