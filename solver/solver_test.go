package solver

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"wraith/challenge"
)

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()
	v1 := &JavaScriptV1{}
	r.Register(challenge.KindJavaScriptV1, v1)

	got, ok := r.Lookup(challenge.KindJavaScriptV1)
	assert.True(t, ok)
	assert.Same(t, v1, got)

	_, ok = r.Lookup(challenge.KindTurnstile)
	assert.False(t, ok)
}
