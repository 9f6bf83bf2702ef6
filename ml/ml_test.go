package ml

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func delayPtr(d time.Duration) *time.Duration { return &d }

func TestRecommendWithheldUntilMinSamples(t *testing.T) {
	o := New(50, 5, 0.1)
	for i := 0; i < 4; i++ {
		o.Record("example.com", map[string]float64{"latency": 1.0}, true, delayPtr(time.Second))
	}
	rec := o.Recommend("example.com")
	assert.False(t, rec.Ok)
}

func TestRecommendUsesMedianOfSuccessfulDelays(t *testing.T) {
	o := New(50, 3, 0)
	o.Record("example.com", nil, true, delayPtr(1*time.Second))
	o.Record("example.com", nil, true, delayPtr(2*time.Second))
	o.Record("example.com", nil, true, delayPtr(3*time.Second))

	rec := o.Recommend("example.com")
	assert.True(t, rec.Ok)
	if assert.NotNil(t, rec.Delay) {
		assert.InDelta(t, 1.8, *rec.Delay, 0.001) // median 2s * 0.9
	}
}

func TestRecommendClampsDelay(t *testing.T) {
	o := New(50, 1, 0)
	o.Record("example.com", nil, true, delayPtr(100*time.Second))
	rec := o.Recommend("example.com")
	assert.True(t, rec.Ok)
	assert.Equal(t, 10.0, *rec.Delay)
}

func TestFeatureWeightsSeparatesSuccessFailure(t *testing.T) {
	o := New(50, 1, 0)
	o.Record("example.com", map[string]float64{"latency": 1.0}, true, nil)
	o.Record("example.com", map[string]float64{"latency": 5.0}, false, nil)

	weights := o.FeatureWeights("example.com")
	assert.InDelta(t, -4.0, weights["latency"], 0.001)
}

func TestRecommendUnknownDomain(t *testing.T) {
	o := New(50, 1, 0)
	rec := o.Recommend("never-seen.example")
	assert.False(t, rec.Ok)
}
