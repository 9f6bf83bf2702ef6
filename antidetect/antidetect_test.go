package antidetect

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPrepareRequestInjectsNoiseHeaders(t *testing.T) {
	a := New(DefaultConfig())
	result := a.PrepareRequest("example.com", 1200, time.Now())

	noiseCount := 0
	for k := range result.Headers {
		if len(k) >= len("x-cf-client-") && k[:len("x-cf-client-")] == "x-cf-client-" {
			noiseCount++
		}
	}
	assert.GreaterOrEqual(t, noiseCount, minNoiseHeaders)
	assert.LessOrEqual(t, noiseCount, maxNoiseHeaders)
	assert.NotEmpty(t, result.Metadata["jitter_token"])
}

func TestPrepareRequestBurstTriggersDelayHint(t *testing.T) {
	cfg := Config{BurstWindow: time.Minute, MaxPerWindow: 2, FailureCooldown: 5 * time.Second}
	a := New(cfg)
	now := time.Now()

	for i := 0; i < 3; i++ {
		a.PrepareRequest("example.com", 0, now)
	}
	result := a.PrepareRequest("example.com", 0, now)
	assert.Equal(t, 5*time.Second, result.DelayHint)
}

func TestRecordResponseTracksFailureStreak(t *testing.T) {
	a := New(DefaultConfig())
	now := time.Now()
	a.RecordResponse("example.com", 503, 100*time.Millisecond, now)
	a.RecordResponse("example.com", 503, 100*time.Millisecond, now)

	a.mu.Lock()
	streak := a.domains["example.com"].failureStreak
	a.mu.Unlock()
	assert.Equal(t, 2, streak)

	a.RecordResponse("example.com", 200, 100*time.Millisecond, now)
	a.mu.Lock()
	streak = a.domains["example.com"].failureStreak
	a.mu.Unlock()
	assert.Equal(t, 0, streak)
}

func TestRecordResponseSetsCooldown(t *testing.T) {
	cfg := Config{BurstWindow: time.Minute, MaxPerWindow: 100, FailureCooldown: 2 * time.Second}
	a := New(cfg)
	now := time.Now()
	a.RecordResponse("example.com", 500, time.Millisecond, now)

	result := a.PrepareRequest("example.com", 0, now)
	assert.Greater(t, result.DelayHint, time.Duration(0))
	assert.LessOrEqual(t, result.DelayHint, 2*time.Second)
}
