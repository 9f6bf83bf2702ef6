package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordRequestAndChallengeCounters(t *testing.T) {
	c := New(nil)
	c.RecordRequest("success")
	c.RecordRequest("failed")
	c.RecordChallenge("javascript_v1", true)
	c.RecordChallenge("rate_limit", false)

	snap := c.Snapshot("example.com")
	assert.Equal(t, uint64(2), snap.TotalRequests)
	assert.Equal(t, uint64(2), snap.TotalChallenges)
	assert.Equal(t, uint64(1), snap.TotalSolved)
	assert.Equal(t, uint64(1), snap.TotalFailed)
	assert.Equal(t, uint64(1), snap.ByKind["javascript_v1"])
}

func TestLatencyWindowBounded(t *testing.T) {
	c := New(nil)
	for i := 0; i < latencyWindowCap+20; i++ {
		c.RecordLatency("example.com", 1.0)
	}
	d := c.domains["example.com"]
	assert.Len(t, d.recent, latencyWindowCap)
}

func TestP95ComputedFromPooledSamples(t *testing.T) {
	c := New(nil)
	for i := 1; i <= 100; i++ {
		c.RecordLatency("a.example", float64(i))
	}
	snap := c.Snapshot("a.example")
	assert.InDelta(t, 95, snap.DomainP95Seconds, 5)
}
