package solver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wraith/challenge"
)

type fakeRecorder struct {
	domain string
	reason string
}

func (f *fakeRecorder) RecordFailure(domain, reason string) {
	f.domain = domain
	f.reason = reason
}

func TestRateLimitRetryAfterHeader(t *testing.T) {
	resp := &challenge.Response{
		URL:        "https://example.com/",
		StatusCode: 429,
		Header:     map[string][]string{"Retry-After": {"120"}},
		Body:       `cf-error-code">1015<`,
	}

	rec := &fakeRecorder{}
	s := &RateLimit{Recorder: rec}
	result, err := s.Solve(context.Background(), resp, nil)
	require.NoError(t, err)
	require.NotNil(t, result.Mitigation)

	plan := result.Mitigation
	assert.True(t, plan.ShouldRetry)
	assert.Equal(t, 120*time.Second, plan.Wait)
	assert.Equal(t, "header", plan.Metadata["delay_source"])
	assert.Equal(t, "example.com", rec.domain)
	assert.Equal(t, "cf_rate_limit", rec.reason)
}

func TestRateLimitBodyFallback(t *testing.T) {
	resp := &challenge.Response{
		URL:  "https://example.com/",
		Body: `cf-error-code">1015< try again in 2 minutes`,
	}

	s := &RateLimit{}
	result, err := s.Solve(context.Background(), resp, nil)
	require.NoError(t, err)
	assert.Equal(t, 120*time.Second, result.Mitigation.Wait)
	assert.Equal(t, "body", result.Mitigation.Metadata["delay_source"])
}

func TestRateLimitDefaultRange(t *testing.T) {
	resp := &challenge.Response{URL: "https://example.com/", Body: `cf-error-code">1015<`}
	s := &RateLimit{}
	result, err := s.Solve(context.Background(), resp, nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, result.Mitigation.Wait, 60*time.Second)
	assert.LessOrEqual(t, result.Mitigation.Wait, 180*time.Second)
	assert.Equal(t, "default", result.Mitigation.Metadata["delay_source"])
}
