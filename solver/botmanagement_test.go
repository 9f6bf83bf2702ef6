package solver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wraith/challenge"
)

type fakeFingerprintInvalidator struct {
	domain  string
	invoked bool
}

func (f *fakeFingerprintInvalidator) Invalidate(domain string) bool {
	f.domain = domain
	f.invoked = true
	return true
}

type fakeTLSRotator struct {
	domain  string
	invoked bool
}

func (f *fakeTLSRotator) RotateProfile(domain string) bool {
	f.domain = domain
	f.invoked = true
	return true
}

func TestBotManagementRotatesFingerprintAndTLS(t *testing.T) {
	resp := &challenge.Response{
		URL:        "https://example.com/path",
		StatusCode: 403,
		Body:       `cf-error-code">1010<`,
	}

	rec := &fakeRecorder{}
	fp := &fakeFingerprintInvalidator{}
	tls := &fakeTLSRotator{}

	s := &BotManagement{Recorder: rec, Fingerprint: fp, TLS: tls}
	result, err := s.Solve(context.Background(), resp, nil)
	require.NoError(t, err)

	plan := result.Mitigation
	assert.True(t, plan.ShouldRetry)
	assert.GreaterOrEqual(t, plan.Wait, 30*time.Second)
	assert.LessOrEqual(t, plan.Wait, 60*time.Second)
	assert.Equal(t, "true", plan.Metadata["fingerprint_rotated"])
	assert.Equal(t, "true", plan.Metadata["tls_rotated"])
	assert.True(t, fp.invoked)
	assert.True(t, tls.invoked)
	assert.Equal(t, "example.com", rec.domain)
	assert.Equal(t, "cf_bot_management", rec.reason)
}

func TestBotManagementMissingHost(t *testing.T) {
	resp := &challenge.Response{URL: "not-a-valid-host-url", Body: `cf-error-code">1010<`}
	s := &BotManagement{}
	_, err := s.Solve(context.Background(), resp, nil)
	require.Error(t, err)
}
