package wraith

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wraith/transport"
)

// fakeTransport is a scripted transport.Transport: each call to SendBody
// returns the next response in responses, repeating the last one once
// exhausted.
type fakeTransport struct {
	responses []*transport.HTTPResponse
	calls     int32
}

func (f *fakeTransport) SendForm(ctx context.Context, method, url string, headers map[string]string, formFields map[string]string, allowRedirects bool) (*transport.HTTPResponse, error) {
	return f.next(), nil
}

func (f *fakeTransport) SendBody(ctx context.Context, method, url string, headers map[string]string, body []byte, allowRedirects bool) (*transport.HTTPResponse, error) {
	return f.next(), nil
}

func (f *fakeTransport) next() *transport.HTTPResponse {
	i := atomic.AddInt32(&f.calls, 1) - 1
	if int(i) >= len(f.responses) {
		return f.responses[len(f.responses)-1]
	}
	return f.responses[i]
}

func testConfig(t *testing.T, tr transport.Transport) Config {
	t.Helper()
	return Config{
		Transport:            tr,
		Features:             DefaultFeatureToggles(),
		MaxChallengeAttempts: 3,
	}
}

func TestDoReturnsImmediatelyOnNoChallenge(t *testing.T) {
	tr := &fakeTransport{responses: []*transport.HTTPResponse{
		{StatusCode: 200, Headers: map[string][]string{"Server": {"nginx"}}, Body: []byte("hello"), FinalURL: "https://example.com/"},
	}}
	s, err := New(testConfig(t, tr))
	require.NoError(t, err)

	resp, err := s.Do(context.Background(), "GET", "https://example.com/", nil)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.EqualValues(t, 1, tr.calls)
}

func TestDoRetriesThroughRateLimitMitigation(t *testing.T) {
	tr := &fakeTransport{responses: []*transport.HTTPResponse{
		{
			StatusCode: 429,
			Headers:    map[string][]string{"Server": {"cloudflare"}, "Retry-After": {"0"}},
			Body:       []byte(`<html><body>cf-error-code">1015<</body></html>`),
			FinalURL:   "https://example.com/",
		},
		{StatusCode: 200, Headers: map[string][]string{"Server": {"nginx"}}, Body: []byte("ok"), FinalURL: "https://example.com/"},
	}}
	s, err := New(testConfig(t, tr))
	require.NoError(t, err)

	resp, err := s.Do(context.Background(), "GET", "https://example.com/", nil)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.EqualValues(t, 2, tr.calls)
}

func TestDoReturnsMitigationExhaustedWhenProxyPoolEmpty(t *testing.T) {
	tr := &fakeTransport{responses: []*transport.HTTPResponse{
		{
			StatusCode: 403,
			Headers:    map[string][]string{"Server": {"cloudflare"}},
			Body:       []byte(`<html><body>cf-error-code">1020<</body></html>`),
			FinalURL:   "https://example.com/",
		},
	}}
	s, err := New(testConfig(t, tr))
	require.NoError(t, err)

	_, err = s.Do(context.Background(), "GET", "https://example.com/", nil)
	require.Error(t, err)
	var mitErr *MitigationExhaustedError
	assert.ErrorAs(t, err, &mitErr)
}

func TestDoRecordsMetricsOnSuccess(t *testing.T) {
	tr := &fakeTransport{responses: []*transport.HTTPResponse{
		{StatusCode: 200, Headers: map[string][]string{"Server": {"nginx"}}, Body: []byte("hi"), FinalURL: "https://metrics.example/"},
	}}
	s, err := New(testConfig(t, tr))
	require.NoError(t, err)

	_, err = s.Do(context.Background(), "GET", "https://metrics.example/", nil)
	require.NoError(t, err)

	snap := s.Metrics("metrics.example")
	assert.EqualValues(t, 1, snap.TotalRequests)
}

func TestHostOfRejectsURLWithoutHost(t *testing.T) {
	_, err := hostOf("not-a-url")
	assert.Error(t, err)
}

func TestPrepareAppliesStickyHeaders(t *testing.T) {
	tr := &fakeTransport{responses: []*transport.HTTPResponse{
		{StatusCode: 200, Headers: map[string][]string{"Server": {"nginx"}}, Body: []byte("hi"), FinalURL: "https://sticky.example/"},
	}}
	s, err := New(testConfig(t, tr))
	require.NoError(t, err)

	s.state.SetStickyHeader("sticky.example", "X-Cf-Clearance", "token123")
	merged, _, _ := s.prepare("sticky.example", "GET", 0, map[string]string{})
	assert.Equal(t, "token123", merged["X-Cf-Clearance"])
}

func TestDoRespectsContextCancellation(t *testing.T) {
	tr := &fakeTransport{responses: []*transport.HTTPResponse{
		{
			StatusCode: 429,
			Headers:    map[string][]string{"Server": {"cloudflare"}, "Retry-After": {"5"}},
			Body:       []byte(`<html><body>cf-error-code">1015<</body></html>`),
			FinalURL:   "https://slow.example/",
		},
	}}
	s, err := New(testConfig(t, tr))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = s.Do(ctx, "GET", "https://slow.example/", nil)
	require.Error(t, err)
}
