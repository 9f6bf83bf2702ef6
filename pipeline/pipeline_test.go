package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wraith/challenge"
	"wraith/detector"
	"wraith/solver"
)

type stubSolver struct {
	name   string
	result *solver.Result
	err    error
}

func (s *stubSolver) Name() string { return s.name }

func (s *stubSolver) Solve(_ context.Context, _ *challenge.Response, _ *challenge.Detection) (*solver.Result, error) {
	return s.result, s.err
}

func cloudflareResponse(status int, body string) *challenge.Response {
	return &challenge.Response{
		URL:        "https://example.com/",
		StatusCode: status,
		Header:     map[string][]string{"Server": {"cloudflare"}},
		Body:       body,
	}
}

func TestPipelineNoChallenge(t *testing.T) {
	p := New(detector.New(nil), solver.NewRegistry())
	resp := &challenge.Response{URL: "https://example.com/", StatusCode: 200, Header: map[string][]string{"Server": {"nginx"}}}
	result := p.Evaluate(context.Background(), resp, "example.com")
	assert.Equal(t, OutcomeNoChallenge, result.Outcome)
}

func TestPipelineMissingSolver(t *testing.T) {
	p := New(detector.New(nil), solver.NewRegistry())
	resp := cloudflareResponse(503, `__cf_chl_f_tk id="challenge-form"`)
	result := p.Evaluate(context.Background(), resp, "example.com")
	require.Equal(t, OutcomeUnsupported, result.Outcome)
	var uerr *challenge.UnsupportedError
	require.ErrorAs(t, result.Err, &uerr)
	assert.Equal(t, challenge.ReasonMissingSolver, uerr.Reason)
}

func TestPipelineMissingDependency(t *testing.T) {
	reg := solver.NewRegistry()
	reg.Register(challenge.KindJavaScriptV1, &stubSolver{name: "javascript_v1", err: &challenge.CaptchaProviderMissingError{}})

	p := New(detector.New(nil), reg)
	resp := cloudflareResponse(503, `__cf_chl_f_tk id="challenge-form"`)
	result := p.Evaluate(context.Background(), resp, "example.com")
	require.Equal(t, OutcomeUnsupported, result.Outcome)
	var uerr *challenge.UnsupportedError
	require.ErrorAs(t, result.Err, &uerr)
	assert.Equal(t, challenge.ReasonMissingDependency, uerr.Reason)
}

func TestPipelineSubmissionSuccess(t *testing.T) {
	sub := &challenge.Submission{Method: "POST", URL: "https://example.com/chk"}
	reg := solver.NewRegistry()
	reg.Register(challenge.KindJavaScriptV1, &stubSolver{name: "javascript_v1", result: &solver.Result{Submission: sub}})

	p := New(detector.New(nil), reg)
	resp := cloudflareResponse(503, `__cf_chl_f_tk id="challenge-form"`)
	result := p.Evaluate(context.Background(), resp, "example.com")
	require.Equal(t, OutcomeSubmission, result.Outcome)
	assert.Same(t, sub, result.Submission)
}

func TestPipelineMitigationSuccess(t *testing.T) {
	plan := &challenge.MitigationPlan{ShouldRetry: true}
	reg := solver.NewRegistry()
	reg.Register(challenge.KindRateLimit, &stubSolver{name: "rate_limit", result: &solver.Result{Mitigation: plan}})

	p := New(detector.New(nil), reg)
	resp := cloudflareResponse(429, `cf-error-code">1015<`)
	result := p.Evaluate(context.Background(), resp, "example.com")
	require.Equal(t, OutcomeMitigation, result.Outcome)
	assert.Same(t, plan, result.Mitigation)
}

func TestPipelineSolverError(t *testing.T) {
	reg := solver.NewRegistry()
	reg.Register(challenge.KindJavaScriptV1, &stubSolver{name: "javascript_v1", err: errors.New("boom")})

	p := New(detector.New(nil), reg)
	resp := cloudflareResponse(503, `__cf_chl_f_tk id="challenge-form"`)
	result := p.Evaluate(context.Background(), resp, "example.com")
	require.Equal(t, OutcomeFailed, result.Outcome)
	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), "javascript_v1")
}
