package solver

import (
	"context"
	"time"

	"wraith/challenge"
)

// AccessDenied handles the 1020 error page: with a proxy pool available it
// retires the current endpoint and hands back a replacement to retry with;
// without one it gives up the request outright (spec §4.2.6).
type AccessDenied struct {
	Proxy        ProxyRotator
	Recorder     FailureRecorder
	CurrentProxy string
}

func (s *AccessDenied) Name() string { return "access_denied" }

func (s *AccessDenied) Solve(ctx context.Context, resp *challenge.Response, det *challenge.Detection) (*Result, error) {
	host, _ := hostOf(resp.URL)
	if s.Recorder != nil {
		s.Recorder.RecordFailure(host, "cf_access_denied")
	}

	if s.Proxy == nil {
		return &Result{Mitigation: &challenge.MitigationPlan{
			ShouldRetry: false,
			Reason:      "access_denied_no_proxy",
			Metadata:    map[string]string{"proxy_rotation": "unavailable"},
		}}, nil
	}

	s.Proxy.ReportFailure(s.CurrentProxy)
	replacement, ok := s.Proxy.NextAlternative(s.CurrentProxy)
	if !ok {
		return &Result{Mitigation: &challenge.MitigationPlan{
			ShouldRetry: false,
			Reason:      "access_denied_no_proxy",
			Metadata:    map[string]string{"proxy_rotation": "exhausted"},
		}}, nil
	}

	return &Result{Mitigation: &challenge.MitigationPlan{
		ShouldRetry: true,
		Wait:        uniformDuration(5*time.Second, 15*time.Second),
		Reason:      "cf_access_denied",
		NewProxy:    replacement,
		Metadata:    map[string]string{"proxy_rotation": "success"},
	}}, nil
}
