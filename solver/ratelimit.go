package solver

import (
	"context"
	"regexp"
	"strconv"
	"time"

	"wraith/challenge"
)

var retryAfterBodyRe = regexp.MustCompile(`(\d+)\s*(second|minute|hour)s?`)

var unitSeconds = map[string]int64{
	"second": 1,
	"minute": 60,
	"hour":   3600,
}

// RateLimit handles the 1015 error page by emitting a mitigation plan
// rather than a submission: the delay comes from Retry-After, a parsed
// future timestamp, a body-text hint, or a default range, in that
// preference order (spec §4.2.5).
type RateLimit struct {
	Recorder FailureRecorder
	Domain   func(respURL string) string
}

func (s *RateLimit) Name() string { return "rate_limit" }

func (s *RateLimit) Solve(ctx context.Context, resp *challenge.Response, det *challenge.Detection) (*Result, error) {
	wait, source := s.resolveDelay(resp)

	if s.Recorder != nil {
		s.Recorder.RecordFailure(s.domainOf(resp), "cf_rate_limit")
	}

	return &Result{Mitigation: &challenge.MitigationPlan{
		ShouldRetry: true,
		Wait:        wait,
		Reason:      "cf_rate_limit",
		Metadata:    map[string]string{"delay_source": source},
	}}, nil
}

func (s *RateLimit) resolveDelay(resp *challenge.Response) (time.Duration, string) {
	retryAfter := resp.HeaderGet("Retry-After")
	if retryAfter != "" {
		if secs, err := strconv.ParseInt(retryAfter, 10, 64); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second, "header"
		}
		for _, layout := range []string{time.RFC1123, time.RFC3339} {
			if t, err := time.Parse(layout, retryAfter); err == nil {
				if delta := time.Until(t); delta > 0 {
					return delta, "header"
				}
			}
		}
	}

	if m := retryAfterBodyRe.FindStringSubmatch(resp.Body); len(m) == 3 {
		if n, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			if mult, ok := unitSeconds[m[2]]; ok {
				return time.Duration(n*mult) * time.Second, "body"
			}
		}
	}

	return uniformDuration(60*time.Second, 180*time.Second), "default"
}

func (s *RateLimit) domainOf(resp *challenge.Response) string {
	if s.Domain != nil {
		return s.Domain(resp.URL)
	}
	host, _ := hostOf(resp.URL)
	return host
}
