// Package challenge holds the data model shared by the detector, solvers,
// and pipeline: the read-only view of an HTTP response under evaluation, the
// follow-up submission a solver produces, the detection a pattern match
// yields, and the non-submission mitigation plan a §101x handler returns.
package challenge

import "time"

// Kind tags a recognized Cloudflare challenge family. It is a finite
// variant — solvers and the pipeline dispatch table are keyed by it, never
// by a dynamic type lookup.
type Kind string

const (
	KindJavaScriptV1  Kind = "javascript_v1"
	KindJavaScriptV2  Kind = "javascript_v2"
	KindManagedV3     Kind = "managed_v3"
	KindTurnstile     Kind = "turnstile"
	KindRateLimit     Kind = "rate_limit"
	KindAccessDenied  Kind = "access_denied"
	KindBotManagement Kind = "bot_management"
	KindUnknown       Kind = "unknown"
)

// Strategy tags how a detection's response ought to be handled downstream.
type Strategy string

const (
	StrategySubmit   Strategy = "submit"   // solver produces a Submission
	StrategyMitigate Strategy = "mitigate" // solver produces a MitigationPlan
)

// Response is the read-only view of an HTTP response the detector and
// solvers evaluate. Its lifetime is a single pipeline evaluation.
type Response struct {
	URL        string
	StatusCode int
	Header     map[string][]string
	Body       string
	Method     string
}

// HeaderGet returns the first value of a header, case-insensitively, or "".
func (r *Response) HeaderGet(name string) string {
	if r == nil || r.Header == nil {
		return ""
	}
	for k, v := range r.Header {
		if equalFold(k, name) && len(v) > 0 {
			return v[0]
		}
	}
	return ""
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// Detection is the output of the detector for a single candidate response:
// which pattern matched, how confident the match is, and the indicators
// that drove the score.
type Detection struct {
	PatternID   string
	Name        string
	Kind        Kind
	Strategy    Strategy
	Confidence  float64
	IsAdaptive  bool
	Indicators  []string
	SourceURL   string
	StatusCode  int
}

// Submission is a planned follow-up request, constructed by a solver and
// consumed exactly once by the submission executor.
type Submission struct {
	Method         string
	URL            string
	FormFields     map[string]string
	Headers        map[string]string
	Wait           time.Duration
	AllowRedirects bool
}

// MitigationPlan is a non-submission outcome returned by a §101x handler:
// retry guidance, optionally with a new proxy endpoint and extra headers.
type MitigationPlan struct {
	ShouldRetry bool
	Wait        time.Duration
	Reason      string
	NewProxy    string
	Headers     map[string]string
	Metadata    map[string]string
}
