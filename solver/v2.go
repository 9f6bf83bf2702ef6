package solver

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"wraith/challenge"
)

var (
	cvIDRe        = regexp.MustCompile(`cvId\s*:\s*"([^"]*)"`)
	chlPageDataRe = regexp.MustCompile(`chlPageData\s*:\s*"([^"]*)"`)
	rTokenRe      = regexp.MustCompile(`name="r"\s+value="([^"]*)"`)
)

// JavaScriptV2 solves the orchestrated VM challenge (`orchestrate/jsch/v1`):
// it doesn't execute any script itself, it builds the fixed verification
// payload the platform's own orchestration endpoint expects (spec §4.2.2).
type JavaScriptV2 struct {
	MinWait time.Duration
	MaxWait time.Duration
}

func (s *JavaScriptV2) Name() string { return "javascript_v2" }

func (s *JavaScriptV2) Solve(ctx context.Context, resp *challenge.Response, det *challenge.Detection) (*Result, error) {
	blob, err := challenge.ExtractBalancedJSON(resp.Body, "window._cf_chl_opt=")
	if err != nil {
		return nil, fmt.Errorf("javascript_v2: %w", err)
	}

	cvID := firstSubmatch(cvIDRe, blob)
	chlPageData := firstSubmatch(chlPageDataRe, blob)
	r := firstSubmatch(rTokenRe, resp.Body)
	if r == "" {
		return nil, &challenge.MissingFieldError{Field: "r"}
	}

	action, ok := challenge.ExtractFormAction(resp.Body)
	if !ok {
		return nil, &challenge.MissingFieldError{Field: "form action"}
	}
	actionURL, err := challenge.ResolveAction(resp.URL, action)
	if err != nil {
		return nil, err
	}

	fields := map[string]string{
		"r":                  r,
		"cf_ch_verify":       "plat",
		"vc":                 "",
		"captcha_vc":         "",
		"cf_captcha_kind":    "h",
		"h-captcha-response": "",
	}
	if cvID != "" {
		fields["cv_chal_id"] = cvID
	}
	if chlPageData != "" {
		fields["cf_chl_page_data"] = chlPageData
	}

	minWait, maxWait := s.MinWait, s.MaxWait
	if minWait <= 0 {
		minWait = 1 * time.Second
	}
	if maxWait <= minWait {
		maxWait = 5 * time.Second
	}

	return &Result{Submission: &challenge.Submission{
		Method:         "POST",
		URL:            actionURL,
		FormFields:     fields,
		Headers:        map[string]string{"Referer": resp.URL},
		Wait:           uniformDuration(minWait, maxWait),
		AllowRedirects: false,
	}}, nil
}

func firstSubmatch(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}
