package solver

import (
	"context"
	"fmt"
	"time"

	"wraith/captcha"
	"wraith/challenge"
)

// Turnstile solves the cf-turnstile widget by delegating sitekey resolution
// to the captcha provider and merging its token into the page's own form
// inputs, with the token winning any field-name collision (spec §4.2.4).
type Turnstile struct {
	Captcha captcha.Provider
}

func (s *Turnstile) Name() string { return "turnstile" }

func (s *Turnstile) Solve(ctx context.Context, resp *challenge.Response, det *challenge.Detection) (*Result, error) {
	if s.Captcha == nil {
		return nil, &challenge.CaptchaProviderMissingError{}
	}

	sitekey, ok := challenge.ExtractSitekey(resp.Body)
	if !ok {
		return nil, &challenge.MissingFieldError{Field: "data-sitekey"}
	}

	actionURL := resp.URL
	if action, ok := challenge.ExtractFormAction(resp.Body); ok {
		if resolved, err := challenge.ResolveAction(resp.URL, action); err == nil {
			actionURL = resolved
		}
	}

	solution, err := s.Captcha.Solve(ctx, captcha.Task{
		SiteKey: sitekey,
		PageURL: resp.URL,
	})
	if err != nil {
		return nil, fmt.Errorf("turnstile: captcha provider: %w", err)
	}

	fields := challenge.AllFormInputs(resp.Body)
	fields["cf-turnstile-response"] = solution.Token

	return &Result{Submission: &challenge.Submission{
		Method:         "POST",
		URL:            actionURL,
		FormFields:     fields,
		Headers:        map[string]string{"Referer": resp.URL},
		Wait:           uniformDuration(1*time.Second, 3*time.Second),
		AllowRedirects: false,
	}}, nil
}
