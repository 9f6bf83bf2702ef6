package solver

import (
	"context"
	"fmt"
	"time"

	"wraith/challenge"
	"wraith/jsengine"
)

// JavaScriptV1 solves the classic IUAM interstitial: parse the
// challenge-form blueprint, run the page's jschl arithmetic through the
// interpreter, and submit the computed answer alongside the form's hidden
// fields (spec §4.2.1).
type JavaScriptV1 struct {
	Interpreter jsengine.Interpreter
}

func (s *JavaScriptV1) Name() string { return "javascript_v1" }

func (s *JavaScriptV1) Solve(ctx context.Context, resp *challenge.Response, det *challenge.Detection) (*Result, error) {
	bp, err := challenge.ParseChallengeForm(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("javascript_v1: %w", err)
	}

	r, err := bp.RequireField("r")
	if err != nil {
		return nil, err
	}
	jschlVC, err := bp.RequireField("jschl_vc")
	if err != nil {
		return nil, err
	}
	pass, err := bp.RequireField("pass")
	if err != nil {
		return nil, err
	}

	host, err := hostOf(resp.URL)
	if err != nil {
		return nil, err
	}
	answer, err := s.Interpreter.SolveChallenge(ctx, resp.Body, host)
	if err != nil {
		return nil, fmt.Errorf("javascript_v1: interpreter: %w", err)
	}

	delayMillis, err := challenge.ExtractSubmitDelayMillis(resp.Body)
	if err != nil {
		return nil, err
	}

	actionURL, err := challenge.ResolveAction(resp.URL, bp.Action)
	if err != nil {
		return nil, err
	}
	origin, err := challenge.OriginFromURL(resp.URL)
	if err != nil {
		return nil, err
	}

	fields := map[string]string{
		"jschl_answer": answer,
		"r":            r,
		"jschl_vc":     jschlVC,
		"pass":         pass,
	}

	return &Result{Submission: &challenge.Submission{
		Method:     "POST",
		URL:        actionURL,
		FormFields: fields,
		Headers: map[string]string{
			"Referer": resp.URL,
			"Origin":  origin,
		},
		Wait:           time.Duration(delayMillis) * time.Millisecond,
		AllowRedirects: false,
	}}, nil
}
