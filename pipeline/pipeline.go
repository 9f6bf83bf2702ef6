// Package pipeline dispatches a detected challenge to its wired solver and
// normalizes the outcome into one of five cases the orchestrator's request
// loop understands (spec §4.4).
package pipeline

import (
	"context"
	"errors"

	pkgerrors "github.com/pkg/errors"

	"wraith/challenge"
	"wraith/detector"
	"wraith/solver"
)

// Outcome tags which case a Result represents.
type Outcome int

const (
	OutcomeNoChallenge Outcome = iota
	OutcomeUnsupported
	OutcomeSubmission
	OutcomeMitigation
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNoChallenge:
		return "no_challenge"
	case OutcomeUnsupported:
		return "unsupported"
	case OutcomeSubmission:
		return "submission"
	case OutcomeMitigation:
		return "mitigation"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the pipeline's normalized evaluation outcome. At most one of
// Submission/Mitigation/Err is populated, chosen by Outcome; a NoChallenge
// result carries none of them.
type Result struct {
	Outcome    Outcome
	Detection  *challenge.Detection
	Submission *challenge.Submission
	Mitigation *challenge.MitigationPlan
	Err        error
}

// Pipeline ties the detector to a registry of solvers keyed by challenge
// kind.
type Pipeline struct {
	Detector *detector.Detector
	Solvers  *solver.Registry
}

// New constructs a Pipeline.
func New(d *detector.Detector, solvers *solver.Registry) *Pipeline {
	return &Pipeline{Detector: d, Solvers: solvers}
}

// Evaluate runs detection and, on a match, dispatches to the wired solver,
// producing the normalized Result the orchestrator acts on.
func (p *Pipeline) Evaluate(ctx context.Context, resp *challenge.Response, domain string) *Result {
	det, err := p.Detector.Detect(resp, domain)
	if err != nil {
		return &Result{Outcome: OutcomeFailed, Err: pkgerrors.Wrap(err, "pipeline: detection")}
	}
	if det == nil {
		return &Result{Outcome: OutcomeNoChallenge}
	}

	s, ok := p.Solvers.Lookup(det.Kind)
	if !ok {
		return &Result{
			Outcome:   OutcomeUnsupported,
			Detection: det,
			Err: &challenge.UnsupportedError{
				Reason: challenge.ReasonMissingSolver,
				Detail: string(det.Kind),
			},
		}
	}

	out, err := s.Solve(ctx, resp, det)
	if err != nil {
		var missing *challenge.CaptchaProviderMissingError
		if errors.As(err, &missing) {
			return &Result{
				Outcome:   OutcomeUnsupported,
				Detection: det,
				Err: &challenge.UnsupportedError{
					Reason: challenge.ReasonMissingDependency,
					Detail: "captcha_provider",
				},
			}
		}
		return &Result{
			Outcome:   OutcomeFailed,
			Detection: det,
			Err:       pkgerrors.Wrapf(err, "pipeline: solver %q", s.Name()),
		}
	}

	switch {
	case out.Submission != nil:
		return &Result{Outcome: OutcomeSubmission, Detection: det, Submission: out.Submission}
	case out.Mitigation != nil:
		return &Result{Outcome: OutcomeMitigation, Detection: det, Mitigation: out.Mitigation}
	default:
		return &Result{
			Outcome:   OutcomeFailed,
			Detection: det,
			Err:       pkgerrors.Errorf("pipeline: solver %q returned neither submission nor mitigation", s.Name()),
		}
	}
}
