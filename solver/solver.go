// Package solver builds a submission or mitigation plan for each recognized
// Cloudflare challenge kind. Solvers are immutable once constructed and
// never own adaptive state themselves — they report outcomes through small
// capability interfaces the caller wires to the real state/proxy/fingerprint
// managers (spec §9 design note: "no solver owns state").
package solver

import (
	"context"

	"wraith/challenge"
)

// Result is the outcome of a solver invocation: exactly one of Submission
// or Mitigation is set.
type Result struct {
	Submission *challenge.Submission
	Mitigation *challenge.MitigationPlan
}

// Solver is the common contract every challenge-kind handler implements.
type Solver interface {
	// Name identifies the solver for logging and error provenance.
	Name() string
	// Solve builds a submission or mitigation plan for a matched detection.
	// The JavaScriptV1 and JavaScriptV2 solvers return an error matching
	// challenge.ErrNotThisChallenge (errors.Is) when the page lacks their
	// challenge form or window._cf_chl_opt blob; the other solvers do not
	// re-check the response and act on the detection as given.
	Solve(ctx context.Context, resp *challenge.Response, det *challenge.Detection) (*Result, error)
}

// FailureRecorder is the narrow capability the rate-limit, access-denied,
// and bot-management handlers use to record a domain failure without
// importing the full state manager.
type FailureRecorder interface {
	RecordFailure(domain, reason string)
}

// ProxyRotator is the capability the access-denied handler uses to retire a
// bad proxy and obtain a replacement.
type ProxyRotator interface {
	ReportFailure(endpoint string)
	NextAlternative(exclude string) (string, bool)
}

// FingerprintInvalidator is the capability the bot-management handler uses
// to drop a cached fingerprint so the next request gets a fresh one.
type FingerprintInvalidator interface {
	Invalidate(domain string) bool
}

// TLSRotator is the capability the bot-management handler uses to force a
// TLS profile change for a domain.
type TLSRotator interface {
	RotateProfile(domain string) bool
}

// Registry dispatches a detection's kind to the wired solver.
type Registry struct {
	solvers map[challenge.Kind]Solver
}

// NewRegistry builds an empty registry; callers populate it with Register.
func NewRegistry() *Registry {
	return &Registry{solvers: make(map[challenge.Kind]Solver)}
}

// Register wires a solver for a challenge kind.
func (r *Registry) Register(kind challenge.Kind, s Solver) {
	r.solvers[kind] = s
}

// Lookup returns the solver wired for a kind, if any.
func (r *Registry) Lookup(kind challenge.Kind) (Solver, bool) {
	s, ok := r.solvers[kind]
	return s, ok
}
