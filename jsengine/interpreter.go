// Package jsengine defines the JS interpreter abstraction challenge solvers
// depend on, plus the host-parameterized sandbox prelude the managed-v3
// solver injects ahead of the page's own VM script. The interpreter itself
// is an external collaborator (spec §6) — this package ships one concrete,
// deterministic implementation (Sandbox) as a browser test double, and a
// second, real implementation backed by chromedp for callers who want
// genuine JS execution (see jsengine/chromedpengine).
package jsengine

import "context"

// Interpreter evaluates challenge JavaScript. SolveChallenge is the
// high-level entrypoint used by the v1/v2 solvers: given the full page HTML
// and the target host, it returns the numeric jschl answer formatted to 10
// decimal places. Execute is a lower-level entrypoint used by the managed-v3
// solver: given an arbitrary script body (already wrapped in the sandbox
// prelude) and a host, it returns the stringified result of the script's
// final expression.
type Interpreter interface {
	SolveChallenge(ctx context.Context, pageHTML, host string) (string, error)
	Execute(ctx context.Context, script, host string) (string, error)
}
