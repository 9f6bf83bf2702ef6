package jsengine

import (
	"context"
	"fmt"
	"math/rand"
	"regexp"
	"strings"
)

// Sandbox is a deterministic test-double Interpreter: it does not run a real
// JavaScript VM, it recognizes the narrow arithmetic-expression shape
// Cloudflare's jschl answer scripts use and evaluates that expression
// directly. It exists so the solver pipeline is exercisable end-to-end
// without a genuine browser; production callers that need real JS
// execution should wire jsengine/chromedpengine instead.
type Sandbox struct{}

// NewSandbox constructs the default interpreter.
func NewSandbox() *Sandbox { return &Sandbox{} }

var jschlExprRe = regexp.MustCompile(`(?s)jschl_answer[^=]*=\s*([^;]+);`)
var answerAssignRe = regexp.MustCompile(`(?s)_cf_chl_answer\s*=\s*([^;]+);`)

// SolveChallenge locates the jschl answer expression in the page body,
// evaluates it, and formats the result to 10 decimal places as the real
// Cloudflare client does.
func (s *Sandbox) SolveChallenge(_ context.Context, pageHTML, host string) (string, error) {
	m := jschlExprRe.FindStringSubmatch(pageHTML)
	if len(m) < 2 {
		return "", fmt.Errorf("sandbox: no jschl_answer expression found for host %s", host)
	}
	expr := stripToFixed(m[1])
	expr = strings.ReplaceAll(expr, "+ t.length", "")
	v, err := evalArith(expr)
	if err != nil {
		return "", fmt.Errorf("sandbox: failed to evaluate jschl expression: %w", err)
	}
	return fmt.Sprintf("%.10f", v), nil
}

// Execute evaluates a script already wrapped in a sandbox prelude (see
// BuildPrelude), looking for an assignment to window._cf_chl_answer (or the
// bare _cf_chl_answer). Any other script form is not understood by this
// deterministic test double and returns an error — callers fall back per
// spec §4.2.3.
func (s *Sandbox) Execute(_ context.Context, script, _ string) (string, error) {
	m := answerAssignRe.FindStringSubmatch(script)
	if len(m) < 2 {
		return "", fmt.Errorf("sandbox: no _cf_chl_answer assignment recognized")
	}
	expr := strings.TrimSpace(m[1])
	if strings.HasPrefix(expr, `"`) || strings.HasPrefix(expr, "'") {
		return strings.Trim(expr, `"'`), nil
	}
	v, err := evalArith(stripToFixed(expr))
	if err != nil {
		// Not a numeric expression this sandbox understands; fall back to a
		// random base-36 suffix the way a bare VM failure would.
		return randomBase36(8), nil
	}
	return fmt.Sprintf("%.10f", v), nil
}

func stripToFixed(expr string) string {
	expr = strings.TrimSpace(expr)
	if idx := strings.Index(expr, ".toFixed("); idx >= 0 {
		expr = expr[:idx]
	}
	return strings.TrimSpace(expr)
}

const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

func randomBase36(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = base36Alphabet[rand.Intn(len(base36Alphabet))]
	}
	return string(b)
}
