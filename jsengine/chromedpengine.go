package jsengine

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/chromedp/chromedp"
)

// ChromeDPEngine is a real-browser-backed Interpreter: it drives a headless
// Chrome instance via chromedp to actually execute challenge JavaScript,
// rather than approximating it with Sandbox's arithmetic evaluator. Use it
// when a target's challenge script is too complex for the deterministic
// test double (spec treats the interpreter as an external collaborator;
// this is one concrete, swappable implementation of that abstraction).
type ChromeDPEngine struct {
	timeout time.Duration
}

// NewChromeDPEngine constructs a chromedp-backed interpreter. A zero
// timeout defaults to 15s per evaluation.
func NewChromeDPEngine(timeout time.Duration) *ChromeDPEngine {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &ChromeDPEngine{timeout: timeout}
}

// SolveChallenge loads the page HTML into a headless tab and reads back the
// #jschl-answer input's value once the page's own timers have fired.
func (e *ChromeDPEngine) SolveChallenge(ctx context.Context, pageHTML, host string) (string, error) {
	ctx, cancel := e.newTab(ctx)
	defer cancel()

	dataURL := "data:text/html," + url.PathEscape(pageHTML)
	var answer string
	err := chromedp.Run(ctx,
		chromedp.Navigate(dataURL),
		chromedp.Sleep(500*time.Millisecond),
		chromedp.Evaluate(`(document.getElementById('jschl-answer')||{}).value || ""`, &answer),
	)
	if err != nil {
		return "", fmt.Errorf("chromedp solve challenge for %s: %w", host, err)
	}
	if answer == "" {
		return "", fmt.Errorf("chromedp: jschl-answer field empty for %s", host)
	}
	return answer, nil
}

// Execute evaluates an arbitrary script in a fresh tab and returns the
// stringified result of its final expression.
func (e *ChromeDPEngine) Execute(ctx context.Context, script, host string) (string, error) {
	ctx, cancel := e.newTab(ctx)
	defer cancel()

	var result string
	err := chromedp.Run(ctx,
		chromedp.Navigate("about:blank"),
		chromedp.Evaluate(script, &result),
	)
	if err != nil {
		return "", fmt.Errorf("chromedp execute for %s: %w", host, err)
	}
	return result, nil
}

func (e *ChromeDPEngine) newTab(parent context.Context) (context.Context, context.CancelFunc) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parent, chromedp.DefaultExecAllocatorOptions[:]...)
	ctx, cancelCtx := chromedp.NewContext(allocCtx)
	ctx, cancelTimeout := context.WithTimeout(ctx, e.timeout)
	return ctx, func() {
		cancelTimeout()
		cancelCtx()
		cancelAlloc()
	}
}
