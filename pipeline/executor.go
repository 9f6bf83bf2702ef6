package pipeline

import (
	"context"
	"time"

	"wraith/challenge"
	"wraith/transport"
)

// RequestDescriptor is the original request a submission answers; it's
// replayed verbatim (method, headers, body) against the redirect target
// once the submission's own response resolves to one (spec §4.3 step 4).
type RequestDescriptor struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// Executor replays a solver's Submission over a transport: sleep, submit,
// and follow the one redirect it produces by hand.
type Executor struct {
	Transport transport.Transport
}

// NewExecutor constructs an Executor bound to a transport.
func NewExecutor(t transport.Transport) *Executor {
	return &Executor{Transport: t}
}

// Execute runs the four-step procedure in spec §4.3, returning the transport
// error, *challenge.InvalidAnswerError on a 400 replay, or the final
// response.
func (e *Executor) Execute(ctx context.Context, sub *challenge.Submission, original RequestDescriptor) (*transport.HTTPResponse, error) {
	if sub.Wait > 0 {
		select {
		case <-time.After(sub.Wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	resp, err := e.Transport.SendForm(ctx, sub.Method, sub.URL, sub.Headers, sub.FormFields, sub.AllowRedirects)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == 400 {
		return nil, &challenge.InvalidAnswerError{StatusCode: resp.StatusCode}
	}
	if !resp.IsRedirect {
		return resp, nil
	}

	location := resp.HeaderGet("Location")
	target := challenge.ResolveRedirect(resp.FinalURL, location, original.URL)

	headers := make(map[string]string, len(original.Headers)+1)
	for k, v := range original.Headers {
		headers[k] = v
	}
	headers["Referer"] = resp.FinalURL

	return e.Transport.SendBody(ctx, original.Method, target, headers, original.Body, true)
}
