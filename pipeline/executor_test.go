package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wraith/challenge"
	"wraith/transport"
)

type fakeTransport struct {
	formResponses []*transport.HTTPResponse
	formErr       error
	bodyResponse  *transport.HTTPResponse
	bodyErr       error

	lastBodyMethod  string
	lastBodyURL     string
	lastBodyHeaders map[string]string
	callIndex       int
}

func (f *fakeTransport) SendForm(_ context.Context, _, _ string, _ map[string]string, _ map[string]string, _ bool) (*transport.HTTPResponse, error) {
	if f.formErr != nil {
		return nil, f.formErr
	}
	resp := f.formResponses[f.callIndex]
	f.callIndex++
	return resp, nil
}

func (f *fakeTransport) SendBody(_ context.Context, method, url string, headers map[string]string, _ []byte, _ bool) (*transport.HTTPResponse, error) {
	f.lastBodyMethod = method
	f.lastBodyURL = url
	f.lastBodyHeaders = headers
	return f.bodyResponse, f.bodyErr
}

func TestExecutorDirectSuccess(t *testing.T) {
	tr := &fakeTransport{formResponses: []*transport.HTTPResponse{
		{StatusCode: 200, FinalURL: "https://example.com/chk"},
	}}
	e := NewExecutor(tr)

	sub := &challenge.Submission{Method: "POST", URL: "https://example.com/chk", Wait: time.Millisecond}
	resp, err := e.Execute(context.Background(), sub, RequestDescriptor{Method: "GET", URL: "https://example.com/"})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestExecutorInvalidAnswer(t *testing.T) {
	tr := &fakeTransport{formResponses: []*transport.HTTPResponse{
		{StatusCode: 400, FinalURL: "https://example.com/chk"},
	}}
	e := NewExecutor(tr)

	sub := &challenge.Submission{Method: "POST", URL: "https://example.com/chk"}
	_, err := e.Execute(context.Background(), sub, RequestDescriptor{Method: "GET", URL: "https://example.com/"})
	require.Error(t, err)
	var iae *challenge.InvalidAnswerError
	require.ErrorAs(t, err, &iae)
}

func TestExecutorFollowsRedirect(t *testing.T) {
	tr := &fakeTransport{
		formResponses: []*transport.HTTPResponse{
			{
				StatusCode: 302,
				FinalURL:   "https://example.com/chk",
				IsRedirect: true,
				Headers:    map[string][]string{"Location": {"/redirected"}},
			},
		},
		bodyResponse: &transport.HTTPResponse{StatusCode: 200, FinalURL: "https://example.com/redirected"},
	}
	e := NewExecutor(tr)

	sub := &challenge.Submission{Method: "POST", URL: "https://example.com/chk"}
	resp, err := e.Execute(context.Background(), sub, RequestDescriptor{Method: "GET", URL: "https://example.com/", Headers: map[string]string{}})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "GET", tr.lastBodyMethod)
	assert.Equal(t, "https://example.com/redirected", tr.lastBodyURL)
	assert.Equal(t, "https://example.com/chk", tr.lastBodyHeaders["Referer"])
}
