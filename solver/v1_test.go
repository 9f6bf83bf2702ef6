package solver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wraith/challenge"
)

type fakeInterpreter struct {
	answer string
	err    error
}

func (f *fakeInterpreter) SolveChallenge(_ context.Context, _, _ string) (string, error) {
	return f.answer, f.err
}

func (f *fakeInterpreter) Execute(_ context.Context, _, _ string) (string, error) {
	return f.answer, f.err
}

func TestJavaScriptV1HappyPath(t *testing.T) {
	body := `<html><body>
<form id="challenge-form" action="/cdn-cgi/l/chk_jschl?__cf_chl_f_tk=foo" method="POST">
<input type="hidden" name="r" value="abc"/>
<input type="hidden" name="jschl_vc" value="def"/>
<input type="hidden" name="pass" value="ghi"/>
</form>
<script>setTimeout(function(){ submit(); }, 4000)</script>
</body></html>`

	resp := &challenge.Response{
		URL:        "https://example.com/",
		StatusCode: 503,
		Body:       body,
	}

	s := &JavaScriptV1{Interpreter: &fakeInterpreter{answer: "42"}}
	result, err := s.Solve(context.Background(), resp, nil)
	require.NoError(t, err)
	require.NotNil(t, result.Submission)

	sub := result.Submission
	assert.Equal(t, "POST", sub.Method)
	assert.Equal(t, "https://example.com/cdn-cgi/l/chk_jschl?__cf_chl_f_tk=foo", sub.URL)
	assert.Equal(t, "abc", sub.FormFields["r"])
	assert.Equal(t, "def", sub.FormFields["jschl_vc"])
	assert.Equal(t, "ghi", sub.FormFields["pass"])
	assert.Equal(t, "42", sub.FormFields["jschl_answer"])
	assert.Equal(t, 4000*1_000_000, int(sub.Wait))
	assert.Equal(t, "https://example.com/", sub.Headers["Referer"])
	assert.Equal(t, "https://example.com", sub.Headers["Origin"])
}

func TestJavaScriptV1MissingField(t *testing.T) {
	body := `<form id="challenge-form" action="/chk"><input type="hidden" name="r" value="abc"/></form>`
	resp := &challenge.Response{URL: "https://example.com/", Body: body}

	s := &JavaScriptV1{Interpreter: &fakeInterpreter{answer: "1"}}
	_, err := s.Solve(context.Background(), resp, nil)
	require.Error(t, err)
	var mfe *challenge.MissingFieldError
	assert.ErrorAs(t, err, &mfe)
}

func TestJavaScriptV1NotThisChallenge(t *testing.T) {
	resp := &challenge.Response{URL: "https://example.com/", Body: "<html>nothing here</html>"}
	s := &JavaScriptV1{Interpreter: &fakeInterpreter{answer: "1"}}
	_, err := s.Solve(context.Background(), resp, nil)
	require.ErrorIs(t, err, challenge.ErrNotThisChallenge)
}
