package solver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wraith/challenge"
)

func TestJavaScriptV2BuildsVerificationPayload(t *testing.T) {
	body := `<html><body>
<script>window._cf_chl_opt={cvId:"3",chlPageData:"abcdef"};var cpo={src:"/cdn-cgi/challenge-platform/h/b/orchestrate/jsch/v1"};</script>
<form action="/cdn-cgi/challenge-platform/h/b/jsch/check" method="POST">
<input type="hidden" name="r" value="xyz"/>
</form>
</body></html>`

	resp := &challenge.Response{URL: "https://example.com/", Body: body}
	s := &JavaScriptV2{}
	result, err := s.Solve(context.Background(), resp, nil)
	require.NoError(t, err)
	require.NotNil(t, result.Submission)

	sub := result.Submission
	assert.Equal(t, "https://example.com/cdn-cgi/challenge-platform/h/b/jsch/check", sub.URL)
	assert.Equal(t, "xyz", sub.FormFields["r"])
	assert.Equal(t, "3", sub.FormFields["cv_chal_id"])
	assert.Equal(t, "abcdef", sub.FormFields["cf_chl_page_data"])
	assert.Equal(t, "plat", sub.FormFields["cf_ch_verify"])
	assert.Equal(t, "h", sub.FormFields["cf_captcha_kind"])
}

func TestJavaScriptV2MissingOptBlob(t *testing.T) {
	resp := &challenge.Response{URL: "https://example.com/", Body: "<html>no marker here</html>"}
	s := &JavaScriptV2{}
	_, err := s.Solve(context.Background(), resp, nil)
	require.Error(t, err)
}
