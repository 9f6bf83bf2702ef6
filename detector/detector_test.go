package detector

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wraith/challenge"
)

func cfResponse(status int, body string) *challenge.Response {
	return &challenge.Response{
		URL:        "https://example.com/",
		StatusCode: status,
		Header:     map[string][]string{"Server": {"cloudflare"}},
		Body:       body,
	}
}

func TestDetectorGating(t *testing.T) {
	d := New(nil)

	// non-cloudflare server header
	r := &challenge.Response{StatusCode: 503, Header: map[string][]string{"Server": {"nginx"}}, Body: "just a moment"}
	det, err := d.Detect(r, "example.com")
	require.NoError(t, err)
	assert.Nil(t, det)

	// cloudflare but non-candidate status
	r2 := cfResponse(200, "just a moment")
	det, err = d.Detect(r2, "example.com")
	require.NoError(t, err)
	assert.Nil(t, det)
}

func TestDetectorIUAM(t *testing.T) {
	d := New(nil)
	body := `<title>Just a moment...</title><form id="challenge-form" action="/x?__cf_chl_f_tk=1"></form>`
	det, err := d.Detect(cfResponse(503, body), "example.com")
	require.NoError(t, err)
	require.NotNil(t, det)
	assert.Equal(t, challenge.KindJavaScriptV1, det.Kind)
	assert.GreaterOrEqual(t, det.Confidence, 0.5)
}

func TestDetectorThresholdRejectsWeakMatch(t *testing.T) {
	d := New(nil)
	// only one of the three iuam_v1 regexes fires -> confidence = 1/3 * 0.9 = 0.3 < 0.5
	body := `__cf_chl_f_tk`
	det, err := d.Detect(cfResponse(503, body), "example.com")
	require.NoError(t, err)
	assert.Nil(t, det)
}

func TestDetectorHistoryBound(t *testing.T) {
	d := New(nil)
	body := `<title>Just a moment...</title><form id="challenge-form" action="/x?__cf_chl_f_tk=1"></form>`
	for i := 0; i < historyCap+50; i++ {
		_, _ = d.Detect(cfResponse(503, body), "example.com")
	}
	assert.Len(t, d.History(), historyCap)
}

func TestLearnFromOutcome(t *testing.T) {
	d := New(nil)
	d.LearnFromOutcome("iuam_v1", true)
	d.LearnFromOutcome("iuam_v1", false)
	st := d.stats["iuam_v1"]
	require.NotNil(t, st)
	assert.Equal(t, uint64(2), st.attempts)
	assert.Equal(t, uint64(1), st.successes)
	assert.InDelta(t, 0.5, st.rate(), 0.0001)
}

func TestAdaptivePatternScopedToDomain(t *testing.T) {
	d := New(nil)
	d.AddAdaptivePattern("special.com", Pattern{
		ID: "custom_1", Name: "custom", Kind: challenge.KindUnknown, Strategy: challenge.StrategyMitigate,
		BaseConfidence: 1.0,
		Regexes:        []*regexp.Regexp{regexp.MustCompile(`totally-custom-marker`)},
	})

	body := "totally-custom-marker"
	det, err := d.Detect(cfResponse(503, body), "special.com")
	require.NoError(t, err)
	require.NotNil(t, det)
	assert.True(t, det.IsAdaptive)

	// not registered for a different domain
	det, err = d.Detect(cfResponse(503, body), "other.com")
	require.NoError(t, err)
	assert.Nil(t, det)
}
