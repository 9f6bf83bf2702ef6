package challenge

import (
	"html"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Blueprint is the parsed shape of a "challenge-form" page: the resolved
// action URL and every hidden input the page carries. Solvers read specific
// named fields off it and fail with MissingFieldError when one is absent.
type Blueprint struct {
	Action       string
	HiddenFields map[string]string
}

// ParseChallengeForm locates <form id="challenge-form" action="...">,
// HTML-entity-decodes the action, and collects every hidden <input>'s
// name/value pair. Returns ErrNotThisChallenge if no such form exists.
func ParseChallengeForm(body string) (*Blueprint, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, ErrNotThisChallenge
	}

	form := doc.Find("form#challenge-form").First()
	if form.Length() == 0 {
		return nil, ErrNotThisChallenge
	}

	action, ok := form.Attr("action")
	if !ok || action == "" {
		return nil, &MissingFieldError{Field: "action"}
	}
	action = html.UnescapeString(action)

	hidden := map[string]string{}
	form.Find(`input[type="hidden"]`).Each(func(_ int, sel *goquery.Selection) {
		name, hasName := sel.Attr("name")
		if !hasName {
			return
		}
		value, _ := sel.Attr("value")
		hidden[name] = value
	})

	return &Blueprint{Action: action, HiddenFields: hidden}, nil
}

// RequireField returns the named hidden field, case-insensitively, or a
// MissingFieldError.
func (b *Blueprint) RequireField(name string) (string, error) {
	if v, ok := b.HiddenFields[name]; ok {
		return v, nil
	}
	lower := strings.ToLower(name)
	for k, v := range b.HiddenFields {
		if strings.ToLower(k) == lower {
			return v, nil
		}
	}
	return "", &MissingFieldError{Field: name}
}

var submitDelayRe = regexp.MustCompile(`submit\(\);\s*},\s*(\d+)\)`)

// ExtractSubmitDelayMillis finds the `submit(); }, <N>` pattern in a
// challenge page and returns N, a count of milliseconds. Returns
// MissingDelayError if absent.
func ExtractSubmitDelayMillis(body string) (int64, error) {
	m := submitDelayRe.FindStringSubmatch(body)
	if len(m) < 2 {
		return 0, &MissingDelayError{}
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, &MissingDelayError{}
	}
	return n, nil
}

// AllFormInputs collects every <input name=K value=V> on the page,
// regardless of form ownership, used by the managed-v3 solver to merge form
// state into its fallback payload without clobbering jschl_answer.
func AllFormInputs(body string) map[string]string {
	out := map[string]string{}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return out
	}
	doc.Find("input").Each(func(_ int, sel *goquery.Selection) {
		name, ok := sel.Attr("name")
		if !ok || name == "" {
			return
		}
		value, _ := sel.Attr("value")
		out[name] = value
	})
	return out
}

var sitekeyRe = regexp.MustCompile(`data-sitekey="([a-zA-Z0-9_-]{40})"`)

// ExtractSitekey finds a 40-character alphanumeric data-sitekey attribute,
// used by both the Turnstile and v2-captcha-variant solvers.
func ExtractSitekey(body string) (string, bool) {
	m := sitekeyRe.FindStringSubmatch(body)
	if len(m) < 2 {
		return "", false
	}
	return m[1], true
}

// ExtractFormAction returns the first <form ... action="..."> on the page,
// falling back to ok=false when no form is present.
func ExtractFormAction(body string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return "", false
	}
	form := doc.Find("form").First()
	if form.Length() == 0 {
		return "", false
	}
	action, ok := form.Attr("action")
	if !ok {
		return "", false
	}
	return html.UnescapeString(action), true
}
