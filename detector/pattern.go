// Package detector pattern-matches a challenge.Response against a catalog
// of known Cloudflare challenge signatures and picks the single
// highest-confidence match.
package detector

import (
	"regexp"

	"wraith/challenge"
)

// Pattern is an immutable signature: a stable ID, the kind/strategy it
// implies, and the set of regexes that must partially match for it to be a
// candidate. Mutable per-pattern statistics (successes/attempts) live
// separately in the detector so the catalog itself stays shared, read-only
// data — per design note in spec §9.
type Pattern struct {
	ID             string
	Name           string
	Kind           challenge.Kind
	Strategy       challenge.Strategy
	Regexes        []*regexp.Regexp
	BaseConfidence float64
}

// catalog is the static, process-wide set of known signatures.
var catalog = []Pattern{
	{
		ID:   "iuam_v1",
		Name: "IUAM JavaScript challenge (v1)",
		Kind: challenge.KindJavaScriptV1, Strategy: challenge.StrategySubmit,
		BaseConfidence: 0.9,
		Regexes: []*regexp.Regexp{
			regexp.MustCompile(`__cf_chl_f_tk`),
			regexp.MustCompile(`(?i)<title[^>]*>[^<]*just a moment[^<]*</title>`),
			regexp.MustCompile(`id="challenge-form"`),
		},
	},
	{
		ID:   "orchestrate_jsch_v1",
		Name: "Orchestrated VM JavaScript challenge (v2)",
		Kind: challenge.KindJavaScriptV2, Strategy: challenge.StrategySubmit,
		BaseConfidence: 0.88,
		Regexes: []*regexp.Regexp{
			regexp.MustCompile(`orchestrate/jsch/v1`),
			regexp.MustCompile(`window\._cf_chl_opt`),
		},
	},
	{
		ID:   "orchestrate_managed_v1",
		Name: "Managed challenge / captcha flow (v3)",
		Kind: challenge.KindManagedV3, Strategy: challenge.StrategySubmit,
		BaseConfidence: 0.85,
		Regexes: []*regexp.Regexp{
			regexp.MustCompile(`orchestrate/(captcha|managed)/v1`),
			regexp.MustCompile(`window\._cf_chl_ctx`),
			regexp.MustCompile(`__cf_chl_rt_tk`),
		},
	},
	{
		ID:   "turnstile",
		Name: "Turnstile widget",
		Kind: challenge.KindTurnstile, Strategy: challenge.StrategySubmit,
		BaseConfidence: 0.92,
		Regexes: []*regexp.Regexp{
			regexp.MustCompile(`cf-turnstile`),
			regexp.MustCompile(`data-sitekey="[a-zA-Z0-9_-]{40}"`),
		},
	},
	{
		ID:   "rate_limit_1015",
		Name: "Rate limited (1015)",
		Kind: challenge.KindRateLimit, Strategy: challenge.StrategyMitigate,
		BaseConfidence: 0.95,
		Regexes: []*regexp.Regexp{
			regexp.MustCompile(`cf-error-code">1015<`),
		},
	},
	{
		ID:   "access_denied_1020",
		Name: "Access denied (1020)",
		Kind: challenge.KindAccessDenied, Strategy: challenge.StrategyMitigate,
		BaseConfidence: 0.95,
		Regexes: []*regexp.Regexp{
			regexp.MustCompile(`cf-error-code">1020<`),
		},
	},
	{
		ID:   "bot_management_1010",
		Name: "Bot management block (1010)",
		Kind: challenge.KindBotManagement, Strategy: challenge.StrategyMitigate,
		BaseConfidence: 0.95,
		Regexes: []*regexp.Regexp{
			regexp.MustCompile(`cf-error-code">1010<`),
		},
	},
}

// Catalog returns a copy of the static pattern catalog. Exposed for
// inspection/testing; the detector holds its own reference for evaluation.
func Catalog() []Pattern {
	out := make([]Pattern, len(catalog))
	copy(out, catalog)
	return out
}
