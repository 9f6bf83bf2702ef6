package jsengine

import "fmt"

// BuildPrelude returns a host-parameterized shim object graph
// (window/document/navigator/history/performance) that the managed-v3
// solver prepends to the page's VM script before handing it to an
// Interpreter. The challenge's own `setTimeout` is rewired to invoke its
// callback synchronously so the computation completes in-band — this is a
// test double for a browser, not a browser (spec §9 design note): there is
// no event loop, no DOM tree, just enough surface for the VM script to read
// `window._cf_chl_ctx` / `window._cf_chl_opt` and write
// `window._cf_chl_answer`.
func BuildPrelude(host string, cfChlCtx, cfChlOpt string) string {
	return fmt.Sprintf(`
var window = window || {};
window.location = { hostname: %q, href: "https://" + %q + "/" };
window.navigator = { userAgent: "Mozilla/5.0", language: "en-US", webdriver: false };
window.document = { createElement: function(){ return {}; }, getElementById: function(){ return {}; } };
window.history = { length: 2 };
window.performance = { now: function(){ return 0; } };
window.setTimeout = function(fn, _delay) { if (typeof fn === "function") { fn(); } };
window._cf_chl_ctx = %s;
window._cf_chl_opt = %s;
`, host, host, orEmptyObject(cfChlCtx), orEmptyObject(cfChlOpt))
}

func orEmptyObject(s string) string {
	if s == "" {
		return "{}"
	}
	return s
}
