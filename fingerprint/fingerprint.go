// Package fingerprint synthesizes a plausible browser identity (UA, screen,
// timezone, WebGL vendor/renderer, canvas/audio hashes) with a configurable
// consistency policy across calls (spec §4.8).
package fingerprint

import (
	"math/rand"
	"sync"
)

// Consistency controls whether repeated calls return the same fingerprint.
type Consistency int

const (
	// ConsistencyNone generates a fresh fingerprint on every call.
	ConsistencyNone Consistency = iota
	// ConsistencyDomain memoizes one fingerprint per host.
	ConsistencyDomain
	// ConsistencyGlobal memoizes a single fingerprint for the whole process.
	ConsistencyGlobal
)

// Fingerprint is the synthetic browser identity presented to a server.
type Fingerprint struct {
	Browser          string
	UserAgent        string
	AcceptLanguage   string
	ScreenResolution string
	Timezone         string
	WebGLVendor      string
	WebGLRenderer    string
	CanvasHash       uint64
	AudioHash        uint64
}

type template struct {
	browser           string
	userAgents        []string
	screenResolutions []string
	timezones         []string
	webglVendors      []string
	webglRenderers    []string
}

var acceptLanguages = []string{
	"en-US,en;q=0.9",
	"en-GB,en;q=0.8,en-US;q=0.6",
	"en-US,en;q=0.9,es;q=0.8",
}

var templates = []template{
	{
		browser: "chrome",
		userAgents: []string{
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		},
		screenResolutions: []string{"1920x1080", "2560x1440", "1536x864"},
		timezones:         []string{"America/New_York", "America/Los_Angeles", "Europe/London"},
		webglVendors:      []string{"Google Inc. (NVIDIA)", "Google Inc. (Intel)"},
		webglRenderers:    []string{"ANGLE (NVIDIA, NVIDIA GeForce RTX 3060 Direct3D11 vs_5_0 ps_5_0)", "ANGLE (Intel, Intel(R) UHD Graphics 620 Direct3D11 vs_5_0 ps_5_0)"},
	},
	{
		browser: "firefox",
		userAgents: []string{
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:126.0) Gecko/20100101 Firefox/126.0",
			"Mozilla/5.0 (X11; Linux x86_64; rv:126.0) Gecko/20100101 Firefox/126.0",
		},
		screenResolutions: []string{"1920x1080", "1366x768"},
		timezones:         []string{"Europe/Berlin", "America/Chicago"},
		webglVendors:      []string{"Mozilla"},
		webglRenderers:    []string{"Mesa DRI Intel(R) HD Graphics (SKL GT2)"},
	},
	{
		browser: "safari",
		userAgents: []string{
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
		},
		screenResolutions: []string{"2560x1600", "1440x900"},
		timezones:         []string{"America/Los_Angeles", "Europe/Paris"},
		webglVendors:      []string{"Apple Inc."},
		webglRenderers:    []string{"Apple M1"},
	},
	{
		browser: "edge",
		userAgents: []string{
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36 Edg/124.0.0.0",
		},
		screenResolutions: []string{"1920x1080", "1280x1024"},
		timezones:         []string{"America/New_York"},
		webglVendors:      []string{"Google Inc. (NVIDIA)"},
		webglRenderers:    []string{"ANGLE (NVIDIA, NVIDIA GeForce GTX 1050 Direct3D11 vs_5_0 ps_5_0)"},
	},
	{
		browser: "mobile_chrome",
		userAgents: []string{
			"Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Mobile Safari/537.36",
		},
		screenResolutions: []string{"412x915", "393x873"},
		timezones:         []string{"America/Denver"},
		webglVendors:      []string{"Qualcomm"},
		webglRenderers:    []string{"Adreno (TM) 740"},
	},
	{
		browser: "mobile_safari",
		userAgents: []string{
			"Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1",
		},
		screenResolutions: []string{"390x844", "428x926"},
		timezones:         []string{"America/New_York"},
		webglVendors:      []string{"Apple Inc."},
		webglRenderers:    []string{"Apple GPU"},
	},
}

// Generator produces fingerprints according to its configured consistency.
type Generator struct {
	mu          sync.Mutex
	consistency Consistency
	perDomain   map[string]Fingerprint
	global      *Fingerprint
}

// New constructs a Generator with the given consistency policy.
func New(consistency Consistency) *Generator {
	return &Generator{consistency: consistency, perDomain: make(map[string]Fingerprint)}
}

// Get returns the fingerprint for domain, generating or reusing one per the
// configured consistency.
func (g *Generator) Get(domain string) Fingerprint {
	switch g.consistency {
	case ConsistencyGlobal:
		g.mu.Lock()
		defer g.mu.Unlock()
		if g.global == nil {
			f := generate()
			g.global = &f
		}
		return *g.global
	case ConsistencyDomain:
		g.mu.Lock()
		defer g.mu.Unlock()
		if f, ok := g.perDomain[domain]; ok {
			return f
		}
		f := generate()
		g.perDomain[domain] = f
		return f
	default:
		return generate()
	}
}

// Invalidate drops the cached fingerprint for domain, if one exists, and
// reports whether it did.
func (g *Generator) Invalidate(domain string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.perDomain[domain]; ok {
		delete(g.perDomain, domain)
		return true
	}
	return false
}

func generate() Fingerprint {
	tpl := templates[rand.Intn(len(templates))]
	return Fingerprint{
		Browser:          tpl.browser,
		UserAgent:        pick(tpl.userAgents),
		AcceptLanguage:   pick(acceptLanguages),
		ScreenResolution: pick(tpl.screenResolutions),
		Timezone:         pick(tpl.timezones),
		WebGLVendor:      pick(tpl.webglVendors),
		WebGLRenderer:    pick(tpl.webglRenderers),
		CanvasHash:       rand.Uint64(),
		AudioHash:        rand.Uint64(),
	}
}

func pick(options []string) string {
	return options[rand.Intn(len(options))]
}
