// Package useragent loads the external BrowserProfiles catalog (spec §3,
// §6) — header templates, cipher suites, and user-agent strings indexed by
// device kind × platform × browser — and resolves a concrete set of request
// headers from a caller's SelectionOptions.
package useragent

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"strings"
)

// HeaderTemplate is one browser's baseline header set, loaded from the
// catalog's "headers" map. UserAgent is optional there — most templates
// rely on the "user_agents" table instead and only specify the
// Accept/Accept-Language/Accept-Encoding trio.
type HeaderTemplate struct {
	UserAgent      string `json:"User-Agent,omitempty"`
	Accept         string `json:"Accept"`
	AcceptLanguage string `json:"Accept-Language"`
	AcceptEncoding string `json:"Accept-Encoding"`
}

// Catalog is the external UA description, loaded once at startup (spec §3
// "BrowserProfiles catalog is loaded once from an external description").
type Catalog struct {
	Headers     map[string]HeaderTemplate                 `json:"headers"`
	CipherSuite map[string][]string                       `json:"cipherSuite"`
	UserAgents  map[string]map[string]map[string][]string `json:"user_agents"`
}

// Load reads and parses a catalog JSON file from path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("useragent: reading catalog %q: %w", path, err)
	}
	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("useragent: parsing catalog %q: %w", path, err)
	}
	return &c, nil
}

// LoadFirst tries each candidate path in order (explicit path, source-tree
// relative, process CWD per spec §6) and returns the first catalog that
// loads successfully.
func LoadFirst(paths ...string) (*Catalog, error) {
	var lastErr error
	for _, p := range paths {
		if p == "" {
			continue
		}
		c, err := Load(p)
		if err == nil {
			return c, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("useragent: no catalog path candidates given")
	}
	return nil, lastErr
}

// SelectionOptions parameterize which entry of the catalog to resolve
// headers from (spec §6).
type SelectionOptions struct {
	Custom      string
	Platform    string // linux | windows | darwin | android | ios
	Browser     string
	Desktop     bool
	Mobile      bool
	AllowBrotli bool
}

var validPlatforms = map[string]bool{
	"linux": true, "windows": true, "darwin": true, "android": true, "ios": true,
}

// ConfigError marks an invalid SelectionOptions value (spec §6: "Invalid
// platform or both device flags false → configuration error").
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return "useragent: invalid selection options: " + e.Reason }

// Headers is the resolved, ready-to-send header set for a selection.
type Headers struct {
	UserAgent      string
	Accept         string
	AcceptLanguage string
	AcceptEncoding string
}

// Select resolves concrete headers from the catalog for the given options.
func (c *Catalog) Select(opts SelectionOptions) (Headers, error) {
	if !validPlatforms[opts.Platform] {
		return Headers{}, &ConfigError{Reason: fmt.Sprintf("unknown platform %q", opts.Platform)}
	}
	if !opts.Desktop && !opts.Mobile {
		return Headers{}, &ConfigError{Reason: "neither desktop nor mobile selected"}
	}

	tpl := c.Headers[opts.Browser]
	headers := Headers{
		UserAgent:      tpl.UserAgent,
		Accept:         tpl.Accept,
		AcceptLanguage: tpl.AcceptLanguage,
		AcceptEncoding: tpl.AcceptEncoding,
	}

	if opts.Custom != "" {
		headers.UserAgent = opts.Custom
	} else if ua, ok := c.pickUserAgent(opts); ok {
		headers.UserAgent = ua
	}

	if !opts.AllowBrotli {
		headers.AcceptEncoding = stripBrotli(headers.AcceptEncoding)
	}

	return headers, nil
}

func (c *Catalog) pickUserAgent(opts SelectionOptions) (string, bool) {
	device := "desktop"
	if opts.Mobile && !opts.Desktop {
		device = "mobile"
	}
	byPlatform, ok := c.UserAgents[device]
	if !ok {
		return "", false
	}
	byBrowser, ok := byPlatform[opts.Platform]
	if !ok {
		return "", false
	}
	uas, ok := byBrowser[opts.Browser]
	if !ok || len(uas) == 0 {
		return "", false
	}
	return uas[rand.Intn(len(uas))], true
}

// CipherSuites returns the cipher suite list the catalog associates with
// browser, if any.
func (c *Catalog) CipherSuites(browser string) []string {
	return c.CipherSuite[browser]
}

func stripBrotli(acceptEncoding string) string {
	parts := strings.Split(acceptEncoding, ",")
	out := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) == "br" {
			continue
		}
		out = append(out, p)
	}
	return strings.Join(out, ",")
}
