package challenge

import "net/url"

// OriginFromURL returns "scheme://host[:port]" for a URL, the value the
// IUAM solver sets as the submission's Origin header.
func OriginFromURL(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", &InvalidActionURLError{Action: rawURL, Cause: err}
	}
	return parsed.Scheme + "://" + parsed.Host, nil
}

// ResolveAction resolves a challenge form's action attribute against the
// response's own URL, producing an absolute URL a submission can POST to.
func ResolveAction(responseURL, action string) (string, error) {
	base, err := url.Parse(responseURL)
	if err != nil {
		return "", &InvalidActionURLError{Action: action, Cause: err}
	}
	ref, err := url.Parse(action)
	if err != nil {
		return "", &InvalidActionURLError{Action: action, Cause: err}
	}
	return base.ResolveReference(ref).String(), nil
}

// ResolveRedirect implements the redirect-target preference order used by
// the submission executor: an absolute Location with a host wins; otherwise
// the response URL is joined with Location; otherwise the original request
// URL is used verbatim.
func ResolveRedirect(responseURL, location, originalURL string) string {
	if location == "" {
		return originalURL
	}
	parsedLoc, err := url.Parse(location)
	if err == nil && parsedLoc.IsAbs() && parsedLoc.Host != "" {
		return parsedLoc.String()
	}
	base, err := url.Parse(responseURL)
	if err == nil {
		if ref, refErr := url.Parse(location); refErr == nil {
			return base.ResolveReference(ref).String()
		}
	}
	return originalURL
}
