// Package collytransport implements transport.Transport on top of a
// gocolly/colly collector, the teacher's HTTP client of choice. Redirects
// are disabled at the underlying http.Client so the submission executor can
// resolve and replay the one redirect it cares about by hand (spec §4.3);
// cookies are held by the collector's jar and therefore persist across
// calls on the same Client, matching spec §5's "proxy-keyed sessions share
// cookie state."
package collytransport

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/gocolly/colly"
	"golang.org/x/net/publicsuffix"

	"wraith/transport"
)

// Client is a colly-backed transport.Transport bound to an optional proxy.
type Client struct {
	collector *colly.Collector
	timeout   time.Duration
}

// New constructs a Client. proxyURL may be empty for a direct connection.
func New(proxyURL string, timeout time.Duration) (*Client, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("collytransport: building cookie jar: %w", err)
	}

	httpClient := &http.Client{
		Timeout: timeout,
		Jar:     jar,
		CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	if proxyURL != "" {
		parsed, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("collytransport: invalid proxy url %q: %w", proxyURL, err)
		}
		httpClient.Transport = &http.Transport{Proxy: http.ProxyURL(parsed)}
	}

	c := colly.NewCollector(colly.AllowURLRevisit())
	// Hand 3xx/4xx/5xx responses (challenge pages are 403/503) to
	// OnResponse instead of reporting them as errors.
	c.ParseHTTPErrorResponse = true
	c.SetClient(httpClient)
	c.SetRequestTimeout(timeout)

	return &Client{collector: c, timeout: timeout}, nil
}

func (c *Client) SendForm(ctx context.Context, method, rawURL string, headers map[string]string, formFields map[string]string, allowRedirects bool) (*transport.HTTPResponse, error) {
	values := url.Values{}
	for k, v := range formFields {
		values.Set(k, v)
	}
	body := []byte(values.Encode())
	if headers == nil {
		headers = map[string]string{}
	}
	headers["Content-Type"] = "application/x-www-form-urlencoded"
	return c.do(ctx, method, rawURL, headers, body, allowRedirects)
}

func (c *Client) SendBody(ctx context.Context, method, rawURL string, headers map[string]string, body []byte, allowRedirects bool) (*transport.HTTPResponse, error) {
	return c.do(ctx, method, rawURL, headers, body, allowRedirects)
}

func (c *Client) do(ctx context.Context, method, rawURL string, headers map[string]string, body []byte, allowRedirects bool) (*transport.HTTPResponse, error) {
	var result *transport.HTTPResponse
	var handlerErr error

	collector := c.collector.Clone()

	collector.OnResponse(func(r *colly.Response) {
		headers := map[string][]string{}
		for k, v := range *r.Headers {
			headers[k] = v
		}
		location := r.Headers.Get("Location")
		result = &transport.HTTPResponse{
			StatusCode: r.StatusCode,
			Headers:    headers,
			Body:       r.Body,
			FinalURL:   r.Request.URL.String(),
			IsRedirect: r.StatusCode >= 300 && r.StatusCode < 400 && location != "",
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode >= 300 && r.StatusCode < 400 {
			// A 3xx that still reaches OnError is kept as the response: the
			// client never follows redirects, so it is not a transport failure.
			location := r.Headers.Get("Location")
			headers := map[string][]string{}
			for k, v := range *r.Headers {
				headers[k] = v
			}
			result = &transport.HTTPResponse{
				StatusCode: r.StatusCode,
				Headers:    headers,
				Body:       r.Body,
				FinalURL:   r.Request.URL.String(),
				IsRedirect: location != "",
			}
			return
		}
		handlerErr = err
	})

	// colly's backend doesn't thread a context.Context through to the
	// underlying RoundTrip call in this version; ctx cancellation is
	// honored up to this point (request construction) but not during the
	// network round trip itself. Per-request timeouts are enforced by the
	// collector's configured request timeout instead.
	if err := ctx.Err(); err != nil {
		return nil, &transport.Error{Op: method, URL: rawURL, Cause: err}
	}
	hdr := http.Header{}
	for k, v := range headers {
		hdr.Set(k, v)
	}

	err := collector.Request(method, rawURL, bytes.NewReader(bodyReader(body)), nil, hdr)
	if err != nil && result == nil {
		return nil, &transport.Error{Op: method, URL: rawURL, Cause: err}
	}
	if handlerErr != nil {
		return nil, &transport.Error{Op: method, URL: rawURL, Cause: handlerErr}
	}
	if result == nil {
		return nil, &transport.Error{Op: method, URL: rawURL, Cause: fmt.Errorf("no response recorded")}
	}
	return result, nil
}

func bodyReader(body []byte) []byte {
	if body == nil {
		return []byte{}
	}
	return body
}
