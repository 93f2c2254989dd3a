// Package fetch downloads web pages for the renderers that need the HTML
// source rather than a browser navigation.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/net/html/charset"
)

// DefaultUserAgent is sent with every request unless overridden. Some
// sites serve reduced content to non-browser agents.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// DefaultTimeout bounds a single GET.
const DefaultTimeout = 30 * time.Second

// Options configures a Client.
type Options struct {
	UserAgent string
	Timeout   time.Duration

	// CloudflareBypass wraps the transport with browser-like TLS and
	// header settings.
	CloudflareBypass bool

	// Transport replaces the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

// Client fetches pages over HTTP. It is safe for concurrent use.
type Client struct {
	http      *resty.Client
	userAgent string
}

// New returns a Client. Zero option fields take their defaults.
func New(opts Options) *Client {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	client := resty.New()
	if opts.Transport != nil {
		client.SetTransport(opts.Transport)
	}
	if opts.CloudflareBypass {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}
	client.SetHeader("user-agent", opts.UserAgent)
	client.SetHeader("accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	client.SetTimeout(opts.Timeout)

	return &Client{http: client, userAgent: opts.UserAgent}
}

// UserAgent returns the User-Agent header sent with every request.
func (c *Client) UserAgent() string {
	return c.userAgent
}

// Page is a fetched document.
type Page struct {
	URL         string // final URL after redirects
	Status      int
	ContentType string
	Body        []byte
}

// Get fetches url. Any status outside 2xx is returned as a *StatusError.
func (c *Client) Get(ctx context.Context, url string) (*Page, error) {
	resp, err := c.http.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetch: GET %s: %w", url, err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode(), URL: url}
	}

	final := url
	if raw := resp.RawResponse; raw != nil && raw.Request != nil && raw.Request.URL != nil {
		final = raw.Request.URL.String()
	}
	return &Page{
		URL:         final,
		Status:      resp.StatusCode(),
		ContentType: resp.Header().Get("Content-Type"),
		Body:        resp.Body(),
	}, nil
}

// Text returns the body decoded to UTF-8, using the Content-Type charset
// or a <meta> declaration when present.
func (p *Page) Text() (string, error) {
	r, err := charset.NewReader(bytes.NewReader(p.Body), p.ContentType)
	if err != nil {
		return "", fmt.Errorf("fetch: decoding %s: %w", p.URL, err)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("fetch: decoding %s: %w", p.URL, err)
	}
	return string(b), nil
}
