package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Config defines the setup for the HTTP Client.
type Config struct {
	// Timeout is a hard ceiling for a whole exchange; per-attempt deadlines
	// belong on the request context. Zero means 60s.
	Timeout      time.Duration
	MaxRedirects int
	// Header is applied to every request that does not already set the key.
	Header http.Header
	// Provide a custom Transport, e.g. for uTLS fingerprinting
	Transport http.RoundTripper
}

// Client wraps a standard http.Client with a redirect policy and default headers.
type Client struct {
	*http.Client
	header http.Header
}

// New creates a new HTTP client based on the provided configuration.
func New(cfg Config) (*Client, error) {
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("httpclient: negative timeout %s", cfg.Timeout)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	c := &http.Client{
		Timeout: cfg.Timeout,
	}

	if cfg.MaxRedirects >= 0 {
		limit := cfg.MaxRedirects
		if limit == 0 {
			limit = 10
		}
		c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			if len(via) >= limit {
				return fmt.Errorf("httpclient: stopped after %d redirects", limit)
			}
			return nil
		}
	} else {
		// Don't follow any redirects if max < 0
		c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	if cfg.Transport != nil {
		c.Transport = cfg.Transport
	}

	return &Client{Client: c, header: cfg.Header.Clone()}, nil
}

// Do executes req under ctx after filling in the default headers. The context
// controls the attempt's deadline independently of the client timeout.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if ctx == nil {
		return nil, errors.New("httpclient: context cannot be nil")
	}

	reqWithCtx := req.Clone(ctx)
	for k, vals := range c.header {
		if reqWithCtx.Header.Get(k) == "" {
			for _, v := range vals {
				reqWithCtx.Header.Add(k, v)
			}
		}
	}

	resp, err := c.Client.Do(reqWithCtx)
	if err != nil {
		return nil, fmt.Errorf("httpclient: %w", err)
	}
	return resp, nil
}
