package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/FranksOps/reelcheck/internal/fingerprint"
	"github.com/FranksOps/reelcheck/internal/metrics"
	"github.com/FranksOps/reelcheck/pkg/httpclient"
	"github.com/FranksOps/reelcheck/pkg/relay"
	"github.com/FranksOps/reelcheck/pkg/useragent"
	"golang.org/x/net/html/charset"
)

const (
	// DefaultTimeout bounds one relay attempt, body read included.
	DefaultTimeout = 20 * time.Second
	// DefaultMaxBodyBytes caps how much of a page is read.
	DefaultMaxBodyBytes = 10 << 20
)

// Config configures a Fetcher.
type Config struct {
	Relays       *relay.List
	Timeout      time.Duration
	Fingerprint  fingerprint.Profile
	UAPool       *useragent.Pool
	MaxBodyBytes int64
	// Transport overrides the fingerprinted transport.
	Transport http.RoundTripper
}

// Response is the page content returned by the first relay that succeeded.
type Response struct {
	Relay       string
	StatusCode  int
	ContentType string
	Body        string
}

// Fetcher retrieves pages through an ordered list of relays, falling back to
// the next relay when one fails.
type Fetcher struct {
	config Config
	client *httpclient.Client
	logger *slog.Logger
}

// NewFetcher initializes a new Fetcher with the given configuration.
func NewFetcher(cfg Config, logger *slog.Logger) (*Fetcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Relays == nil {
		cfg.Relays = relay.Default()
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("fetch: negative timeout %s", cfg.Timeout)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UAPool == nil {
		cfg.UAPool = useragent.NewPool(nil)
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.Fingerprint == "" {
		cfg.Fingerprint = fingerprint.ProfileGo
	}

	transport := cfg.Transport
	if transport == nil {
		t, err := fingerprint.Transport(cfg.Fingerprint, fingerprint.Options{})
		if err != nil {
			return nil, fmt.Errorf("failed to setup transport: %w", err)
		}
		transport = t
	}

	header := http.Header{}
	header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	header.Set("Accept-Language", "en-US,en;q=0.5")

	client, err := httpclient.New(httpclient.Config{
		// the per-attempt context is the real deadline
		Timeout:   2 * cfg.Timeout,
		Header:    header,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Fetcher{config: cfg, client: client, logger: logger}, nil
}

// Relays returns the relay list the fetcher walks.
func (f *Fetcher) Relays() *relay.List {
	return f.config.Relays
}

// Fetch retrieves targetURL through the relays in order, one attempt per
// relay, and returns the first 2xx response. When every relay fails the error
// is an *ExhaustedError carrying the last attempt's error.
func (f *Fetcher) Fetch(ctx context.Context, targetURL string) (*Response, error) {
	endpoints := f.config.Relays.Endpoints()
	if len(endpoints) == 0 {
		return nil, ErrNoRelays
	}

	var last error
	for i, ep := range endpoints {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("fetch %s: %w", targetURL, err)
		}

		f.logger.Debug("relay attempt", "url", targetURL, "relay", ep.Name, "attempt", i+1)
		resp, err := f.attempt(ctx, ep, targetURL)
		if err == nil {
			_ = f.config.Relays.MarkSuccess(ep.Name)
			metrics.RecordRelayAttempt(ep.Name, "ok", len(resp.Body))
			return resp, nil
		}

		// the caller gave up; this is not the relay's fault
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("fetch %s: %w", targetURL, ctxErr)
		}

		_ = f.config.Relays.MarkFailure(ep.Name, err)
		metrics.RecordRelayAttempt(ep.Name, outcome(err), 0)
		f.logger.Warn("relay attempt failed", "url", targetURL, "relay", ep.Name, "err", err)
		last = err
	}

	return nil, &ExhaustedError{Attempts: len(endpoints), Last: last}
}

func (f *Fetcher) attempt(ctx context.Context, ep relay.Endpoint, targetURL string) (*Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, ep.Wrap(targetURL), nil)
	if err != nil {
		return nil, fmt.Errorf("relay %s: failed to create request: %w", ep.Name, err)
	}
	req.Header.Set("User-Agent", f.config.UAPool.Next())

	resp, err := f.client.Do(attemptCtx, req)
	if err != nil {
		return nil, transportError(attemptCtx, ep.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &HTTPStatusError{Relay: ep.Name, StatusCode: resp.StatusCode}
	}

	contentType := resp.Header.Get("Content-Type")
	limited := io.LimitReader(resp.Body, f.config.MaxBodyBytes)
	reader, err := charset.NewReader(limited, contentType)
	if err != nil {
		return nil, transportError(attemptCtx, ep.Name, fmt.Errorf("failed to read body: %w", err))
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, transportError(attemptCtx, ep.Name, fmt.Errorf("failed to read body: %w", err))
	}

	return &Response{
		Relay:       ep.Name,
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Body:        string(body),
	}, nil
}

// transportError tags err as a timeout when the attempt's own deadline fired
// and as a network failure otherwise.
func transportError(attemptCtx context.Context, relayName string, err error) error {
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("relay %s: %w", relayName, ErrRelayTimeout)
	}
	return fmt.Errorf("relay %s: %w: %w", relayName, ErrRelayNetwork, err)
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrRelayTimeout):
		return "timeout"
	case errors.Is(err, ErrRelayHTTP):
		return "http_error"
	default:
		return "network"
	}
}
