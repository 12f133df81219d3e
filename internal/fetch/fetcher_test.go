package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/FranksOps/reelcheck/internal/storage"
	"github.com/FranksOps/reelcheck/pkg/relay"
	"github.com/FranksOps/reelcheck/pkg/useragent"
)

// relayServer proxies nothing; it answers for whatever target the
// query parameter names.
func relayServer(t *testing.T, h http.HandlerFunc) (*httptest.Server, string) {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return ts, ts.URL + "/?url={query}"
}

func newFetcher(t *testing.T, timeout time.Duration, templates ...string) *Fetcher {
	t.Helper()
	list, err := relay.NewList(templates...)
	if err != nil {
		t.Fatalf("unexpected relay list error: %v", err)
	}
	f, err := NewFetcher(Config{
		Relays:  list,
		Timeout: timeout,
		UAPool:  useragent.NewPool([]string{"TestBrowser/1.0"}),
	}, nil)
	if err != nil {
		t.Fatalf("unexpected fetcher error: %v", err)
	}
	return f
}

func TestFetcher_Success(t *testing.T) {
	const target = "https://example.com/watch?v=1"
	_, tmpl := relayServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("url"); got != target {
			t.Errorf("expected relay to receive %s, got %s", target, got)
		}
		if r.Header.Get("User-Agent") != "TestBrowser/1.0" {
			t.Errorf("expected User-Agent header, got %q", r.Header.Get("User-Agent"))
		}
		if r.Header.Get("Accept") == "" {
			t.Errorf("expected Accept header")
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><video src=a.mp4></video></html>"))
	})

	f := newFetcher(t, 5*time.Second, tmpl)
	res, err := f.Fetch(context.Background(), target)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", res.StatusCode)
	}
	if !strings.Contains(res.Body, "<video") {
		t.Errorf("expected page body, got %q", res.Body)
	}
	if res.Relay != f.Relays().Endpoints()[0].Name {
		t.Errorf("expected first relay to answer, got %s", res.Relay)
	}
	if s := f.Relays().Stats()[0]; s.Successes != 1 || s.Failures != 0 {
		t.Errorf("unexpected relay stats: %+v", s)
	}
}

func TestFetcher_FallsBackOnHTTPError(t *testing.T) {
	var firstHits atomic.Int32
	_, bad := relayServer(t, func(w http.ResponseWriter, r *http.Request) {
		firstHits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	_, good := relayServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	f := newFetcher(t, 5*time.Second, bad, good)
	res, err := f.Fetch(context.Background(), "https://example.com/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Body != "ok" {
		t.Errorf("expected body from second relay, got %q", res.Body)
	}
	if firstHits.Load() != 1 {
		t.Errorf("expected first relay tried once, got %d", firstHits.Load())
	}

	stats := f.Relays().Stats()
	if stats[0].Failures != 1 || !strings.Contains(stats[0].LastError, "503") {
		t.Errorf("expected first relay failure to be recorded, got %+v", stats[0])
	}
	if stats[1].Successes != 1 {
		t.Errorf("expected second relay success, got %+v", stats[1])
	}
}

func TestFetcher_TimeoutIsPerAttempt(t *testing.T) {
	_, slow := relayServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	_, fast := relayServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("fast"))
	})

	f := newFetcher(t, 100*time.Millisecond, slow, fast)
	start := time.Now()
	res, err := f.Fetch(context.Background(), "https://example.com/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Body != "fast" {
		t.Errorf("expected body from second relay, got %q", res.Body)
	}
	if took := time.Since(start); took > time.Second {
		t.Errorf("expected slow relay to be abandoned after its timeout, took %v", took)
	}
}

func TestFetcher_ExhaustedTimeout(t *testing.T) {
	hang := func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}
	_, a := relayServer(t, hang)
	_, b := relayServer(t, hang)

	f := newFetcher(t, 50*time.Millisecond, a, b)
	_, err := f.Fetch(context.Background(), "https://example.com/")
	if err == nil {
		t.Fatal("expected error")
	}

	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) || exhausted.Attempts != 2 {
		t.Fatalf("expected ExhaustedError with 2 attempts, got %v", err)
	}
	if !errors.Is(err, ErrAllRelaysExhausted) || !errors.Is(err, ErrRelayTimeout) {
		t.Errorf("expected exhausted timeout error, got %v", err)
	}
	if Categorize(err) != storage.ErrorTimeout {
		t.Errorf("expected timeout kind, got %s", Categorize(err))
	}
	if Message(err) != "response took too long (timeout)" {
		t.Errorf("unexpected message: %s", Message(err))
	}
}

func TestFetcher_ExhaustedHTTPError(t *testing.T) {
	_, a := relayServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	_, b := relayServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	f := newFetcher(t, time.Second, a, b)
	_, err := f.Fetch(context.Background(), "https://example.com/")
	if !errors.Is(err, ErrRelayHTTP) {
		t.Fatalf("expected HTTP error, got %v", err)
	}

	var status *HTTPStatusError
	if !errors.As(err, &status) || status.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected last status 500, got %v", err)
	}
	if Categorize(err) != storage.ErrorOther {
		t.Errorf("expected other kind, got %s", Categorize(err))
	}
	if Message(err) != "HTTP error: 500" {
		t.Errorf("unexpected message: %s", Message(err))
	}
}

func TestFetcher_Unreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	dead := ts.URL + "/?url={query}"
	ts.Close()

	f := newFetcher(t, time.Second, dead)
	_, err := f.Fetch(context.Background(), "https://example.com/")
	if !errors.Is(err, ErrRelayNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
	if Categorize(err) != storage.ErrorUnreachable {
		t.Errorf("expected unreachable kind, got %s", Categorize(err))
	}
	if Message(err) != "unreachable through relays" {
		t.Errorf("unexpected message: %s", Message(err))
	}
}

func TestFetcher_ParentCancel(t *testing.T) {
	var hits atomic.Int32
	_, a := relayServer(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("ok"))
	})

	f := newFetcher(t, time.Second, a)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Fetch(ctx, "https://example.com/")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
	if errors.Is(err, ErrAllRelaysExhausted) {
		t.Errorf("cancellation must not look like relay exhaustion")
	}
	if hits.Load() != 0 {
		t.Errorf("expected no relay attempts, got %d", hits.Load())
	}
}

func TestFetcher_DecodesCharset(t *testing.T) {
	_, a := relayServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		_, _ = w.Write([]byte("caf\xe9"))
	})

	f := newFetcher(t, time.Second, a)
	res, err := f.Fetch(context.Background(), "https://example.com/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Body != "café" {
		t.Errorf("expected decoded body, got %q", res.Body)
	}
}

func TestFetcher_NoRelays(t *testing.T) {
	list, _ := relay.NewList()
	f, err := NewFetcher(Config{Relays: list}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = f.Fetch(context.Background(), "https://example.com/")
	if !errors.Is(err, ErrNoRelays) {
		t.Errorf("expected ErrNoRelays, got %v", err)
	}
}

func TestNewFetcher_NegativeTimeout(t *testing.T) {
	if _, err := NewFetcher(Config{Timeout: -time.Second}, nil); err == nil {
		t.Error("expected error for negative timeout")
	}
}

func TestCategorize(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want storage.ErrorKind
	}{
		{"nil", nil, storage.ErrorNone},
		{"timeout", fmt.Errorf("relay a: %w", ErrRelayTimeout), storage.ErrorTimeout},
		{"deadline", context.DeadlineExceeded, storage.ErrorTimeout},
		{"network", fmt.Errorf("relay a: %w: %w", ErrRelayNetwork, errors.New("refused")), storage.ErrorUnreachable},
		{"no relays", ErrNoRelays, storage.ErrorUnreachable},
		{"http", &HTTPStatusError{Relay: "a", StatusCode: 404}, storage.ErrorOther},
		{"exhausted last timeout", &ExhaustedError{Attempts: 2, Last: fmt.Errorf("relay b: %w", ErrRelayTimeout)}, storage.ErrorTimeout},
		{"exhausted last http", &ExhaustedError{Attempts: 2, Last: &HTTPStatusError{Relay: "b", StatusCode: 502}}, storage.ErrorOther},
		{"plain", errors.New("boom"), storage.ErrorOther},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Categorize(tc.err); got != tc.want {
				t.Errorf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestMessage_Other(t *testing.T) {
	if got := Message(errors.New("boom")); got != "boom" {
		t.Errorf("expected underlying text, got %q", got)
	}
	if got := Message(nil); got != "" {
		t.Errorf("expected empty message for nil, got %q", got)
	}
}
