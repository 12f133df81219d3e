package relay

import (
	"bufio"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

// Template placeholders. {url} is replaced with the raw target URL, {query}
// with the target URL escaped for use as a query parameter. A template with
// neither gets the raw target appended.
const (
	PlaceholderURL   = "{url}"
	PlaceholderQuery = "{query}"
)

// DefaultTemplates are the public CORS relays used when none are configured.
var DefaultTemplates = []string{
	"https://cors.sh/{url}",
	"https://corsproxy.io/?{query}",
}

// Endpoint is one relay that proxies a GET for a target URL.
type Endpoint struct {
	Name     string
	Template string
}

// Wrap builds the relay request URL for target.
func (e Endpoint) Wrap(target string) string {
	switch {
	case strings.Contains(e.Template, PlaceholderURL):
		return strings.ReplaceAll(e.Template, PlaceholderURL, target)
	case strings.Contains(e.Template, PlaceholderQuery):
		return strings.ReplaceAll(e.Template, PlaceholderQuery, url.QueryEscape(target))
	default:
		return e.Template + target
	}
}

// Stats tracks the health of one endpoint across a run.
type Stats struct {
	Name      string
	Successes int
	Failures  int
	LastError string
	LastUsed  time.Time
}

// List is the fixed, ordered set of relay endpoints. Order is never changed
// and no endpoint is skipped; the stats are informational only. The zero
// value is an empty list ready for Add.
type List struct {
	mu        sync.Mutex
	endpoints []Endpoint
	stats     map[string]*Stats
}

// NewList creates a list from templates. An empty slice yields an empty list.
func NewList(templates ...string) (*List, error) {
	l := &List{}
	if err := l.Add(templates...); err != nil {
		return nil, err
	}
	return l, nil
}

// Default returns a list built from DefaultTemplates.
func Default() *List {
	l, err := NewList(DefaultTemplates...)
	if err != nil {
		panic(err)
	}
	return l
}

// LoadFile reads relay templates from a file, one per line.
// Lines starting with '#' or empty lines are ignored.
func (l *List) LoadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open relay file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	var templates []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		templates = append(templates, line)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read relay file: %w", err)
	}

	return l.Add(templates...)
}

// Add validates templates and appends them in order. Endpoint names are the
// template host, suffixed with "#n" when a host repeats.
func (l *List) Add(templates ...string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stats == nil {
		l.stats = make(map[string]*Stats)
	}
	for _, tmpl := range templates {
		tmpl = strings.TrimSpace(tmpl)
		if tmpl == "" {
			continue
		}
		probe := Endpoint{Template: tmpl}.Wrap("https://example.com/")
		u, err := url.Parse(probe)
		if err != nil {
			return fmt.Errorf("relay template %q: %w", tmpl, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
			return fmt.Errorf("relay template %q: must be an absolute http(s) URL", tmpl)
		}

		name := u.Host
		for n := 2; l.stats[name] != nil; n++ {
			name = fmt.Sprintf("%s#%d", u.Host, n)
		}

		l.endpoints = append(l.endpoints, Endpoint{Name: name, Template: tmpl})
		l.stats[name] = &Stats{Name: name}
	}
	return nil
}

// Endpoints returns the endpoints in attempt order.
func (l *List) Endpoints() []Endpoint {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Endpoint, len(l.endpoints))
	copy(out, l.endpoints)
	return out
}

// Len returns the number of endpoints.
func (l *List) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.endpoints)
}

// MarkSuccess records a successful attempt through the named endpoint.
func (l *List) MarkSuccess(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.stats[name]
	if !ok {
		return errors.New("relay not found in list")
	}
	s.Successes++
	s.LastUsed = time.Now()
	return nil
}

// MarkFailure records a failed attempt through the named endpoint.
func (l *List) MarkFailure(name string, cause error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.stats[name]
	if !ok {
		return errors.New("relay not found in list")
	}
	s.Failures++
	s.LastUsed = time.Now()
	if cause != nil {
		s.LastError = cause.Error()
	}
	return nil
}

// Stats returns a snapshot of per-endpoint stats in attempt order.
func (l *List) Stats() []Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Stats, 0, len(l.endpoints))
	for _, e := range l.endpoints {
		out = append(out, *l.stats[e.Name])
	}
	return out
}
