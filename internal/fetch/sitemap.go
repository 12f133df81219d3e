package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/oxffaa/gopher-parse-sitemap"
)

// maxSitemapDepth bounds index recursion so a self-referencing index ends.
const maxSitemapDepth = 3

// SitemapLoader expands a sitemap or sitemap index into the page URLs to check.
type SitemapLoader struct {
	fetcher *Fetcher
	logger  *slog.Logger
}

// NewSitemapLoader initializes a new SitemapLoader.
func NewSitemapLoader(fetcher *Fetcher, logger *slog.Logger) *SitemapLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &SitemapLoader{
		fetcher: fetcher,
		logger:  logger,
	}
}

// Load fetches sitemapURL through the relays and returns its <loc> entries in
// document order, recursing into nested sitemaps of an index. Nested failures
// are logged and skipped.
func (s *SitemapLoader) Load(ctx context.Context, sitemapURL string) ([]string, error) {
	return s.load(ctx, sitemapURL, 0)
}

func (s *SitemapLoader) load(ctx context.Context, sitemapURL string, depth int) ([]string, error) {
	s.logger.Debug("fetching sitemap", "url", sitemapURL, "depth", depth)

	resp, err := s.fetcher.Fetch(ctx, sitemapURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sitemap: %w", err)
	}

	var urls []string
	err = sitemap.Parse(strings.NewReader(resp.Body), func(e sitemap.Entry) error {
		urls = append(urls, strings.TrimSpace(e.GetLocation()))
		return nil
	})
	if err == nil && len(urls) > 0 {
		return urls, nil
	}

	// might be a sitemap index
	var nested []string
	indexErr := sitemap.ParseIndex(strings.NewReader(resp.Body), func(e sitemap.IndexEntry) error {
		nested = append(nested, strings.TrimSpace(e.GetLocation()))
		return nil
	})
	if indexErr != nil || len(nested) == 0 {
		if err == nil {
			err = indexErr
		}
		if err == nil {
			err = errors.New("no entries")
		}
		return nil, fmt.Errorf("failed to parse as sitemap or index: %w", err)
	}

	if depth >= maxSitemapDepth {
		s.logger.Warn("sitemap index nested too deep, skipping", "url", sitemapURL)
		return nil, nil
	}

	for _, nestedURL := range nested {
		if ctx.Err() != nil {
			return urls, fmt.Errorf("load sitemap: %w", ctx.Err())
		}
		nestedURLs, fetchErr := s.load(ctx, nestedURL, depth+1)
		if fetchErr != nil {
			s.logger.Warn("failed to fetch nested sitemap", "url", nestedURL, "err", fetchErr)
			continue
		}
		urls = append(urls, nestedURLs...)
	}

	return urls, nil
}
