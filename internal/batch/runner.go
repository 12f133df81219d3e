package batch

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/FranksOps/reelcheck/internal/classify"
	"github.com/FranksOps/reelcheck/internal/fetch"
	"github.com/FranksOps/reelcheck/internal/metrics"
	"github.com/FranksOps/reelcheck/internal/storage"
	"github.com/FranksOps/reelcheck/pkg/ratelimit"
)

// ErrBusy is returned by Run while the log is already collecting a batch.
var ErrBusy = errors.New("batch: a run is already in progress")

// MessageCancelled is the failure message of targets left unchecked when a
// run is cancelled.
const MessageCancelled = "cancelled"

// Fetcher retrieves page content for one URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Response, error)
}

// Progress is the 1-based position of the URL being checked. The zero value
// means no batch is running.
type Progress struct {
	Current int
	Total   int
}

// Config configures a Runner.
type Config struct {
	Fetcher  Fetcher
	Classify func(html string) storage.Detection
	// Limiter paces fetches; nil means back to back.
	Limiter *ratelimit.Limiter
	// Backend, if set, receives every record as it is produced.
	Backend    storage.Backend
	OnProgress func(Progress)
	Now        func() time.Time
}

// Runner checks URLs one at a time, in input order.
type Runner struct {
	config Config
	logger *slog.Logger
}

// NewRunner initializes a Runner.
func NewRunner(cfg Config, logger *slog.Logger) (*Runner, error) {
	if cfg.Fetcher == nil {
		return nil, errors.New("batch: fetcher is required")
	}
	if cfg.Classify == nil {
		cfg.Classify = classify.Classify
	}
	if cfg.OnProgress == nil {
		cfg.OnProgress = func(Progress) {}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{config: cfg, logger: logger}, nil
}

// Targets splits raw input into URLs: one per line, trimmed, blanks dropped.
func Targets(raw string) []string {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		if u := strings.TrimSpace(line); u != "" {
			out = append(out, u)
		}
	}
	return out
}

func clean(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	return out
}

// Records lazily checks urls and yields one record per non-blank URL, in
// order. A failed fetch yields an error record and the batch goes on.
// Cancelling ctx or breaking out of the loop stops the batch before the next
// fetch.
func (r *Runner) Records(ctx context.Context, urls []string) iter.Seq[storage.CheckRecord] {
	targets := clean(urls)
	return func(yield func(storage.CheckRecord) bool) {
		for i, u := range targets {
			if ctx.Err() != nil {
				return
			}
			r.config.OnProgress(Progress{Current: i + 1, Total: len(targets)})

			if err := r.config.Limiter.Wait(ctx); err != nil {
				return
			}

			rec, ok := r.check(ctx, u)
			if !ok {
				return
			}
			if !yield(rec) {
				return
			}
		}
	}
}

// check returns false only when ctx was cancelled mid-fetch.
func (r *Runner) check(ctx context.Context, u string) (storage.CheckRecord, bool) {
	r.logger.Debug("checking", "url", u)
	start := time.Now()

	resp, err := r.config.Fetcher.Fetch(ctx, u)
	if err != nil {
		if ctx.Err() != nil {
			return storage.CheckRecord{}, false
		}
		rec := storage.NewFailure(u, fetch.Categorize(err), fetch.Message(err), r.config.Now())
		r.logger.Warn("check failed", "url", u, "kind", rec.ErrorKind, "err", err)
		metrics.RecordCheck(&rec, time.Since(start))
		return rec, true
	}

	det := r.config.Classify(resp.Body)
	rec := storage.NewSuccess(u, det, r.config.Now())
	r.logger.Debug("checked", "url", u, "relay", resp.Relay, "has_video", det.HasVideo, "method", det.Method)
	metrics.RecordCheck(&rec, time.Since(start))
	return rec, true
}

// Run checks urls into log, replacing its previous contents, and returns the
// number of records produced. Each record is visible in the log as soon as
// it is ready. Empty input is a no-op. If ctx is cancelled, every target not
// yet checked is logged as a cancelled failure, so the log always holds one
// record per target.
func (r *Runner) Run(ctx context.Context, urls []string, log *Log) (int, error) {
	targets := clean(urls)
	if len(targets) == 0 {
		return 0, nil
	}
	if !log.begin() {
		return 0, ErrBusy
	}
	defer log.end()
	defer r.config.OnProgress(Progress{})

	r.logger.Info("batch started", "urls", len(targets))

	var n, videos, failures int
	for rec := range r.Records(ctx, targets) {
		log.append(rec)
		n++
		switch {
		case rec.Status == storage.StatusError:
			failures++
		case rec.HasVideo():
			videos++
		}

		if r.config.Backend != nil {
			if err := r.config.Backend.Save(ctx, &rec); err != nil {
				r.logger.Error("failed to save result", "url", rec.URL, "err", err)
			}
		}
	}

	if err := ctx.Err(); err != nil {
		r.logger.Warn("batch interrupted", "checked", n, "urls", len(targets))
		// unreached targets still get a record; they are not saved
		for _, u := range targets[n:] {
			log.append(storage.NewFailure(u, storage.ErrorOther, MessageCancelled, r.config.Now()))
		}
		return len(targets), fmt.Errorf("batch: %w", err)
	}

	r.logger.Info("batch finished", "checked", n, "with_video", videos, "errors", failures)
	return n, nil
}
