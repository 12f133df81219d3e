package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/FranksOps/reelcheck/internal/batch"
	"github.com/FranksOps/reelcheck/internal/config"
	"github.com/FranksOps/reelcheck/internal/export"
	"github.com/FranksOps/reelcheck/internal/fetch"
	"github.com/FranksOps/reelcheck/internal/fingerprint"
	"github.com/FranksOps/reelcheck/internal/metrics"
	"github.com/FranksOps/reelcheck/internal/query"
	"github.com/FranksOps/reelcheck/internal/report"
	"github.com/FranksOps/reelcheck/internal/storage"
	"github.com/FranksOps/reelcheck/pkg/ratelimit"
	"github.com/FranksOps/reelcheck/pkg/relay"
	"github.com/FranksOps/reelcheck/pkg/useragent"
	"github.com/spf13/cobra"
)

type checkOptions struct {
	urls    []string
	sitemap string
	output  string
	report  string
	noCSV   bool
	query   queryFlags
}

func newCheckCmd(a *app) *cobra.Command {
	var opts checkOptions

	cmd := &cobra.Command{
		Use:   "check [file|-]",
		Short: "Check a list of URLs for videos",
		Long: `Check reads URLs one per line from a file, from stdin ("-"), from --url flags or
from a sitemap, checks them one at a time in order, and writes the results that
pass the filters to a CSV file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runCheck(cmd, args, opts)
		},
	}

	fs := cmd.Flags()
	fs.StringArrayVar(&opts.urls, "url", nil, "URL to check (repeatable)")
	fs.StringVar(&opts.sitemap, "sitemap", "", "sitemap or sitemap index whose URLs are checked")
	fs.StringVarP(&opts.output, "output", "o", "", "CSV export path (default osmosis_results.csv)")
	fs.StringVar(&opts.report, "report", "text", "summary format: text, json, html or none")
	fs.BoolVar(&opts.noCSV, "no-csv", false, "skip the CSV export")
	opts.query.register(fs)

	return cmd
}

func (a *app) newFetcher(list *relay.List) (*fetch.Fetcher, error) {
	profile, err := fingerprint.ParseProfile(a.cfg.Fingerprint)
	if err != nil {
		return nil, err
	}
	return fetch.NewFetcher(fetch.Config{
		Relays:      list,
		Timeout:     a.cfg.Timeout,
		Fingerprint: profile,
		UAPool:      useragent.NewPool(a.cfg.UserAgents),
	}, a.logger)
}

func (a *app) runCheck(cmd *cobra.Command, args []string, opts checkOptions) error {
	ctx := cmd.Context()
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()

	q, err := opts.query.query()
	if err != nil {
		return err
	}
	if !validReport(opts.report) {
		return fmt.Errorf("unknown report format %q (want text, json, html or none)", opts.report)
	}

	relays, err := a.cfg.RelayList()
	if err != nil {
		return err
	}
	fetcher, err := a.newFetcher(relays)
	if err != nil {
		return err
	}

	targets, err := a.collectTargets(ctx, cmd.InOrStdin(), args, opts, fetcher)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		fmt.Fprintln(stderr, "No URLs to check.")
		return nil
	}

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	if a.cfg.MetricsPort > 0 {
		srv := metrics.Start(a.cfg.MetricsPort, a.logger)
		defer srv.Stop(context.Background())
	}

	runner, err := batch.NewRunner(batch.Config{
		Fetcher: fetcher,
		Limiter: ratelimit.NewLimiter(a.cfg.Rate, a.cfg.Jitter),
		Backend: store,
		OnProgress: func(p batch.Progress) {
			if p.Current > 0 {
				fmt.Fprintf(stderr, "[%d/%d] %s\n", p.Current, p.Total, targets[p.Current-1])
			}
		},
	}, a.logger)
	if err != nil {
		return err
	}

	output := opts.output
	if output == "" {
		output = a.cfg.Output
	}
	// stdout carries nothing but the CSV when it is the export target
	info := stdout
	if !opts.noCSV && output == "-" {
		info = stderr
	}

	var log batch.Log
	_, runErr := runner.Run(ctx, targets, &log)
	records := log.Snapshot()

	for i := range records {
		printRecord(info, &records[i])
	}

	if !opts.noCSV {
		if err := a.exportCSV(stdout, info, query.Run(records, q), output); err != nil {
			return err
		}
	}

	if opts.report != "none" {
		summary := report.GenerateSummary(records)
		summary.Relays = relays.Stats()
		if err := writeReport(info, opts.report, summary); err != nil {
			return err
		}
	}

	return runErr
}

func (a *app) collectTargets(ctx context.Context, stdin io.Reader, args []string, opts checkOptions, fetcher *fetch.Fetcher) ([]string, error) {
	var raw []string

	if len(args) == 1 {
		var (
			data []byte
			err  error
		)
		if args[0] == "-" {
			data, err = io.ReadAll(stdin)
		} else {
			data, err = os.ReadFile(args[0])
		}
		if err != nil {
			return nil, fmt.Errorf("read url list: %w", err)
		}
		raw = append(raw, string(data))
	}

	raw = append(raw, opts.urls...)

	if opts.sitemap != "" {
		urls, err := fetch.NewSitemapLoader(fetcher, a.logger).Load(ctx, opts.sitemap)
		if err != nil {
			return nil, err
		}
		a.logger.Info("loaded sitemap", "url", opts.sitemap, "urls", len(urls))
		raw = append(raw, urls...)
	}

	return batch.Targets(strings.Join(raw, "\n")), nil
}

func (a *app) openStore(ctx context.Context) (storage.Backend, error) {
	store, err := config.OpenStore(ctx, a.cfg.Store...)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return store, nil
}

// exportCSV writes records to output, or to stdout when output is "-".
// Notices go to info.
func (a *app) exportCSV(stdout, info io.Writer, records []storage.CheckRecord, output string) error {
	if len(records) == 0 {
		fmt.Fprintln(info, "No results to export.")
		return nil
	}
	if output == "-" {
		return export.WriteCSV(stdout, records, a.cfg.TimestampLayout)
	}
	if err := export.WriteFile(output, records, a.cfg.TimestampLayout); err != nil {
		return err
	}
	fmt.Fprintf(info, "Exported %d results to %s\n", len(records), output)
	return nil
}

func printRecord(w io.Writer, rec *storage.CheckRecord) {
	verdict := "no video"
	if rec.HasVideo() {
		verdict = "VIDEO"
	}
	if rec.Status == storage.StatusError {
		fmt.Fprintf(w, "%-8s %s  %s\n", "ERROR", rec.URL, rec.StatusText())
		return
	}
	d := rec.Detection
	fmt.Fprintf(w, "%-8s %s  method=%s playback=%d video=%d iframe=%d youtube=%d\n",
		verdict, rec.URL, d.Method, d.PlaybackControls, d.VideoTags, d.Iframes, d.YouTubeEmbeds)
}

func validReport(format string) bool {
	switch format {
	case "text", "json", "html", "none":
		return true
	}
	return false
}

func writeReport(w io.Writer, format string, summary report.Summary) error {
	switch format {
	case "json":
		return report.WriteJSON(w, summary)
	case "html":
		return report.WriteHTML(w, summary)
	default:
		return report.WriteText(w, summary)
	}
}
