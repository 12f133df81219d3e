package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/FranksOps/reelcheck/internal/query"
	"github.com/FranksOps/reelcheck/internal/report"
	"github.com/FranksOps/reelcheck/internal/storage"
	"github.com/spf13/cobra"
)

type resultsOptions struct {
	format string
	output string
	url    string
	limit  int
	open   bool
	yes    bool
	query  queryFlags
}

func newResultsCmd(a *app) *cobra.Command {
	var opts resultsOptions

	cmd := &cobra.Command{
		Use:   "results",
		Short: "Query stored check results",
		Long: `Results loads earlier checks from the result store (newest first), applies the
filter and sort flags, and prints them as CSV, as a plain URL list, or as a
summary report. With --open every listed URL is opened in the browser after
a confirmation.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runResults(cmd, opts)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&opts.format, "format", "csv", "output format: csv, urls or report")
	fs.StringVarP(&opts.output, "output", "o", "-", "CSV destination, - for stdout")
	fs.StringVar(&opts.url, "url", "", "only results for this exact URL")
	fs.IntVar(&opts.limit, "limit", 0, "load at most this many stored results, 0 for all")
	fs.BoolVar(&opts.open, "open", false, "open every listed URL in the browser")
	fs.BoolVarP(&opts.yes, "yes", "y", false, "do not ask before opening URLs")
	opts.query.register(fs)

	return cmd
}

func (a *app) runResults(cmd *cobra.Command, opts resultsOptions) error {
	ctx := cmd.Context()
	stdout := cmd.OutOrStdout()

	if len(a.cfg.Store) == 0 {
		return errors.New("no result store configured (set --store or REELCHECK_STORE)")
	}
	q, err := opts.query.query()
	if err != nil {
		return err
	}

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	stored, err := store.Query(ctx, storage.Filter{URL: opts.url, Limit: opts.limit})
	if err != nil {
		return fmt.Errorf("query store: %w", err)
	}
	records := make([]storage.CheckRecord, len(stored))
	for i, rec := range stored {
		records[i] = *rec
	}
	records = query.Run(records, q)

	switch opts.format {
	case "csv":
		output, info := opts.output, stdout
		if output == "" {
			output = a.cfg.Output
		}
		if output == "-" {
			info = cmd.ErrOrStderr()
		}
		if err := a.exportCSV(stdout, info, records, output); err != nil {
			return err
		}
	case "urls":
		if len(records) > 0 {
			fmt.Fprintln(stdout, query.URLs(records))
		}
	case "report":
		if err := report.WriteText(stdout, report.GenerateSummary(records)); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown format %q (want csv, urls or report)", opts.format)
	}

	if opts.open {
		return a.openAll(cmd.InOrStdin(), cmd.ErrOrStderr(), records, opts.yes)
	}
	return nil
}

// openAll opens each record's URL after the user confirms the count.
func (a *app) openAll(in io.Reader, out io.Writer, records []storage.CheckRecord, yes bool) error {
	if len(records) == 0 {
		fmt.Fprintln(out, "No URLs to open.")
		return nil
	}
	if !yes && !confirm(in, out, fmt.Sprintf("Open %d URLs in the browser?", len(records))) {
		fmt.Fprintln(out, "Cancelled.")
		return nil
	}

	var errs []error
	for _, rec := range records {
		if err := a.open(rec.URL); err != nil {
			a.logger.Warn("failed to open url", "url", rec.URL, "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprintf(out, "%s [y/N] ", prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
