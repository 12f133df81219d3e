package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/FranksOps/reelcheck/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app carries what the subcommands share once flags and config are resolved.
type app struct {
	v          *viper.Viper
	cfg        *config.Config
	logger     *slog.Logger
	configFile string
	// open launches one URL in the user's browser.
	open func(url string) error
}

func newApp() *app {
	return &app{v: config.New(), open: openBrowser}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "reelcheck",
		Short: "Check which web pages host a video",
		Long: `reelcheck fetches each page through a list of CORS relays, falling back to the
next relay when one fails or is too slow, and classifies the page as hosting a
video or not. Results can be filtered, sorted, exported as CSV and stored.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.ErrOrStderr())
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "config file (default ./reelcheck.yaml if present)")
	pf.StringSlice("relay", nil, "relay template, {url} or {query} marks the target (repeatable, in attempt order)")
	pf.String("relays-file", "", "file with one relay template per line")
	pf.Duration("timeout", 0, "timeout for one relay attempt (default 20s)")
	pf.String("fingerprint", "", "TLS fingerprint: go, chrome, firefox, safari or random")
	pf.Float64("rate", 0, "maximum URLs checked per second, 0 for no pacing")
	pf.Float64("jitter", 0, "random extra delay as a fraction of the pacing interval")
	pf.StringSlice("store", nil, "result store: sqlite://path, postgres://dsn or json://path (repeatable, saves go to all, queries use the first)")
	pf.Int("metrics-port", 0, "serve Prometheus metrics on this port, 0 disables")
	pf.String("log-level", "", "log level: debug, info, warn or error")
	pf.String("log-format", "", "log format: text or json")

	bind(a.v, pf.Lookup("relay"), "relays")
	bind(a.v, pf.Lookup("relays-file"), "relays_file")
	bind(a.v, pf.Lookup("timeout"), "timeout")
	bind(a.v, pf.Lookup("fingerprint"), "fingerprint")
	bind(a.v, pf.Lookup("rate"), "rate")
	bind(a.v, pf.Lookup("jitter"), "jitter")
	bind(a.v, pf.Lookup("store"), "store")
	bind(a.v, pf.Lookup("metrics-port"), "metrics_port")
	bind(a.v, pf.Lookup("log-level"), "log_level")
	bind(a.v, pf.Lookup("log-format"), "log_format")

	root.AddCommand(newCheckCmd(a), newResultsCmd(a))
	return root
}

func (a *app) setup(stderr io.Writer) error {
	if err := config.ReadFile(a.v, a.configFile); err != nil {
		return err
	}
	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	logger, err := newLogger(stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	slog.SetDefault(logger)
	return nil
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("invalid log format %q (want text or json)", format)
}
