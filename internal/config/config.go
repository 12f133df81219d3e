package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/FranksOps/reelcheck/internal/export"
	"github.com/FranksOps/reelcheck/internal/fetch"
	"github.com/FranksOps/reelcheck/internal/fingerprint"
	"github.com/FranksOps/reelcheck/internal/storage"
	"github.com/FranksOps/reelcheck/internal/storage/jsonbackend"
	"github.com/FranksOps/reelcheck/internal/storage/postgres"
	"github.com/FranksOps/reelcheck/internal/storage/sqlite"
	"github.com/FranksOps/reelcheck/pkg/relay"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. REELCHECK_TIMEOUT=5s.
const EnvPrefix = "REELCHECK"

// Config holds the application's configuration values.
type Config struct {
	Relays          []string      `mapstructure:"relays"`
	RelaysFile      string        `mapstructure:"relays_file"`
	Timeout         time.Duration `mapstructure:"timeout"`
	Fingerprint     string        `mapstructure:"fingerprint"`
	UserAgents      []string      `mapstructure:"user_agents"`
	Rate            float64       `mapstructure:"rate"`
	Jitter          float64       `mapstructure:"jitter"`
	Store           []string      `mapstructure:"store"`
	Output          string        `mapstructure:"output"`
	TimestampLayout string        `mapstructure:"timestamp_layout"`
	MetricsPort     int           `mapstructure:"metrics_port"`
	LogLevel        string        `mapstructure:"log_level"`
	LogFormat       string        `mapstructure:"log_format"`
}

// New returns a viper instance with defaults and environment overrides set up.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault("relays", []string{})
	v.SetDefault("relays_file", "")
	v.SetDefault("timeout", fetch.DefaultTimeout)
	v.SetDefault("fingerprint", string(fingerprint.ProfileGo))
	v.SetDefault("user_agents", []string{})
	v.SetDefault("rate", 0.0)
	v.SetDefault("jitter", 0.0)
	v.SetDefault("store", []string{})
	v.SetDefault("output", export.DefaultFilename)
	v.SetDefault("timestamp_layout", export.DefaultTimestampLayout)
	v.SetDefault("metrics_port", 0)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	return v
}

// ReadFile loads path into v. With an empty path it looks for reelcheck.yaml
// in the working directory and carries on without one.
func ReadFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("reelcheck")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// Load decodes v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the fetcher, runner or store cannot work with.
func (c *Config) Validate() error {
	var errs []error
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %s", c.Timeout))
	}
	if c.Rate < 0 {
		errs = append(errs, fmt.Errorf("rate must not be negative, got %v", c.Rate))
	}
	if c.Jitter < 0 || c.Jitter > 1 {
		errs = append(errs, fmt.Errorf("jitter must be within [0,1], got %v", c.Jitter))
	}
	if _, err := fingerprint.ParseProfile(c.Fingerprint); err != nil {
		errs = append(errs, err)
	}
	for _, dsn := range c.Store {
		if _, _, err := parseStore(dsn); err != nil {
			errs = append(errs, err)
		}
	}
	if c.MetricsPort < 0 || c.MetricsPort > 65535 {
		errs = append(errs, fmt.Errorf("metrics_port out of range: %d", c.MetricsPort))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// RelayList builds the relay list from the configured templates and relay
// file, falling back to relay.DefaultTemplates when neither names any.
func (c *Config) RelayList() (*relay.List, error) {
	list, err := relay.NewList(c.Relays...)
	if err != nil {
		return nil, err
	}
	if c.RelaysFile != "" {
		if err := list.LoadFile(c.RelaysFile); err != nil {
			return nil, err
		}
	}
	if list.Len() == 0 {
		if c.RelaysFile != "" {
			return nil, fmt.Errorf("relay file %s lists no relays", c.RelaysFile)
		}
		return relay.Default(), nil
	}
	return list, nil
}

type storeKind int

const (
	storeNone storeKind = iota
	storeSQLite
	storePostgres
	storeJSON
)

func parseStore(dsn string) (storeKind, string, error) {
	if dsn == "" {
		return storeNone, "", nil
	}
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		return 0, "", fmt.Errorf("store %q: expected scheme://location", dsn)
	}
	switch strings.ToLower(scheme) {
	case "sqlite":
		return storeSQLite, rest, nil
	case "postgres", "postgresql":
		// pgx wants the full URL
		return storePostgres, dsn, nil
	case "json":
		return storeJSON, rest, nil
	}
	return 0, "", fmt.Errorf("store %q: unknown scheme %q (want sqlite, postgres or json)", dsn, scheme)
}

// OpenStore opens the backends named by dsns. Several backends are combined
// with storage.Multi; no dsns returns a nil Backend.
func OpenStore(ctx context.Context, dsns ...string) (storage.Backend, error) {
	var backends []storage.Backend
	for _, dsn := range dsns {
		b, err := openOne(ctx, dsn)
		if err != nil {
			for _, opened := range backends {
				_ = opened.Close()
			}
			return nil, err
		}
		if b != nil {
			backends = append(backends, b)
		}
	}

	switch len(backends) {
	case 0:
		return nil, nil
	case 1:
		return backends[0], nil
	}
	return storage.Multi(backends...), nil
}

func openOne(ctx context.Context, dsn string) (storage.Backend, error) {
	kind, location, err := parseStore(dsn)
	if err != nil {
		return nil, err
	}
	switch kind {
	case storeSQLite:
		return sqlite.New(location)
	case storePostgres:
		return postgres.New(ctx, location)
	case storeJSON:
		return jsonbackend.New(location)
	}
	return nil, nil
}
