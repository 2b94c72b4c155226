package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	Chains          string
	Store           string
	PGDSN           string
	Listen          string
	Scan            ScanParams
	RPCMaxRetries   int
	RPCRetryBackoff time.Duration
	LogLevel        string
	ClickHouse      ClickHouseConfig
}

// ScanParams tunes the chunked scanner and the query window.
type ScanParams struct {
	InitialChunkSize     uint64 `yaml:"initial_chunk_size"`
	MaxChunkSize         uint64 `yaml:"max_chunk_size"`
	TargetEventsPerChunk uint64 `yaml:"target_events_per_chunk"`
	MaxWindow            uint64 `yaml:"max_window"`
}

// ClickHouseConfig locates the optional analytics export sink.
type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
}

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SANDWICH")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("chains", "./chains.yaml")
	v.SetDefault("store", StorePostgres)
	v.SetDefault("listen", ":8080")
	v.SetDefault("initial-chunk-size", uint64(100))
	v.SetDefault("max-chunk-size", uint64(2000))
	v.SetDefault("target-events-per-chunk", uint64(300))
	v.SetDefault("max-window", uint64(10000))
	v.SetDefault("rpc-max-retries", 5)
	v.SetDefault("rpc-retry-backoff", 500*time.Millisecond)
	v.SetDefault("log-level", "info")
	v.SetDefault("clickhouse-database", "default")
	v.SetDefault("clickhouse-username", "default")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		Chains: v.GetString("chains"),
		Store:  strings.ToLower(strings.TrimSpace(v.GetString("store"))),
		PGDSN:  v.GetString("pg-dsn"),
		Listen: v.GetString("listen"),
		Scan: ScanParams{
			InitialChunkSize:     v.GetUint64("initial-chunk-size"),
			MaxChunkSize:         v.GetUint64("max-chunk-size"),
			TargetEventsPerChunk: v.GetUint64("target-events-per-chunk"),
			MaxWindow:            v.GetUint64("max-window"),
		},
		RPCMaxRetries:   v.GetInt("rpc-max-retries"),
		RPCRetryBackoff: v.GetDuration("rpc-retry-backoff"),
		LogLevel:        v.GetString("log-level"),
		ClickHouse: ClickHouseConfig{
			Addr:     v.GetString("clickhouse-addr"),
			Database: v.GetString("clickhouse-database"),
			Username: v.GetString("clickhouse-username"),
			Password: v.GetString("clickhouse-password"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail deep inside a scan job.
func (c Config) Validate() error {
	switch c.Store {
	case StorePostgres, StoreMemory:
	default:
		return fmt.Errorf("unsupported store: %q", c.Store)
	}
	return c.Scan.Validate()
}

// Validate rejects zero sizes and an initial chunk larger than the maximum.
func (p ScanParams) Validate() error {
	if p.InitialChunkSize == 0 || p.MaxChunkSize == 0 || p.TargetEventsPerChunk == 0 || p.MaxWindow == 0 {
		return fmt.Errorf("scan params must be positive: %+v", p)
	}
	if p.InitialChunkSize > p.MaxChunkSize {
		return fmt.Errorf("initial-chunk-size %d exceeds max-chunk-size %d", p.InitialChunkSize, p.MaxChunkSize)
	}
	return nil
}

// RedactDSN hides the password of a postgres URL for logging.
func RedactDSN(dsn string) string {
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		return "***"
	}
	creds, host, ok := strings.Cut(rest, "@")
	if !ok {
		return dsn
	}
	user, _, _ := strings.Cut(creds, ":")
	return scheme + "://" + user + ":***@" + host
}
