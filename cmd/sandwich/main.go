package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"sandwichScope/internal/chain"
	"sandwichScope/internal/config"
	"sandwichScope/internal/scanner"
	"sandwichScope/internal/service"
	"sandwichScope/internal/storage"
	"sandwichScope/internal/storage/memory"
	"sandwichScope/internal/storage/postgres"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	root := &cobra.Command{
		Use:          "sandwich",
		Short:        "Sandwich trade scanner for EVM AMM pairs",
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file path")
	flags.String("chains", "./chains.yaml", "chain registry YAML")
	flags.String("store", config.StorePostgres, "store backend (postgres, memory)")
	flags.String("pg-dsn", "", "Postgres DSN")
	flags.Uint64("initial-chunk-size", 100, "blocks in the first chunk of a scan")
	flags.Uint64("max-chunk-size", 2000, "maximum blocks per chunk")
	flags.Uint64("target-events-per-chunk", 300, "swap events a chunk should return")
	flags.Uint64("max-window", 10000, "maximum blocks per query window")
	flags.Int("rpc-max-retries", 5, "maximum retry attempts per RPC call")
	flags.Duration("rpc-retry-backoff", 500*time.Millisecond, "initial RPC retry backoff")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(newServeCmd(), newScanCmd(), newPairCmd(), newExportCmd(), newMigrateCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds what every subcommand shares once config is loaded.
type app struct {
	cfg      config.Config
	logger   *zap.Logger
	registry *config.Registry
	store    storage.Store
	clients  []*chain.Client
	svc      *service.Service
	jobs     *scanner.Jobs
}

func loadApp(cmd *cobra.Command) (*app, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: logger}, nil
}

// connect opens the store, one RPC client per registry chain, and the
// query service on top of them.
func (a *app) connect(ctx context.Context) error {
	registry, err := config.LoadRegistry(a.cfg.Chains)
	if err != nil {
		return err
	}
	a.registry = registry

	if a.store, err = openStore(ctx, a.cfg, a.logger); err != nil {
		return err
	}

	clients := make(map[string]service.ChainClient)
	for _, c := range registry.Chains() {
		client, err := chain.NewClient(ctx, c.RPC, chain.RetryOptions{
			MaxRetries: a.cfg.RPCMaxRetries,
			Backoff:    a.cfg.RPCRetryBackoff,
		})
		if err != nil {
			return fmt.Errorf("connect rpc for %s: %w", c.ID, err)
		}
		a.clients = append(a.clients, client)
		clients[c.ID] = client
		a.logger.Info("chain connected",
			zap.String("chain", c.ID),
			zap.Int("exchanges", len(c.Exchanges)),
			zap.Bool("data_aggregator", c.DataAggregator != ""),
		)
	}

	a.jobs = scanner.NewJobs(a.logger)
	a.svc, err = service.New(registry, clients, a.store, a.cfg.Scan, a.jobs, a.logger)
	return err
}

func (a *app) close() {
	if a.jobs != nil {
		a.jobs.Stop()
	}
	for _, c := range a.clients {
		c.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
	_ = a.logger.Sync()
}

func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (storage.Store, error) {
	switch cfg.Store {
	case config.StoreMemory:
		logger.Warn("using in-memory store; results are lost on exit")
		return memory.NewStore(), nil
	default:
		if cfg.PGDSN == "" {
			return nil, fmt.Errorf("pg-dsn is required for the postgres store")
		}
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, err
		}
		logger.Info("postgres connected", zap.String("dsn", config.RedactDSN(cfg.PGDSN)))
		return store, nil
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
