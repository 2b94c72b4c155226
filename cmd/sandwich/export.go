package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sandwichScope/internal/storage"
	"sandwichScope/internal/storage/clickhouse"
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export persisted sandwiches of a pair to JSONL or ClickHouse",
		RunE:  runExport,
	}
	cmd.Flags().String("blockchain", "", "chain id from the registry")
	cmd.Flags().String("pair", "", "pair contract address")
	cmd.Flags().Uint64("from", 0, "first block (inclusive)")
	cmd.Flags().Uint64("to", 0, "last block (inclusive)")
	cmd.Flags().String("format", "jsonl", "export target (jsonl, clickhouse)")
	cmd.Flags().String("out", "./data/sandwiches.jsonl", "output JSONL path")
	cmd.Flags().String("clickhouse-addr", "", "ClickHouse native address host:port")
	cmd.Flags().String("clickhouse-database", "default", "ClickHouse database")
	cmd.Flags().String("clickhouse-username", "default", "ClickHouse username")
	cmd.Flags().String("clickhouse-password", "", "ClickHouse password")
	return cmd
}

func runExport(cmd *cobra.Command, _ []string) error {
	chainID, address, err := pairArgs(cmd)
	if err != nil {
		return err
	}
	from, _ := cmd.Flags().GetUint64("from")
	to, _ := cmd.Flags().GetUint64("to")
	format, _ := cmd.Flags().GetString("format")
	out, _ := cmd.Flags().GetString("out")

	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.connect(ctx); err != nil {
		return err
	}

	exp, err := openExporter(ctx, a, format, out)
	if err != nil {
		return err
	}
	defer exp.Close()

	n, err := a.svc.Export(ctx, chainID, address, from, to, exp)
	if err != nil {
		return err
	}
	a.logger.Info("export done",
		zap.String("format", format),
		zap.Uint64("from", from),
		zap.Uint64("to", to),
		zap.Int("sandwiches", n),
	)
	return nil
}

func openExporter(ctx context.Context, a *app, format, out string) (storage.Exporter, error) {
	switch format {
	case "jsonl":
		return storage.NewJsonlExporter(out), nil
	case "clickhouse":
		exp, err := clickhouse.Open(ctx, clickhouse.Options{
			Addr:     a.cfg.ClickHouse.Addr,
			Database: a.cfg.ClickHouse.Database,
			Username: a.cfg.ClickHouse.Username,
			Password: a.cfg.ClickHouse.Password,
		})
		if err != nil {
			return nil, err
		}
		if err := exp.CreateTables(ctx); err != nil {
			_ = exp.Close()
			return nil, err
		}
		return exp, nil
	default:
		return nil, fmt.Errorf("unsupported export format: %q", format)
	}
}
