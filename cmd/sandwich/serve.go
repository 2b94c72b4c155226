package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sandwichScope/internal/api"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the pair and sandwich query API",
		RunE:  runServe,
	}
	cmd.Flags().String("listen", ":8080", "HTTP listen address")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
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

	a.logger.Info("serve start",
		zap.String("listen", a.cfg.Listen),
		zap.String("store", a.cfg.Store),
		zap.Uint64("max_window", a.cfg.Scan.MaxWindow),
	)
	server := api.NewServer(a.svc, a.jobs, a.logger)
	if err := server.Run(ctx, a.cfg.Listen); err != nil {
		return err
	}
	a.logger.Info("serve stopped", zap.Int64("active_jobs", a.jobs.Active()))
	return nil
}
