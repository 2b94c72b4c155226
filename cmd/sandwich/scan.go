package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sandwichScope/internal/service"
)

func newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan a pair's history below a block and print the sandwiches found",
		RunE:  runScan,
	}
	cmd.Flags().String("blockchain", "", "chain id from the registry")
	cmd.Flags().String("pair", "", "pair contract address")
	cmd.Flags().Uint64("before", 0, "newest block of the window, 0 means latest")
	return cmd
}

func newPairCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pair",
		Short: "Resolve and register a pair, then print it",
		RunE:  runPair,
	}
	cmd.Flags().String("blockchain", "", "chain id from the registry")
	cmd.Flags().String("pair", "", "pair contract address")
	return cmd
}

func pairArgs(cmd *cobra.Command) (string, string, error) {
	chainID, _ := cmd.Flags().GetString("blockchain")
	address, _ := cmd.Flags().GetString("pair")
	if chainID == "" || address == "" {
		return "", "", fmt.Errorf("--blockchain and --pair are required")
	}
	return chainID, address, nil
}

func runScan(cmd *cobra.Command, _ []string) error {
	chainID, address, err := pairArgs(cmd)
	if err != nil {
		return err
	}
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

	var before *uint64
	if n, _ := cmd.Flags().GetUint64("before"); n > 0 {
		before = &n
	}
	result, err := a.svc.Scan(ctx, chainID, address, before)
	if err != nil {
		a.logger.Error("scan failed", zap.Error(err))
		return errors.New(service.UserMessage(err))
	}

	a.logger.Info("scan done",
		zap.String("pair", result.Pair.Pair.Address),
		zap.Uint64("from", result.From),
		zap.Uint64("to", result.To),
		zap.String("status", string(result.Status)),
		zap.Int("sandwiches", len(result.Sandwiches)),
	)
	return printJSON(result)
}

func runPair(cmd *cobra.Command, _ []string) error {
	chainID, address, err := pairArgs(cmd)
	if err != nil {
		return err
	}
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
	info, err := a.svc.Pair(ctx, chainID, address)
	if err != nil {
		a.logger.Error("pair lookup failed", zap.Error(err))
		return errors.New(service.UserMessage(err))
	}
	return printJSON(info)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
