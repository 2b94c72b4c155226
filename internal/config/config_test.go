package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestLoadDefaultsEnvAndFlags(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SANDWICH_MAX_WINDOW", "2500")
	t.Setenv("SANDWICH_STORE", "Memory")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log-level", "info", "")
	if err := flags.Parse([]string{"--log-level=debug"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := Load("", flags)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store != StoreMemory {
		t.Fatalf("store mismatch: %q", cfg.Store)
	}
	if cfg.Scan.MaxWindow != 2500 || cfg.Scan.InitialChunkSize != 100 || cfg.Scan.TargetEventsPerChunk != 300 {
		t.Fatalf("scan params mismatch: %+v", cfg.Scan)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("log level mismatch: %q", cfg.LogLevel)
	}
	if cfg.RPCRetryBackoff != 500*time.Millisecond {
		t.Fatalf("backoff mismatch: %s", cfg.RPCRetryBackoff)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sandwich.yaml")
	raw := "store: postgres\npg-dsn: postgres://app:secret@db:5432/sandwich\ninitial-chunk-size: 50\nmax-chunk-size: 40\n"
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path, nil); err == nil {
		t.Fatalf("expected initial > max chunk size to be rejected")
	}
}

func TestRedactDSN(t *testing.T) {
	got := RedactDSN("postgres://app:secret@db:5432/sandwich?sslmode=disable")
	if got != "postgres://app:***@db:5432/sandwich?sslmode=disable" {
		t.Fatalf("redact mismatch: %s", got)
	}
	if RedactDSN("host=db password=secret") != "***" {
		t.Fatalf("keyword dsn should be fully redacted")
	}
}
