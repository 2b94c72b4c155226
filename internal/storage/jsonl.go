package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"sandwichScope/internal/model"
)

// ExportRecord is one JSONL line: a sandwich with its pair context.
type ExportRecord struct {
	ChainID     string `json:"chain_id"`
	PairAddress string `json:"pair_address"`
	model.Sandwich
}

// JsonlExporter appends sandwiches to a JSONL file.
type JsonlExporter struct {
	path string
	mu   sync.Mutex
}

func NewJsonlExporter(path string) *JsonlExporter {
	return &JsonlExporter{path: path}
}

// ExportSandwiches appends one line per sandwich.
func (e *JsonlExporter) ExportSandwiches(_ context.Context, pair model.Pair, sandwiches []model.Sandwich) error {
	if len(sandwiches) == 0 {
		return nil
	}

	dir := filepath.Dir(e.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	file, err := os.OpenFile(e.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, sw := range sandwiches {
		line, err := json.Marshal(ExportRecord{ChainID: pair.ChainID, PairAddress: pair.Address, Sandwich: sw})
		if err != nil {
			return fmt.Errorf("marshal sandwich: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write sandwich: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}

func (e *JsonlExporter) Close() error { return nil }
