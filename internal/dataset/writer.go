// Package dataset persists the flat vacancy table as a Parquet file.
package dataset

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"
	"go.uber.org/zap"

	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/hash/sha256"
	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/vacancy"
)

// WriteResult describes a dataset that was written.
type WriteResult struct {
	Path   string
	Rows   int
	SHA256 string
	Bytes  int64
}

// Writer replaces the dataset file at a fixed path.
type Writer struct {
	path   string
	logger *zap.Logger
}

// NewWriter builds a Writer for path.
func NewWriter(path string, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{path: path, logger: logger}
}

// Write stores rows in a temporary file next to the target and renames it
// into place, so readers see either the previous file or the complete new
// one. Failures are returned as *vacancy.PersistenceError.
func (w *Writer) Write(ctx context.Context, rows []vacancy.FlatVacancy) (WriteResult, error) {
	path, err := filepath.Abs(w.path)
	if err != nil {
		return WriteResult{}, &vacancy.PersistenceError{Path: w.path, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return WriteResult{}, &vacancy.PersistenceError{Path: path, Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return WriteResult{}, &vacancy.PersistenceError{Path: path, Err: err}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return WriteResult{}, &vacancy.PersistenceError{Path: path, Err: err}
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if err := writeRows(tmp, rows); err != nil {
		_ = tmp.Close()
		return WriteResult{}, &vacancy.PersistenceError{Path: path, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return WriteResult{}, &vacancy.PersistenceError{Path: path, Err: fmt.Errorf("sync: %w", err)}
	}
	if err := tmp.Close(); err != nil {
		return WriteResult{}, &vacancy.PersistenceError{Path: path, Err: fmt.Errorf("close: %w", err)}
	}
	if err := os.Rename(tmpName, path); err != nil {
		return WriteResult{}, &vacancy.PersistenceError{Path: path, Err: fmt.Errorf("rename: %w", err)}
	}
	committed = true

	sum, size, err := sha256.File(path)
	if err != nil {
		return WriteResult{}, &vacancy.PersistenceError{Path: path, Err: err}
	}
	w.logger.Info("dataset written",
		zap.String("path", path),
		zap.Int("rows", len(rows)),
		zap.Int64("bytes", size),
		zap.String("sha256", sum),
	)
	return WriteResult{Path: path, Rows: len(rows), SHA256: sum, Bytes: size}, nil
}

func writeRows(f *os.File, rows []vacancy.FlatVacancy) error {
	pw := parquet.NewGenericWriter[vacancy.FlatVacancy](f)
	if _, err := pw.Write(rows); err != nil {
		_ = pw.Close()
		return fmt.Errorf("write rows: %w", err)
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("finish parquet file: %w", err)
	}
	return nil
}

// Read loads every row of a dataset file.
func Read(path string) ([]vacancy.FlatVacancy, error) {
	rows, err := parquet.ReadFile[vacancy.FlatVacancy](path)
	if err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", path, err)
	}
	return rows, nil
}
