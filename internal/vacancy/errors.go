package vacancy

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTimeout marks a RequestError caused by the per-request deadline.
	ErrTimeout = errors.New("request timed out")
	// ErrIndexExists is returned when the unique identifier index is already
	// present (possibly with different options); callers treat it as benign.
	ErrIndexExists = errors.New("index already exists")
	// ErrEmptyDataset is returned by the transformer when the raw store holds
	// no documents. The pipeline stops before touching the output file.
	ErrEmptyDataset = errors.New("no raw vacancies to transform")
	// ErrRunLocked is returned when another pipeline run holds the run lock.
	ErrRunLocked = errors.New("another pipeline run is in progress")
	// ErrQueueClosed tells workers the task queue is drained and closed.
	ErrQueueClosed = errors.New("queue closed")
)

// RequestError describes a failed call to the vacancy API.
type RequestError struct {
	RegionID   int
	Page       int
	StatusCode int
	Timeout    bool
	Err        error
}

func (e *RequestError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "request region %d page %d", e.RegionID, e.Page)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Timeout {
		b.WriteString(": timed out")
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *RequestError) Unwrap() error { return e.Err }

// Is reports timeouts as ErrTimeout.
func (e *RequestError) Is(target error) bool {
	return target == ErrTimeout && e.Timeout
}

// InsertionError reports documents that failed to insert for reasons other
// than a duplicate key. Duplicates never surface as errors.
type InsertionError struct {
	Failed int
	Err    error
}

func (e *InsertionError) Error() string {
	return fmt.Sprintf("insert %d documents: %v", e.Failed, e.Err)
}

func (e *InsertionError) Unwrap() error { return e.Err }

// RegionTaskError wraps anything that escaped a region task.
type RegionTaskError struct {
	RegionID int
	Err      error
}

func (e *RegionTaskError) Error() string {
	return fmt.Sprintf("region %d: %v", e.RegionID, e.Err)
}

func (e *RegionTaskError) Unwrap() error { return e.Err }

// PersistenceError reports a failure writing the output dataset.
type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist dataset %s: %v", e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
