// Package memory provides an in-memory raw vacancy store for development and tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/vacancy"
)

// RawStore keeps stamped documents in insertion order. Like a document
// collection, it only rejects duplicate ids after EnsureUniqueID was called.
type RawStore struct {
	mu     sync.RWMutex
	docs   []json.RawMessage
	ids    map[string]struct{}
	unique bool
}

// NewRawStore constructs an empty RawStore.
func NewRawStore() *RawStore {
	return &RawStore{ids: make(map[string]struct{})}
}

// Wipe removes every document. The unique index survives, as it would in a
// collection emptied with a delete-all.
func (s *RawStore) Wipe(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.docs))
	s.docs = nil
	s.ids = make(map[string]struct{})
	return n, nil
}

// EnsureUniqueID enables duplicate rejection.
func (s *RawStore) EnsureUniqueID(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unique {
		return vacancy.ErrIndexExists
	}
	s.unique = true
	return nil
}

// InsertMany stores every document whose id is new.
func (s *RawStore) InsertMany(_ context.Context, docs []vacancy.RawDocument) (vacancy.InsertResult, error) {
	var (
		result vacancy.InsertResult
		failed int
		first  error
	)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, doc := range docs {
		if _, dup := s.ids[doc.ID]; dup && s.unique {
			result.Duplicates++
			continue
		}
		stamped, err := doc.Stamped()
		if err != nil {
			failed++
			if first == nil {
				first = err
			}
			continue
		}
		s.docs = append(s.docs, stamped)
		s.ids[doc.ID] = struct{}{}
		result.Inserted++
	}
	if failed > 0 {
		return result, &vacancy.InsertionError{Failed: failed, Err: first}
	}
	return result, nil
}

// Scan passes a snapshot of every document to fn.
func (s *RawStore) Scan(ctx context.Context, fn func(json.RawMessage) error) error {
	s.mu.RLock()
	snapshot := append([]json.RawMessage(nil), s.docs...)
	s.mu.RUnlock()
	for _, doc := range snapshot {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("scan raw store: %w", err)
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
	return nil
}

// Len reports how many documents are stored.
func (s *RawStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Close is a no-op.
func (s *RawStore) Close(context.Context) error {
	return nil
}
