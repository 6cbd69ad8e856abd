package vacancy

import (
	"context"
	"encoding/json"
	"time"
)

// RawStore is the document store holding unprocessed API items. Implementations
// must be safe for concurrent use by every ingestion worker.
type RawStore interface {
	// Wipe deletes every document and returns how many were removed.
	Wipe(ctx context.Context) (int64, error)
	// EnsureUniqueID creates the unique index on the identifier field.
	EnsureUniqueID(ctx context.Context) error
	// InsertMany performs an unordered bulk insert: one failing document never
	// blocks the others. Duplicate identifiers are counted, not returned as errors.
	InsertMany(ctx context.Context, docs []RawDocument) (InsertResult, error)
	// Scan streams every stored document, with the store's internal
	// identifier removed, to fn in unspecified order.
	Scan(ctx context.Context, fn func(doc json.RawMessage) error) error
	Close(ctx context.Context) error
}

// PageFetcher fetches one page of vacancies for a region.
type PageFetcher interface {
	FetchPage(ctx context.Context, regionID, page int) (Page, error)
}

// RegionFetcher ingests every page of one region and returns the number of
// newly stored documents.
type RegionFetcher interface {
	FetchRegion(ctx context.Context, task RegionTask) (int, error)
}

// Pacer spaces consecutive requests that share a key. Wait blocks until the
// next request may start; Done marks the end of the current one, and the
// delay is measured from that point.
type Pacer interface {
	Wait(ctx context.Context, key string) error
	Done(key string)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// Publisher pushes run notifications to Pub/Sub (or similar). Implementations
// bound to a single topic reject any other.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Locker guards a full-refresh run against concurrent runs.
type Locker interface {
	Acquire(ctx context.Context) (release func(context.Context) error, err error)
}
