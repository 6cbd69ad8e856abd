// Package mongo stores raw vacancy documents in a MongoDB collection.
package mongo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/vacancy"
)

// IndexName is the name of the unique index on the vacancy id.
const IndexName = "id_unique"

// Server error codes.
var (
	duplicateKeyCodes  = []int{11000, 11001, 12582}
	indexConflictCodes = []int{68, 85, 86}
)

// Config locates the raw collection.
type Config struct {
	URI        string
	Database   string
	Collection string
	Timeout    time.Duration
}

// RawStore implements vacancy.RawStore. The driver's client is pool-backed
// and safe for concurrent use by every ingestion worker.
type RawStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// New connects to MongoDB and verifies the primary is reachable.
func New(ctx context.Context, cfg Config) (*RawStore, error) {
	opts := options.Client().ApplyURI(cfg.URI).SetAppName("arctic-vacancy-pipeline")
	if cfg.Timeout > 0 {
		opts.SetTimeout(cfg.Timeout)
	}
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &RawStore{
		client: client,
		coll:   client.Database(cfg.Database).Collection(cfg.Collection),
	}, nil
}

// NewWithCollection wraps an existing collection (primarily for testing).
func NewWithCollection(coll *mongo.Collection) *RawStore {
	return &RawStore{coll: coll}
}

// Wipe deletes every document in the collection.
func (s *RawStore) Wipe(ctx context.Context) (int64, error) {
	res, err := s.coll.DeleteMany(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("wipe %s: %w", s.coll.Name(), err)
	}
	return res.DeletedCount, nil
}

// EnsureUniqueID creates the unique index on "id". An identical index is a
// silent no-op on the server; a conflicting one yields vacancy.ErrIndexExists.
func (s *RawStore) EnsureUniqueID(ctx context.Context) error {
	model := mongo.IndexModel{
		Keys:    bson.D{{Key: "id", Value: 1}},
		Options: options.Index().SetUnique(true).SetName(IndexName),
	}
	if _, err := s.coll.Indexes().CreateOne(ctx, model); err != nil {
		if hasCode(err, indexConflictCodes) {
			return fmt.Errorf("create index %s: %w", IndexName, vacancy.ErrIndexExists)
		}
		return fmt.Errorf("create index %s: %w", IndexName, err)
	}
	return nil
}

// InsertMany performs an unordered bulk insert. Duplicate-key write errors
// are counted; any other write error is reported as *vacancy.InsertionError.
func (s *RawStore) InsertMany(ctx context.Context, docs []vacancy.RawDocument) (vacancy.InsertResult, error) {
	var (
		result  vacancy.InsertResult
		failed  int
		first   error
		payload = make([]any, 0, len(docs))
	)
	for _, doc := range docs {
		d, err := toBSON(doc)
		if err != nil {
			failed++
			if first == nil {
				first = err
			}
			continue
		}
		payload = append(payload, d)
	}
	if len(payload) > 0 {
		_, err := s.coll.InsertMany(ctx, payload, options.InsertMany().SetOrdered(false))
		inserted, dups, writeFailed, writeErr := classifyInsert(len(payload), err)
		result.Inserted = inserted
		result.Duplicates = dups
		failed += writeFailed
		if first == nil {
			first = writeErr
		}
	}
	if failed > 0 {
		return result, &vacancy.InsertionError{Failed: failed, Err: first}
	}
	return result, nil
}

func classifyInsert(n int, err error) (inserted, dups, failed int, firstErr error) {
	if err == nil {
		return n, 0, 0, nil
	}
	var bwe mongo.BulkWriteException
	if !errors.As(err, &bwe) {
		return 0, 0, n, fmt.Errorf("insert many: %w", err)
	}
	for _, we := range bwe.WriteErrors {
		if slices.Contains(duplicateKeyCodes, we.Code) {
			dups++
			continue
		}
		failed++
		if firstErr == nil {
			firstErr = fmt.Errorf("insert document %d: %s (code %d)", we.Index, we.Message, we.Code)
		}
	}
	inserted = n - len(bwe.WriteErrors)
	if bwe.WriteConcernError != nil && firstErr == nil {
		firstErr = fmt.Errorf("insert many: write concern: %s", bwe.WriteConcernError.Message)
		failed += inserted
		inserted = 0
	}
	return inserted, dups, failed, firstErr
}

// Scan streams every document, with the internal _id projected out, as
// relaxed extended JSON.
func (s *RawStore) Scan(ctx context.Context, fn func(json.RawMessage) error) error {
	cursor, err := s.coll.Find(ctx, bson.D{}, options.Find().SetProjection(bson.D{{Key: "_id", Value: 0}}))
	if err != nil {
		return fmt.Errorf("scan %s: %w", s.coll.Name(), err)
	}
	defer func() { _ = cursor.Close(ctx) }()

	for cursor.Next(ctx) {
		out, err := bson.MarshalExtJSON(cursor.Current, false, false)
		if err != nil {
			return fmt.Errorf("render document: %w", err)
		}
		if err := fn(out); err != nil {
			return err
		}
	}
	if err := cursor.Err(); err != nil {
		return fmt.Errorf("scan %s: %w", s.coll.Name(), err)
	}
	return nil
}

// Close disconnects the client when the store owns it.
func (s *RawStore) Close(ctx context.Context) error {
	if s == nil || s.client == nil {
		return nil
	}
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect mongo: %w", err)
	}
	return nil
}

// toBSON converts the item JSON to a document and appends the ingestion stamps.
func toBSON(doc vacancy.RawDocument) (bson.D, error) {
	var d bson.D
	if err := bson.UnmarshalExtJSON(doc.Body, false, &d); err != nil {
		return nil, fmt.Errorf("convert vacancy %s: %w", doc.ID, err)
	}
	out := make(bson.D, 0, len(d)+3)
	for _, e := range d {
		switch e.Key {
		case "_id", vacancy.FieldFetchedAt, vacancy.FieldSourceRegionID, vacancy.FieldRunID:
			continue
		}
		out = append(out, e)
	}
	out = append(out,
		bson.E{Key: vacancy.FieldFetchedAt, Value: doc.FetchedAt.UTC()},
		bson.E{Key: vacancy.FieldSourceRegionID, Value: doc.SourceRegionID},
	)
	if doc.RunID != "" {
		out = append(out, bson.E{Key: vacancy.FieldRunID, Value: doc.RunID})
	}
	return out, nil
}

func hasCode(err error, codes []int) bool {
	var se mongo.ServerError
	if !errors.As(err, &se) {
		return false
	}
	for _, c := range codes {
		if se.HasErrorCode(c) {
			return true
		}
	}
	return false
}
