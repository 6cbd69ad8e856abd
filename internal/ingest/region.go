// Package ingest fetches every configured region into the raw store.
package ingest

import (
	"context"
	"errors"
	"strconv"

	"go.uber.org/zap"

	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/metrics"
	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/vacancy"
)

// DefaultMaxPages mirrors the API's pagination ceiling of 2000 results at
// 100 items per page.
const DefaultMaxPages = 20

// RegionFetcher walks the pages of one region in order and stores every
// non-archived item. It implements vacancy.RegionFetcher.
type RegionFetcher struct {
	api      vacancy.PageFetcher
	store    vacancy.RawStore
	pacer    vacancy.Pacer
	clock    vacancy.Clock
	maxPages int
	logger   *zap.Logger
}

// NewRegionFetcher builds a RegionFetcher. pacer may be nil.
func NewRegionFetcher(
	api vacancy.PageFetcher,
	store vacancy.RawStore,
	pacer vacancy.Pacer,
	clock vacancy.Clock,
	maxPages int,
	logger *zap.Logger,
) *RegionFetcher {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegionFetcher{
		api:      api,
		store:    store,
		pacer:    pacer,
		clock:    clock,
		maxPages: maxPages,
		logger:   logger,
	}
}

// FetchRegion returns the number of newly inserted documents. A failed page
// request ends the region without retry; the count so far is returned with
// the request error. Insertion failures are logged and never end the region.
func (f *RegionFetcher) FetchRegion(ctx context.Context, task vacancy.RegionTask) (int, error) {
	key := strconv.Itoa(task.RegionID)
	log := f.logger.With(zap.Int("region_id", task.RegionID))
	count := 0
	if r, ok := f.pacer.(forgetter); ok {
		defer r.Forget(key)
	}

	for page := 0; page < f.maxPages; page++ {
		if f.pacer != nil {
			if err := f.pacer.Wait(ctx, key); err != nil {
				return count, err
			}
		}

		result, err := f.api.FetchPage(ctx, task.RegionID, page)
		if err != nil {
			log.Warn("page request failed, abandoning region",
				zap.Int("page", page),
				zap.Int("stored", count),
				zap.Error(err),
			)
			return count, err
		}
		if len(result.Items) == 0 {
			break
		}

		docs, archived := f.stamp(task, result.Items)
		metrics.ObserveArchived(task.RegionID, archived)
		if len(docs) > 0 {
			inserted, err := f.store.InsertMany(ctx, docs)
			count += inserted.Inserted
			metrics.ObserveInsert(task.RegionID, inserted.Inserted, inserted.Duplicates)
			if err != nil {
				var insErr *vacancy.InsertionError
				if errors.As(err, &insErr) {
					log.Error("documents failed to insert", zap.Int("page", page), zap.Int("failed", insErr.Failed), zap.Error(err))
				} else {
					log.Error("bulk insert failed", zap.Int("page", page), zap.Error(err))
				}
			}
			log.Debug("page stored",
				zap.Int("page", page),
				zap.Int("inserted", inserted.Inserted),
				zap.Int("duplicates", inserted.Duplicates),
				zap.Int("archived", archived),
			)
		}

		if f.pacer != nil {
			f.pacer.Done(key)
		}
		if page >= result.Pages-1 {
			break
		}
	}
	return count, nil
}

// forgetter is implemented by pacers that keep per-key state.
type forgetter interface {
	Forget(key string)
}

func (f *RegionFetcher) stamp(task vacancy.RegionTask, items []vacancy.RawDocument) ([]vacancy.RawDocument, int) {
	now := f.clock.Now()
	docs := make([]vacancy.RawDocument, 0, len(items))
	archived := 0
	for _, item := range items {
		if item.Archived {
			archived++
			continue
		}
		item.FetchedAt = now
		item.SourceRegionID = task.RegionID
		item.RunID = task.RunID
		docs = append(docs, item)
	}
	return docs, archived
}
