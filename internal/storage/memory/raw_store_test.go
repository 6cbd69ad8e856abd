package memory

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/vacancy"
)

func doc(id string) vacancy.RawDocument {
	return vacancy.RawDocument{
		ID:             id,
		Body:           json.RawMessage(`{"id": "` + id + `"}`),
		FetchedAt:      time.Unix(0, 0),
		SourceRegionID: 1061,
	}
}

func TestRawStoreUniqueIndex(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewRawStore()
	require.NoError(t, s.EnsureUniqueID(ctx))
	require.ErrorIs(t, s.EnsureUniqueID(ctx), vacancy.ErrIndexExists)

	res, err := s.InsertMany(ctx, []vacancy.RawDocument{doc("1"), doc("2"), doc("1")})
	require.NoError(t, err)
	require.Equal(t, vacancy.InsertResult{Inserted: 2, Duplicates: 1}, res)

	res, err = s.InsertMany(ctx, []vacancy.RawDocument{doc("2"), doc("3")})
	require.NoError(t, err)
	require.Equal(t, vacancy.InsertResult{Inserted: 1, Duplicates: 1}, res)
	require.Equal(t, 3, s.Len())
}

func TestRawStoreWithoutIndexKeepsDuplicates(t *testing.T) {
	t.Parallel()

	s := NewRawStore()
	res, err := s.InsertMany(context.Background(), []vacancy.RawDocument{doc("1"), doc("1")})
	require.NoError(t, err)
	require.Equal(t, 2, res.Inserted)
	require.Equal(t, 2, s.Len())
}

func TestRawStoreInsertionErrorDoesNotBlockOthers(t *testing.T) {
	t.Parallel()

	s := NewRawStore()
	bad := vacancy.RawDocument{ID: "bad", Body: json.RawMessage(`"nope"`)}
	res, err := s.InsertMany(context.Background(), []vacancy.RawDocument{doc("1"), bad, doc("2")})

	var insErr *vacancy.InsertionError
	require.True(t, errors.As(err, &insErr))
	require.Equal(t, 1, insErr.Failed)
	require.Equal(t, 2, res.Inserted)
}

func TestRawStoreWipeAndScan(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewRawStore()
	require.NoError(t, s.EnsureUniqueID(ctx))
	_, err := s.InsertMany(ctx, []vacancy.RawDocument{doc("1"), doc("2")})
	require.NoError(t, err)

	var ids []string
	require.NoError(t, s.Scan(ctx, func(raw json.RawMessage) error {
		var v struct {
			ID       string `json:"id"`
			RegionID int    `json:"_source_region_id"`
		}
		require.NoError(t, json.Unmarshal(raw, &v))
		require.Equal(t, 1061, v.RegionID)
		ids = append(ids, v.ID)
		return nil
	}))
	require.Equal(t, []string{"1", "2"}, ids)

	n, err := s.Wipe(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)
	require.Zero(t, s.Len())

	res, err := s.InsertMany(ctx, []vacancy.RawDocument{doc("1"), doc("1")})
	require.NoError(t, err)
	require.Equal(t, vacancy.InsertResult{Inserted: 1, Duplicates: 1}, res, "index survives a wipe")
}

func TestRawStoreConcurrentInserts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewRawStore()
	require.NoError(t, s.EnsureUniqueID(ctx))

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.InsertMany(ctx, []vacancy.RawDocument{doc("a"), doc("b"), doc("c")})
			require.NoError(t, err)
		}()
	}
	wg.Wait()
	require.Equal(t, 3, s.Len())
}
