package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/id/uuid"
	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/vacancy"
)

func newTestLocker(t *testing.T, ttl time.Duration) (*Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewWithClient(client, "arctic:run", ttl, uuid.New()), mr
}

func TestAcquireAndRelease(t *testing.T) {
	t.Parallel()

	locker, mr := newTestLocker(t, time.Minute)
	ctx := context.Background()

	release, err := locker.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, mr.Exists("arctic:run"))
	require.Equal(t, time.Minute, mr.TTL("arctic:run"))

	_, err = locker.Acquire(ctx)
	require.ErrorIs(t, err, vacancy.ErrRunLocked)

	require.NoError(t, release(ctx))
	require.False(t, mr.Exists("arctic:run"))

	release, err = locker.Acquire(ctx)
	require.NoError(t, err)
	require.NoError(t, release(ctx))
}

func TestReleaseKeepsForeignLease(t *testing.T) {
	t.Parallel()

	locker, mr := newTestLocker(t, time.Minute)
	ctx := context.Background()

	release, err := locker.Acquire(ctx)
	require.NoError(t, err)

	// Lease expired and another run took over.
	mr.FastForward(2 * time.Minute)
	require.NoError(t, mr.Set("arctic:run", "other-run"))

	require.NoError(t, release(ctx))
	got, err := mr.Get("arctic:run")
	require.NoError(t, err)
	require.Equal(t, "other-run", got)
}

func TestNewRejectsBadURL(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), "not-a-url", "k", time.Minute, nil)
	require.ErrorContains(t, err, "parse redis url")
}

func TestNewPingsServer(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	locker, err := New(context.Background(), "redis://"+mr.Addr()+"/0", "k", 0, nil)
	require.NoError(t, err)
	defer locker.Close()
	require.Equal(t, DefaultTTL, locker.ttl)

	release, err := locker.Acquire(context.Background())
	require.NoError(t, err)
	require.NoError(t, release(context.Background()))
}

func TestNoop(t *testing.T) {
	t.Parallel()

	release, err := Noop{}.Acquire(context.Background())
	require.NoError(t, err)
	require.NoError(t, release(context.Background()))
}
