package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublisherRecordsMessages(t *testing.T) {
	t.Parallel()

	pub := New()
	id, err := pub.Publish(context.Background(), "vacancy-runs", map[string]int{"total": 10})
	require.NoError(t, err)
	require.Equal(t, "memory-1", id)

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "vacancy-runs", msgs[0].Topic)

	msgs[0].Topic = "modified"
	require.Equal(t, "vacancy-runs", pub.Messages()[0].Topic)
}

func TestPublisherInjectedError(t *testing.T) {
	t.Parallel()

	pub := New()
	pub.Err = errors.New("topic not found")
	_, err := pub.Publish(context.Background(), "vacancy-runs", nil)
	require.Error(t, err)
	require.Empty(t, pub.Messages())
}
