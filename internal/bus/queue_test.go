package bus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/schema"
)

func TestTryPublishFullQueue(t *testing.T) {
	q := NewQueue(2)

	require.NoError(t, q.TryPublish(Event{Header: schema.EventHeader{Seq: 1}}))
	require.NoError(t, q.TryPublish(Event{Header: schema.EventHeader{Seq: 2}}))
	assert.Equal(t, 2, q.Len())

	err := q.TryPublish(Event{Header: schema.EventHeader{Seq: 3}})
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestTryPublishAfterClose(t *testing.T) {
	q := NewQueue(1)
	q.Close()
	q.Close() // idempotent

	err := q.TryPublish(Event{})
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestRunDrainsBufferedEventsOnClose(t *testing.T) {
	q := NewQueue(8)
	for i := 1; i <= 5; i++ {
		require.NoError(t, q.TryPublish(Event{Header: schema.EventHeader{Seq: uint64(i)}}))
	}
	q.Close()

	var seqs []uint64
	q.Run(context.Background(), func(e Event) {
		seqs = append(seqs, e.Header.Seq)
	})

	assert.Equal(t, []uint64{1, 2, 3, 4, 5}, seqs)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	q := NewQueue(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		q.Run(ctx, func(Event) {})
		close(done)
	}()
	<-done
}
