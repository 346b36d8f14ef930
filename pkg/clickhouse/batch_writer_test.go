package clickhouse

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskstrat/pkg/errors"
)

type recorder struct {
	mu      sync.Mutex
	batches [][]int
	err     error
}

func (r *recorder) flush(ctx context.Context, batch []int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.batches = append(r.batches, batch)
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

func TestBatchWriter_FlushOnMaxSize(t *testing.T) {
	rec := &recorder{}
	bw := NewBatchWriter(BatchWriterConfig[int]{
		FlushFunc:    rec.flush,
		TableName:    "prediction_history",
		MaxBatchSize: 3,
		MaxAge:       time.Hour,
	})
	ctx := context.Background()

	require.NoError(t, bw.Add(ctx, 1, 2))
	assert.Equal(t, 0, rec.count())
	require.NoError(t, bw.Add(ctx, 3))

	require.Equal(t, 1, rec.count())
	assert.Equal(t, []int{1, 2, 3}, rec.batches[0])
	assert.Equal(t, 0, bw.BufferSize())
}

func TestBatchWriter_FlushOnTimer(t *testing.T) {
	rec := &recorder{}
	bw := NewBatchWriter(BatchWriterConfig[int]{
		FlushFunc:    rec.flush,
		MaxBatchSize: 100,
		MaxAge:       50 * time.Millisecond,
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bw.Start(ctx)
	require.NoError(t, bw.Add(ctx, 7))

	assert.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 10*time.Millisecond)
	require.NoError(t, bw.Stop(context.Background()))
}

func TestBatchWriter_StopFlushesRemainder(t *testing.T) {
	rec := &recorder{}
	bw := NewBatchWriter(BatchWriterConfig[int]{FlushFunc: rec.flush, MaxAge: time.Hour})
	ctx := context.Background()

	bw.Start(ctx)
	require.NoError(t, bw.Add(ctx, 1, 2, 3, 4))
	require.NoError(t, bw.Stop(ctx))

	require.Equal(t, 1, rec.count())
	assert.Len(t, rec.batches[0], 4)
}

func TestBatchWriter_FailedFlushDropsBatch(t *testing.T) {
	rec := &recorder{err: errors.ErrUnavailable}
	bw := NewBatchWriter(BatchWriterConfig[int]{FlushFunc: rec.flush, MaxBatchSize: 2})

	err := bw.Add(context.Background(), 1, 2)
	assert.ErrorIs(t, err, errors.ErrUnavailable)
	assert.Equal(t, 0, bw.BufferSize())
}
