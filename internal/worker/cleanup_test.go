package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesour/brick-offers-sub004/internal/config"
	"github.com/mesour/brick-offers-sub004/internal/domain"
)

type fakeCleanupStore struct {
	failedRows   int64
	snapshotRows int64
	failedCalls  int
}

func (f *fakeCleanupStore) DeleteOldFailedJobs(_ context.Context, _ string, _ time.Time, batch int) (int64, error) {
	f.failedCalls++
	n := f.failedRows
	if n > int64(batch) {
		n = int64(batch)
	}
	f.failedRows -= n
	return n, nil
}

func (f *fakeCleanupStore) DeleteOldSnapshots(_ context.Context, _ time.Time, batch int) (int64, error) {
	n := f.snapshotRows
	if n > int64(batch) {
		n = int64(batch)
	}
	f.snapshotRows -= n
	return n, nil
}

type fakePurger struct{ rows int64 }

func (f *fakePurger) PurgeOlderThan(_ context.Context, _ time.Time, batch int) (int64, error) {
	n := f.rows
	if n > int64(batch) {
		n = int64(batch)
	}
	f.rows -= n
	return n, nil
}

func testCleanupConfig() config.CleanupConfig {
	return config.CleanupConfig{
		FailedJobRetentionDays: 30,
		EmailLogRetentionDays:  180,
		SnapshotRetentionDays:  365,
		BatchSize:              100,
	}
}

func TestCleanerDrainsInBatches(t *testing.T) {
	store := &fakeCleanupStore{failedRows: 250}
	c := NewCleaner(store, &fakePurger{}, testCleanupConfig())

	err := c.Run(context.Background(), CleanupTargetFailedJobs)
	require.NoError(t, err)

	assert.Equal(t, int64(0), store.failedRows)
	// 100 + 100 + 50: the short batch stops the loop
	assert.Equal(t, 3, store.failedCalls)
}

func TestCleanerRunsAllTargetsByDefault(t *testing.T) {
	store := &fakeCleanupStore{failedRows: 10, snapshotRows: 10}
	purger := &fakePurger{rows: 10}
	c := NewCleaner(store, purger, testCleanupConfig())

	err := c.Run(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, int64(0), store.failedRows)
	assert.Equal(t, int64(0), store.snapshotRows)
	assert.Equal(t, int64(0), purger.rows)
}

func TestCleanerUnknownTargetIsPermanent(t *testing.T) {
	c := NewCleaner(&fakeCleanupStore{}, &fakePurger{}, testCleanupConfig())

	err := c.Run(context.Background(), "everything")
	require.Error(t, err)
	assert.Equal(t, domain.KindPermanentFailure, domain.KindOf(err))
	assert.False(t, domain.IsRetryable(err))
}
