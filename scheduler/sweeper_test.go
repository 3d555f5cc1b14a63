package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRetentionStore struct {
	mu      sync.Mutex
	expired int
	err     error
	calls   int
}

func (f *fakeRetentionStore) DeleteExpiredPage(ctx context.Context, cutoff time.Time, pageSize int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	deleted := pageSize
	if f.expired < pageSize {
		deleted = f.expired
	}
	f.expired -= deleted
	return deleted, nil
}

func (f *fakeRetentionStore) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestSweepOnce_PagesUntilEmpty(t *testing.T) {
	st := &fakeRetentionStore{expired: 1250}
	sw := NewSweeper(st, time.Hour, 500, testLogger())

	total, err := sw.SweepOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1250, total)
	// 500 + 500 + 250; the short page ends the loop.
	assert.Equal(t, 3, st.callCount())
	assert.Zero(t, st.expired)
}

func TestSweepOnce_NothingExpired(t *testing.T) {
	st := &fakeRetentionStore{}
	sw := NewSweeper(st, time.Hour, 500, testLogger())

	total, err := sw.SweepOnce(context.Background())
	require.NoError(t, err)

	assert.Zero(t, total)
	assert.Equal(t, 1, st.callCount())
}

func TestSweepOnce_ExactPageBoundary(t *testing.T) {
	st := &fakeRetentionStore{expired: 1000}
	sw := NewSweeper(st, time.Hour, 500, testLogger())

	total, err := sw.SweepOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1000, total)
	// Two full pages plus one empty page to confirm completion.
	assert.Equal(t, 3, st.callCount())
}

func TestSweepOnce_PropagatesStoreError(t *testing.T) {
	st := &fakeRetentionStore{err: errors.New("connection refused")}
	sw := NewSweeper(st, time.Hour, 500, testLogger())

	_, err := sw.SweepOnce(context.Background())
	assert.ErrorIs(t, err, st.err)
}

func TestSweepOnce_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	st := &fakeRetentionStore{expired: 5000}
	sw := NewSweeper(st, time.Hour, 500, testLogger())

	_, err := sw.SweepOnce(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, st.callCount())
}

func TestSweeper_StartStop(t *testing.T) {
	st := &fakeRetentionStore{expired: 100}
	sw := NewSweeper(st, 10*time.Millisecond, 500, testLogger())

	sw.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	sw.Stop()

	assert.GreaterOrEqual(t, st.callCount(), 1)
}

func TestSweeper_StopWithoutStart(t *testing.T) {
	sw := NewSweeper(&fakeRetentionStore{}, time.Hour, 500, testLogger())
	sw.Stop()
	sw.Stop()
}
