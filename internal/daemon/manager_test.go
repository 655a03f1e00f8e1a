package daemon

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/timelit/timelit/internal/config"
	"github.com/timelit/timelit/internal/monitor"
	"github.com/timelit/timelit/internal/recorder"
	"github.com/timelit/timelit/internal/storage"
)

// fakeSampler emits a fixed identity with timestamps one second apart,
// regardless of how fast the loop polls.
type fakeSampler struct {
	calls  atomic.Int64
	baseTS int64
}

func (f *fakeSampler) Capture(ctx context.Context) monitor.Sample {
	n := f.calls.Add(1)
	createTime := int64(7)
	return monitor.Sample{
		TS:   f.baseTS + n,
		Kind: monitor.KindActive,
		Window: monitor.ActiveWindow{
			PID:           42,
			PIDCreateTime: &createTime,
			ExeName:       "code",
			ProcessPath:   "/usr/bin/code",
			WindowTitle:   "main.go - code",
		},
	}
}

func newTestManager(t *testing.T) (*Manager, *fakeSampler, *storage.Store) {
	t.Helper()

	store, err := storage.Open(filepath.Join(t.TempDir(), "timelit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := config.DefaultConfig()
	cfg.PollIntervalMS = 5

	sampler := &fakeSampler{baseTS: time.Now().Unix() - 3600}
	rec := recorder.New(store, 0)
	return NewManager(cfg, sampler, rec), sampler, store
}

func TestManagerSamplesAndFlushesOnStop(t *testing.T) {
	manager, sampler, store := newTestManager(t)

	manager.Start(context.Background())
	time.Sleep(60 * time.Millisecond)
	manager.Stop()

	require.Greater(t, sampler.calls.Load(), int64(2))

	rows, err := store.SegmentsByRange(0, 1<<62)
	require.NoError(t, err)
	require.Len(t, rows, 1, "constant identity consolidates into one segment")
	require.EqualValues(t, sampler.baseTS+1, rows[0].StartTS)
}

func TestManagerStopIsIdempotent(t *testing.T) {
	manager, _, store := newTestManager(t)

	manager.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	manager.Stop()
	manager.Stop()

	rows, err := store.SegmentsByRange(0, 1<<62)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestLockRejectsSecondInstance(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timelit.db.lock")

	first, err := AcquireLock(path)
	require.NoError(t, err)

	_, err = AcquireLock(path)
	require.ErrorIs(t, err, ErrAlreadyRunning)

	first.Release()

	second, err := AcquireLock(path)
	require.NoError(t, err)
	second.Release()
}
