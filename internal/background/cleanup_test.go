package background

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakePurger struct {
	calls atomic.Int32
	err   error
	n     int64
}

func (f *fakePurger) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	f.calls.Add(1)
	return f.n, f.err
}

type fakeRecorder struct {
	mu     sync.Mutex
	purged int64
	errs   int
}

func (f *fakeRecorder) RecordCleanup(purged int64, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.errs++
		return
	}
	f.purged += purged
}

func runManager(cm *CleanupManager, ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		cm.Start(ctx)
	}()
	return done
}

func TestCleanupManager_RunsImmediatelyAndStops(t *testing.T) {
	purger := &fakePurger{n: 4}
	recorder := &fakeRecorder{}
	cm := NewCleanupManager(purger, recorder, slog.Default(), time.Hour)

	done := runManager(cm, context.Background())
	require.Eventually(t, func() bool { return purger.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	cm.Stop()
	cm.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup manager did not stop")
	}

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	assert.Equal(t, int64(4), recorder.purged)
}

func TestCleanupManager_TicksUntilContextCancelled(t *testing.T) {
	purger := &fakePurger{}
	cm := NewCleanupManager(purger, nil, slog.Default(), 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	done := runManager(cm, ctx)
	require.Eventually(t, func() bool { return purger.calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestCleanupManager_RecordsFailures(t *testing.T) {
	purger := &fakePurger{err: errors.New("db down")}
	recorder := &fakeRecorder{}
	cm := NewCleanupManager(purger, recorder, slog.Default(), time.Hour)

	done := runManager(cm, context.Background())
	require.Eventually(t, func() bool { return purger.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	cm.Stop()
	<-done

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	assert.Equal(t, 1, recorder.errs)
}
