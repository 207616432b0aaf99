package delivery

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igrepost/pkg/logger"
	"igrepost/pkg/progress"
)

type recordingReporter struct {
	mu      sync.Mutex
	got     []progress.Update
	release chan struct{}
}

func (r *recordingReporter) Report(ctx context.Context, u progress.Update) {
	if r.release != nil {
		select {
		case <-r.release:
		case <-ctx.Done():
			return
		}
	}
	r.mu.Lock()
	r.got = append(r.got, u)
	r.mu.Unlock()
}

func (r *recordingReporter) statuses() []progress.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]progress.Status, len(r.got))
	for i, u := range r.got {
		out[i] = u.Status
	}
	return out
}

func TestQueuePreservesOrder(t *testing.T) {
	target := &recordingReporter{}
	q := NewQueue(target, 8, logger.NewNopLogger())
	q.Start()

	ctx := context.Background()
	q.Report(ctx, progress.NewUpdate(progress.StatusDownloading, "Fetching reel info...", "m1", "alice"))
	q.Report(ctx, progress.NewUpdate(progress.StatusUploading, "Uploading and processing video...", "m1", "alice"))
	q.Report(ctx, progress.NewUpdate(progress.StatusCompleted, "Reel reposted successfully!", "m1", "alice"))

	q.Stop(context.Background())

	assert.Equal(t, []progress.Status{
		progress.StatusDownloading,
		progress.StatusUploading,
		progress.StatusCompleted,
	}, target.statuses())

	sent, dropped := q.Stats()
	assert.Equal(t, int64(3), sent)
	assert.Equal(t, int64(0), dropped)
}

func TestQueueDropsWhenFull(t *testing.T) {
	target := &recordingReporter{release: make(chan struct{})}
	log := logger.NewTestLogger()
	q := NewQueue(target, 1, log)
	q.Start()

	ctx := context.Background()
	// first update is picked up by the blocked worker, second fills the buffer
	q.Report(ctx, progress.NewUpdate(progress.StatusIdle, "a", "", ""))
	require.Eventually(t, func() bool { return len(q.jobs) == 0 }, time.Second, 5*time.Millisecond)
	q.Report(ctx, progress.NewUpdate(progress.StatusIdle, "b", "", ""))
	q.Report(ctx, progress.NewUpdate(progress.StatusIdle, "c", "", ""))

	close(target.release)
	q.Stop(context.Background())

	_, dropped := q.Stats()
	assert.Equal(t, int64(1), dropped)
	assert.Len(t, log.GetMessagesByLevel("WARN"), 1)
	assert.Len(t, target.statuses(), 2)
}

func TestQueueStopTimeout(t *testing.T) {
	target := &recordingReporter{release: make(chan struct{})}
	q := NewQueue(target, 4, logger.NewNopLogger())
	q.Start()

	q.Report(context.Background(), progress.NewUpdate(progress.StatusIdle, "stuck", "", ""))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	q.Stop(ctx)
	assert.Less(t, time.Since(start), time.Second)
	assert.Empty(t, target.statuses())
}

func TestQueueReportAfterStop(t *testing.T) {
	target := &recordingReporter{}
	q := NewQueue(target, 2, logger.NewNopLogger())
	q.Start()
	q.Stop(context.Background())
	q.Stop(context.Background())

	q.Report(context.Background(), progress.NewUpdate(progress.StatusIdle, "late", "", ""))

	_, dropped := q.Stats()
	assert.Equal(t, int64(1), dropped)
	assert.Empty(t, target.statuses())
}
