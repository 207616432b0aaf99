package delivery

import (
	"context"
	"sync"
	"sync/atomic"

	"igrepost/pkg/logger"
	"igrepost/pkg/progress"
)

// Queue delivers status updates to a target reporter from a single
// background worker, so updates arrive in the order they were reported
// and a slow dashboard never blocks the caller.
type Queue struct {
	target progress.Reporter
	jobs   chan progress.Update
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	logger logger.Logger

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
	sent    atomic.Int64
}

// NewQueue creates a queue holding up to size pending updates
func NewQueue(target progress.Reporter, size int, log logger.Logger) *Queue {
	if size <= 0 {
		size = 1
	}
	if log == nil {
		log = logger.GetLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Queue{
		target: target,
		jobs:   make(chan progress.Update, size),
		ctx:    ctx,
		cancel: cancel,
		logger: log,
	}
}

// Start launches the delivery worker
func (q *Queue) Start() {
	q.wg.Add(1)
	go q.worker()
}

// Report enqueues u. When the queue is full the update is dropped; the next
// update replaces the record anyway.
func (q *Queue) Report(_ context.Context, u progress.Update) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.dropped.Add(1)
		return
	}

	select {
	case q.jobs <- u:
	default:
		q.dropped.Add(1)
		q.logger.WarnWithFields("Status queue full, dropping update", map[string]interface{}{
			"status": string(u.Status),
		})
	}
}

// Stop stops accepting updates and waits for pending ones to be delivered,
// or for ctx to be done, whichever comes first.
func (q *Queue) Stop(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		q.logger.Warn("Status queue stop timed out, abandoning pending updates")
		q.cancel()
		<-done
	}
	q.cancel()

	q.logger.DebugWithFields("Status queue stopped", map[string]interface{}{
		"sent":    q.sent.Load(),
		"dropped": q.dropped.Load(),
	})
}

// Stats returns how many updates were delivered and dropped
func (q *Queue) Stats() (sent, dropped int64) {
	return q.sent.Load(), q.dropped.Load()
}

func (q *Queue) worker() {
	defer q.wg.Done()

	for u := range q.jobs {
		if q.ctx.Err() != nil {
			q.dropped.Add(1)
			continue
		}
		q.target.Report(q.ctx, u)
		q.sent.Add(1)
	}
}
