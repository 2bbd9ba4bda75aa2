package classify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/otherjamesbrown/granola-mcp/pkg/logging"
	"github.com/otherjamesbrown/granola-mcp/pkg/meeting"
)

const (
	defaultQueueWorkers  = 2
	defaultQueueCapacity = 512
	queueShutdownTimeout = 10 * time.Second
)

// fillFunc classifies one meeting. Errors are counted, not propagated;
// an unresolved meeting is retried on whatever query touches it next.
type fillFunc func(ctx context.Context, m meeting.Meeting)

// fillQueue runs background classification so that interactive calls
// never block on the remote tier for more meetings than they need.
type fillQueue struct {
	jobs    chan meeting.Meeting
	logger  logging.Logger
	fill    fillFunc
	onDepth func(n int)

	// Metrics
	EnqueuedCount  atomic.Int64
	ProcessedCount atomic.Int64
	DroppedCount   atomic.Int64

	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup

	mu      sync.Mutex
	pending map[string]struct{}
	started bool
	stopped bool
}

func newFillQueue(workers, capacity int, fill fillFunc, logger logging.Logger, onDepth func(int)) *fillQueue {
	if workers <= 0 {
		workers = defaultQueueWorkers
	}
	if capacity <= 0 {
		capacity = defaultQueueCapacity
	}
	if onDepth == nil {
		onDepth = func(int) {}
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &fillQueue{
		jobs:       make(chan meeting.Meeting, capacity),
		logger:     logger,
		fill:       fill,
		onDepth:    onDepth,
		ctx:        ctx,
		cancelFunc: cancel,
		pending:    make(map[string]struct{}),
	}
	q.start(workers)
	return q
}

func (q *fillQueue) start(workers int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.started = true

	for i := 0; i < workers; i++ {
		workerID := uuid.New().String()
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			q.processLoop(workerID)
		}()
	}
	q.logger.Debug("classification fill queue started", logging.F("workers", workers))
}

func (q *fillQueue) processLoop(workerID string) {
	for {
		select {
		case <-q.ctx.Done():
			return
		case m, ok := <-q.jobs:
			if !ok {
				return
			}
			q.fill(q.ctx, m)
			q.finish(m.ID)
			q.ProcessedCount.Add(1)
			q.logger.Debug("background classification processed",
				logging.F("worker_id", workerID),
				logging.F("meeting_id", m.ID))
		}
	}
}

// Enqueue schedules a meeting for background classification. It never
// blocks: a meeting already queued is skipped, and when the queue is
// full the meeting is dropped and picked up by a later query instead.
func (q *fillQueue) Enqueue(m meeting.Meeting) {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	if _, inflight := q.pending[m.ID]; inflight {
		q.mu.Unlock()
		return
	}
	// The send stays under the lock so Stop cannot close the channel
	// between the stopped check and the send. It cannot block: the
	// channel is buffered and a full buffer takes the default branch.
	select {
	case q.jobs <- m:
		q.pending[m.ID] = struct{}{}
		q.mu.Unlock()
		q.EnqueuedCount.Add(1)
		q.onDepth(len(q.jobs))
	default:
		q.mu.Unlock()
		q.DroppedCount.Add(1)
		q.logger.Warn("classification queue full, dropping meeting",
			logging.F("meeting_id", m.ID))
	}
}

func (q *fillQueue) finish(id string) {
	q.mu.Lock()
	delete(q.pending, id)
	q.mu.Unlock()
	q.onDepth(len(q.jobs))
}

// Depth returns the number of queued meetings.
func (q *fillQueue) Depth() int {
	return len(q.jobs)
}

// Stop drains in-flight work and shuts the workers down, waiting up to
// queueShutdownTimeout before cancelling whatever is still running.
func (q *fillQueue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	close(q.jobs)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(queueShutdownTimeout):
		q.logger.Warn("classification queue shutdown timed out, cancelling workers")
		q.cancelFunc()
		<-done
	}
	q.cancelFunc()
}
