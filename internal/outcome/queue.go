package outcome

import (
	"sync"
	"time"

	"github.com/soyeahso/smsrelay/internal/logging"
)

// DefaultEnqueueWait bounds how long Append blocks when the queue is full.
const DefaultEnqueueWait = 100 * time.Millisecond

// queued is one reported line and the time it was reported.
type queued struct {
	at   time.Time
	line string
}

// Queue is an asynchronous Reporter. Lines are buffered and drained into
// the target by a single goroutine, so concurrent callers never contend on
// the backing store. When the buffer stays full past the enqueue wait, the
// line is written directly instead of being dropped. Lines keep the time
// they were reported when the target is a TimedReporter.
type Queue struct {
	target Reporter
	wait   time.Duration
	now    func() time.Time
	log    *logging.Logger

	lines chan queued
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewQueue starts a queue draining into target.
func NewQueue(target Reporter, size int, wait time.Duration, log *logging.Logger) *Queue {
	if size <= 0 {
		size = DefaultRetention
	}
	if wait <= 0 {
		wait = DefaultEnqueueWait
	}
	q := &Queue{
		target: target,
		wait:   wait,
		now:    time.Now,
		log:    log.Sub("outcome"),
		lines:  make(chan queued, size),
		done:   make(chan struct{}),
	}
	go q.drain()
	return q
}

func (q *Queue) drain() {
	defer close(q.done)
	for item := range q.lines {
		q.write(item)
	}
}

func (q *Queue) write(item queued) {
	if tr, ok := q.target.(TimedReporter); ok {
		tr.AppendAt(item.at, item.line)
		return
	}
	q.target.Append(item.line)
}

// Append implements Reporter. The line is stamped now.
func (q *Queue) Append(line string) {
	q.AppendAt(q.now(), line)
}

// AppendAt implements TimedReporter.
func (q *Queue) AppendAt(at time.Time, line string) {
	item := queued{at: at, line: line}

	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.write(item)
		return
	}

	select {
	case q.lines <- item:
		return
	default:
	}

	timer := time.NewTimer(q.wait)
	defer timer.Stop()
	select {
	case q.lines <- item:
	case <-timer.C:
		q.log.Warn().Dur("wait", q.wait).Msg("outcome queue full, writing directly")
		q.write(item)
	}
}

// Close stops accepting queued lines and waits until every buffered line
// has reached the target. Later Appends go straight to the target.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	close(q.lines)
	q.mu.Unlock()
	<-q.done
}
