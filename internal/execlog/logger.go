// ABOUTME: Asynchronous execution logger with a bounded drop-oldest queue.
// ABOUTME: Log delivery is best-effort and never adds latency to the dispatch result path.

package execlog

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Outcome of a dispatch, as recorded in the log.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Entry is one append-only execution log record. ParametersDigest is a
// sanitized digest; raw parameter values and free text never appear here.
type Entry struct {
	ExecutionID      string
	Capability       string
	CallerID         string
	ParametersDigest string
	StartedAt        time.Time
	DurationMs       int64
	Outcome          string
	ErrorCode        string
}

// Sink persists entries. Append must be safe for concurrent use.
type Sink interface {
	Append(ctx context.Context, e *Entry) error
}

// writeTimeout bounds a single sink write so a stuck sink cannot wedge the
// drain goroutine forever.
const writeTimeout = 5 * time.Second

// Logger drains entries to a sink from a bounded queue. Record never blocks:
// when the queue is full the oldest entry is dropped to make room.
type Logger struct {
	queue  chan *Entry
	sink   Sink
	logger *slog.Logger

	mu      sync.Mutex
	dropped int64

	done chan struct{}
	wg   sync.WaitGroup
}

// New starts a Logger draining into sink. queueSize must be positive.
func New(sink Sink, queueSize int, logger *slog.Logger) *Logger {
	if queueSize <= 0 {
		queueSize = 256
	}
	l := &Logger{
		queue:  make(chan *Entry, queueSize),
		sink:   sink,
		logger: logger.With("component", "execlog"),
		done:   make(chan struct{}),
	}
	l.wg.Add(1)
	go l.drain()
	return l
}

// Record enqueues an entry without blocking. A full queue drops the oldest
// entry rather than stalling a new invocation.
func (l *Logger) Record(e *Entry) {
	select {
	case l.queue <- e:
		return
	default:
	}

	// Queue full: evict the oldest and retry once. If another goroutine wins
	// the race for the freed slot, the entry is dropped instead.
	select {
	case <-l.queue:
		l.noteDrop()
	default:
	}
	select {
	case l.queue <- e:
	default:
		l.noteDrop()
	}
}

// Dropped returns how many entries were discarded due to backpressure.
func (l *Logger) Dropped() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropped
}

func (l *Logger) noteDrop() {
	l.mu.Lock()
	l.dropped++
	l.mu.Unlock()
}

func (l *Logger) drain() {
	defer l.wg.Done()
	for {
		select {
		case e := <-l.queue:
			l.write(e)
		case <-l.done:
			// Flush whatever is left, then stop.
			for {
				select {
				case e := <-l.queue:
					l.write(e)
				default:
					return
				}
			}
		}
	}
}

func (l *Logger) write(e *Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := l.sink.Append(ctx, e); err != nil {
		// Best-effort: the dispatch result already went back to the caller.
		l.logger.Warn("dropping execution log entry",
			"execution_id", e.ExecutionID,
			"capability", e.Capability,
			"error", err,
		)
	}
}

// Close flushes queued entries and stops the drain goroutine.
func (l *Logger) Close() {
	close(l.done)
	l.wg.Wait()
}
