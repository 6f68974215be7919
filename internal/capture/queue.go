package capture

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/kiranshivaraju/errwatch/pkg/models"
)

const (
	DefaultQueueCapacity = 1024
	DefaultWorkers       = 4
)

// Queue runs the capture pipeline on a bounded worker pool. Enqueue never
// blocks: when the buffer is full the event is dropped and counted, which
// keeps error storms from stalling the reporting caller. The pool size bounds
// concurrent store/dispatcher I/O.
type Queue struct {
	pipeline *Pipeline
	events   chan models.ErrorEvent
	logger   *slog.Logger
	group    *errgroup.Group

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

// NewQueue creates a Queue and starts its workers. Non-positive capacity or
// workers fall back to the defaults.
func NewQueue(p *Pipeline, capacity, workers int, logger *slog.Logger) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}

	q := &Queue{
		pipeline: p,
		events:   make(chan models.ErrorEvent, capacity),
		logger:   logger,
		group:    &errgroup.Group{},
	}

	for i := 0; i < workers; i++ {
		q.group.Go(func() error {
			// Detached work carries no caller deadline and cannot be
			// cancelled; collaborators enforce their own timeouts.
			for event := range q.events {
				q.pipeline.Process(context.Background(), event)
			}
			return nil
		})
	}

	return q
}

// Enqueue schedules an event for capture and returns immediately. It reports
// false when the event was dropped (queue saturated or closed).
func (q *Queue) Enqueue(event models.ErrorEvent) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return false
	}
	select {
	case q.events <- event:
		return true
	default:
		n := q.dropped.Add(1)
		q.logger.Warn("capture queue saturated, event dropped",
			"module", event.Module, "dropped_total", n)
		return false
	}
}

// CaptureCritical is the hook attached to error-level logging: it maps a log
// message and its metadata into a backend error event and enqueues it. The
// reserved keys "module" and "stack_trace" populate the event fields; all
// remaining metadata travels as event context.
func (q *Queue) CaptureCritical(message string, meta map[string]any) {
	event := models.ErrorEvent{
		Source:  models.SourceBackend,
		Level:   models.LevelError,
		Message: message,
	}
	if len(meta) > 0 {
		event.Context = make(map[string]any, len(meta))
		for k, v := range meta {
			switch k {
			case "module":
				if s, ok := v.(string); ok {
					event.Module = s
					continue
				}
			case "stack_trace":
				if s, ok := v.(string); ok {
					event.StackTrace = s
					continue
				}
			}
			event.Context[k] = v
		}
	}
	q.Enqueue(event)
}

// Dropped returns the number of events dropped since startup.
func (q *Queue) Dropped() int64 {
	return q.dropped.Load()
}

// Close stops intake, drains buffered events through the workers and waits
// for them to finish. Safe to call more than once.
func (q *Queue) Close() error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.events)
	}
	q.mu.Unlock()
	return q.group.Wait()
}
