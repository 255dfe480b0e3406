package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"commhub/internal/biz/domain"
	"commhub/internal/biz/repo"
)

const (
	writerQueueSize  = 512
	writerCloseGrace = 5 * time.Second
)

// AsyncWriter decorates a StateRepo with a fire-and-forget write queue. The
// in-memory automation state is authoritative, so writes never block the
// pipeline: they are queued and applied in order by a single worker, and
// failures are logged and dropped. Reads and Close pass through.
type AsyncWriter struct {
	inner repo.StateRepo
	log   zerolog.Logger

	mu     sync.Mutex
	closed bool
	jobs   chan func(context.Context)
	done   chan struct{}
}

// NewAsyncWriter starts the write worker.
func NewAsyncWriter(inner repo.StateRepo, log zerolog.Logger) *AsyncWriter {
	w := &AsyncWriter{
		inner: inner,
		log:   log.With().Str("component", "state-writer").Logger(),
		jobs:  make(chan func(context.Context), writerQueueSize),
		done:  make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *AsyncWriter) run() {
	defer close(w.done)
	for job := range w.jobs {
		job(context.Background())
	}
}

// enqueue schedules a write. A full queue drops the write rather than stall
// the caller.
func (w *AsyncWriter) enqueue(op string, job func(context.Context) error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		w.log.Warn().Str("op", op).Msg("write after close dropped")
		return
	}
	wrapped := func(ctx context.Context) {
		if err := job(ctx); err != nil {
			w.log.Warn().Err(err).Str("op", op).Msg("state write failed")
		}
	}
	select {
	case w.jobs <- wrapped:
	default:
		w.log.Warn().Str("op", op).Msg("write queue full, dropping")
	}
}

func (w *AsyncWriter) UpsertAction(_ context.Context, action *domain.Action) error {
	w.enqueue("upsert-action", func(ctx context.Context) error {
		return w.inner.UpsertAction(ctx, action)
	})
	return nil
}

func (w *AsyncWriter) UpsertTrigger(_ context.Context, trigger *domain.Trigger) error {
	w.enqueue("upsert-trigger", func(ctx context.Context) error {
		return w.inner.UpsertTrigger(ctx, trigger)
	})
	return nil
}

func (w *AsyncWriter) InsertMessage(_ context.Context, message *domain.Message) error {
	w.enqueue("insert-message", func(ctx context.Context) error {
		return w.inner.InsertMessage(ctx, message)
	})
	return nil
}

func (w *AsyncWriter) InsertEvaluation(_ context.Context, evaluation *domain.TriggerEvaluation) error {
	w.enqueue("insert-evaluation", func(ctx context.Context) error {
		return w.inner.InsertEvaluation(ctx, evaluation)
	})
	return nil
}

func (w *AsyncWriter) InsertEvent(_ context.Context, event *domain.AutomationEvent) error {
	w.enqueue("insert-event", func(ctx context.Context) error {
		return w.inner.InsertEvent(ctx, event)
	})
	return nil
}

// Load passes through to the underlying repository.
func (w *AsyncWriter) Load(ctx context.Context) (*repo.StateSnapshot, error) {
	return w.inner.Load(ctx)
}

// Flush blocks until every write queued so far has been applied.
func (w *AsyncWriter) Flush() {
	signal := make(chan struct{})
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.jobs <- func(context.Context) { close(signal) }
	w.mu.Unlock()
	<-signal
}

// Close stops accepting writes, drains the queue within a grace period and
// closes the underlying repository.
func (w *AsyncWriter) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.jobs)
	w.mu.Unlock()

	select {
	case <-w.done:
	case <-time.After(writerCloseGrace):
		w.log.Warn().Msg("close timed out before the write queue drained")
	}
	if err := w.inner.Close(); err != nil {
		return fmt.Errorf("close state repo: %w", err)
	}
	return nil
}
