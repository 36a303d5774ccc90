package events

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/edupay/institute-ledger-api/pkg/jobs"
)

// AsyncConfig tunes the background dispatcher.
type AsyncConfig struct {
	Workers    int
	BufferSize int
	Logger     *zap.Logger
}

// AsyncSink hands events to a worker queue so publishing never blocks the
// mutation path. Events are dropped when the buffer is full.
type AsyncSink struct {
	queue *jobs.Queue
}

// NewAsyncSink wraps next with asynchronous dispatch.
func NewAsyncSink(next Sink, cfg AsyncConfig) *AsyncSink {
	handler := func(ctx context.Context, job jobs.Job) error {
		ev, ok := job.Payload.(Event)
		if !ok {
			return fmt.Errorf("unexpected payload type %T", job.Payload)
		}
		return next.Publish(ctx, ev)
	}
	queue := jobs.NewQueue("events", handler, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: 2,
		Logger:     cfg.Logger,
	})
	return &AsyncSink{queue: queue}
}

// Start launches the dispatch workers.
func (s *AsyncSink) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *AsyncSink) Stop() {
	s.queue.Stop()
}

// Publish implements Sink by enqueueing the event.
func (s *AsyncSink) Publish(_ context.Context, ev Event) error {
	return s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    ev.Type,
		Payload: ev,
	})
}
