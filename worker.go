package market

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"goflare.io/market/models"
)

type EventProcessor interface {
	ProcessEvent(ctx context.Context, event *models.Event) error
}

// WorkerPool fans incoming events out to a fixed set of goroutines so a slow
// handler never blocks the NATS subscription callback.
type WorkerPool struct {
	tasks     chan *models.Event
	wg        sync.WaitGroup
	logger    *zap.Logger
	processor EventProcessor
}

func NewWorkerPool(size int, processor EventProcessor, logger *zap.Logger) *WorkerPool {
	wp := &WorkerPool{
		tasks:     make(chan *models.Event, 1000),
		logger:    logger,
		processor: processor,
	}

	wp.wg.Add(size)
	for i := 0; i < size; i++ {
		go wp.worker()
	}

	return wp
}

func (wp *WorkerPool) worker() {
	defer wp.wg.Done()
	for event := range wp.tasks {
		if err := wp.processor.ProcessEvent(context.Background(), event); err != nil {
			wp.logger.Error("failed to process event",
				zap.Error(err),
				zap.String("event_type", string(event.Type)),
				zap.String("event_id", event.ID))
		}
	}
}

// Submit enqueues an event. It drops the event with an error log when the
// queue is full; the durable event record allows replay.
func (wp *WorkerPool) Submit(_ context.Context, event *models.Event) {
	select {
	case wp.tasks <- event:
	default:
		wp.logger.Error("event queue full, dropping event",
			zap.String("event_type", string(event.Type)),
			zap.String("event_id", event.ID))
	}
}

// Shutdown stops accepting work and waits for in-flight events to finish.
func (wp *WorkerPool) Shutdown() {
	close(wp.tasks)
	wp.wg.Wait()
}
