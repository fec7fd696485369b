package events

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cryptocardshopofficial-collab/CRYPBUY/internal/logger"
	"github.com/cryptocardshopofficial-collab/CRYPBUY/internal/metrics"
)

// Relay hands events to a Publisher from a fixed pool of workers.
type Relay struct {
	pub     Publisher
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	jobs   chan Event
	wg     sync.WaitGroup
}

func NewRelay(pub Publisher, workerCount int, timeout time.Duration) *Relay {
	if workerCount < 1 {
		workerCount = 1
	}
	r := &Relay{
		pub:     pub,
		timeout: timeout,
		jobs:    make(chan Event, workerCount*16),
	}
	for i := 1; i <= workerCount; i++ {
		r.wg.Add(1)
		go func(id int) {
			defer r.wg.Done()
			workerLoop(id, pub, r.jobs, timeout)
		}(i)
	}
	return r
}

// Notify enqueues e. When the queue is full the event is dropped.
func (r *Relay) Notify(e Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		logger.Log.Warn("event relay closed, dropping event",
			zap.String("type", string(e.Type)), zap.String("order_id", e.OrderID))
		metrics.EventsDropped.Inc()
		return
	}
	select {
	case r.jobs <- e:
	default:
		logger.Log.Warn("event queue full, dropping event",
			zap.String("type", string(e.Type)), zap.String("order_id", e.OrderID))
		metrics.EventsDropped.Inc()
	}
}

// Close stops accepting events, waits for queued ones to be published and
// closes the publisher. It gives up when ctx is done.
func (r *Relay) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.jobs)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		logger.Log.Warn("event relay drain interrupted", zap.Error(ctx.Err()))
	}
	return r.pub.Close()
}

func workerLoop(id int, pub Publisher, jobs <-chan Event, timeout time.Duration) {
	logger.Log.Debug("event worker started", zap.Int("worker", id))
	for e := range jobs {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		err := pub.Publish(ctx, e)
		cancel()
		if err != nil {
			logger.Log.Error("publish event failed",
				zap.Int("worker", id),
				zap.String("type", string(e.Type)),
				zap.String("order_id", e.OrderID),
				zap.Error(err))
			metrics.EventsPublished.WithLabelValues("error").Inc()
			continue
		}
		metrics.EventsPublished.WithLabelValues("ok").Inc()
	}
	logger.Log.Debug("event worker stopped", zap.Int("worker", id))
}
