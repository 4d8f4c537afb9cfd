package worker

import (
	"context"
	"errors"
	"sync"

	"go-resale-dashboard/internal/monitoring"

	"github.com/rs/zerolog/log"
)

// ErrQueueFull is returned when the in-process queue cannot take more jobs.
var ErrQueueFull = errors.New("reconcile queue is full")

// Handler processes one product id. It is expected to log its own failures.
type Handler func(ctx context.Context, productID string)

// LocalQueue is an in-process reconcile queue served by a fixed worker pool.
// Jobs for the same product that are already pending are coalesced.
type LocalQueue struct {
	jobs    chan string
	handler Handler

	mu      sync.Mutex
	pending map[string]bool
	wg      sync.WaitGroup
}

func NewLocalQueue(size int, handler Handler) *LocalQueue {
	if size <= 0 {
		size = 64
	}
	return &LocalQueue{
		jobs:    make(chan string, size),
		handler: handler,
		pending: make(map[string]bool),
	}
}

func (q *LocalQueue) Enqueue(_ context.Context, productID string) error {
	q.mu.Lock()
	if q.pending[productID] {
		q.mu.Unlock()
		return nil
	}
	select {
	case q.jobs <- productID:
		q.pending[productID] = true
		q.mu.Unlock()
		monitoring.RecordReconcileJob("local")
		return nil
	default:
		q.mu.Unlock()
		return ErrQueueFull
	}
}

// Start launches numWorkers goroutines that drain the queue until ctx ends.
func (q *LocalQueue) Start(ctx context.Context, numWorkers int) {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	for i := 0; i < numWorkers; i++ {
		q.wg.Add(1)
		go q.run(ctx, i)
	}
	log.Info().Msgf("reconcile worker pool started with %d workers", numWorkers)
}

// Wait blocks until every worker has returned.
func (q *LocalQueue) Wait() {
	q.wg.Wait()
}

func (q *LocalQueue) run(ctx context.Context, id int) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			log.Debug().Msgf("reconcile worker %d shutting down", id)
			return
		case productID := <-q.jobs:
			q.mu.Lock()
			delete(q.pending, productID)
			q.mu.Unlock()
			q.handler(context.WithoutCancel(ctx), productID)
		}
	}
}
