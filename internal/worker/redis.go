package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go-resale-dashboard/internal/monitoring"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const QueueReconcile = "jobs:reconcile"

// Job is the envelope pushed to Redis.
type Job struct {
	Type       string    `json:"type"`
	ProductID  string    `json:"product_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// RedisQueue hands reconcile jobs to workers through a Redis list, so a job
// survives a restart of the process that enqueued it.
type RedisQueue struct {
	rdb     *redis.Client
	handler Handler
	wg      sync.WaitGroup

	// popTimeout bounds each BRPOP so workers notice cancellation.
	popTimeout time.Duration
}

func NewRedisQueue(rdb *redis.Client, handler Handler) *RedisQueue {
	return &RedisQueue{rdb: rdb, handler: handler, popTimeout: 5 * time.Second}
}

// Connect parses a redis:// URL and pings the server.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

func (q *RedisQueue) Enqueue(ctx context.Context, productID string) error {
	encoded, err := json.Marshal(Job{Type: "reconcile", ProductID: productID, EnqueuedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	if err := q.rdb.LPush(ctx, QueueReconcile, encoded).Err(); err != nil {
		return err
	}
	monitoring.RecordReconcileJob("redis")
	return nil
}

// Start launches numWorkers goroutines blocking on BRPOP until ctx ends.
func (q *RedisQueue) Start(ctx context.Context, numWorkers int) {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	for i := 0; i < numWorkers; i++ {
		q.wg.Add(1)
		go q.run(ctx, i)
	}
	log.Info().Msgf("redis reconcile worker pool started with %d workers", numWorkers)
}

// Wait blocks until every worker has returned. A job popped before
// cancellation is finished first.
func (q *RedisQueue) Wait() {
	q.wg.Wait()
}

func (q *RedisQueue) run(ctx context.Context, id int) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			log.Debug().Msgf("redis reconcile worker %d shutting down", id)
			return
		default:
			// Blocking pop, waits up to popTimeout then loops to check ctx
			result, err := q.rdb.BRPop(ctx, q.popTimeout, QueueReconcile).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					log.Warn().Err(err).Msg("redis reconcile worker: pop failed")
					select {
					case <-ctx.Done():
					case <-time.After(time.Second):
					}
				}
				continue
			}
			if len(result) < 2 {
				continue
			}
			// the job is off the list now; finish it even if ctx ends
			q.process(context.WithoutCancel(ctx), result[1])
		}
	}
}

func (q *RedisQueue) process(ctx context.Context, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Err(err).Str("queue", QueueReconcile).Msg("failed to unmarshal job")
		return
	}
	if job.ProductID == "" {
		return
	}
	q.handler(ctx, job.ProductID)
}
