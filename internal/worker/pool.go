package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"cashledger/internal/model"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueReceipts = "jobs:receipts"

	JobOrderCompleted     = "order_completed"
	JobOrderStatusChanged = "order_status_changed"
)

// Backoff between BRPOP attempts while Redis is failing.
var (
	popBackoffBase = 500 * time.Millisecond
	popBackoffMax  = 10 * time.Second
)

// Job is the generic envelope for all async tasks.
type Job struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
	// Replays counts how many times the job came back from the DLQ.
	Replays int `json:"replays,omitempty"`
}

// OrderJobPayload identifies the order a receipt job is about.
type OrderJobPayload struct {
	OrderID string            `json:"order_id"`
	Kind    model.OrderKind   `json:"kind"`
	Number  string            `json:"number"`
	Status  model.OrderStatus `json:"status"`
	Total   string            `json:"total"`
}

func payloadFor(o model.Order) OrderJobPayload {
	return OrderJobPayload{
		OrderID: o.ID.String(),
		Kind:    o.Kind,
		Number:  o.Number,
		Status:  o.Status,
		Total:   o.Total.StringFixed(2),
	}
}

// JobHandler processes one job payload. A returned error sends the job to
// the dead letter queue.
type JobHandler func(ctx context.Context, payload json.RawMessage) error

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP.
type Dispatcher struct {
	rdb *redis.Client
}

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// PublishOrderCompleted queues receipt rendering for a freshly submitted order.
func (d *Dispatcher) PublishOrderCompleted(ctx context.Context, order model.Order) error {
	return d.enqueue(ctx, QueueReceipts, JobOrderCompleted, payloadFor(order))
}

// PublishOrderStatusChanged queues a re-render after an annul or return.
func (d *Dispatcher) PublishOrderStatusChanged(ctx context.Context, order model.Order) error {
	return d.enqueue(ctx, QueueReceipts, JobOrderStatusChanged, payloadFor(order))
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(Job{Type: jobType, Payload: data})
	if err != nil {
		return err
	}
	return d.rdb.LPush(ctx, queue, encoded).Err()
}

// StartWorkerPool launches numWorkers goroutines consuming the receipt queue.
// Each goroutine blocks on BRPOP, zero CPU when idle.
func StartWorkerPool(ctx context.Context, rdb *redis.Client, numWorkers int, handlers map[string]JobHandler) {
	for i := 0; i < numWorkers; i++ {
		go runWorker(ctx, rdb, i, handlers)
	}
	log.Info().Msgf("worker pool started with %d workers", numWorkers)
}

func runWorker(ctx context.Context, rdb *redis.Client, id int, handlers map[string]JobHandler) {
	backoff := popBackoffBase
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
			// Blocking pop, waits up to 5s then loops to check ctx
			result, err := rdb.BRPop(ctx, 5*time.Second, QueueReceipts).Result()
			if errors.Is(err, redis.Nil) {
				backoff = popBackoffBase
				continue
			}
			if err != nil {
				if ctx.Err() != nil {
					continue
				}
				log.Warn().Err(err).Int("worker", id).Dur("retry_in", backoff).Msg("worker: brpop failed")
				select {
				case <-ctx.Done():
				case <-time.After(backoff):
				}
				backoff = min(backoff*2, popBackoffMax)
				continue
			}
			backoff = popBackoffBase
			if len(result) < 2 {
				continue
			}
			processJob(ctx, rdb, result[0], result[1], handlers)
		}
	}
}

func processJob(ctx context.Context, rdb *redis.Client, queue, raw string, handlers map[string]JobHandler) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		quoted, _ := json.Marshal(raw)
		SendToDLQ(ctx, rdb, Job{Type: "unknown", Payload: quoted}, queue, "malformed envelope", 0)
		return
	}

	handler, ok := handlers[job.Type]
	if !ok {
		log.Warn().Str("type", job.Type).Str("queue", queue).Msg("no handler for job type")
		SendToDLQ(ctx, rdb, job, queue, "no handler", 0)
		return
	}

	log.Debug().Str("type", job.Type).Str("queue", queue).Msg("processing job")
	if err := handler(ctx, job.Payload); err != nil {
		SendToDLQ(ctx, rdb, job, queue, err.Error(), receiptAttempts)
	}
}
