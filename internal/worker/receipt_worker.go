package worker

// receipt_worker.go
// Renders the PDF receipt for a completed, annulled or returned order.
// Loading the order is retried with exponential backoff; a job that still
// fails is handed back to the pool, which moves it to the DLQ.

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cashledger/internal/infra"
	"cashledger/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const receiptAttempts = 3

// retryBase is the first backoff step; tests shrink it.
var retryBase = time.Second

// OrderFinder loads a persisted order with its lines.
type OrderFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Order, error)
}

// ReceiptWorker turns order jobs into PDF files under storagePath.
type ReceiptWorker struct {
	orders       OrderFinder
	storagePath  string
	businessName string
}

func NewReceiptWorker(orders OrderFinder, storagePath, businessName string) *ReceiptWorker {
	return &ReceiptWorker{orders: orders, storagePath: storagePath, businessName: businessName}
}

// Handlers returns the job types this worker serves.
func (w *ReceiptWorker) Handlers() map[string]JobHandler {
	return map[string]JobHandler{
		JobOrderCompleted:     w.Process,
		JobOrderStatusChanged: w.Process,
	}
}

// Process handles a single receipt job:
//  1. Parse OrderJobPayload
//  2. Fetch the order with its lines (with retry)
//  3. Render the PDF
func (w *ReceiptWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var payload OrderJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("receipt_worker: invalid payload: %w", err)
	}
	orderID, err := uuid.Parse(payload.OrderID)
	if err != nil {
		return fmt.Errorf("receipt_worker: invalid order_id %q", payload.OrderID)
	}

	var order *model.Order
	err = withRetry(ctx, receiptAttempts, func(attempt int) error {
		o, err := w.orders.FindByID(ctx, orderID)
		if err != nil {
			log.Warn().
				Err(err).
				Int("attempt", attempt+1).
				Str("order_id", payload.OrderID).
				Msg("receipt_worker: load attempt failed")
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return fmt.Errorf("receipt_worker: load order %s: %w", payload.OrderID, err)
	}

	path, err := infra.GenerateReceiptPDF(*order, w.businessName, w.storagePath)
	if err != nil {
		return err
	}
	log.Info().Str("pdf", path).Str("order_id", payload.OrderID).Str("status", string(order.Status)).Msg("receipt_worker: PDF generated")
	return nil
}

// withRetry calls fn up to maxAttempts times with exponential backoff.
// Backoff schedule: attempt 1 = immediate, 2 = base, 3 = 2*base.
// Returns nil if any attempt succeeds; last error otherwise.
func withRetry(ctx context.Context, maxAttempts int, fn func(attempt int) error) error {
	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		if i > 0 {
			wait := time.Duration(1<<uint(i-1)) * retryBase
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		if err := fn(i); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}
