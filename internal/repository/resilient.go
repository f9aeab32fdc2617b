package repository

import (
	"context"
	"errors"
	"time"

	"cashledger/internal/infra"
	"cashledger/internal/ledger"
	"cashledger/internal/model"

	"github.com/google/uuid"
)

// ResilientOrders puts a circuit breaker in front of an OrderRepository.
// Business rejections and cancelled contexts pass through without counting
// as failures.
type ResilientOrders struct {
	inner OrderRepository
	cb    *infra.CircuitBreaker
}

var _ OrderRepository = (*ResilientOrders)(nil)

func NewResilientOrders(inner OrderRepository, failureThreshold int, openTimeout time.Duration) *ResilientOrders {
	return &ResilientOrders{
		inner: inner,
		cb: infra.NewCircuitBreaker(infra.CircuitBreakerConfig{
			Name:             "orders",
			FailureThreshold: failureThreshold,
			OpenTimeout:      openTimeout,
			IsFailure:        countsAsBackendFailure,
		}),
	}
}

// countsAsBackendFailure excludes business rejections and calls abandoned by
// the caller's context (client disconnects, request deadlines).
func countsAsBackendFailure(err error) bool {
	if IsRejection(err) {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// BreakerState is exposed for the health endpoint.
func (r *ResilientOrders) BreakerState() infra.CBState { return r.cb.State() }

func (r *ResilientOrders) Submit(ctx context.Context, order model.Order) (ledger.SubmitResult, error) {
	var res ledger.SubmitResult
	err := r.cb.Execute(func() error {
		var err error
		res, err = r.inner.Submit(ctx, order)
		return err
	})
	return res, err
}

func (r *ResilientOrders) Annul(ctx context.Context, id uuid.UUID, reason string) error {
	return r.cb.Execute(func() error { return r.inner.Annul(ctx, id, reason) })
}

func (r *ResilientOrders) Return(ctx context.Context, id uuid.UUID) error {
	return r.cb.Execute(func() error { return r.inner.Return(ctx, id) })
}

// FindByID is a read used by the receipt worker; it bypasses the breaker.
func (r *ResilientOrders) FindByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	return r.inner.FindByID(ctx, id)
}
