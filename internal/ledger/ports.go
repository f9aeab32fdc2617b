package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"cashledger/internal/model"
)

// ProductCatalog resolves a product at selection time. There is no live
// stock subscription; Stock is a snapshot.
type ProductCatalog interface {
	Lookup(ctx context.Context, productID uuid.UUID) (*model.Product, error)
}

// SubmitResult is what the backend assigns to a persisted order.
type SubmitResult struct {
	ID             uuid.UUID
	AssignedNumber string
}

// OrderPersistence stores orders and applies their status transitions.
// Stock effects are expected to happen atomically with each call.
type OrderPersistence interface {
	Submit(ctx context.Context, order model.Order) (SubmitResult, error)
	Annul(ctx context.Context, orderID uuid.UUID, reason string) error
	Return(ctx context.Context, orderID uuid.UUID) error
}

// OpenSessionRequest is passed to CashSessionPersistence.Open.
type OpenSessionRequest struct {
	CashierID   int
	EmployeeID  uuid.UUID
	InitBalance decimal.Decimal
}

// CashSessionPersistence is the backend side of the cash session lifecycle.
// Open must return ErrSessionAlreadyOpen when the cashier has an open session.
type CashSessionPersistence interface {
	Open(ctx context.Context, req OpenSessionRequest) (*model.CashSession, error)
	RecordMovement(ctx context.Context, sessionID uuid.UUID, typ model.MovementType, amount decimal.Decimal, description string) (*model.CashMovement, error)
	// FetchCurrent returns nil, nil when the cashier has no open session.
	FetchCurrent(ctx context.Context, cashierID int) (*model.CashSession, error)
	// Close computes and stores the closing figures and returns the closed session.
	Close(ctx context.Context, sessionID uuid.UUID) (*model.CashSession, error)
}
