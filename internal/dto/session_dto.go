package dto

import (
	"time"

	"cashledger/internal/ledger"
	"cashledger/internal/model"

	"github.com/shopspring/decimal"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

type OpenSessionRequest struct {
	InitBalance decimal.Decimal `json:"init_balance" validate:"min=0"`
}

type MovementRequest struct {
	Type        string          `json:"type"        validate:"required,oneof=CASH_IN CASH_OUT"`
	Amount      decimal.Decimal `json:"amount"      validate:"required,gt=0"`
	Description string          `json:"description" validate:"max=255"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type MovementResponse struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"created_at"`
}

type SessionResponse struct {
	ID             string                `json:"id"`
	CashierID      int                   `json:"cashier_id"`
	EmployeeID     string                `json:"employee_id"`
	Status         string                `json:"status"`
	InitBalance    decimal.Decimal       `json:"init_balance"`
	ClosingBalance *decimal.Decimal      `json:"closing_balance,omitempty"`
	StartAt        time.Time             `json:"start_at"`
	EndAt          *time.Time            `json:"end_at,omitempty"`
	Movements      []MovementResponse    `json:"movements"`
	Sales          []model.OrderRef      `json:"sales"`
	Totals         ledger.Reconciliation `json:"totals"`
}

func NewMovementResponse(m model.CashMovement) MovementResponse {
	return MovementResponse{
		ID:          m.ID.String(),
		Type:        string(m.Type),
		Amount:      m.Amount,
		Description: m.Description,
		CreatedAt:   m.CreatedAt,
	}
}

// NewSessionResponse builds the response and its reconciliation from s.
func NewSessionResponse(s *model.CashSession) *SessionResponse {
	resp := &SessionResponse{
		ID:             s.ID.String(),
		CashierID:      s.CashierID,
		EmployeeID:     s.EmployeeID.String(),
		Status:         string(s.Status),
		InitBalance:    s.InitBalance,
		ClosingBalance: s.ClosingBalance,
		StartAt:        s.StartAt,
		EndAt:          s.EndAt,
		Movements:      make([]MovementResponse, 0, len(s.Movements)),
		Sales:          make([]model.OrderRef, 0, len(s.Sales)),
		Totals:         ledger.ReconcileSession(s),
	}
	for _, m := range s.Movements {
		resp.Movements = append(resp.Movements, NewMovementResponse(m))
	}
	resp.Sales = append(resp.Sales, s.Sales...)
	return resp
}
