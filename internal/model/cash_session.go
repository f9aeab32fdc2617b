package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SessionStatus: "OPEN" | "CLOSED". A session never goes back to OPEN.
type SessionStatus string

const (
	SessionOpen   SessionStatus = "OPEN"
	SessionClosed SessionStatus = "CLOSED"
)

// MovementType encodes the direction of a manual cash movement.
// Amounts are always positive; CASH_OUT subtracts.
type MovementType string

const (
	CashIn  MovementType = "CASH_IN"
	CashOut MovementType = "CASH_OUT"
)

// Valid reports whether t is one of the known movement types.
func (t MovementType) Valid() bool {
	return t == CashIn || t == CashOut
}

// CashSession represents a cashier's working period on one drawer.
type CashSession struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CashierID   int             `gorm:"not null;index" json:"cashier_id"`
	EmployeeID  uuid.UUID       `gorm:"type:uuid;not null" json:"employee_id"`
	InitBalance decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"init_balance"`
	// ClosingBalance is the theoretical balance computed by the backend on close.
	ClosingBalance *decimal.Decimal `gorm:"type:decimal(12,2)" json:"closing_balance,omitempty"`
	Status         SessionStatus    `gorm:"type:varchar(10);not null;default:'OPEN'" json:"status"`
	StartAt        time.Time        `json:"start_at"`
	EndAt          *time.Time       `json:"end_at,omitempty"`

	Movements []CashMovement `gorm:"foreignKey:SessionID" json:"movements"`
	Sales     []OrderRef     `gorm:"-" json:"sales"`
}

// IsOpen reports whether the session still accepts movements and sales.
func (s *CashSession) IsOpen() bool {
	return s != nil && s.Status == SessionOpen
}

// CashMovement is a manual deposit or withdrawal. Movements are never
// modified; a mistaken entry is corrected with an opposite movement.
type CashMovement struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	SessionID   uuid.UUID       `gorm:"type:uuid;index;not null" json:"session_id"`
	Type        MovementType    `gorm:"type:varchar(10);not null" json:"type"`
	Amount      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Description string          `gorm:"not null" json:"description"`
	CreatedAt   time.Time       `json:"created_at"`
}

// OrderRef is the slice of a completed sale a cash session needs to reconcile.
type OrderRef struct {
	ID     uuid.UUID       `json:"id"`
	Number string          `json:"number"`
	Total  decimal.Decimal `json:"total"`
	Status OrderStatus     `json:"status"`
}
