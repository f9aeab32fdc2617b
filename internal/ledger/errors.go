package ledger

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"cashledger/internal/model"
)

var (
	// ErrDuplicateProduct is returned by Lines.Add when the product is already present.
	ErrDuplicateProduct = errors.New("product already has a line")
	// ErrLineIndex is returned when a line index is out of range.
	ErrLineIndex = errors.New("line index out of range")
	// ErrOutOfStock is returned when a SALE line is added for a product with no stock.
	ErrOutOfStock = errors.New("product has no stock available")
	// ErrNegativePrice is returned when a unit price below zero is set.
	ErrNegativePrice = errors.New("unit price must not be negative")
	// ErrNotNumeric is returned by the sequencer for non-digit input.
	ErrNotNumeric = errors.New("document number is not numeric")
	// ErrSessionAlreadyOpen must be returned by CashSessionPersistence.Open
	// when the cashier already has an open session.
	ErrSessionAlreadyOpen = errors.New("cash session already open")
)

// ValidationErrors is a field-keyed error map. An empty map means valid.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+v[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// OrNil returns v as an error, or nil when there is nothing to report.
func (v ValidationErrors) OrNil() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

// StockExceededWarning reports that a requested quantity was clamped down to
// the line's stock cap. It is a warning, never returned as an error.
type StockExceededWarning struct {
	Index     int
	ProductID string
	Requested int
	Applied   int
}

func (w *StockExceededWarning) String() string {
	return fmt.Sprintf("requested %d of %s, only %d in stock", w.Requested, w.ProductID, w.Applied)
}

// PersistenceError wraps a failure of an external persistence collaborator.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: persistence failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// SessionStateError is returned for operations the current session state forbids.
type SessionStateError struct {
	Op     string
	Status model.SessionStatus // empty when there is no session at all
}

func (e *SessionStateError) Error() string {
	if e.Status == "" {
		return e.Op + ": no open cash session"
	}
	return fmt.Sprintf("%s: cash session is %s", e.Op, e.Status)
}

// OrderStateError is returned for an illegal order status transition.
type OrderStateError struct {
	Op     string
	Status model.OrderStatus
}

func (e *OrderStateError) Error() string {
	return fmt.Sprintf("%s: order is %s", e.Op, e.Status)
}
