package ledger

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"cashledger/internal/model"
)

// SessionManager owns one cashier's cash session. Close is only a trigger:
// the closing figures are computed and stored by the persistence side.
//
// A SessionManager is owned by one caller and is not safe for concurrent use.
type SessionManager struct {
	store   CashSessionPersistence
	session *model.CashSession

	onStatus []func(model.CashSession)
}

func NewSessionManager(store CashSessionPersistence) *SessionManager {
	return &SessionManager{store: store}
}

// OnSessionStatusChanged registers fn to be called after open, resume and close.
func (m *SessionManager) OnSessionStatusChanged(fn func(model.CashSession)) {
	m.onStatus = append(m.onStatus, fn)
}

// Current returns a copy of the managed session, or nil.
func (m *SessionManager) Current() *model.CashSession {
	if m.session == nil {
		return nil
	}
	s := *m.session
	s.Movements = append([]model.CashMovement(nil), m.session.Movements...)
	s.Sales = append([]model.OrderRef(nil), m.session.Sales...)
	return &s
}

// ── Open ──────────────────────────────────────────────────────────────────────

func (m *SessionManager) Open(ctx context.Context, cashierID int, employeeID uuid.UUID, initBalance decimal.Decimal) (*model.CashSession, error) {
	if m.session.IsOpen() {
		return nil, &SessionStateError{Op: "open", Status: m.session.Status}
	}
	if initBalance.IsNegative() {
		return nil, ValidationErrors{"initBalance": "must not be negative"}
	}

	s, err := m.store.Open(ctx, OpenSessionRequest{
		CashierID:   cashierID,
		EmployeeID:  employeeID,
		InitBalance: Round2(initBalance),
	})
	if errors.Is(err, ErrSessionAlreadyOpen) {
		return nil, &SessionStateError{Op: "open", Status: model.SessionOpen}
	}
	if err != nil {
		return nil, &PersistenceError{Op: "open session", Err: err}
	}
	if s == nil {
		return nil, &PersistenceError{Op: "open session", Err: errors.New("no session returned")}
	}

	s.Status = model.SessionOpen
	s.Movements = nil
	s.Sales = nil
	m.session = s
	log.Info().
		Str("session_id", s.ID.String()).
		Int("cashier_id", cashierID).
		Str("init_balance", s.InitBalance.StringFixed(2)).
		Msg("cash_session: opened")
	m.emitStatus()
	return m.Current(), nil
}

// Resume loads the cashier's open session from the backend, if any.
func (m *SessionManager) Resume(ctx context.Context, cashierID int) (*model.CashSession, error) {
	s, err := m.store.FetchCurrent(ctx, cashierID)
	if err != nil {
		return nil, &PersistenceError{Op: "fetch session", Err: err}
	}
	if s == nil {
		return nil, nil
	}
	m.session = s
	m.emitStatus()
	return m.Current(), nil
}

// ── Movements & sales ─────────────────────────────────────────────────────────

// RecordMovement appends a manual cash movement to the open session.
// Amount must be strictly positive; direction comes from typ.
func (m *SessionManager) RecordMovement(ctx context.Context, typ model.MovementType, amount decimal.Decimal, description string) (*model.CashMovement, error) {
	errs := ValidationErrors{}
	if !amount.IsPositive() {
		errs["amount"] = "must be greater than zero"
	}
	if !typ.Valid() {
		errs["type"] = "must be CASH_IN or CASH_OUT"
	}
	if len(errs) > 0 {
		return nil, errs
	}
	if !m.session.IsOpen() {
		return nil, m.stateError("record movement")
	}

	mov, err := m.store.RecordMovement(ctx, m.session.ID, typ, Round2(amount), strings.TrimSpace(description))
	if err != nil {
		return nil, &PersistenceError{Op: "record movement", Err: err}
	}
	if mov == nil {
		return nil, &PersistenceError{Op: "record movement", Err: errors.New("no movement returned")}
	}
	m.session.Movements = append(m.session.Movements, *mov)
	log.Info().
		Str("session_id", m.session.ID.String()).
		Str("type", string(typ)).
		Str("amount", mov.Amount.StringFixed(2)).
		Msg("cash_session: movement recorded")
	return mov, nil
}

// AddSale feeds a completed SALE order into the session's sales.
func (m *SessionManager) AddSale(order model.Order) error {
	if !m.session.IsOpen() {
		return m.stateError("add sale")
	}
	if order.Kind != model.KindSale {
		return ValidationErrors{"kind": "only sale orders count towards the cash session"}
	}
	if order.Status != model.OrderCompleted {
		return &OrderStateError{Op: "add sale", Status: order.Status}
	}
	m.session.Sales = append(m.session.Sales, order.Ref())
	return nil
}

// UpdateSaleStatus records an annul or return of a sale already in the session.
// It reports whether the sale was found.
func (m *SessionManager) UpdateSaleStatus(orderID uuid.UUID, status model.OrderStatus) bool {
	if m.session == nil {
		return false
	}
	for i := range m.session.Sales {
		if m.session.Sales[i].ID == orderID {
			m.session.Sales[i].Status = status
			return true
		}
	}
	return false
}

// CurrentTotals reconciles the managed session as it stands now.
func (m *SessionManager) CurrentTotals() (Reconciliation, error) {
	if m.session == nil {
		return Reconciliation{}, m.stateError("current totals")
	}
	return ReconcileSession(m.session), nil
}

// ── Close ─────────────────────────────────────────────────────────────────────

// Close asks the backend to close the session. The local session becomes
// CLOSED only once the backend has acknowledged it.
func (m *SessionManager) Close(ctx context.Context) (*model.CashSession, error) {
	if !m.session.IsOpen() {
		return nil, m.stateError("close")
	}
	closed, err := m.store.Close(ctx, m.session.ID)
	if err != nil {
		return nil, &PersistenceError{Op: "close session", Err: err}
	}
	m.session.Status = model.SessionClosed
	if closed != nil {
		m.session.EndAt = closed.EndAt
		m.session.ClosingBalance = closed.ClosingBalance
	}
	log.Info().Str("session_id", m.session.ID.String()).Msg("cash_session: closed")
	m.emitStatus()
	return m.Current(), nil
}

func (m *SessionManager) stateError(op string) error {
	if m.session == nil {
		return &SessionStateError{Op: op}
	}
	return &SessionStateError{Op: op, Status: m.session.Status}
}

func (m *SessionManager) emitStatus() {
	if m.session == nil {
		return
	}
	for _, fn := range m.onStatus {
		fn(*m.Current())
	}
}
