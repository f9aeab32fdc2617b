package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"cashledger/internal/model"
)

// ── In-memory collaborators ───────────────────────────────────────────────────

type stubOrderStore struct {
	submitted []model.Order
	failNext  error
	annulled  map[uuid.UUID]string
	returned  map[uuid.UUID]bool
	number    string
}

func newStubOrderStore() *stubOrderStore {
	return &stubOrderStore{
		annulled: make(map[uuid.UUID]string),
		returned: make(map[uuid.UUID]bool),
	}
}

func (s *stubOrderStore) Submit(_ context.Context, o model.Order) (SubmitResult, error) {
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return SubmitResult{}, err
	}
	s.submitted = append(s.submitted, o)
	return SubmitResult{ID: uuid.New(), AssignedNumber: s.number}, nil
}

func (s *stubOrderStore) Annul(_ context.Context, id uuid.UUID, reason string) error {
	if s.failNext != nil {
		return s.failNext
	}
	s.annulled[id] = reason
	return nil
}

func (s *stubOrderStore) Return(_ context.Context, id uuid.UUID) error {
	s.returned[id] = true
	return nil
}

type stubSessionStore struct {
	open      map[int]*model.CashSession
	closed    []uuid.UUID
	failMoves error
}

func newStubSessionStore() *stubSessionStore {
	return &stubSessionStore{open: make(map[int]*model.CashSession)}
}

func (s *stubSessionStore) Open(_ context.Context, req OpenSessionRequest) (*model.CashSession, error) {
	if _, ok := s.open[req.CashierID]; ok {
		return nil, ErrSessionAlreadyOpen
	}
	sess := &model.CashSession{
		ID:          uuid.New(),
		CashierID:   req.CashierID,
		EmployeeID:  req.EmployeeID,
		InitBalance: req.InitBalance,
		Status:      model.SessionOpen,
		StartAt:     time.Now(),
	}
	s.open[req.CashierID] = sess
	cp := *sess
	return &cp, nil
}

func (s *stubSessionStore) RecordMovement(_ context.Context, sessionID uuid.UUID, typ model.MovementType, amount decimal.Decimal, desc string) (*model.CashMovement, error) {
	if s.failMoves != nil {
		return nil, s.failMoves
	}
	return &model.CashMovement{
		ID:          uuid.New(),
		SessionID:   sessionID,
		Type:        typ,
		Amount:      amount,
		Description: desc,
		CreatedAt:   time.Now(),
	}, nil
}

func (s *stubSessionStore) FetchCurrent(_ context.Context, cashierID int) (*model.CashSession, error) {
	sess, ok := s.open[cashierID]
	if !ok {
		return nil, nil
	}
	cp := *sess
	return &cp, nil
}

func (s *stubSessionStore) Close(_ context.Context, id uuid.UUID) (*model.CashSession, error) {
	for cashier, sess := range s.open {
		if sess.ID == id {
			delete(s.open, cashier)
			now := time.Now()
			sess.Status = model.SessionClosed
			sess.EndAt = &now
			s.closed = append(s.closed, id)
			return sess, nil
		}
	}
	return nil, errors.New("not found")
}

var (
	_ OrderPersistence       = (*stubOrderStore)(nil)
	_ CashSessionPersistence = (*stubSessionStore)(nil)
)

// ── Helpers ───────────────────────────────────────────────────────────────────

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertMoney(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.Equal(t, money(want).StringFixed(2), got.StringFixed(2), msgAndArgs...)
}

func product(name, price string, stock int) model.Product {
	return model.Product{
		ID:    uuid.New(),
		Name:  name,
		Brand: "Acme",
		Unit:  "unit",
		Price: money(price),
		Cost:  money(price).Mul(money("0.6")).Round(2),
		Stock: stock,
	}
}

func intPtr(i int) *int { return &i }
