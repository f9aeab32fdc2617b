package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cashledger/internal/model"
)

func TestOpenMovementAndTotals(t *testing.T) {
	m := NewSessionManager(newStubSessionStore())

	sess, err := m.Open(context.Background(), 1, uuid.New(), money("500.00"))
	require.NoError(t, err)
	assert.Equal(t, model.SessionOpen, sess.Status)
	assert.Empty(t, sess.Movements)
	assert.Empty(t, sess.Sales)

	_, err = m.RecordMovement(context.Background(), model.CashOut, money("50"), "change fund")
	require.NoError(t, err)

	totals, err := m.CurrentTotals()
	require.NoError(t, err)
	assertMoney(t, "500", totals.InitBalance)
	assertMoney(t, "0", totals.SaleBalance)
	assertMoney(t, "0", totals.CashIn)
	assertMoney(t, "50", totals.CashOut)
	assertMoney(t, "450", totals.TheoreticalBalance)
}

func TestOpenTwiceIsSessionStateError(t *testing.T) {
	store := newStubSessionStore()
	m := NewSessionManager(store)
	_, err := m.Open(context.Background(), 1, uuid.New(), money("100"))
	require.NoError(t, err)

	var stateErr *SessionStateError
	_, err = m.Open(context.Background(), 1, uuid.New(), money("100"))
	assert.ErrorAs(t, err, &stateErr)

	// Another manager for the same cashier is rejected by the backend.
	other := NewSessionManager(store)
	_, err = other.Open(context.Background(), 1, uuid.New(), money("100"))
	assert.ErrorAs(t, err, &stateErr)
}

func TestOpenRejectsNegativeBalance(t *testing.T) {
	m := NewSessionManager(newStubSessionStore())
	_, err := m.Open(context.Background(), 1, uuid.New(), money("-1"))
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Contains(t, verrs, "initBalance")
	assert.Nil(t, m.Current())
}

func TestRecordMovementRejectsNonPositiveAmount(t *testing.T) {
	m := NewSessionManager(newStubSessionStore())
	_, err := m.Open(context.Background(), 2, uuid.New(), money("200"))
	require.NoError(t, err)
	before, err := m.CurrentTotals()
	require.NoError(t, err)

	for _, amount := range []string{"0", "-10"} {
		_, err := m.RecordMovement(context.Background(), model.CashIn, money(amount), "bad")
		var verrs ValidationErrors
		require.ErrorAs(t, err, &verrs, amount)
		assert.Contains(t, verrs, "amount")
	}

	after, err := m.CurrentTotals()
	require.NoError(t, err)
	assert.Equal(t, before.TheoreticalBalance.String(), after.TheoreticalBalance.String())
	assert.Equal(t, before.CashIn.String(), after.CashIn.String())
}

func TestRecordMovementWithoutOpenSession(t *testing.T) {
	m := NewSessionManager(newStubSessionStore())
	_, err := m.RecordMovement(context.Background(), model.CashIn, money("10"), "x")
	var stateErr *SessionStateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, model.SessionStatus(""), stateErr.Status)
}

func TestRecordMovementPersistenceFailure(t *testing.T) {
	store := newStubSessionStore()
	m := NewSessionManager(store)
	_, err := m.Open(context.Background(), 3, uuid.New(), money("10"))
	require.NoError(t, err)

	store.failMoves = errors.New("backend down")
	_, err = m.RecordMovement(context.Background(), model.CashIn, money("10"), "x")
	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Empty(t, m.Current().Movements)
}

func TestSalesFeedTheoreticalBalance(t *testing.T) {
	m := NewSessionManager(newStubSessionStore())
	_, err := m.Open(context.Background(), 4, uuid.New(), money("100"))
	require.NoError(t, err)

	sale := model.Order{ID: uuid.New(), Kind: model.KindSale, Status: model.OrderCompleted, Total: money("50")}
	require.NoError(t, m.AddSale(sale))
	_, err = m.RecordMovement(context.Background(), model.CashIn, money("20"), "deposit")
	require.NoError(t, err)
	_, err = m.RecordMovement(context.Background(), model.CashOut, money("10"), "withdrawal")
	require.NoError(t, err)

	totals, err := m.CurrentTotals()
	require.NoError(t, err)
	assertMoney(t, "160", totals.TheoreticalBalance)

	assert.True(t, m.UpdateSaleStatus(sale.ID, model.OrderAnnulled))
	totals, err = m.CurrentTotals()
	require.NoError(t, err)
	assertMoney(t, "110", totals.TheoreticalBalance)

	purchase := model.Order{Kind: model.KindPurchase, Status: model.OrderCompleted}
	assert.Error(t, m.AddSale(purchase))
	draft := model.Order{Kind: model.KindSale, Status: model.OrderDraft}
	assert.Error(t, m.AddSale(draft))
}

func TestCloseSessionAndStatusEvents(t *testing.T) {
	store := newStubSessionStore()
	m := NewSessionManager(store)
	var statuses []model.SessionStatus
	m.OnSessionStatusChanged(func(s model.CashSession) { statuses = append(statuses, s.Status) })

	sess, err := m.Open(context.Background(), 5, uuid.New(), money("10"))
	require.NoError(t, err)

	closed, err := m.Close(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.SessionClosed, closed.Status)
	assert.NotNil(t, closed.EndAt)
	assert.Equal(t, []uuid.UUID{sess.ID}, store.closed)
	assert.Equal(t, []model.SessionStatus{model.SessionOpen, model.SessionClosed}, statuses)

	var stateErr *SessionStateError
	_, err = m.RecordMovement(context.Background(), model.CashIn, money("1"), "late")
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, model.SessionClosed, stateErr.Status)
	_, err = m.Close(context.Background())
	assert.ErrorAs(t, err, &stateErr)

	// A new session can be opened after close.
	_, err = m.Open(context.Background(), 5, uuid.New(), money("20"))
	assert.NoError(t, err)
}

func TestResumeLoadsOpenSession(t *testing.T) {
	store := newStubSessionStore()
	first := NewSessionManager(store)
	opened, err := first.Open(context.Background(), 6, uuid.New(), money("75"))
	require.NoError(t, err)

	second := NewSessionManager(store)
	got, err := second.Resume(context.Background(), 6)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, opened.ID, got.ID)

	none, err := NewSessionManager(store).Resume(context.Background(), 99)
	require.NoError(t, err)
	assert.Nil(t, none)
}
