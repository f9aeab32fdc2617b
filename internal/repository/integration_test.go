//go:build integration

package repository

// Runs the gorm adapters against a real Postgres via testcontainers.
// Run with: go test -tags integration ./internal/repository/... -v

import (
	"context"
	"testing"
	"time"

	"cashledger/internal/infra"
	"cashledger/internal/ledger"
	"cashledger/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	pgC, err := tcPostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		tcPostgres.WithDatabase("cashledger_test"),
		tcPostgres.WithUsername("cashledger"),
		tcPostgres.WithPassword("cashledger"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	dsn, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := infra.NewDatabase(dsn)
	require.NoError(t, err)
	return db
}

func seedProduct(t *testing.T, repo ProductRepository, name string, price string, stock int) *model.Product {
	t.Helper()
	p := &model.Product{
		Name:   name,
		Unit:   "unit",
		Price:  decimal.RequireFromString(price),
		Cost:   decimal.RequireFromString(price).Mul(decimal.NewFromFloat(0.6)),
		Stock:  stock,
		Active: true,
	}
	require.NoError(t, repo.Create(context.Background(), p))
	return p
}

func saleOf(sessionID uuid.UUID, p *model.Product, qty int) model.Order {
	sub := p.Price.Mul(decimal.NewFromInt(int64(qty)))
	return model.Order{
		SessionID: &sessionID,
		Kind:      model.KindSale,
		DocType:   model.DocTicket,
		Series:    "001",
		Lines: []model.LineItem{{
			ProductID: p.ID, Name: p.Name, Unit: p.Unit,
			UnitPrice: p.Price, Quantity: qty, Subtotal: sub,
		}},
		Subtotal: sub,
		TaxValue: decimal.Zero,
		Total:    sub,
	}
}

func TestIntegrationSessionAndSaleCycle(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	products := NewProductRepository(db)
	orders := NewOrderRepository(db)
	sessions := NewCashSessionRepository(db)

	rice := seedProduct(t, products, "Rice", "10.00", 5)

	s, err := sessions.Open(ctx, ledger.OpenSessionRequest{CashierID: 1, EmployeeID: uuid.New(), InitBalance: decimal.NewFromInt(100)})
	require.NoError(t, err)

	_, err = sessions.Open(ctx, ledger.OpenSessionRequest{CashierID: 1, EmployeeID: uuid.New(), InitBalance: decimal.Zero})
	assert.ErrorIs(t, err, ledger.ErrSessionAlreadyOpen)

	res, err := orders.Submit(ctx, saleOf(s.ID, rice, 2))
	require.NoError(t, err)
	assert.Len(t, res.AssignedNumber, 6)

	got, err := products.Lookup(ctx, rice.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Stock)

	_, err = orders.Submit(ctx, saleOf(s.ID, rice, 4))
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.True(t, IsRejection(err))

	_, err = sessions.RecordMovement(ctx, s.ID, model.CashOut, decimal.NewFromInt(5), "change")
	require.NoError(t, err)

	current, err := sessions.FetchCurrent(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Len(t, current.Movements, 1)
	require.Len(t, current.Sales, 1)
	assert.Equal(t, "20.00", current.Sales[0].Total.StringFixed(2))

	closed, err := sessions.Close(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionClosed, closed.Status)
	require.NotNil(t, closed.ClosingBalance)
	assert.Equal(t, "115.00", closed.ClosingBalance.StringFixed(2))

	none, err := sessions.FetchCurrent(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestIntegrationAnnulRestoresStock(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	products := NewProductRepository(db)
	orders := NewOrderRepository(db)
	sessions := NewCashSessionRepository(db)

	oil := seedProduct(t, products, "Oil", "7.50", 4)
	s, err := sessions.Open(ctx, ledger.OpenSessionRequest{CashierID: 2, EmployeeID: uuid.New(), InitBalance: decimal.Zero})
	require.NoError(t, err)

	res, err := orders.Submit(ctx, saleOf(s.ID, oil, 3))
	require.NoError(t, err)

	require.NoError(t, orders.Annul(ctx, res.ID, "customer changed mind"))
	got, err := products.Lookup(ctx, oil.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.Stock)

	assert.ErrorIs(t, orders.Return(ctx, res.ID), ErrOrderNotCompleted)

	order, err := orders.FindByID(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderAnnulled, order.Status)
	require.NotNil(t, order.AnnulReason)
}

func TestIntegrationDuplicateNumberRejected(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	products := NewProductRepository(db)
	orders := NewOrderRepository(db)

	beans := seedProduct(t, products, "Beans", "3.00", 0)
	purchase := model.Order{
		Kind:            model.KindPurchase,
		Series:          "001",
		Number:          "12",
		CounterpartyRef: "ACME",
		WarehouseID:     "main",
		Lines: []model.LineItem{{
			ProductID: beans.ID, Name: beans.Name, UnitPrice: beans.Cost, Quantity: 10,
			Subtotal: beans.Cost.Mul(decimal.NewFromInt(10)),
		}},
	}

	_, err := orders.Submit(ctx, purchase)
	require.NoError(t, err)
	got, err := products.Lookup(ctx, beans.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Stock)

	_, err = orders.Submit(ctx, purchase)
	assert.ErrorIs(t, err, ErrDuplicateNumber)
}

func TestIntegrationUnnumberedPurchasesDoNotCollide(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	products := NewProductRepository(db)
	orders := NewOrderRepository(db)

	flour := seedProduct(t, products, "Flour", "2.00", 0)
	purchase := model.Order{
		Kind:            model.KindPurchase,
		CounterpartyRef: "Mill Co",
		WarehouseID:     "main",
		Lines: []model.LineItem{{
			ProductID: flour.ID, Name: flour.Name, UnitPrice: flour.Cost, Quantity: 3,
			Subtotal: flour.Cost.Mul(decimal.NewFromInt(3)),
		}},
	}

	first, err := orders.Submit(ctx, purchase)
	require.NoError(t, err)
	second, err := orders.Submit(ctx, purchase)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Empty(t, second.AssignedNumber)

	got, err := products.Lookup(ctx, flour.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, got.Stock)
}
