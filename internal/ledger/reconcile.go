package ledger

import (
	"github.com/shopspring/decimal"

	"cashledger/internal/model"
)

// Reconciliation is the theoretical cash position of a session.
// Every field is always a number: an empty aggregate is zero.
type Reconciliation struct {
	InitBalance        decimal.Decimal `json:"init_balance"`
	SaleBalance        decimal.Decimal `json:"sale_balance"`
	CashIn             decimal.Decimal `json:"cash_in"`
	CashOut            decimal.Decimal `json:"cash_out"`
	MovementsBalance   decimal.Decimal `json:"movements_balance"`
	TheoreticalBalance decimal.Decimal `json:"theoretical_balance"`
}

// Reconcile derives the theoretical balance:
//
//	saleBalance        = Σ completed sales total
//	movementsBalance   = Σ CASH_IN − Σ CASH_OUT
//	theoreticalBalance = initBalance + saleBalance + movementsBalance
//
// Annulled and returned sales do not count.
func Reconcile(initBalance decimal.Decimal, sales []model.OrderRef, movements []model.CashMovement) Reconciliation {
	saleBalance := decimal.Zero
	for _, s := range sales {
		if s.Status != model.OrderCompleted {
			continue
		}
		saleBalance = saleBalance.Add(s.Total)
	}

	cashIn, cashOut := decimal.Zero, decimal.Zero
	for _, m := range movements {
		switch m.Type {
		case model.CashIn:
			cashIn = cashIn.Add(m.Amount)
		case model.CashOut:
			cashOut = cashOut.Add(m.Amount)
		}
	}

	r := Reconciliation{
		InitBalance: Round2(initBalance),
		SaleBalance: Round2(saleBalance),
		CashIn:      Round2(cashIn),
		CashOut:     Round2(cashOut),
	}
	r.MovementsBalance = r.CashIn.Sub(r.CashOut)
	r.TheoreticalBalance = r.InitBalance.Add(r.SaleBalance).Add(r.MovementsBalance)
	return r
}

// ReconcileSession is Reconcile over a session; a nil session reconciles to zero.
func ReconcileSession(s *model.CashSession) Reconciliation {
	if s == nil {
		return Reconcile(decimal.Zero, nil, nil)
	}
	return Reconcile(s.InitBalance, s.Sales, s.Movements)
}
