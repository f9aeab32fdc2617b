package dto

import (
	"time"

	"cashledger/internal/ledger"
	"cashledger/internal/model"

	"github.com/shopspring/decimal"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

// AddLineRequest selects a product. StockCap overrides the catalog stock
// snapshot; it is ignored for purchases.
type AddLineRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	StockCap  *int   `json:"stock_cap"  validate:"omitempty,min=0"`
}

// UpdateLineRequest changes quantity and/or unit price of one line.
type UpdateLineRequest struct {
	Quantity  *int             `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unit_price"`
}

type TaxRequest struct {
	Apply *bool `json:"apply" validate:"required"`
}

type HeaderRequest struct {
	DocType         *string    `json:"doc_type"         validate:"omitempty,oneof=TICKET RECEIPT INVOICE"`
	Series          *string    `json:"series"           validate:"omitempty,max=10"`
	Number          *string    `json:"number"           validate:"omitempty,max=20"`
	CounterpartyRef *string    `json:"counterparty_ref" validate:"omitempty,max=120"`
	WarehouseID     *string    `json:"warehouse_id"     validate:"omitempty,max=60"`
	DateIssue       *time.Time `json:"date_issue"`
}

type AnnulRequest struct {
	Reason string `json:"reason" validate:"required,max=255"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type LineResponse struct {
	Index     int             `json:"index"`
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Brand     string          `json:"brand,omitempty"`
	Unit      string          `json:"unit"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	StockCap  *int            `json:"stock_cap,omitempty"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type OrderResponse struct {
	ID              string            `json:"id,omitempty"`
	Kind            string            `json:"kind"`
	DocType         string            `json:"doc_type,omitempty"`
	Series          string            `json:"series"`
	Number          string            `json:"number"`
	NextNumber      string            `json:"next_number,omitempty"`
	DateIssue       *time.Time        `json:"date_issue,omitempty"`
	CounterpartyRef string            `json:"counterparty_ref,omitempty"`
	WarehouseID     string            `json:"warehouse_id,omitempty"`
	Status          string            `json:"status"`
	Editable        bool              `json:"editable"`
	ApplyTax        bool              `json:"apply_tax"`
	AnnulReason     *string           `json:"annul_reason,omitempty"`
	Lines           []LineResponse    `json:"lines"`
	Subtotal        decimal.Decimal   `json:"subtotal"`
	TaxValue        decimal.Decimal   `json:"tax_value"`
	Total           decimal.Decimal   `json:"total"`
	Errors          map[string]string `json:"errors,omitempty"`
}

type StockWarningResponse struct {
	Index     int    `json:"index"`
	ProductID string `json:"product_id"`
	Requested int    `json:"requested"`
	Applied   int    `json:"applied"`
	Message   string `json:"message"`
}

// LineMutationResponse is returned by line edits. Warning is set when the
// requested quantity was clamped to the stock cap.
type LineMutationResponse struct {
	Order   *OrderResponse        `json:"order"`
	Warning *StockWarningResponse `json:"warning,omitempty"`
}

func NewStockWarningResponse(w *ledger.StockExceededWarning) *StockWarningResponse {
	if w == nil {
		return nil
	}
	return &StockWarningResponse{
		Index:     w.Index,
		ProductID: w.ProductID,
		Requested: w.Requested,
		Applied:   w.Applied,
		Message:   w.String(),
	}
}

// NewOrderResponse renders a builder's current state, including the
// validation map for drafts.
func NewOrderResponse(b *ledger.OrderBuilder) *OrderResponse {
	o := b.Snapshot()
	resp := &OrderResponse{
		Kind:            string(o.Kind),
		DocType:         string(o.DocType),
		Series:          o.Series,
		Number:          o.Number,
		NextNumber:      b.NextNumber(),
		DateIssue:       o.DateIssue,
		CounterpartyRef: o.CounterpartyRef,
		WarehouseID:     o.WarehouseID,
		Status:          string(o.Status),
		Editable:        b.Editable(),
		ApplyTax:        o.ApplyTax,
		AnnulReason:     o.AnnulReason,
		Lines:           make([]LineResponse, 0, len(o.Lines)),
		Subtotal:        o.Subtotal,
		TaxValue:        o.TaxValue,
		Total:           o.Total,
	}
	if o.Status != model.OrderDraft {
		resp.ID = o.ID.String()
	} else if errs := b.Validate(); len(errs) > 0 {
		resp.Errors = errs
	}
	for i, l := range o.Lines {
		resp.Lines = append(resp.Lines, LineResponse{
			Index:     i,
			ProductID: l.ProductID.String(),
			Name:      l.Name,
			Brand:     l.Brand,
			Unit:      l.Unit,
			UnitPrice: l.UnitPrice,
			Quantity:  l.Quantity,
			StockCap:  l.StockCap,
			Subtotal:  l.Subtotal,
		})
	}
	return resp
}
