package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderKind: "SALE" | "PURCHASE"
type OrderKind string

const (
	KindSale     OrderKind = "SALE"
	KindPurchase OrderKind = "PURCHASE"
)

// Valid reports whether k is a known order kind.
func (k OrderKind) Valid() bool {
	return k == KindSale || k == KindPurchase
}

// DocType only applies to SALE orders.
type DocType string

const (
	DocTicket  DocType = "TICKET"
	DocReceipt DocType = "RECEIPT"
	DocInvoice DocType = "INVOICE"
)

// Valid reports whether d is a known document type.
func (d DocType) Valid() bool {
	return d == DocTicket || d == DocReceipt || d == DocInvoice
}

// OrderStatus: DRAFT -> COMPLETED -> ANNULLED | RETURNED
type OrderStatus string

const (
	OrderDraft     OrderStatus = "DRAFT"
	OrderCompleted OrderStatus = "COMPLETED"
	OrderAnnulled  OrderStatus = "ANNULLED"
	OrderReturned  OrderStatus = "RETURNED"
)

// Terminal reports whether no further transition is possible.
func (s OrderStatus) Terminal() bool {
	return s == OrderAnnulled || s == OrderReturned
}

// Order is a sale or purchase document. Numbered documents are unique per
// (kind, doc type, series, number); unnumbered purchases are not constrained.
// Subtotal, TaxValue and Total are derived from Lines and ApplyTax; they are
// only filled in on a snapshot.
type Order struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	SessionID *uuid.UUID `gorm:"type:uuid;index" json:"session_id,omitempty"`
	Kind      OrderKind  `gorm:"type:varchar(10);not null" json:"kind"`
	DocType   DocType    `gorm:"type:varchar(10)" json:"doc_type,omitempty"`
	Series    string     `gorm:"type:varchar(10)" json:"series"`
	Number    string     `gorm:"type:varchar(20)" json:"number"`
	DateIssue *time.Time `json:"date_issue,omitempty"`
	// CounterpartyRef is the customer/enterprise for SALE and the supplier for PURCHASE.
	CounterpartyRef string      `json:"counterparty_ref,omitempty"`
	WarehouseID     string      `json:"warehouse_id,omitempty"`
	Lines           []LineItem  `gorm:"foreignKey:OrderID" json:"lines"`
	ApplyTax        bool        `gorm:"not null;default:false" json:"apply_tax"`
	Status          OrderStatus `gorm:"type:varchar(10);not null;default:'DRAFT'" json:"status"`
	AnnulReason     *string     `json:"annul_reason,omitempty"`

	Subtotal decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	TaxValue decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"tax_value"`
	Total    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total"`

	CreatedAt time.Time `json:"created_at"`
}

// Ref returns the view of o a cash session keeps.
func (o Order) Ref() OrderRef {
	return OrderRef{ID: o.ID, Number: o.Number, Total: o.Total, Status: o.Status}
}

// LineItem is one product entry in an order. Subtotal always equals
// round2(Quantity × UnitPrice).
type LineItem struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"-"`
	OrderID   uuid.UUID       `gorm:"type:uuid;index" json:"-"`
	ProductID uuid.UUID       `gorm:"type:uuid;not null" json:"product_id"`
	Name      string          `gorm:"not null" json:"name"`
	Brand     string          `json:"brand,omitempty"`
	Unit      string          `json:"unit,omitempty"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	Quantity  int             `gorm:"not null" json:"quantity"`
	// StockCap is the last known stock at selection time (SALE lines only).
	StockCap *int            `gorm:"-" json:"stock_cap,omitempty"`
	Subtotal decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
}
