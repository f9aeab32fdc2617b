package ledger

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"cashledger/internal/model"
)

var (
	seriesPattern = regexp.MustCompile(`^\d{3}$`)
	numberPattern = regexp.MustCompile(`^\d{1,3}$`)
)

const minAnnulReasonLen = 5

// Totals are the derived amounts of an order.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	TaxValue decimal.Decimal `json:"tax_value"`
	Total    decimal.Decimal `json:"total"`
}

// LineEvent is emitted whenever a line is added, changed or removed.
type LineEvent struct {
	Index   int
	Line    model.LineItem
	Removed bool
}

// HeaderPatch carries the document header fields. Nil fields are kept.
type HeaderPatch struct {
	DocType         *model.DocType
	Series          *string
	Number          *string
	CounterpartyRef *string
	WarehouseID     *string
	DateIssue       *time.Time
	SessionID       *uuid.UUID
}

// Option configures an OrderBuilder.
type Option func(*OrderBuilder)

// WithTaxRate overrides DefaultTaxRate.
func WithTaxRate(rate decimal.Decimal) Option {
	return func(b *OrderBuilder) { b.taxRate = rate }
}

// WithSequencer overrides the LocalSequencer used after a successful submit.
func WithSequencer(s Sequencer) Option {
	return func(b *OrderBuilder) { b.sequencer = s }
}

// OrderBuilder composes a sale or purchase order. SALE builders bound line
// quantities by the stock cap captured at selection time; PURCHASE builders
// only require quantity >= 1.
//
// An OrderBuilder is owned by one caller and is not safe for concurrent use.
type OrderBuilder struct {
	order             model.Order
	lines             *Lines
	enforceStockBound bool
	taxRate           decimal.Decimal
	persistence       OrderPersistence
	sequencer         Sequencer
	nextNumber        string

	onLine   []func(LineEvent)
	onTotals []func(Totals)
}

func NewOrderBuilder(kind model.OrderKind, persistence OrderPersistence, opts ...Option) *OrderBuilder {
	b := &OrderBuilder{
		order: model.Order{
			Kind:   kind,
			Status: model.OrderDraft,
		},
		lines:             NewLines(),
		enforceStockBound: kind == model.KindSale,
		taxRate:           DefaultTaxRate,
		persistence:       persistence,
		sequencer:         LocalSequencer{},
	}
	if kind == model.KindSale {
		b.order.DocType = model.DocTicket
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// OnLineChanged registers fn to be called after every line mutation.
func (b *OrderBuilder) OnLineChanged(fn func(LineEvent)) { b.onLine = append(b.onLine, fn) }

// OnTotalsChanged registers fn to be called after mutations that change totals.
func (b *OrderBuilder) OnTotalsChanged(fn func(Totals)) { b.onTotals = append(b.onTotals, fn) }

func (b *OrderBuilder) Kind() model.OrderKind     { return b.order.Kind }
func (b *OrderBuilder) Status() model.OrderStatus { return b.order.Status }
func (b *OrderBuilder) ID() uuid.UUID             { return b.order.ID }

// Editable reports whether lines, tax and header may still change.
func (b *OrderBuilder) Editable() bool { return b.order.Status == model.OrderDraft }

// NextNumber is the provisional number for the next document of the same
// series, available after a successful SALE submit. It is a preview only.
func (b *OrderBuilder) NextNumber() string { return b.nextNumber }

// Lines returns a read-only copy of the current lines.
func (b *OrderBuilder) Lines() []model.LineItem { return b.lines.All() }

// Snapshot returns the order with its lines and derived totals filled in.
func (b *OrderBuilder) Snapshot() model.Order {
	o := b.order
	o.Lines = b.lines.All()
	t := b.ComputeTotals()
	o.Subtotal, o.TaxValue, o.Total = t.Subtotal, t.TaxValue, t.Total
	return o
}

// ── Lines ─────────────────────────────────────────────────────────────────────

// AddLine adds product with quantity 1, or increments the existing line for
// the same product. stockCap is only kept for SALE orders.
func (b *OrderBuilder) AddLine(p model.Product, stockCap *int) (*StockExceededWarning, error) {
	if err := b.requireDraft("add line"); err != nil {
		return nil, err
	}
	if !b.enforceStockBound {
		stockCap = nil
	}
	if stockCap != nil && *stockCap < 1 {
		return nil, fmt.Errorf("%s: %w", p.Name, ErrOutOfStock)
	}

	if idx := b.lines.FindByProductID(p.ID); idx >= 0 {
		line, err := b.lines.Get(idx)
		if err != nil {
			return nil, err
		}
		if stockCap != nil {
			if _, err := b.lines.Update(idx, LinePatch{StockCap: stockCap}); err != nil {
				return nil, err
			}
		}
		return b.SetQuantity(idx, line.Quantity+1)
	}

	price := p.Price
	if b.order.Kind == model.KindPurchase {
		price = p.Cost
	}
	if price.IsNegative() {
		return nil, ErrNegativePrice
	}
	line := model.LineItem{
		ProductID: p.ID,
		Name:      p.Name,
		Brand:     p.Brand,
		Unit:      p.Unit,
		UnitPrice: price,
		Quantity:  1,
		StockCap:  stockCap,
	}
	idx, err := b.lines.Add(line)
	if err != nil {
		return nil, err
	}
	added, _ := b.lines.Get(idx)
	b.emitLine(LineEvent{Index: idx, Line: added})
	b.emitTotals()
	return nil, nil
}

// SetQuantity clamps requested into [1, stockCap] for SALE lines and
// [1, ∞) for PURCHASE lines. A clamp down to the stock cap is reported as a
// warning; the call still succeeds.
func (b *OrderBuilder) SetQuantity(index int, requested int) (*StockExceededWarning, error) {
	if err := b.requireDraft("set quantity"); err != nil {
		return nil, err
	}
	line, err := b.lines.Get(index)
	if err != nil {
		return nil, err
	}

	qty := requested
	if qty < 1 {
		qty = 1
	}
	var warn *StockExceededWarning
	if b.enforceStockBound && line.StockCap != nil && qty > *line.StockCap {
		qty = *line.StockCap
		warn = &StockExceededWarning{
			Index:     index,
			ProductID: line.ProductID.String(),
			Requested: requested,
			Applied:   qty,
		}
		log.Warn().
			Str("product_id", warn.ProductID).
			Int("requested", requested).
			Int("stock_cap", qty).
			Msg("order_builder: quantity clamped to stock")
	}

	updated, err := b.lines.Update(index, LinePatch{Quantity: &qty})
	if err != nil {
		return nil, err
	}
	b.emitLine(LineEvent{Index: index, Line: updated})
	b.emitTotals()
	return warn, nil
}

// SetUnitPrice changes a line's price. Only the line subtotal is recomputed
// here; order totals are derived on the next read.
func (b *OrderBuilder) SetUnitPrice(index int, price decimal.Decimal) error {
	if err := b.requireDraft("set unit price"); err != nil {
		return err
	}
	if price.IsNegative() {
		return ErrNegativePrice
	}
	updated, err := b.lines.Update(index, LinePatch{UnitPrice: &price})
	if err != nil {
		return err
	}
	b.emitLine(LineEvent{Index: index, Line: updated})
	return nil
}

func (b *OrderBuilder) RemoveLine(index int) error {
	if err := b.requireDraft("remove line"); err != nil {
		return err
	}
	removed, err := b.lines.Remove(index)
	if err != nil {
		return err
	}
	b.emitLine(LineEvent{Index: index, Line: removed, Removed: true})
	b.emitTotals()
	return nil
}

// ── Tax & header ──────────────────────────────────────────────────────────────

func (b *OrderBuilder) ToggleTax() error {
	return b.SetTax(!b.order.ApplyTax)
}

func (b *OrderBuilder) SetTax(apply bool) error {
	if err := b.requireDraft("set tax"); err != nil {
		return err
	}
	if b.order.ApplyTax == apply {
		return nil
	}
	b.order.ApplyTax = apply
	b.emitTotals()
	return nil
}

// SetHeader updates document header fields. DocType is rejected for PURCHASE orders.
func (b *OrderBuilder) SetHeader(h HeaderPatch) error {
	if err := b.requireDraft("set header"); err != nil {
		return err
	}
	if h.DocType != nil {
		if b.order.Kind != model.KindSale {
			return ValidationErrors{"docType": "only sale orders have a document type"}
		}
		if !h.DocType.Valid() {
			return ValidationErrors{"docType": "must be TICKET, RECEIPT or INVOICE"}
		}
		b.order.DocType = *h.DocType
	}
	if h.Series != nil {
		b.order.Series = strings.TrimSpace(*h.Series)
	}
	if h.Number != nil {
		b.order.Number = strings.TrimSpace(*h.Number)
	}
	if h.CounterpartyRef != nil {
		b.order.CounterpartyRef = strings.TrimSpace(*h.CounterpartyRef)
	}
	if h.WarehouseID != nil {
		b.order.WarehouseID = strings.TrimSpace(*h.WarehouseID)
	}
	if h.DateIssue != nil {
		d := *h.DateIssue
		b.order.DateIssue = &d
	}
	if h.SessionID != nil {
		id := *h.SessionID
		b.order.SessionID = &id
	}
	return nil
}

// ── Derived values ────────────────────────────────────────────────────────────

// ComputeTotals derives subtotal, tax and total from the current lines.
// Every step is rounded to two decimals.
func (b *OrderBuilder) ComputeTotals() Totals {
	subtotal := decimal.Zero
	for _, line := range b.lines.items {
		subtotal = subtotal.Add(lineSubtotal(line.Quantity, line.UnitPrice))
	}
	subtotal = Round2(subtotal)

	tax := decimal.Zero
	if b.order.ApplyTax {
		tax = Round2(subtotal.Mul(b.taxRate))
	}
	return Totals{
		Subtotal: subtotal,
		TaxValue: tax,
		Total:    Round2(subtotal.Add(tax)),
	}
}

// Validate returns the field-keyed problems that block a submit.
func (b *OrderBuilder) Validate() ValidationErrors {
	errs := ValidationErrors{}
	o := b.order

	if b.lines.Len() == 0 {
		errs["lines"] = "at least one line is required"
	}
	for i, line := range b.lines.items {
		if line.Quantity < 1 {
			errs[fmt.Sprintf("lines[%d].quantity", i)] = "must be at least 1"
		}
	}

	switch o.Kind {
	case model.KindSale:
		if !o.DocType.Valid() {
			errs["docType"] = "must be TICKET, RECEIPT or INVOICE"
			break
		}
		if o.DocType == model.DocTicket {
			break
		}
		if o.CounterpartyRef == "" {
			errs["counterpartyRef"] = "customer is required"
		}
		if !seriesPattern.MatchString(o.Series) {
			errs["series"] = "must be exactly 3 digits"
		}
		if !numberPattern.MatchString(o.Number) {
			errs["number"] = "must be 1 to 3 digits"
		}
	case model.KindPurchase:
		if o.WarehouseID == "" {
			errs["warehouseId"] = "warehouse is required"
		}
		if o.CounterpartyRef == "" {
			errs["supplierRef"] = "supplier is required"
		}
		if o.DateIssue == nil || o.DateIssue.IsZero() {
			errs["dateIssue"] = "issue date is required"
		}
	default:
		errs["kind"] = "must be SALE or PURCHASE"
	}
	return errs
}

// ── Lifecycle ─────────────────────────────────────────────────────────────────

// Submit validates and persists the order. On success the builder becomes
// COMPLETED and its lines are frozen. On failure the draft is left exactly
// as it was so the caller can correct it and retry.
func (b *OrderBuilder) Submit(ctx context.Context) (model.Order, error) {
	if err := b.requireDraft("submit"); err != nil {
		return model.Order{}, err
	}
	if err := b.Validate().OrNil(); err != nil {
		return model.Order{}, err
	}

	snapshot := b.Snapshot()
	snapshot.Status = model.OrderCompleted

	res, err := b.persistence.Submit(ctx, snapshot)
	if err != nil {
		log.Error().Err(err).
			Str("kind", string(b.order.Kind)).
			Str("number", b.order.Number).
			Msg("order_builder: submit rejected")
		return model.Order{}, &PersistenceError{Op: "submit", Err: err}
	}

	b.order.ID = res.ID
	if res.AssignedNumber != "" {
		b.order.Number = res.AssignedNumber
	}
	b.order.Status = model.OrderCompleted
	b.order.CreatedAt = time.Now()

	if b.order.Kind == model.KindSale {
		next, err := b.sequencer.Next(b.order.Number)
		if err != nil {
			log.Warn().Err(err).Str("number", b.order.Number).Msg("order_builder: no next number preview")
		}
		b.nextNumber = next
	}

	out := b.Snapshot()
	log.Info().
		Str("order_id", out.ID.String()).
		Str("kind", string(out.Kind)).
		Str("number", out.Number).
		Str("total", out.Total.StringFixed(2)).
		Msg("order_builder: order completed")
	return out, nil
}

// Annul moves a COMPLETED order to ANNULLED. A reason is required.
func (b *OrderBuilder) Annul(ctx context.Context, reason string) error {
	if b.order.Status != model.OrderCompleted {
		return &OrderStateError{Op: "annul", Status: b.order.Status}
	}
	reason, err := CheckAnnulReason(reason)
	if err != nil {
		return err
	}
	if err := b.persistence.Annul(ctx, b.order.ID, reason); err != nil {
		return &PersistenceError{Op: "annul", Err: err}
	}
	b.order.Status = model.OrderAnnulled
	b.order.AnnulReason = &reason
	log.Info().Str("order_id", b.order.ID.String()).Str("reason", reason).Msg("order_builder: order annulled")
	return nil
}

// CheckAnnulReason trims reason and rejects it when it is too short.
func CheckAnnulReason(reason string) (string, error) {
	reason = strings.TrimSpace(reason)
	if len(reason) < minAnnulReasonLen {
		return "", ValidationErrors{"reason": fmt.Sprintf("must be at least %d characters", minAnnulReasonLen)}
	}
	return reason, nil
}

// Return moves a COMPLETED order to RETURNED.
func (b *OrderBuilder) Return(ctx context.Context) error {
	if b.order.Status != model.OrderCompleted {
		return &OrderStateError{Op: "return", Status: b.order.Status}
	}
	if err := b.persistence.Return(ctx, b.order.ID); err != nil {
		return &PersistenceError{Op: "return", Err: err}
	}
	b.order.Status = model.OrderReturned
	log.Info().Str("order_id", b.order.ID.String()).Msg("order_builder: order returned")
	return nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func (b *OrderBuilder) requireDraft(op string) error {
	if b.order.Status != model.OrderDraft {
		return &OrderStateError{Op: op, Status: b.order.Status}
	}
	return nil
}

func (b *OrderBuilder) emitLine(ev LineEvent) {
	for _, fn := range b.onLine {
		fn(ev)
	}
}

func (b *OrderBuilder) emitTotals() {
	if len(b.onTotals) == 0 {
		return
	}
	t := b.ComputeTotals()
	for _, fn := range b.onTotals {
		fn(t)
	}
}
