package service

import (
	"context"
	"errors"
	"sync"

	"cashledger/internal/dto"
	"cashledger/internal/ledger"
	"cashledger/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// ErrNoDraft is returned when the cashier holds no order of the requested kind.
var ErrNoDraft = errors.New("no order in progress for this kind")

// Publisher receives order lifecycle events for async processing.
type Publisher interface {
	PublishOrderCompleted(ctx context.Context, order model.Order) error
	PublishOrderStatusChanged(ctx context.Context, order model.Order) error
}

// TerminalOptions carries the ledger settings every new order starts with.
type TerminalOptions struct {
	TaxRate       decimal.Decimal
	DefaultSeries string
}

// TerminalService is the per-cashier owner of a cash session and of one order
// per kind. All state is created on first use and destroyed by Logout.
type TerminalService interface {
	OpenSession(ctx context.Context, cashierID int, employeeID uuid.UUID, req dto.OpenSessionRequest) (*dto.SessionResponse, error)
	// CurrentSession returns nil, nil when the cashier has no open session.
	CurrentSession(ctx context.Context, cashierID int) (*dto.SessionResponse, error)
	RecordMovement(ctx context.Context, cashierID int, req dto.MovementRequest) (*dto.MovementResponse, error)
	CloseSession(ctx context.Context, cashierID int) (*dto.SessionResponse, error)

	NewDraft(cashierID int, kind model.OrderKind) (*dto.OrderResponse, error)
	Draft(cashierID int, kind model.OrderKind) (*dto.OrderResponse, error)
	AddProduct(ctx context.Context, cashierID int, kind model.OrderKind, req dto.AddLineRequest) (*dto.LineMutationResponse, error)
	SetQuantity(cashierID int, kind model.OrderKind, index, quantity int) (*dto.LineMutationResponse, error)
	SetUnitPrice(cashierID int, kind model.OrderKind, index int, price decimal.Decimal) (*dto.OrderResponse, error)
	RemoveLine(cashierID int, kind model.OrderKind, index int) (*dto.OrderResponse, error)
	SetTax(cashierID int, kind model.OrderKind, apply bool) (*dto.OrderResponse, error)
	UpdateHeader(cashierID int, kind model.OrderKind, req dto.HeaderRequest) (*dto.OrderResponse, error)
	SubmitDraft(ctx context.Context, cashierID int, kind model.OrderKind) (*dto.OrderResponse, error)
	AnnulOrder(ctx context.Context, cashierID int, orderID uuid.UUID, reason string) error
	ReturnOrder(ctx context.Context, cashierID int, orderID uuid.UUID) error

	Logout(cashierID int)
}

// terminal is the state owned on behalf of one cashier. mu serializes every
// operation on it, including the persistence calls.
type terminal struct {
	mu      sync.Mutex
	session *ledger.SessionManager
	orders  map[model.OrderKind]*ledger.OrderBuilder
}

type terminalService struct {
	catalog   ledger.ProductCatalog
	orders    ledger.OrderPersistence
	sessions  ledger.CashSessionPersistence
	publisher Publisher
	opts      TerminalOptions

	mu        sync.Mutex
	terminals map[int]*terminal
}

func NewTerminalService(
	catalog ledger.ProductCatalog,
	orders ledger.OrderPersistence,
	sessions ledger.CashSessionPersistence,
	publisher Publisher,
	opts TerminalOptions,
) TerminalService {
	if opts.TaxRate.IsZero() {
		opts.TaxRate = ledger.DefaultTaxRate
	}
	return &terminalService{
		catalog:   catalog,
		orders:    orders,
		sessions:  sessions,
		publisher: publisher,
		opts:      opts,
		terminals: make(map[int]*terminal),
	}
}

// terminal returns the cashier's state, creating it on first use, locked.
func (s *terminalService) terminal(cashierID int) *terminal {
	s.mu.Lock()
	t, ok := s.terminals[cashierID]
	if !ok {
		t = &terminal{
			session: ledger.NewSessionManager(s.sessions),
			orders:  make(map[model.OrderKind]*ledger.OrderBuilder),
		}
		s.terminals[cashierID] = t
	}
	s.mu.Unlock()
	t.mu.Lock()
	return t
}

// ── Cash session ──────────────────────────────────────────────────────────────

func (s *terminalService) OpenSession(ctx context.Context, cashierID int, employeeID uuid.UUID, req dto.OpenSessionRequest) (*dto.SessionResponse, error) {
	t := s.terminal(cashierID)
	defer t.mu.Unlock()

	sess, err := t.session.Open(ctx, cashierID, employeeID, req.InitBalance)
	if err != nil {
		return nil, err
	}
	return dto.NewSessionResponse(sess), nil
}

func (s *terminalService) CurrentSession(ctx context.Context, cashierID int) (*dto.SessionResponse, error) {
	t := s.terminal(cashierID)
	defer t.mu.Unlock()

	sess, err := s.loadSession(ctx, t, cashierID)
	if err != nil || sess == nil {
		return nil, err
	}
	return dto.NewSessionResponse(sess), nil
}

func (s *terminalService) RecordMovement(ctx context.Context, cashierID int, req dto.MovementRequest) (*dto.MovementResponse, error) {
	t := s.terminal(cashierID)
	defer t.mu.Unlock()

	if _, err := s.loadSession(ctx, t, cashierID); err != nil {
		return nil, err
	}
	mov, err := t.session.RecordMovement(ctx, model.MovementType(req.Type), req.Amount, req.Description)
	if err != nil {
		return nil, err
	}
	resp := dto.NewMovementResponse(*mov)
	return &resp, nil
}

func (s *terminalService) CloseSession(ctx context.Context, cashierID int) (*dto.SessionResponse, error) {
	t := s.terminal(cashierID)
	defer t.mu.Unlock()

	if _, err := s.loadSession(ctx, t, cashierID); err != nil {
		return nil, err
	}
	closed, err := t.session.Close(ctx)
	if err != nil {
		return nil, err
	}
	return dto.NewSessionResponse(closed), nil
}

// loadSession returns the session held in memory if it is open, otherwise it
// resumes the cashier's open session from the backend (after a restart).
func (s *terminalService) loadSession(ctx context.Context, t *terminal, cashierID int) (*model.CashSession, error) {
	if cur := t.session.Current(); cur.IsOpen() {
		return cur, nil
	}
	return t.session.Resume(ctx, cashierID)
}

// ── Orders ────────────────────────────────────────────────────────────────────

func (s *terminalService) NewDraft(cashierID int, kind model.OrderKind) (*dto.OrderResponse, error) {
	if !kind.Valid() {
		return nil, ledger.ValidationErrors{"kind": "must be SALE or PURCHASE"}
	}
	t := s.terminal(cashierID)
	defer t.mu.Unlock()

	b := ledger.NewOrderBuilder(kind, s.orders, ledger.WithTaxRate(s.opts.TaxRate))
	if kind == model.KindSale && s.opts.DefaultSeries != "" {
		series := s.opts.DefaultSeries
		if err := b.SetHeader(ledger.HeaderPatch{Series: &series}); err != nil {
			return nil, err
		}
	}
	b.OnTotalsChanged(func(tot ledger.Totals) {
		log.Debug().
			Int("cashier_id", cashierID).
			Str("kind", string(kind)).
			Str("total", tot.Total.StringFixed(2)).
			Msg("terminal: totals changed")
	})
	t.orders[kind] = b
	return dto.NewOrderResponse(b), nil
}

func (s *terminalService) Draft(cashierID int, kind model.OrderKind) (*dto.OrderResponse, error) {
	t := s.terminal(cashierID)
	defer t.mu.Unlock()

	b, err := t.builder(kind)
	if err != nil {
		return nil, err
	}
	return dto.NewOrderResponse(b), nil
}

func (s *terminalService) AddProduct(ctx context.Context, cashierID int, kind model.OrderKind, req dto.AddLineRequest) (*dto.LineMutationResponse, error) {
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		return nil, ledger.ValidationErrors{"product_id": "must be a UUID"}
	}

	t := s.terminal(cashierID)
	defer t.mu.Unlock()

	b, err := t.builder(kind)
	if err != nil {
		return nil, err
	}
	p, err := s.catalog.Lookup(ctx, productID)
	if err != nil {
		return nil, err
	}

	stockCap := req.StockCap
	if stockCap == nil {
		stock := p.Stock
		stockCap = &stock
	}
	warn, err := b.AddLine(*p, stockCap)
	if err != nil {
		return nil, err
	}
	return &dto.LineMutationResponse{Order: dto.NewOrderResponse(b), Warning: dto.NewStockWarningResponse(warn)}, nil
}

func (s *terminalService) SetQuantity(cashierID int, kind model.OrderKind, index, quantity int) (*dto.LineMutationResponse, error) {
	t := s.terminal(cashierID)
	defer t.mu.Unlock()

	b, err := t.builder(kind)
	if err != nil {
		return nil, err
	}
	warn, err := b.SetQuantity(index, quantity)
	if err != nil {
		return nil, err
	}
	return &dto.LineMutationResponse{Order: dto.NewOrderResponse(b), Warning: dto.NewStockWarningResponse(warn)}, nil
}

func (s *terminalService) SetUnitPrice(cashierID int, kind model.OrderKind, index int, price decimal.Decimal) (*dto.OrderResponse, error) {
	return s.mutate(cashierID, kind, func(b *ledger.OrderBuilder) error { return b.SetUnitPrice(index, price) })
}

func (s *terminalService) RemoveLine(cashierID int, kind model.OrderKind, index int) (*dto.OrderResponse, error) {
	return s.mutate(cashierID, kind, func(b *ledger.OrderBuilder) error { return b.RemoveLine(index) })
}

func (s *terminalService) SetTax(cashierID int, kind model.OrderKind, apply bool) (*dto.OrderResponse, error) {
	return s.mutate(cashierID, kind, func(b *ledger.OrderBuilder) error { return b.SetTax(apply) })
}

func (s *terminalService) UpdateHeader(cashierID int, kind model.OrderKind, req dto.HeaderRequest) (*dto.OrderResponse, error) {
	patch := ledger.HeaderPatch{
		Series:          req.Series,
		Number:          req.Number,
		CounterpartyRef: req.CounterpartyRef,
		WarehouseID:     req.WarehouseID,
		DateIssue:       req.DateIssue,
	}
	if req.DocType != nil {
		dt := model.DocType(*req.DocType)
		patch.DocType = &dt
	}
	return s.mutate(cashierID, kind, func(b *ledger.OrderBuilder) error { return b.SetHeader(patch) })
}

func (s *terminalService) mutate(cashierID int, kind model.OrderKind, fn func(b *ledger.OrderBuilder) error) (*dto.OrderResponse, error) {
	t := s.terminal(cashierID)
	defer t.mu.Unlock()

	b, err := t.builder(kind)
	if err != nil {
		return nil, err
	}
	if err := fn(b); err != nil {
		return nil, err
	}
	return dto.NewOrderResponse(b), nil
}

// ── Submit / annul / return ───────────────────────────────────────────────────

// SubmitDraft persists the cashier's order. A SALE needs an open cash
// session; once completed it is added to the session's sales.
func (s *terminalService) SubmitDraft(ctx context.Context, cashierID int, kind model.OrderKind) (*dto.OrderResponse, error) {
	t := s.terminal(cashierID)
	defer t.mu.Unlock()

	b, err := t.builder(kind)
	if err != nil {
		return nil, err
	}
	if !b.Editable() {
		return nil, &ledger.OrderStateError{Op: "submit", Status: b.Status()}
	}

	sess, err := s.loadSession(ctx, t, cashierID)
	if err != nil {
		return nil, err
	}
	if kind == model.KindSale && !sess.IsOpen() {
		return nil, &ledger.SessionStateError{Op: "submit sale"}
	}
	if sess.IsOpen() {
		id := sess.ID
		if err := b.SetHeader(ledger.HeaderPatch{SessionID: &id}); err != nil {
			return nil, err
		}
	}

	order, err := b.Submit(ctx)
	if err != nil {
		return nil, err
	}
	if kind == model.KindSale {
		if err := t.session.AddSale(order); err != nil {
			log.Error().Err(err).Str("order_id", order.ID.String()).Msg("terminal: sale not added to session")
		}
	}
	s.publish(ctx, order, true)
	return dto.NewOrderResponse(b), nil
}

func (s *terminalService) AnnulOrder(ctx context.Context, cashierID int, orderID uuid.UUID, reason string) error {
	order, err := s.annul(ctx, cashierID, orderID, reason)
	if err != nil {
		return err
	}
	s.settleSale(cashierID, orderID, model.OrderAnnulled)
	s.publish(ctx, order, false)
	return nil
}

func (s *terminalService) annul(ctx context.Context, cashierID int, orderID uuid.UUID, reason string) (model.Order, error) {
	t := s.terminal(cashierID)
	defer t.mu.Unlock()

	if b := t.held(orderID); b != nil {
		if err := b.Annul(ctx, reason); err != nil {
			return model.Order{}, err
		}
		return b.Snapshot(), nil
	}
	trimmed, err := ledger.CheckAnnulReason(reason)
	if err != nil {
		return model.Order{}, err
	}
	if err := s.orders.Annul(ctx, orderID, trimmed); err != nil {
		return model.Order{}, &ledger.PersistenceError{Op: "annul", Err: err}
	}
	return model.Order{ID: orderID, Status: model.OrderAnnulled, AnnulReason: &trimmed}, nil
}

func (s *terminalService) ReturnOrder(ctx context.Context, cashierID int, orderID uuid.UUID) error {
	order, err := s.markReturned(ctx, cashierID, orderID)
	if err != nil {
		return err
	}
	s.settleSale(cashierID, orderID, model.OrderReturned)
	s.publish(ctx, order, false)
	return nil
}

func (s *terminalService) markReturned(ctx context.Context, cashierID int, orderID uuid.UUID) (model.Order, error) {
	t := s.terminal(cashierID)
	defer t.mu.Unlock()

	if b := t.held(orderID); b != nil {
		if err := b.Return(ctx); err != nil {
			return model.Order{}, err
		}
		return b.Snapshot(), nil
	}
	if err := s.orders.Return(ctx, orderID); err != nil {
		return model.Order{}, &ledger.PersistenceError{Op: "return", Err: err}
	}
	return model.Order{ID: orderID, Status: model.OrderReturned}, nil
}

// settleSale records the new status of a sale in whichever terminal's session
// holds it, the acting cashier's first. Terminals are locked one at a time.
func (s *terminalService) settleSale(actorID int, orderID uuid.UUID, status model.OrderStatus) {
	s.mu.Lock()
	ids := make([]int, 0, len(s.terminals))
	ids = append(ids, actorID)
	for id := range s.terminals {
		if id != actorID {
			ids = append(ids, id)
		}
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.mu.Lock()
		t, ok := s.terminals[id]
		s.mu.Unlock()
		if !ok {
			continue
		}
		t.mu.Lock()
		found := t.session.UpdateSaleStatus(orderID, status)
		t.mu.Unlock()
		if found {
			return
		}
	}
}

// Logout drops everything held for the cashier. Unsubmitted drafts are lost;
// the open cash session stays open on the backend.
func (s *terminalService) Logout(cashierID int) {
	s.mu.Lock()
	t, ok := s.terminals[cashierID]
	delete(s.terminals, cashierID)
	s.mu.Unlock()
	if ok {
		t.mu.Lock()
		t.orders = nil
		t.mu.Unlock()
	}
	log.Info().Int("cashier_id", cashierID).Msg("terminal: logged out")
}

func (s *terminalService) publish(ctx context.Context, order model.Order, completed bool) {
	if s.publisher == nil {
		return
	}
	var err error
	if completed {
		err = s.publisher.PublishOrderCompleted(ctx, order)
	} else {
		err = s.publisher.PublishOrderStatusChanged(ctx, order)
	}
	if err != nil {
		log.Warn().Err(err).Str("order_id", order.ID.String()).Msg("terminal: failed to enqueue order event")
	}
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func (t *terminal) builder(kind model.OrderKind) (*ledger.OrderBuilder, error) {
	if !kind.Valid() {
		return nil, ledger.ValidationErrors{"kind": "must be SALE or PURCHASE"}
	}
	b, ok := t.orders[kind]
	if !ok {
		return nil, ErrNoDraft
	}
	return b, nil
}

// held returns the submitted order with id if the terminal still holds it.
func (t *terminal) held(id uuid.UUID) *ledger.OrderBuilder {
	for _, b := range t.orders {
		if !b.Editable() && b.ID() == id {
			return b
		}
	}
	return nil
}
