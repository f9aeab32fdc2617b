package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cashledger/internal/dto"
	"cashledger/internal/infra"
	"cashledger/internal/ledger"
	"cashledger/internal/middleware"
	"cashledger/internal/model"
	"cashledger/internal/repository"
	"cashledger/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "handler-test-secret"

func init() { gin.SetMode(gin.TestMode) }

// ── Stub service ─────────────────────────────────────────────────────────────

// stubTerminal implements only what each test drives; any other call panics
// through the nil embedded interface.
type stubTerminal struct {
	service.TerminalService

	err        error
	current    *dto.SessionResponse
	lastKind   model.OrderKind
	lastCash   int
	lastReason string
	loggedOut  []int
	warning    *dto.StockWarningResponse
}

var _ service.TerminalService = (*stubTerminal)(nil)

func (s *stubTerminal) order(kind model.OrderKind) *dto.OrderResponse {
	return &dto.OrderResponse{Kind: string(kind), Status: string(model.OrderDraft), Editable: true}
}

func (s *stubTerminal) OpenSession(_ context.Context, cashierID int, employeeID uuid.UUID, req dto.OpenSessionRequest) (*dto.SessionResponse, error) {
	s.lastCash = cashierID
	if s.err != nil {
		return nil, s.err
	}
	return &dto.SessionResponse{CashierID: cashierID, EmployeeID: employeeID.String(), Status: string(model.SessionOpen), InitBalance: req.InitBalance}, nil
}

func (s *stubTerminal) CurrentSession(_ context.Context, _ int) (*dto.SessionResponse, error) {
	return s.current, s.err
}

func (s *stubTerminal) NewDraft(cashierID int, kind model.OrderKind) (*dto.OrderResponse, error) {
	s.lastCash, s.lastKind = cashierID, kind
	return s.order(kind), s.err
}

func (s *stubTerminal) AddProduct(_ context.Context, _ int, kind model.OrderKind, _ dto.AddLineRequest) (*dto.LineMutationResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &dto.LineMutationResponse{Order: s.order(kind)}, nil
}

func (s *stubTerminal) SetQuantity(_ int, kind model.OrderKind, _ int, _ int) (*dto.LineMutationResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &dto.LineMutationResponse{Order: s.order(kind), Warning: s.warning}, nil
}

func (s *stubTerminal) SubmitDraft(_ context.Context, _ int, kind model.OrderKind) (*dto.OrderResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	o := s.order(kind)
	o.Status, o.Editable = string(model.OrderCompleted), false
	return o, nil
}

func (s *stubTerminal) AnnulOrder(_ context.Context, _ int, _ uuid.UUID, reason string) error {
	s.lastReason = reason
	return s.err
}

func (s *stubTerminal) Logout(cashierID int) { s.loggedOut = append(s.loggedOut, cashierID) }

// ── Harness ──────────────────────────────────────────────────────────────────

func newTestEngine(svc service.TerminalService) *gin.Engine {
	r := gin.New()
	r.Use(middleware.ErrorHandler())
	cajaH := NewCajaHandler(svc)
	ordenesH := NewOrdenesHandler(svc)

	v1 := r.Group("/v1", middleware.JWTAuth(secret))
	v1.POST("/caja/abrir", cajaH.Abrir)
	v1.GET("/caja/actual", cajaH.Actual)
	v1.POST("/terminal/logout", cajaH.Logout)
	v1.POST("/borradores/:kind", ordenesH.Nuevo)
	v1.POST("/borradores/:kind/lineas", ordenesH.AgregarLinea)
	v1.PATCH("/borradores/:kind/lineas/:idx", ordenesH.ActualizarLinea)
	v1.POST("/borradores/:kind/enviar", ordenesH.Enviar)
	v1.POST("/ordenes/:id/anular", ordenesH.Anular)
	return r
}

func token(t *testing.T, cashier *int) string {
	t.Helper()
	tok, err := middleware.SignToken(secret, middleware.JWTClaims{
		UserID:    uuid.NewString(),
		Role:      "cashier",
		CashierID: cashier,
	}, time.Hour)
	require.NoError(t, err)
	return tok
}

func do(t *testing.T, r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	cashier := 7
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token(t, &cashier))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ── Tests ────────────────────────────────────────────────────────────────────

func TestAbrirCreatesSession(t *testing.T) {
	svc := &stubTerminal{}
	w := do(t, newTestEngine(svc), http.MethodPost, "/v1/caja/abrir", `{"init_balance":"100.00"}`)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, 7, svc.lastCash)
	var resp dto.SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, decimal.RequireFromString("100").Equal(resp.InitBalance))
}

func TestAbrirRejectsNegativeBalance(t *testing.T) {
	w := do(t, newTestEngine(&stubTerminal{}), http.MethodPost, "/v1/caja/abrir", `{"init_balance":"-1"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "InitBalance")
}

func TestAbrirTwiceConflicts(t *testing.T) {
	svc := &stubTerminal{err: &ledger.SessionStateError{Op: "open", Status: model.SessionOpen}}
	w := do(t, newTestEngine(svc), http.MethodPost, "/v1/caja/abrir", `{"init_balance":"0"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestActualWithoutSessionIs404(t *testing.T) {
	w := do(t, newTestEngine(&stubTerminal{}), http.MethodGet, "/v1/caja/actual", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTokenWithoutCashierIsForbidden(t *testing.T) {
	r := newTestEngine(&stubTerminal{})
	req := httptest.NewRequest(http.MethodGet, "/v1/caja/actual", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, nil))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestNuevoResolvesKindAliases(t *testing.T) {
	for path, want := range map[string]model.OrderKind{
		"/v1/borradores/venta":    model.KindSale,
		"/v1/borradores/SALE":     model.KindSale,
		"/v1/borradores/compra":   model.KindPurchase,
		"/v1/borradores/purchase": model.KindPurchase,
	} {
		svc := &stubTerminal{}
		w := do(t, newTestEngine(svc), http.MethodPost, path, "")
		assert.Equal(t, http.StatusCreated, w.Code, path)
		assert.Equal(t, want, svc.lastKind, path)
	}

	w := do(t, newTestEngine(&stubTerminal{}), http.MethodPost, "/v1/borradores/transfer", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAgregarLineaValidatesBody(t *testing.T) {
	r := newTestEngine(&stubTerminal{})

	w := do(t, r, http.MethodPost, "/v1/borradores/venta/lineas", `{"product_id":"nope"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(t, r, http.MethodPost, "/v1/borradores/venta/lineas", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAgregarLineaErrorMapping(t *testing.T) {
	cases := map[string]struct {
		err  error
		want int
	}{
		"out of stock":      {ledger.ErrOutOfStock, http.StatusUnprocessableEntity},
		"unknown product":   {repository.ErrProductNotFound, http.StatusNotFound},
		"duplicate product": {ledger.ErrDuplicateProduct, http.StatusConflict},
		"no draft":          {service.ErrNoDraft, http.StatusNotFound},
		"completed order":   {&ledger.OrderStateError{Op: "add product", Status: model.OrderCompleted}, http.StatusConflict},
	}
	body := `{"product_id":"` + uuid.NewString() + `"}`
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			w := do(t, newTestEngine(&stubTerminal{err: tc.err}), http.MethodPost, "/v1/borradores/venta/lineas", body)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestActualizarLineaReturnsStockWarning(t *testing.T) {
	svc := &stubTerminal{warning: &dto.StockWarningResponse{Index: 0, Requested: 9, Applied: 4}}
	w := do(t, newTestEngine(svc), http.MethodPatch, "/v1/borradores/venta/lineas/0", `{"quantity":9}`)

	require.Equal(t, http.StatusOK, w.Code)
	var resp dto.LineMutationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Warning)
	assert.Equal(t, 4, resp.Warning.Applied)
}

func TestActualizarLineaNeedsAField(t *testing.T) {
	w := do(t, newTestEngine(&stubTerminal{}), http.MethodPatch, "/v1/borradores/venta/lineas/0", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, newTestEngine(&stubTerminal{}), http.MethodPatch, "/v1/borradores/venta/lineas/x", `{"quantity":1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEnviarErrorMapping(t *testing.T) {
	cases := map[string]struct {
		err  error
		want int
	}{
		"invalid order":   {ledger.ValidationErrors{"lines": "at least one line is required"}, http.StatusUnprocessableEntity},
		"no session":      {&ledger.SessionStateError{Op: "submit sale"}, http.StatusConflict},
		"stock rejected":  {&ledger.PersistenceError{Op: "submit", Err: repository.ErrInsufficientStock}, http.StatusConflict},
		"backend failure": {&ledger.PersistenceError{Op: "submit", Err: errors.New("connection reset")}, http.StatusBadGateway},
		"breaker open":    {&ledger.PersistenceError{Op: "submit", Err: infra.ErrCircuitOpen}, http.StatusServiceUnavailable},
		"unexpected":      {errors.New("boom"), http.StatusInternalServerError},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			w := do(t, newTestEngine(&stubTerminal{err: tc.err}), http.MethodPost, "/v1/borradores/venta/enviar", "")
			assert.Equal(t, tc.want, w.Code, w.Body.String())
		})
	}
}

func TestEnviarValidationCarriesFields(t *testing.T) {
	svc := &stubTerminal{err: ledger.ValidationErrors{"number": "required"}}
	w := do(t, newTestEngine(svc), http.MethodPost, "/v1/borradores/compra/enviar", "")

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.JSONEq(t, `{"detail":"validation failed","fields":{"number":"required"}}`, w.Body.String())
}

func TestAnularRequiresReason(t *testing.T) {
	r := newTestEngine(&stubTerminal{})
	w := do(t, r, http.MethodPost, "/v1/ordenes/"+uuid.NewString()+"/anular", `{}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(t, r, http.MethodPost, "/v1/ordenes/not-a-uuid/anular", `{"reason":"wrong customer"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnularSucceeds(t *testing.T) {
	svc := &stubTerminal{}
	w := do(t, newTestEngine(svc), http.MethodPost, "/v1/ordenes/"+uuid.NewString()+"/anular", `{"reason":"wrong customer"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "wrong customer", svc.lastReason)
	assert.Contains(t, w.Body.String(), string(model.OrderAnnulled))
}

func TestLogout(t *testing.T) {
	svc := &stubTerminal{}
	w := do(t, newTestEngine(svc), http.MethodPost, "/v1/terminal/logout", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []int{7}, svc.loggedOut)
}
