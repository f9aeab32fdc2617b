package handler

import (
	"net/http"

	"cashledger/internal/apierror"
	"cashledger/internal/dto"
	"cashledger/internal/model"
	"cashledger/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// OrdenesHandler exposes the cashier's in-progress sale and purchase orders
// (/v1/borradores/:kind) and the annul/return of completed ones (/v1/ordenes/:id).
type OrdenesHandler struct{ svc service.TerminalService }

func NewOrdenesHandler(svc service.TerminalService) *OrdenesHandler {
	return &OrdenesHandler{svc: svc}
}

// Nuevo starts a fresh order, replacing whatever the cashier held for that kind.
// POST /v1/borradores/:kind
func (h *OrdenesHandler) Nuevo(c *gin.Context) {
	cashier, kind, ok := scope(c)
	if !ok {
		return
	}
	resp, err := h.svc.NewDraft(cashier, kind)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Obtener returns the current order with totals and validation errors.
// GET /v1/borradores/:kind
func (h *OrdenesHandler) Obtener(c *gin.Context) {
	cashier, kind, ok := scope(c)
	if !ok {
		return
	}
	resp, err := h.svc.Draft(cashier, kind)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// AgregarLinea adds a product, or increments its existing line.
// POST /v1/borradores/:kind/lineas
func (h *OrdenesHandler) AgregarLinea(c *gin.Context) {
	var req dto.AddLineRequest
	if !bindAndValidate(c, &req) {
		return
	}
	cashier, kind, ok := scope(c)
	if !ok {
		return
	}
	resp, err := h.svc.AddProduct(c.Request.Context(), cashier, kind, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ActualizarLinea sets quantity and/or unit price of a line. A quantity
// clamped to stock still answers 200 with a warning.
// PATCH /v1/borradores/:kind/lineas/:idx
func (h *OrdenesHandler) ActualizarLinea(c *gin.Context) {
	var req dto.UpdateLineRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if req.Quantity == nil && req.UnitPrice == nil {
		c.JSON(http.StatusBadRequest, apierror.New("quantity or unit_price is required"))
		return
	}
	cashier, kind, ok := scope(c)
	if !ok {
		return
	}
	idx, ok := lineIndex(c)
	if !ok {
		return
	}

	resp := &dto.LineMutationResponse{}
	if req.UnitPrice != nil {
		order, err := h.svc.SetUnitPrice(cashier, kind, idx, *req.UnitPrice)
		if err != nil {
			respondError(c, err)
			return
		}
		resp.Order = order
	}
	if req.Quantity != nil {
		r, err := h.svc.SetQuantity(cashier, kind, idx, *req.Quantity)
		if err != nil {
			respondError(c, err)
			return
		}
		resp = r
	}
	c.JSON(http.StatusOK, resp)
}

// EliminarLinea removes a line; later lines shift down by one.
// DELETE /v1/borradores/:kind/lineas/:idx
func (h *OrdenesHandler) EliminarLinea(c *gin.Context) {
	cashier, kind, ok := scope(c)
	if !ok {
		return
	}
	idx, ok := lineIndex(c)
	if !ok {
		return
	}
	resp, err := h.svc.RemoveLine(cashier, kind, idx)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Impuesto turns tax on or off.
// PUT /v1/borradores/:kind/impuesto
func (h *OrdenesHandler) Impuesto(c *gin.Context) {
	var req dto.TaxRequest
	if !bindAndValidate(c, &req) {
		return
	}
	cashier, kind, ok := scope(c)
	if !ok {
		return
	}
	resp, err := h.svc.SetTax(cashier, kind, *req.Apply)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Cabecera updates document header fields.
// PATCH /v1/borradores/:kind/cabecera
func (h *OrdenesHandler) Cabecera(c *gin.Context) {
	var req dto.HeaderRequest
	if !bindAndValidate(c, &req) {
		return
	}
	cashier, kind, ok := scope(c)
	if !ok {
		return
	}
	resp, err := h.svc.UpdateHeader(cashier, kind, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Enviar submits the order. Validation problems answer 422 with the field map;
// a backend failure answers 502 and the order stays editable.
// POST /v1/borradores/:kind/enviar
func (h *OrdenesHandler) Enviar(c *gin.Context) {
	cashier, kind, ok := scope(c)
	if !ok {
		return
	}
	resp, err := h.svc.SubmitDraft(c.Request.Context(), cashier, kind)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Anular annuls a completed order. A reason is required.
// POST /v1/ordenes/:id/anular
func (h *OrdenesHandler) Anular(c *gin.Context) {
	var req dto.AnnulRequest
	if !bindAndValidate(c, &req) {
		return
	}
	cashier, ok := cashierID(c)
	if !ok {
		return
	}
	id, ok := orderID(c)
	if !ok {
		return
	}
	if err := h.svc.AnnulOrder(c.Request.Context(), cashier, id, req.Reason); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": model.OrderAnnulled})
}

// Devolver marks a completed order as returned.
// POST /v1/ordenes/:id/devolver
func (h *OrdenesHandler) Devolver(c *gin.Context) {
	cashier, ok := cashierID(c)
	if !ok {
		return
	}
	id, ok := orderID(c)
	if !ok {
		return
	}
	if err := h.svc.ReturnOrder(c.Request.Context(), cashier, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": model.OrderReturned})
}

func scope(c *gin.Context) (int, model.OrderKind, bool) {
	cashier, ok := cashierID(c)
	if !ok {
		return 0, "", false
	}
	kind, ok := orderKind(c)
	return cashier, kind, ok
}

func orderID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid order id"))
		return uuid.Nil, false
	}
	return id, true
}
