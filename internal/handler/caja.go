package handler

import (
	"net/http"

	"cashledger/internal/apierror"
	"cashledger/internal/dto"
	"cashledger/internal/middleware"
	"cashledger/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type CajaHandler struct{ svc service.TerminalService }

func NewCajaHandler(svc service.TerminalService) *CajaHandler { return &CajaHandler{svc: svc} }

// Abrir opens the cashier's cash session.
// POST /v1/caja/abrir
func (h *CajaHandler) Abrir(c *gin.Context) {
	var req dto.OpenSessionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	cashier, ok := cashierID(c)
	if !ok {
		return
	}
	employeeID, err := uuid.Parse(middleware.GetClaims(c).UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid user id in token"))
		return
	}

	resp, err := h.svc.OpenSession(c.Request.Context(), cashier, employeeID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Actual returns the open session with its running reconciliation.
// GET /v1/caja/actual
func (h *CajaHandler) Actual(c *gin.Context) {
	cashier, ok := cashierID(c)
	if !ok {
		return
	}
	resp, err := h.svc.CurrentSession(c.Request.Context(), cashier)
	if err != nil {
		respondError(c, err)
		return
	}
	if resp == nil {
		c.JSON(http.StatusNotFound, apierror.New("no open cash session"))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Movimiento records a manual CASH_IN / CASH_OUT.
// POST /v1/caja/movimiento
func (h *CajaHandler) Movimiento(c *gin.Context) {
	var req dto.MovementRequest
	if !bindAndValidate(c, &req) {
		return
	}
	cashier, ok := cashierID(c)
	if !ok {
		return
	}
	resp, err := h.svc.RecordMovement(c.Request.Context(), cashier, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Cerrar asks the backend to close and reconcile the session.
// POST /v1/caja/cerrar
func (h *CajaHandler) Cerrar(c *gin.Context) {
	cashier, ok := cashierID(c)
	if !ok {
		return
	}
	resp, err := h.svc.CloseSession(c.Request.Context(), cashier)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Logout drops the drafts and session state held for the cashier.
// POST /v1/terminal/logout
func (h *CajaHandler) Logout(c *gin.Context) {
	cashier, ok := cashierID(c)
	if !ok {
		return
	}
	h.svc.Logout(cashier)
	c.Status(http.StatusNoContent)
}
