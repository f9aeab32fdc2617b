package handler

import (
	"errors"
	"net/http"
	"reflect"
	"strconv"

	"cashledger/internal/apierror"
	"cashledger/internal/infra"
	"cashledger/internal/ledger"
	"cashledger/internal/middleware"
	"cashledger/internal/model"
	"cashledger/internal/repository"
	"cashledger/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

func init() {
	// Register decimal.Decimal as a numeric type so that validator tags like
	// min=0, gt=0, required work without panicking ("Bad field type decimal.Decimal").
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
}

// bindAndValidate binds JSON body and runs go-playground/validator tags.
// Returns false and writes the error response if validation fails;
// the caller should return immediately without writing another response.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid JSON: "+err.Error()))
		return false
	}
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
			return false
		}
		fields := make(map[string]string)
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
		return false
	}
	return true
}

// cashierID returns the terminal scope carried by the JWT. Writes 403 and
// returns false when the token has none.
func cashierID(c *gin.Context) (int, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil || claims.CashierID == nil {
		c.JSON(http.StatusForbidden, apierror.New("token is not bound to a cash register"))
		return 0, false
	}
	return *claims.CashierID, true
}

// orderKind maps the :kind path segment ("venta" / "compra" or the enum) to an OrderKind.
func orderKind(c *gin.Context) (model.OrderKind, bool) {
	switch c.Param("kind") {
	case "venta", "sale", string(model.KindSale):
		return model.KindSale, true
	case "compra", "purchase", string(model.KindPurchase):
		return model.KindPurchase, true
	}
	c.JSON(http.StatusNotFound, apierror.New("unknown order kind"))
	return "", false
}

func lineIndex(c *gin.Context) (int, bool) {
	idx, err := strconv.Atoi(c.Param("idx"))
	if err != nil || idx < 0 {
		c.JSON(http.StatusBadRequest, apierror.New("line index must be a non-negative integer"))
		return 0, false
	}
	return idx, true
}

// respondError maps ledger, repository and service errors to HTTP responses.
func respondError(c *gin.Context, err error) {
	var (
		verrs    ledger.ValidationErrors
		orderErr *ledger.OrderStateError
		sessErr  *ledger.SessionStateError
		persErr  *ledger.PersistenceError
	)

	switch {
	case errors.As(err, &verrs):
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(verrs))
	case errors.As(err, &orderErr), errors.As(err, &sessErr):
		c.JSON(http.StatusConflict, apierror.New(err.Error()))
	case errors.Is(err, service.ErrNoDraft),
		errors.Is(err, ledger.ErrLineIndex),
		errors.Is(err, repository.ErrProductNotFound):
		c.JSON(http.StatusNotFound, apierror.New(err.Error()))
	case errors.Is(err, ledger.ErrOutOfStock),
		errors.Is(err, ledger.ErrNegativePrice):
		c.JSON(http.StatusUnprocessableEntity, apierror.New(err.Error()))
	case errors.Is(err, ledger.ErrDuplicateProduct), repository.IsRejection(err):
		c.JSON(http.StatusConflict, apierror.New(err.Error()))
	case errors.Is(err, infra.ErrCircuitOpen):
		c.JSON(http.StatusServiceUnavailable, apierror.New("order backend unavailable, retry shortly"))
	case errors.As(err, &persErr):
		log.Error().Err(err).Str("path", c.FullPath()).Msg("persistence failure")
		c.JSON(http.StatusBadGateway, apierror.New(persErr.Op+" failed, please retry"))
	default:
		_ = c.Error(err)
	}
}
