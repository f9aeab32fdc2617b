package router

import (
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cashledger/internal/config"
	"cashledger/internal/middleware"
	"cashledger/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "router-test-secret"

// noopTerminal answers Logout only; the routes under test never reach the
// other methods.
type noopTerminal struct {
	service.TerminalService
	loggedOut int
}

func (n *noopTerminal) Logout(cashierID int) { n.loggedOut = cashierID }

func engine(svc service.TerminalService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	health := func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) }
	return Engine(&config.Config{JWTSecret: secret}, svc, health)
}

func send(t *testing.T, r *gin.Engine, method, path string, claims *middleware.JWTClaims) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if claims != nil {
		tok, err := middleware.SignToken(secret, *claims, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthIsPublic(t *testing.T) {
	w := send(t, engine(&noopTerminal{}), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
}

func TestV1RequiresToken(t *testing.T) {
	r := engine(&noopTerminal{})
	for _, path := range []string{"/v1/caja/actual", "/v1/borradores/venta"} {
		assert.Equal(t, http.StatusUnauthorized, send(t, r, http.MethodGet, path, nil).Code, path)
	}
}

func TestLogoutRoute(t *testing.T) {
	svc := &noopTerminal{}
	cashier := 3
	w := send(t, engine(svc), http.MethodPost, "/v1/terminal/logout",
		&middleware.JWTClaims{UserID: uuid.NewString(), Role: "cashier", CashierID: &cashier})

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 3, svc.loggedOut)
}

func TestAnnulNeedsSupervisor(t *testing.T) {
	cashier := 3
	w := send(t, engine(&noopTerminal{}), http.MethodPost, "/v1/ordenes/"+uuid.NewString()+"/anular",
		&middleware.JWTClaims{UserID: uuid.NewString(), Role: "cashier", CashierID: &cashier})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestTerminalOptionsFromConfig(t *testing.T) {
	opts := terminalOptions(&config.Config{TaxRate: 0.18, DefaultSeries: "B01"})
	assert.Equal(t, "0.18", opts.TaxRate.String())
	assert.Equal(t, "B01", opts.DefaultSeries)

	opts = terminalOptions(&config.Config{TaxRate: math.NaN()})
	assert.True(t, opts.TaxRate.IsZero())

	opts = terminalOptions(&config.Config{TaxRate: math.Inf(1)})
	assert.True(t, opts.TaxRate.IsZero())
}
