package router

import (
	"time"

	"cashledger/internal/config"
	"cashledger/internal/handler"
	"cashledger/internal/ledger"
	"cashledger/internal/middleware"
	"cashledger/internal/repository"
	"cashledger/internal/service"
	"cashledger/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, orders *repository.ResilientOrders) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// ── Repositories ─────────────────────────────────────────────────────────
	productRepo := repository.NewProductRepository(db)
	sessionRepo := repository.NewCashSessionRepository(db)

	// ── Services ─────────────────────────────────────────────────────────────
	dispatcher := worker.NewDispatcher(rdb)
	terminalSvc := service.NewTerminalService(productRepo, orders, sessionRepo, dispatcher, terminalOptions(cfg))

	return Engine(cfg, terminalSvc, handler.Health(db, rdb, orders))
}

// terminalOptions converts the float config to ledger settings. A NaN or
// infinite TAX_RATE becomes zero, which the service replaces with the default.
func terminalOptions(cfg *config.Config) service.TerminalOptions {
	return service.TerminalOptions{
		TaxRate:       ledger.FromFloat(cfg.TaxRate),
		DefaultSeries: cfg.DefaultSeries,
	}
}

// Engine mounts the middleware chain and routes over an already wired service.
func Engine(cfg *config.Config, terminalSvc service.TerminalService, health gin.HandlerFunc) *gin.Engine {
	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(1000, time.Minute)) // 1000 req/min per IP

	// ── Handlers ─────────────────────────────────────────────────────────────
	cajaH := handler.NewCajaHandler(terminalSvc)
	ordenesH := handler.NewOrdenesHandler(terminalSvc)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", health)

	// Protected routes
	v1 := r.Group("/v1", middleware.JWTAuth(cfg.JWTSecret))
	{
		caja := v1.Group("/caja")
		{
			caja.POST("/abrir", cajaH.Abrir)
			caja.GET("/actual", cajaH.Actual)
			caja.POST("/movimiento", cajaH.Movimiento)
			caja.POST("/cerrar", cajaH.Cerrar)
		}
		v1.POST("/terminal/logout", cajaH.Logout)

		drafts := v1.Group("/borradores/:kind")
		{
			drafts.POST("", ordenesH.Nuevo)
			drafts.GET("", ordenesH.Obtener)
			drafts.POST("/lineas", ordenesH.AgregarLinea)
			drafts.PATCH("/lineas/:idx", ordenesH.ActualizarLinea)
			drafts.DELETE("/lineas/:idx", ordenesH.EliminarLinea)
			drafts.PUT("/impuesto", ordenesH.Impuesto)
			drafts.PATCH("/cabecera", ordenesH.Cabecera)
			drafts.POST("/enviar", ordenesH.Enviar)
		}

		// Annul/return of completed orders: supervisor or admin
		ordenes := v1.Group("/ordenes", middleware.RequireRole("supervisor", "admin"))
		{
			ordenes.POST("/:id/anular", ordenesH.Anular)
			ordenes.POST("/:id/devolver", ordenesH.Devolver)
		}
	}

	return r
}
