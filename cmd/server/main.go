package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cashledger/internal/config"
	"cashledger/internal/infra"
	"cashledger/internal/repository"
	"cashledger/internal/router"
	"cashledger/internal/worker"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Structured logger. dev: pretty, prod: JSON
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.Env != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	if cfg.JWTSecret == "" {
		log.Fatal().Msg("JWT_SECRET must be set")
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The order repository is shared by the HTTP side and the receipt
	// workers so both observe the same breaker.
	orders := repository.NewResilientOrders(
		repository.NewOrderRepository(db),
		cfg.PersistenceCBFailures,
		time.Duration(cfg.PersistenceCBOpenSeconds)*time.Second,
	)

	receipts := worker.NewReceiptWorker(orders, cfg.PDFStoragePath, cfg.BusinessName)
	worker.StartWorkerPool(ctx, rdb, cfg.WorkerPoolSize, receipts.Handlers())
	worker.StartDLQReplay(ctx, worker.ReplayConfig{
		RDB:        rdb,
		Queue:      worker.QueueReceipts,
		Interval:   time.Duration(cfg.DLQReplaySeconds) * time.Second,
		BatchSize:  50,
		MaxReplays: cfg.DLQMaxReplays,
		BackendDown: func() bool {
			return orders.BreakerState() == infra.CBOpen
		},
	})

	r := router.New(cfg, db, rdb, orders)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("cashledger listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server exited")
}
