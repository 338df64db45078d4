package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/akbaramd/nezam-refahi-reservations/internal/app"
	"github.com/akbaramd/nezam-refahi-reservations/internal/billing"
	"github.com/akbaramd/nezam-refahi-reservations/internal/clock"
	"github.com/akbaramd/nezam-refahi-reservations/internal/config"
	"github.com/akbaramd/nezam-refahi-reservations/internal/events"
	"github.com/akbaramd/nezam-refahi-reservations/internal/idempotency"
	"github.com/akbaramd/nezam-refahi-reservations/internal/logging"
	"github.com/akbaramd/nezam-refahi-reservations/internal/storage/postgres"
	"github.com/akbaramd/nezam-refahi-reservations/internal/sweeper"
	transporthttp "github.com/akbaramd/nezam-refahi-reservations/internal/transport/http"
	"github.com/akbaramd/nezam-refahi-reservations/migrations"
)

const shutdownTimeout = 10 * time.Second

func main() {
	log := logging.New()
	config.LoadEnvFile(log)
	cfg := config.Load(log)

	startupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(startupCtx, cfg.DatabaseURL)
	if err != nil {
		log.Error("connect to db", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(startupCtx); err != nil {
		log.Error("db ping", "err", err)
		os.Exit(1)
	}
	if err := migrations.Apply(startupCtx, pool); err != nil {
		log.Error("apply migrations", "err", err)
		os.Exit(1)
	}

	clk := clock.NewSystem()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() { _ = rdb.Close() }()

	var idemStore idempotency.Store
	if err := rdb.Ping(startupCtx).Err(); err != nil {
		log.Warn("redis unreachable, using in-memory idempotency store", "addr", cfg.RedisAddr, "err", err)
		idemStore = idempotency.NewMemoryStore(clk)
	} else {
		idemStore = idempotency.NewRedisStore(rdb)
	}
	guard := idempotency.NewGuard(idemStore, clk, cfg.IdempotencyTTL)

	var publisher events.Publisher = events.Logging{Log: log}
	var billIssuer app.BillIssuer = billing.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		writer := events.NewKafkaWriter(cfg.KafkaBrokers)
		defer func() { _ = writer.Close() }()
		publisher = events.NewKafkaPublisher(writer, cfg.KafkaTopic)
		billIssuer = billing.NewKafkaIssuer(writer, cfg.KafkaTopic+"-billing")
	}

	poolRepo := postgres.NewPoolRepository(pool)
	resRepo := postgres.NewReservationRepository(pool)
	catalogRepo := postgres.NewCatalogRepository(pool)

	ledger := app.NewLedger(poolRepo, log)
	lifecycle := app.NewLifecycleService(resRepo, poolRepo, ledger, guard, billIssuer, publisher, clk, log, app.Windows{
		Hold:                 cfg.HoldDuration,
		CleanupGrace:         cfg.CleanupGrace,
		PaymentCallbackGrace: cfg.PaymentCallbackGrace,
	})
	catalogSvc := app.NewCatalogService(catalogRepo, clk)
	statsSvc := app.NewStatsService(poolRepo)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", transporthttp.HealthHandler)
	mux.Handle("/reservations", transporthttp.HandleCreateReservation(lifecycle))
	mux.Handle("/reservations/", transporthttp.HandleReservationActions(lifecycle))
	mux.Handle("/pools/", transporthttp.HandlePoolStats(statsSvc))
	mux.Handle("/tours/", transporthttp.HandleTourStats(statsSvc))
	mux.Handle("/admin/tours", transporthttp.HandleAdminTours(catalogSvc))
	mux.Handle("/admin/tours/", transporthttp.HandleAdminPools(catalogSvc))
	mux.Handle("/", transporthttp.NotFoundHandler())

	handler := transporthttp.RequestLogger(transporthttp.CORS(cfg.CORSOrigins, mux), log)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler,
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sw := sweeper.New(lifecycle, resRepo, clk, log,
		cfg.SweeperInterval, cfg.SweeperErrorRetryInterval,
		sweeper.WithBatchSize(cfg.SweeperBatchSize))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sw.Run(stopCtx)
	}()

	log.Info("api listening", "port", cfg.Port)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "err", err)
		}
	case <-stopCtx.Done():
		log.Info("shutdown signal received, stopping server")
	}
	stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server shutdown error", "err", err)
	}
	wg.Wait()
	log.Info("server stopped")
}
