package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"regbook/internal/claim"
	claimHandler "regbook/internal/claim/handler"
	"regbook/internal/expiry"
	"regbook/internal/handoff"
	"regbook/internal/identity"
	"regbook/internal/notify"
	"regbook/internal/platform/config"
	"regbook/internal/platform/httpserver"
	"regbook/internal/platform/logger"
	"regbook/internal/platform/metrics"
	"regbook/internal/platform/postgres"
	"regbook/internal/platform/redis"
	"regbook/internal/registry"
	registryHandler "regbook/internal/registry/handler"
	"regbook/internal/transfer"
	transferHandler "regbook/internal/transfer/handler"
	httptransport "regbook/internal/transport/http"
)

// main wires dependencies and runs the server, the notification worker, and
// the expiry reaper under one lifecycle. Business logic lives in internal
// service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// Storage. With DATABASE_URL the invariants are enforced by Postgres
	// partial unique indexes inside real transactions; without it the
	// in-memory stores and the per-asset guard serve the same semantics for
	// local development.
	var (
		assetStore    registry.Store
		transferStore transfer.Store
		claimStore    claim.Store
		runner        handoff.TxRunner
		health        []httptransport.HealthCheck
	)
	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("postgres unavailable", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			log.Error("schema migration failed", "error", err)
			os.Exit(1)
		}
		assetStore = registry.NewPostgres(db)
		transferStore = transfer.NewPostgres(db)
		claimStore = claim.NewPostgres(db)
		runner = postgres.NewTxRunner(db)
		health = append(health, httptransport.HealthCheck{
			Name:  "postgres",
			Check: db.PingContext,
		})
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		memAssets := registry.NewInMemoryStore()
		assetStore = memAssets
		transferStore = transfer.NewInMemoryStore()
		claimStore = claim.NewInMemoryStore()
		runner = handoff.NewGuard()
		registry.SeedDemoAssets(memAssets)
	}

	// Redis elects a sweep leader across instances. Optional.
	var locker expiry.Locker = expiry.NoopLocker{}
	rdb, err := redis.New(cfg.RedisURL)
	if err != nil {
		log.Error("redis unavailable", "error", err)
		os.Exit(1)
	}
	if rdb != nil {
		defer rdb.Close()
		locker = expiry.NewRedisLocker(rdb.Client, cfg.SweepInterval)
		health = append(health, httptransport.HealthCheck{
			Name:  "redis",
			Check: rdb.Health,
		})
	}

	// Notifications flow through Kafka when brokers are configured; the log
	// dispatcher stands in otherwise.
	var dispatcher notify.Dispatcher = notify.NewLogDispatcher(log)
	if len(cfg.KafkaBrokers) > 0 {
		kd, err := notify.NewKafkaDispatcher(ctx, cfg.KafkaBrokers, log)
		if err != nil {
			log.Error("kafka unavailable", "error", err)
			os.Exit(1)
		}
		defer kd.Close()
		dispatcher = kd
	}
	queue := notify.NewQueue(256,
		notify.WithQueueLogger(log),
		notify.WithQueueMetrics(m),
	)
	worker := notify.NewWorker(dispatcher, queue.Inbox(), log)

	registrySvc := registry.New(assetStore,
		registry.WithLogger(log),
	)
	transferSvc := transfer.New(transferStore, claimStore, registrySvc, runner,
		transfer.WithLogger(log),
		transfer.WithMetrics(m),
		transfer.WithNotifier(queue),
		transfer.WithTTL(cfg.TransferTTL),
	)
	claimSvc := claim.New(claimStore, transferStore, registrySvc, runner,
		claim.WithLogger(log),
		claim.WithMetrics(m),
		claim.WithNotifier(queue),
		claim.WithTTL(cfg.ClaimTTL),
	)

	reaper := expiry.New(cfg.SweepInterval, []expiry.NamedStore{
		{Kind: "transfer", Store: transferStore},
		{Kind: "claim", Store: claimStore},
	},
		expiry.WithLogger(log),
		expiry.WithMetrics(m),
		expiry.WithLocker(locker),
	)

	jwtSvc := identity.NewJWTService(cfg.JWTSigningKey)
	router := httptransport.NewRouter(httptransport.Deps{
		Registry:  registryHandler.New(registrySvc, log),
		Transfers: transferHandler.New(transferSvc, log),
		Claims:    claimHandler.New(claimSvc, log),
		Validator: jwtSvc,
		Logger:    log,
		Health:    health,
	})
	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting regbook", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return worker.Run(ctx)
	})
	g.Go(func() error {
		return reaper.Run(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
