// Server entrypoint. Wires storage, services, and the HTTP surface; business
// logic lives in the internal service packages.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	attHandler "haazri/internal/attendance/handler"
	attService "haazri/internal/attendance/service"
	attStore "haazri/internal/attendance/store"
	auditHandler "haazri/internal/audit/handler"
	auditService "haazri/internal/audit/service"
	auditStore "haazri/internal/audit/store"
	devService "haazri/internal/device/service"
	devStore "haazri/internal/device/store"
	fraudService "haazri/internal/fraud/service"
	fraudStore "haazri/internal/fraud/store"
	jobStore "haazri/internal/job/store"
	"haazri/internal/platform/config"
	"haazri/internal/platform/httpserver"
	"haazri/internal/platform/logger"
	"haazri/internal/platform/metrics"
	"haazri/internal/platform/middleware"
	"haazri/internal/platform/postgres"
	platformredis "haazri/internal/platform/redis"
	syncHandler "haazri/internal/sync/handler"
	"haazri/internal/sync/secrets"
	syncService "haazri/internal/sync/service"
	"haazri/migrations"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

// storeSet abstracts over the memory and Postgres store pairs so the service
// wiring below is identical in both modes.
type storeSet struct {
	jobs       attService.JobStore
	attendance interface {
		attService.AttendanceStore
		syncService.AttendanceStore
	}
	signals interface {
		fraudService.Store
		attService.SignalStore
	}
	audit   auditService.Store
	devices devService.Store
	tx      attService.TxRunner
}

func run(cfg config.Config, log *slog.Logger) error {
	m := metrics.New()

	var stores storeSet
	if cfg.PostgresDSN != "" {
		db, err := postgres.Open(cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := postgres.Migrate(db, migrations.Files()); err != nil {
			return err
		}
		stores = storeSet{
			jobs:       jobStore.NewPostgres(db),
			attendance: attStore.NewPostgres(db),
			signals:    fraudStore.NewPostgres(db),
			audit:      auditStore.NewPostgres(db),
			devices:    devStore.NewPostgres(db),
			tx:         postgres.NewTxRunner(db),
		}
		log.Info("storage configured", "backend", "postgres")
	} else {
		stores = storeSet{
			jobs:       jobStore.NewMemory(),
			attendance: attStore.NewMemory(),
			signals:    fraudStore.NewMemory(),
			audit:      auditStore.NewMemory(),
			devices:    devStore.NewMemory(),
			tx:         attService.NoopTx{},
		}
		log.Warn("storage configured", "backend", "memory")
	}

	var secretStore secrets.Store = secrets.NewMemory()
	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		secretStore = secrets.NewRedis(redisClient.Client)
		log.Info("device secret store configured", "backend", "redis")
	}

	auditWriter := auditService.New(stores.audit, log, m)
	analyzer := fraudService.New(stores.signals, log)
	gate := devService.New(stores.devices, log, m)
	attendance := attService.New(stores.attendance, stores.jobs, stores.signals,
		analyzer, auditWriter, log,
		attService.WithTxRunner(stores.tx), attService.WithMetrics(m),
		attService.WithFenceRadius(cfg.DefaultFenceRadiusKm))
	reconciler := syncService.New(stores.attendance, secretStore, auditWriter,
		cfg.DeviceSecretFallback, log, syncService.WithMetrics(m),
		syncService.WithSecretTTL(cfg.DeviceSecretTTL))

	validator := middleware.NewTokenValidator(cfg.JWTSigningKey)

	router := chi.NewRouter()
	router.Use(middleware.Recovery(log))
	router.Use(middleware.RequestID)
	router.Use(middleware.RequestTime)
	router.Use(middleware.ClientMetadata)
	router.Use(middleware.Logger(log))
	router.Use(middleware.Timeout(cfg.RequestTimeout))
	router.Use(middleware.ContentTypeJSON)
	router.Use(middleware.Latency(m))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if redisClient != nil {
			if err := redisClient.Health(r.Context()); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	attHandler.New(attendance, validator, gate, log).Register(router)
	syncHandler.New(reconciler, validator, gate, log).Register(router)
	auditHandler.New(auditWriter, log).Register(router)

	srv := httpserver.New(cfg.Addr, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
