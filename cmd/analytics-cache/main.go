package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	achttp "github.com/tutorium/analytics-cache/internal/adapter/http"
	acnats "github.com/tutorium/analytics-cache/internal/adapter/nats"
	"github.com/tutorium/analytics-cache/internal/adapter/natskv"
	"github.com/tutorium/analytics-cache/internal/adapter/otel"
	"github.com/tutorium/analytics-cache/internal/adapter/postgres"
	"github.com/tutorium/analytics-cache/internal/adapter/ristretto"
	"github.com/tutorium/analytics-cache/internal/config"
	"github.com/tutorium/analytics-cache/internal/domain"
	"github.com/tutorium/analytics-cache/internal/domain/cachekey"
	"github.com/tutorium/analytics-cache/internal/domain/entry"
	"github.com/tutorium/analytics-cache/internal/logger"
	"github.com/tutorium/analytics-cache/internal/resilience"
	"github.com/tutorium/analytics-cache/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}

	log, closer := logger.New(cfg.Logging)
	slog.SetDefault(log)
	defer closer.Close()

	if err := run(cfg, log); err != nil {
		log.Error("fatal", "error", err)
		closer.Close()
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	log.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"l1_max_size_mb", cfg.Cache.L1MaxSizeMB,
		"l2_bucket", cfg.Cache.L2Bucket,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Telemetry ---
	var metrics *otel.Metrics
	if cfg.Telemetry.Enabled {
		shutdown, err := otel.InitMetrics(ctx, cfg.Logging.Service, cfg.Telemetry.Endpoint)
		if err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(shutdownCtx)
		}()
		if metrics, err = otel.NewMetrics(); err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
	}

	// --- Infrastructure ---

	// PostgreSQL (L3 precomputed aggregates)
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	log.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	log.Info("migrations applied")

	// NATS (L2 KV bucket and domain event stream share one connection)
	queue, err := acnats.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() { _ = queue.Close() }()

	kv, err := natskv.EnsureBucket(ctx, queue.JetStream(), cfg.Cache.L2Bucket, cfg.Cache.L2MaxAge)
	if err != nil {
		return fmt.Errorf("kv bucket: %w", err)
	}

	l1, err := ristretto.New(cfg.Cache.L1MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("l1 cache: %w", err)
	}
	defer l1.Close()

	// --- Services ---
	store := postgres.NewStore(pool)
	breaker := resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout)
	cacheSvc := service.NewCacheService(l1, natskv.New(kv), store, breaker, service.NewMonitor(), metrics, log)

	policy := cachekey.NewTTLPolicy(ttlOverrides(cfg.TTLs))
	warmer := service.NewWarmer(cacheSvc, aggregateProvider{store: store}, policy, metrics, log)

	cancelEvents, err := service.NewInvalidator(cacheSvc, log).Start(ctx, queue)
	if err != nil {
		return fmt.Errorf("event subscriber: %w", err)
	}
	defer cancelEvents()

	go service.NewSweeper(store, log).Run(ctx, cfg.Sweep.Interval)
	if cfg.Warmer.Enabled {
		go warmer.Run(ctx, cfg.Warmer.Interval, cfg.Warmer.Identities)
	}

	// --- HTTP ---
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(achttp.RequestContext)
	r.Use(achttp.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	if cfg.Telemetry.Enabled {
		r.Use(otel.HTTPMiddleware(cfg.Logging.Service))
	}

	handlers := achttp.NewHandlers(cacheSvc, warmer, queue, achttp.HealthInfo{
		Postgres: achttp.RedactDSN(cfg.Postgres.DSN),
		NATS:     cfg.NATS.URL,
	})
	achttp.MountRoutes(r, handlers)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// ttlOverrides converts configured TTL triples to the policy's form.
func ttlOverrides(ttls map[string]config.TTL) map[string]cachekey.TTLConfig {
	if len(ttls) == 0 {
		return nil
	}
	out := make(map[string]cachekey.TTLConfig, len(ttls))
	for kind, t := range ttls {
		out[kind] = cachekey.TTLConfig{L1: t.L1, L2: t.L2, L3: t.L3}
	}
	return out
}

// aggregateProvider warms from the precomputed-aggregate store: rows
// the rollup pipeline already materialized are promoted into the
// faster tiers ahead of expected load.
type aggregateProvider struct {
	store *postgres.Store
}

func (p aggregateProvider) Compute(ctx context.Context, key cachekey.Key) ([]byte, error) {
	data, found, err := p.store.Get(ctx, key.String())
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: no precomputed aggregate for %s", domain.ErrNotFound, key.String())
	}
	e, err := entry.Decode(data)
	if err != nil {
		return nil, err
	}
	return e.Value, nil
}
