package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/twmb/franz-go/pkg/kgo"

	behaviorcfg "vigil/internal/behavior/config"
	"vigil/internal/behavior/handler"
	"vigil/internal/behavior/metrics"
	"vigil/internal/behavior/ports"
	"vigil/internal/behavior/publisher"
	baselinesvc "vigil/internal/behavior/service/baseline"
	"vigil/internal/behavior/service/engine"
	limitersvc "vigil/internal/behavior/service/limiter"
	scorersvc "vigil/internal/behavior/service/scorer"
	baselinestore "vigil/internal/behavior/store/baseline"
	eventstore "vigil/internal/behavior/store/events"
	platformauth "vigil/internal/platform/auth"
	"vigil/internal/platform/config"
	"vigil/internal/platform/httpserver"
	"vigil/internal/platform/logger"
	platformredis "vigil/internal/platform/redis"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal behavior packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	engineCfg := behaviorcfg.DefaultConfig()
	if err := engineCfg.Validate(); err != nil {
		log.Error("invalid engine configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	clock := ports.SystemClock{}
	history := eventstore.NewInMemoryHistoryStore(engineCfg.HistoryCap, clock)

	// Baseline gateway: Postgres when configured, then Redis, else in-memory.
	var gateway ports.BaselineStore
	switch {
	case cfg.PostgresDSN != "":
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Error("postgres connection failed", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		pgStore := baselinestore.NewPostgresBaselineStore(pool)
		if err := pgStore.EnsureSchema(ctx); err != nil {
			log.Error("postgres schema setup failed", "error", err)
			os.Exit(1)
		}
		gateway = pgStore
		log.Info("baseline gateway: postgres")
	case cfg.Redis.URL != "":
		redisClient, err := platformredis.New(cfg.Redis)
		if err != nil {
			log.Error("redis connection failed", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		gateway = baselinestore.NewRedisBaselineStore(redisClient.Client)
		log.Info("baseline gateway: redis")
	default:
		gateway = baselinestore.NewInMemoryBaselineStore()
		log.Info("baseline gateway: in-memory (no durability)")
	}

	// Event sink: Kafka when configured, structured logs otherwise.
	var events ports.Events = publisher.NewLog(log)
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaClient, err := kgo.NewClient(kgo.SeedBrokers(cfg.Kafka.Brokers...))
		if err != nil {
			log.Error("kafka connection failed", "error", err)
			os.Exit(1)
		}
		defer kafkaClient.Close()
		events = publisher.NewKafka(kafkaClient, cfg.Kafka.Topic, publisher.WithLogger(log))
		log.Info("event sink: kafka", "topic", cfg.Kafka.Topic)
	}

	baselines, err := baselinesvc.New(history, gateway, engineCfg,
		baselinesvc.WithLogger(log),
		baselinesvc.WithMetrics(m),
		baselinesvc.WithEvents(events),
	)
	if err != nil {
		log.Error("baseline service setup failed", "error", err)
		os.Exit(1)
	}

	scorer, err := scorersvc.New(history, baselines, engineCfg, scorersvc.WithLogger(log))
	if err != nil {
		log.Error("scorer setup failed", "error", err)
		os.Exit(1)
	}

	limiter, err := limitersvc.New(history, scorer, engineCfg, limitersvc.WithLogger(log))
	if err != nil {
		log.Error("limiter setup failed", "error", err)
		os.Exit(1)
	}

	eng, err := engine.New(history, baselines, limiter, engineCfg,
		engine.WithLogger(log),
		engine.WithMetrics(m),
		engine.WithEvents(events),
	)
	if err != nil {
		log.Error("engine setup failed", "error", err)
		os.Exit(1)
	}

	// Background rebuild worker; Record never blocks on it.
	go func() {
		if err := eng.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("rebuild worker stopped", "error", err)
		}
	}()

	validator := platformauth.NewJWTValidator(cfg.JWTSigningKey)

	router := chi.NewRouter()
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.Handler())
	handler.New(eng, log, validator).Register(router)

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting vigil", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
