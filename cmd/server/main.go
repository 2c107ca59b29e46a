package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	"courtside/internal/errorhandling"
	"courtside/internal/errorhandling/adapters"
	"courtside/internal/janitor"
	"courtside/internal/platform/config"
	"courtside/internal/platform/httpserver"
	"courtside/internal/platform/kafka"
	"courtside/internal/platform/logger"
	"courtside/internal/platform/metrics"
	"courtside/internal/platform/postgres"
	"courtside/internal/platform/redis"
	"courtside/internal/securityaudit"
	"courtside/internal/securityaudit/alert"
	"courtside/internal/securityaudit/forwarder"
	kafkastore "courtside/internal/securityaudit/store/kafka"
	pgstore "courtside/internal/securityaudit/store/postgres"
	httptransport "courtside/internal/transport/http"
)

const startupTimeout = 15 * time.Second

// main loads configuration, builds the error handler and the security audit
// log once, and runs the HTTP API, forwarders and cleanup loops until the
// process is signalled.
func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env file", "error", err)
	}

	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

type infra struct {
	redis *redis.Client
	db    *sql.DB
	kafka *kgo.Client
}

func (i infra) close() {
	if i.redis != nil {
		_ = i.redis.Close()
	}
	if i.db != nil {
		_ = i.db.Close()
	}
	if i.kafka != nil {
		i.kafka.Close()
	}
}

func connect(ctx context.Context, cfg config.Server) (infra, error) {
	ctx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	var in infra
	var err error
	if in.redis, err = redis.New(ctx, cfg.Redis); err != nil {
		return in, err
	}
	if in.db, err = postgres.Open(ctx, cfg.Postgres); err != nil {
		in.close()
		return infra{}, err
	}
	if in.kafka, err = kafka.New(ctx, cfg.Kafka); err != nil {
		in.close()
		return infra{}, err
	}
	return in, nil
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	m := metrics.New(prometheus.DefaultRegisterer)

	deps, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.close()

	auditOpts := []securityaudit.Option{
		securityaudit.WithLogger(log),
		securityaudit.WithMetrics(m),
		securityaudit.WithCapacity(cfg.Audit.Capacity),
		securityaudit.WithSuspiciousThreshold(cfg.Audit.SuspiciousWindow, cfg.Audit.SuspiciousThreshold),
		securityaudit.WithDetectorRole(cfg.Audit.DetectorRole),
	}
	if deps.redis != nil {
		alerter, err := alert.NewRedisAlerter(deps.redis, log)
		if err != nil {
			return err
		}
		auditOpts = append(auditOpts, securityaudit.WithHighRiskHandler(alerter))
	}
	auditLog := securityaudit.New(auditOpts...)

	errHandler, err := errorhandling.New(errorhandling.NewLogPresenter(log),
		errorhandling.WithLogger(log),
		errorhandling.WithMetrics(m),
		errorhandling.WithCapacity(cfg.Errors.Capacity),
		errorhandling.WithRetryHintDelay(cfg.Errors.RetryHintDelay),
	)
	if err != nil {
		return err
	}
	reporter, err := adapters.NewAuditReporter(auditLog)
	if err != nil {
		return err
	}
	errHandler.SetReporter(reporter)
	notifier, err := adapters.NewSuspiciousNotifier(errHandler)
	if err != nil {
		return err
	}
	auditLog.Subscribe(notifier)

	forwarders, err := buildForwarders(ctx, cfg, deps, log, m)
	if err != nil {
		return err
	}
	for _, f := range forwarders {
		auditLog.Subscribe(f)
	}

	transportOpts := []httptransport.Option{httptransport.WithLogger(log)}
	if deps.redis != nil {
		transportOpts = append(transportOpts, httptransport.WithHealthCheck("redis", deps.redis.Health))
	}
	if deps.db != nil {
		transportOpts = append(transportOpts, httptransport.WithHealthCheck("postgres", deps.db.PingContext))
	}
	if deps.kafka != nil {
		transportOpts = append(transportOpts, httptransport.WithHealthCheck("kafka", deps.kafka.Ping))
	}
	api, err := httptransport.New(errHandler, auditLog, transportOpts...)
	if err != nil {
		return err
	}
	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(api, promhttp.Handler()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.Run(gctx, srv, log)
	})
	for _, f := range forwarders {
		g.Go(func() error {
			return f.Run(gctx)
		})
	}
	for _, loop := range []janitor.Loop{
		{
			Name:     "errors",
			Interval: cfg.Errors.CleanupInterval,
			Run:      func(time.Time) int { return errHandler.Cleanup(cfg.Errors.Retention) },
			Logger:   log,
		},
		{
			Name:     "security_events",
			Interval: cfg.Audit.CleanupInterval,
			Run:      func(time.Time) int { return auditLog.Cleanup(cfg.Audit.Retention) },
			Logger:   log,
		},
	} {
		g.Go(func() error {
			return loop.Start(gctx)
		})
	}

	log.Info("courtside started", "addr", cfg.Addr, "mode", cfg.Mode, "forwarders", len(forwarders))
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func buildForwarders(ctx context.Context, cfg config.Server, deps infra, log *slog.Logger, m *metrics.Metrics) ([]*forwarder.Forwarder, error) {
	opts := []forwarder.Option{
		forwarder.WithLogger(log),
		forwarder.WithMetrics(m),
		forwarder.WithBufferCapacity(cfg.Forwarder.BufferSize),
		forwarder.WithBatchSize(cfg.Forwarder.BatchSize),
		forwarder.WithInterval(cfg.Forwarder.Interval),
	}

	var out []*forwarder.Forwarder
	if deps.db != nil {
		store, err := pgstore.New(deps.db)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure security_events schema: %w", err)
		}
		f, err := forwarder.New("postgres", store, opts...)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	if deps.kafka != nil {
		if err := kafka.EnsureTopic(ctx, deps.kafka, cfg.Kafka.Topic, 3, 1); err != nil {
			return nil, err
		}
		store, err := kafkastore.New(deps.kafka, cfg.Kafka.Topic)
		if err != nil {
			return nil, err
		}
		f, err := forwarder.New("kafka", store, opts...)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}
