// Command autophrase starts the query-rewrite service.
//
// The service loads a phrase list, rewrites incoming queries so that every
// known multi-word phrase becomes a single joined term, and hands the result
// to a downstream query parser. Phrase lists may live in a file, a Postgres
// table, a Redis list or a SQLite database. Reloads are fanned out to every
// replica over Kafka; parsed plans are cached in Redis; rewrite analytics
// flow through Kafka into an aggregator whose snapshots land in Postgres.
// Redis, Postgres and Kafka are all optional.
//
// Usage:
//
//	go run ./cmd/autophrase [-config configs/autophrase.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/autophrase/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/autophrase/internal/autophrase"
	"github.com/Adithya-Monish-Kumar-K/autophrase/internal/autophrase/source"
	gwhandler "github.com/Adithya-Monish-Kumar-K/autophrase/internal/gateway/handler"
	"github.com/Adithya-Monish-Kumar-K/autophrase/internal/gateway/router"
	"github.com/Adithya-Monish-Kumar-K/autophrase/internal/qparser"
	"github.com/Adithya-Monish-Kumar-K/autophrase/internal/qparser/cache"
	"github.com/Adithya-Monish-Kumar-K/autophrase/internal/reload"
	"github.com/Adithya-Monish-Kumar-K/autophrase/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/autophrase/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/autophrase/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/autophrase/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/autophrase/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/autophrase/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/autophrase/pkg/ratelimit"
	pkgredis "github.com/Adithya-Monish-Kumar-K/autophrase/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/autophrase/pkg/resilience"
)

const snapshotInterval = time.Minute

func main() {
	configPath := flag.String("config", "configs/autophrase.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	if err := run(cfg); err != nil {
		slog.Error("autophrase service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("autophrase service stopped")
}

// run wires the service and blocks until SIGINT/SIGTERM or a fatal error.
func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	origin := replicaName()
	slog.Info("starting autophrase service", "port", cfg.Server.Port, "origin", origin)

	reg := metrics.NewRegistry()
	m := metrics.New(reg)

	checker := health.NewChecker()

	// Backing stores. Each one is optional; a phrase resource naming a
	// scheme whose store is not configured fails at load time.
	var pg *postgres.Client
	if cfg.Postgres.Host != "" {
		pg, err = postgres.New(cfg.Postgres)
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		defer pg.Close()
		checker.Register("postgres", health.PingCheck(pg, true))
		slog.Info("connected to postgres", "host", cfg.Postgres.Host)
	}
	var rdb *pkgredis.Client
	if cfg.Redis.Addr != "" {
		rdb, err = pkgredis.NewClient(cfg.Redis)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rdb.Close()
		checker.Register("redis", health.PingCheck(rdb, true))
		slog.Info("connected to redis", "addr", cfg.Redis.Addr)
	}

	sources := newSourceRouter(cfg, pg, rdb, m)

	// Plugin: configure, then load the phrase list once before serving.
	plugin := autophrase.New(qparser.NewRegistry(), autophrase.WithMetrics(m))
	if err := plugin.Init(cfg.AutoPhrase.Params); err != nil {
		return err
	}
	if err := plugin.Inform(ctx, sources); err != nil {
		return err
	}
	checker.Register("dictionary", health.ReadyCheck(plugin.Ready, "phrase dictionary not loaded"))

	var planCache *cache.PlanCache
	if rdb != nil {
		planCache = cache.New(rdb, cfg.Redis.CacheTTL, m)
	}

	// Consumers close their readers when gctx ends; producers are closed
	// after every goroutine has returned.
	g, gctx := errgroup.WithContext(ctx)

	// Reload fan-out. Every replica must see every reload, so each one
	// consumes the topic under a group of its own.
	var reloadPublisher kafka.Publisher
	var closers []func() error
	kafkaEnabled := len(cfg.Kafka.Brokers) > 0
	if kafkaEnabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.PhrasesReload)
		closers = append(closers, producer.Close)
		reloadPublisher = producer
	}
	coordinator := reload.NewCoordinator(origin, plugin, reloadPublisher)
	if kafkaEnabled {
		group := fmt.Sprintf("%s-reload-%s", cfg.Kafka.ConsumerGroup, origin)
		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.PhrasesReload, group,
			invalidateAfter(coordinator.Handle, planCache))
		g.Go(func() error { return consumer.Start(gctx) })
	}

	// Analytics: events go through Kafka when it is configured, otherwise
	// straight into the local aggregator.
	aggregator := analytics.NewAggregator(nil)
	var sink analytics.Sink = analytics.LocalSink{Aggregator: aggregator}
	if kafkaEnabled {
		eventsProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.RewriteEvents)
		closers = append(closers, eventsProducer.Close)
		sink = eventsProducer

		eventsConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.RewriteEvents,
			cfg.Kafka.ConsumerGroup+"-analytics", analytics.HandleEvent(aggregator))
		g.Go(func() error { return eventsConsumer.Start(gctx) })
	}
	collector := analytics.NewCollector(sink, 0, 0, 0)
	collector.Start(gctx)

	var store *analytics.Store
	if pg != nil {
		store = analytics.NewStore(pg.DB, origin)
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		store.StartPeriodicSave(gctx, aggregator, snapshotInterval)
	}

	// Hot reload on file edits.
	if cfg.AutoPhrase.Watch {
		res := source.ParseResource(plugin.Config().PhrasesResource)
		if res.Scheme == source.SchemeFile {
			watcher, err := source.NewWatcher(res.Location, cfg.AutoPhrase.WatchDebounce, func(ctx context.Context) {
				if _, err := coordinator.Trigger(ctx, autophrase.TriggerWatch, "file changed"); err != nil {
					slog.Error("reload after file change failed", "error", err)
					return
				}
				if planCache != nil {
					if err := planCache.Invalidate(ctx); err != nil {
						slog.Warn("plan cache invalidation failed", "error", err)
					}
				}
			}, slog.Default())
			if err != nil {
				return err
			}
			g.Go(func() error { return watcher.Run(gctx) })
		} else {
			slog.Warn("watch ignored for non-file phrase resource", "resource", res.String())
		}
	}

	if cfg.Metrics.Enabled {
		g.Go(func() error { return metrics.Serve(gctx, cfg.Metrics.Port, reg) })
	}

	limiter := ratelimit.New(cfg.RateLimit.ReloadsPerWindow, cfg.RateLimit.Window)
	g.Go(func() error {
		limiter.Run(gctx)
		return nil
	})

	deps := gwhandler.Deps{
		Rewriter: plugin,
		Reloader: coordinator,
		Tracker:  collector,
	}
	if planCache != nil {
		deps.Cache = planCache
	}
	h := gwhandler.New(deps)
	chain := router.New(h, analytics.NewHandler(aggregator, store), checker, limiter, m, cfg.Server.WriteTimeout)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g.Go(func() error {
		slog.Info("autophrase service listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	collector.Close()
	for _, c := range closers {
		if cerr := c(); cerr != nil {
			slog.Warn("close failed", "error", cerr)
		}
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// newSourceRouter registers a loader for every phrase store that is
// configured. Network stores are wrapped with retries, a per-attempt
// timeout and a circuit breaker.
func newSourceRouter(cfg *config.Config, pg *postgres.Client, rdb *pkgredis.Client, m *metrics.Metrics) *source.Router {
	files := source.FileLoader{}
	sources := source.NewRouter()
	sources.Handle(source.SchemeFile, files)
	sources.Handle(source.SchemeSQLite, source.SQLiteLoader{BusyTimeout: cfg.SQLite.BusyTimeout, Files: files})

	attempts, timeout := cfg.AutoPhrase.LoadAttempts, cfg.AutoPhrase.LoadTimeout
	breakerCfg := resilience.CircuitBreakerConfig{
		IsFailure:     source.IsTransient,
		OnStateChange: m.ObserveBreaker,
	}
	if pg != nil {
		breaker := resilience.NewCircuitBreaker("phrases-postgres", breakerCfg)
		sources.Handle(source.SchemePostgres,
			source.NewResilient("phrases-postgres", source.NewPostgresLoader(pg.DB), attempts, timeout, breaker))
	}
	if rdb != nil {
		breaker := resilience.NewCircuitBreaker("phrases-redis", breakerCfg)
		sources.Handle(source.SchemeRedis,
			source.NewResilient("phrases-redis", source.NewRedisLoader(rdb), attempts, timeout, breaker))
	}
	slog.Info("phrase sources registered", "schemes", sources.Schemes())
	return sources
}

// invalidateAfter drops cached plans once a remote reload has been applied.
func invalidateAfter(next kafka.MessageHandler, planCache *cache.PlanCache) kafka.MessageHandler {
	if planCache == nil {
		return next
	}
	return func(ctx context.Context, key, value []byte) error {
		if err := next(ctx, key, value); err != nil {
			return err
		}
		return planCache.Invalidate(ctx)
	}
}

// replicaName identifies this process in reload events.
func replicaName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "autophrase"
	}
	return host + "-" + uuid.NewString()[:8]
}
