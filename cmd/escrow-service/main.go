package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/match-escrow/internal/escrow"
	"github.com/radieske/match-escrow/internal/escrow/cache"
	"github.com/radieske/match-escrow/internal/escrow/engine"
	httpapi "github.com/radieske/match-escrow/internal/escrow/http"
	escrowmetrics "github.com/radieske/match-escrow/internal/escrow/metrics"
	"github.com/radieske/match-escrow/internal/escrow/producer"
	"github.com/radieske/match-escrow/internal/escrow/pubsub"
	"github.com/radieske/match-escrow/internal/escrow/ws"
	"github.com/radieske/match-escrow/internal/gateway"
	sharedcache "github.com/radieske/match-escrow/internal/shared/cache"
	"github.com/radieske/match-escrow/internal/shared/config"
	"github.com/radieske/match-escrow/internal/shared/db"
	"github.com/radieske/match-escrow/internal/shared/kafka"
	"github.com/radieske/match-escrow/internal/shared/logger"
	"github.com/radieske/match-escrow/internal/shared/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, pg, err := escrow.OpenStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("store open", zap.Error(err))
	}
	checks := map[string]metrics.HealthFunc{}
	if pg != nil {
		defer pg.Close()
		checks["postgres"] = pg.PingContext
		if cfg.Env == "local" {
			if err := db.NewMigrator(pg, "migrations", log).Up(ctx); err != nil {
				log.Fatal("migrations", zap.Error(err))
			}
		}
	}

	redisClient, err := sharedcache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()
	checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }

	// Kafka: eventos do escrow, chaveados por partida
	brokers := kafka.Brokers(cfg.KafkaBrokers)
	if cfg.Env == "local" || cfg.Env == "dev" {
		tctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := kafka.EnsureTopics(tctx, brokers, log, cfg.Topics()...); err != nil {
			log.Warn("kafka topics", zap.Error(err))
		}
		cancel()
	}
	kafkaSink := producer.NewKafkaPublisher(kafka.NewWriter(brokers), log)
	defer kafkaSink.Close()

	m := escrowmetrics.NewEscrow(prometheus.DefaultRegisterer)
	engCfg, err := escrow.EngineConfig(cfg)
	if err != nil {
		log.Fatal("engine config", zap.Error(err))
	}
	matchCache := cache.New(redisClient)
	eng, err := engine.New(st, engCfg,
		engine.WithLogger(log),
		engine.WithSink(engine.Sinks(kafkaSink, pubsub.NewRedisBroadcaster(redisClient), cache.NewInvalidator(matchCache))),
		engine.WithHooks(m.Hooks()),
	)
	if err != nil {
		log.Fatal("engine", zap.Error(err))
	}

	// Hub websocket alimentado pelo Redis Pub/Sub
	hub := ws.NewHub(gateway.AllowOrigin(cfg.AllowedOrigins), log)
	ws.StartRedisSubscriber(ctx, redisClient, hub, log)

	api := &httpapi.API{Engine: eng, Cache: matchCache, CacheTTL: cfg.MatchCacheTTL, Log: log}
	srv := &http.Server{
		Addr: ":" + cfg.HTTPPort,
		Handler: api.Router(func(r chi.Router) {
			r.Get("/ws", hub.HandleWS)
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	msrv := metrics.StartMetricsServer(cfg.MetricsPort, metrics.Checks(checks), log)

	go func() {
		log.Info("escrow-service listening", zap.String("addr", srv.Addr), zap.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = msrv.Shutdown(shutdownCtx)
	log.Info("escrow-service stopped")
}
