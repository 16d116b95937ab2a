package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/match-escrow/internal/escrow"
	"github.com/radieske/match-escrow/internal/escrow/cache"
	"github.com/radieske/match-escrow/internal/escrow/engine"
	escrowmetrics "github.com/radieske/match-escrow/internal/escrow/metrics"
	"github.com/radieske/match-escrow/internal/escrow/producer"
	"github.com/radieske/match-escrow/internal/escrow/pubsub"
	"github.com/radieske/match-escrow/internal/result-ingest/consumer"
	"github.com/radieske/match-escrow/internal/result-ingest/handler"
	"github.com/radieske/match-escrow/internal/result-ingest/natssub"
	sharedcache "github.com/radieske/match-escrow/internal/shared/cache"
	"github.com/radieske/match-escrow/internal/shared/config"
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

	if cfg.OracleID == "" || (cfg.AutoFinalize && cfg.AuthorityID == "") {
		log.Fatal("ORACLE_ID and AUTHORITY_ID are required")
	}

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
	}

	redisClient, err := sharedcache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()
	checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }

	brokers := kafka.Brokers(cfg.KafkaBrokers)
	writer := kafka.NewWriter(brokers)
	kafkaSink := producer.NewKafkaPublisher(writer, log)
	defer kafkaSink.Close()

	// Métricas Prometheus do engine e do consumo de resultados
	m := escrowmetrics.NewEscrow(prometheus.DefaultRegisterer)
	handled := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "result_worker_handled_total", Help: "resultados aplicados por desfecho"}, []string{"outcome"})
	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "result_worker_messages_consumed_total", Help: "mensagens consumidas"})
	dlq := prometheus.NewCounter(prometheus.CounterOpts{Name: "result_worker_dlq_total", Help: "mensagens enviadas para a DLQ"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "result_worker_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(handled, consumed, dlq, errorsBy)

	engCfg, err := escrow.EngineConfig(cfg)
	if err != nil {
		log.Fatal("engine config", zap.Error(err))
	}
	// a API lê partidas do mesmo cache Redis; toda mutação daqui também o invalida
	eng, err := engine.New(st, engCfg,
		engine.WithLogger(log),
		engine.WithSink(engine.Sinks(kafkaSink, pubsub.NewRedisBroadcaster(redisClient), cache.NewInvalidator(cache.New(redisClient)))),
		engine.WithHooks(m.Hooks()),
	)
	if err != nil {
		log.Fatal("engine", zap.Error(err))
	}

	h := &handler.Handler{
		Engine:       eng,
		Oracle:       cfg.OracleID,
		Authority:    cfg.AuthorityID,
		AutoFinalize: cfg.AutoFinalize,
		Retries:      5,
		Backoff:      200 * time.Millisecond,
		Log:          log,
	}
	onHandled := func(o handler.Outcome) { handled.WithLabelValues(string(o)).Inc() }
	onError := func(stage string) { errorsBy.WithLabelValues(stage).Inc() }

	var (
		nc *nats.Conn
		js jetstream.JetStream
	)
	if cfg.ResultSource == "nats" {
		nc, js, err = natssub.Connect(cfg.NATSURL, log)
		if err != nil {
			log.Fatal("nats connect", zap.Error(err))
		}
		defer nc.Close()
		checks["nats"] = func(context.Context) error {
			if !nc.IsConnected() {
				return errors.New("nats not connected")
			}
			return nil
		}
	}

	msrv := metrics.StartMetricsServer(cfg.MetricsPort, metrics.Checks(checks), log)
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = msrv.Shutdown(sctx)
	}()

	log.Info("result-worker started", zap.String("source", cfg.ResultSource), zap.Bool("auto_finalize", cfg.AutoFinalize))

	switch cfg.ResultSource {
	case "nats":
		ncfg := natssub.Config{
			Stream: cfg.NATSStream, Subject: cfg.NATSSubject, Durable: "escrow-result-worker",
			MaxAge: 72 * time.Hour, AckWait: 30 * time.Second, MaxRetry: 5,
		}
		if err := natssub.EnsureStream(ctx, js, ncfg); err != nil {
			log.Fatal("nats stream", zap.Error(err))
		}
		sub := natssub.NewSubscriber(js, h, log)
		sub.OnHandled = onHandled
		sub.OnError = onError
		if err := sub.Subscribe(ctx, ncfg); err != nil {
			log.Fatal("nats subscribe", zap.Error(err))
		}
		<-ctx.Done()
		sub.Stop()

	default:
		reader := kafka.NewReader(brokers, cfg.TopicMatchCompleted, "escrow-result-worker")
		defer reader.Close()

		proc := &consumer.Processor{
			Log:        log,
			Reader:     reader,
			Handler:    h,
			DLQ:        writer,
			DLQTopic:   cfg.TopicMatchCompletedDLQ,
			OnConsumed: func() { consumed.Inc() },
			OnHandled:  onHandled,
			OnDLQ:      func() { dlq.Inc() },
			OnError:    onError,
		}
		if err := proc.Run(ctx); err != nil && !consumer.IsStopped(err) {
			log.Error("processor stopped with error", zap.Error(err))
		}
	}
	log.Info("result-worker stopped")
}
