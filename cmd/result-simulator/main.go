package main

import (
	"context"
	"encoding/json"
	"math/rand"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/match-escrow/internal/result-ingest/natssub"
	"github.com/radieske/match-escrow/internal/shared/config"
	"github.com/radieske/match-escrow/internal/shared/kafka"
	"github.com/radieske/match-escrow/internal/shared/logger"
	"github.com/radieske/match-escrow/internal/shared/metrics"
	"github.com/radieske/match-escrow/pkg/contracts/events"
)

// Simula o subsistema de gameplay: a cada SIM_INTERVAL publica o resultado de
// uma das partidas de SIM_MATCHES. Resultados repetidos exercitam a idempotência do worker.

var published = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "result_sim_published_total",
	Help: "Resultados publicados por destino",
}, []string{"sink"})

type publishFunc func(ctx context.Context, ev events.MatchCompleted) error

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

	if len(cfg.SimMatches) == 0 {
		log.Fatal("SIM_MATCHES is empty")
	}
	prometheus.MustRegister(published)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var publish publishFunc
	switch cfg.ResultSource {
	case "nats":
		nc, js, err := natssub.Connect(cfg.NATSURL, log)
		if err != nil {
			log.Fatal("nats connect", zap.Error(err))
		}
		defer nc.Close()
		publish = func(ctx context.Context, ev events.MatchCompleted) error {
			b, err := json.Marshal(ev)
			if err != nil {
				return err
			}
			_, err = js.Publish(ctx, cfg.NATSSubject, b)
			return err
		}
	default:
		w := kafka.NewWriter(kafka.Brokers(cfg.KafkaBrokers))
		defer w.Close()
		publish = func(ctx context.Context, ev events.MatchCompleted) error {
			msg, err := kafka.JSONMessage(cfg.TopicMatchCompleted, ev.MatchID, ev)
			if err != nil {
				return err
			}
			return w.WriteMessages(ctx, msg)
		}
	}

	msrv := metrics.StartMetricsServer(cfg.MetricsPort, nil, log)
	defer func() { _ = msrv.Close() }()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	ticker := time.NewTicker(cfg.SimInterval)
	defer ticker.Stop()
	log.Info("result-simulator started", zap.Strings("matches", cfg.SimMatches), zap.String("sink", cfg.ResultSource))

	for {
		select {
		case <-ctx.Done():
			log.Info("result-simulator stopped")
			return
		case <-ticker.C:
			ev := events.MatchCompleted{
				MatchID:  cfg.SimMatches[rng.Intn(len(cfg.SimMatches))],
				Winner:   uint8(1 + rng.Intn(cfg.SimOutcomes)),
				ProofRef: "sim://" + uuid.NewString(),
				Source:   cfg.ServiceName,
				Ts:       time.Now().UTC(),
			}
			if err := publish(ctx, ev); err != nil {
				log.Warn("publish result failed", zap.String("match_id", ev.MatchID), zap.Error(err))
				continue
			}
			published.WithLabelValues(cfg.ResultSource).Inc()
			log.Info("result published", zap.String("match_id", ev.MatchID), zap.Uint8("winner", ev.Winner))
		}
	}
}
