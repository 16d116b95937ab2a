package natssub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/radieske/match-escrow/internal/escrow/domain"
	"github.com/radieske/match-escrow/internal/result-ingest/handler"
	"github.com/radieske/match-escrow/pkg/contracts/events"
)

// Resolver aplica um resultado de partida.
type Resolver interface {
	Handle(ctx context.Context, ev events.MatchCompleted) (handler.Outcome, error)
}

// Msg é o que o subscriber usa de jetstream.Msg.
type Msg interface {
	Data() []byte
	Ack() error
	Nak() error
	Term() error
}

// Config descreve o stream e o consumer durável dos resultados de gameplay.
type Config struct {
	Stream   string
	Subject  string
	Durable  string
	MaxAge   time.Duration
	AckWait  time.Duration
	MaxRetry int
}

// Subscriber consome MatchCompleted do JetStream com ack explícito.
// Falhas retentáveis voltam com Nak; as demais são terminadas.
type Subscriber struct {
	js      jetstream.JetStream
	handler Resolver
	log     *zap.Logger
	cc      jetstream.ConsumeContext

	OnHandled func(handler.Outcome)
	OnError   func(string)
}

func NewSubscriber(js jetstream.JetStream, h Resolver, log *zap.Logger) *Subscriber {
	return &Subscriber{js: js, handler: h, log: log}
}

// EnsureStream cria o stream se ainda não existir.
func EnsureStream(ctx context.Context, js jetstream.JetStream, cfg Config) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      cfg.Stream,
		Subjects:  []string{cfg.Subject},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    cfg.MaxAge,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create stream %s: %w", cfg.Stream, err)
	}
	return nil
}

// Subscribe cria o consumer durável e começa a consumir.
func (s *Subscriber) Subscribe(ctx context.Context, cfg Config) error {
	consumer, err := s.js.CreateOrUpdateConsumer(ctx, cfg.Stream, jetstream.ConsumerConfig{
		Durable:       cfg.Durable,
		FilterSubject: cfg.Subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       cfg.AckWait,
		MaxDeliver:    cfg.MaxRetry,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", cfg.Durable, err)
	}
	cc, err := consumer.Consume(func(msg jetstream.Msg) { s.Process(ctx, msg) })
	if err != nil {
		return fmt.Errorf("consume %s: %w", cfg.Durable, err)
	}
	s.cc = cc
	s.log.Info("subscribed to match results", zap.String("subject", cfg.Subject), zap.String("consumer", cfg.Durable))
	return nil
}

// Process aplica uma mensagem e decide entre Ack, Nak e Term.
func (s *Subscriber) Process(ctx context.Context, msg Msg) {
	var ev events.MatchCompleted
	if err := json.Unmarshal(msg.Data(), &ev); err != nil {
		s.log.Warn("invalid message", zap.Error(err))
		s.fail("decode")
		_ = msg.Term()
		return
	}

	out, err := s.handler.Handle(ctx, ev)
	switch {
	case err == nil:
		if s.OnHandled != nil {
			s.OnHandled(out)
		}
		if aerr := msg.Ack(); aerr != nil {
			s.log.Warn("nats ack failed", zap.String("match_id", ev.MatchID), zap.Error(aerr))
		}
	case domain.IsRetryable(err) || errors.Is(err, context.DeadlineExceeded):
		s.log.Warn("match result will be redelivered", zap.String("match_id", ev.MatchID), zap.Error(err))
		s.fail("retry")
		_ = msg.Nak()
	default:
		s.log.Error("apply match result failed", zap.String("match_id", ev.MatchID), zap.Error(err))
		s.fail("handle")
		_ = msg.Term()
	}
}

func (s *Subscriber) fail(stage string) {
	if s.OnError != nil {
		s.OnError(stage)
	}
}

// Stop encerra o consumo.
func (s *Subscriber) Stop() {
	if s.cc != nil {
		s.cc.Stop()
	}
}

// Connect abre a conexão NATS com reconexão infinita e devolve o JetStream.
func Connect(url string, log *zap.Logger) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info("nats reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}
	return nc, js, nil
}
