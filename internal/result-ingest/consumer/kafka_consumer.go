package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/match-escrow/internal/result-ingest/handler"
	sharedkafka "github.com/radieske/match-escrow/internal/shared/kafka"
	"github.com/radieske/match-escrow/pkg/contracts/events"
)

// MessageReader é o subconjunto de *kafka.Reader usado pelo loop.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// MessageWriter é o subconjunto de *kafka.Writer usado para a DLQ.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Resolver aplica um resultado de partida.
type Resolver interface {
	Handle(ctx context.Context, ev events.MatchCompleted) (handler.Outcome, error)
}

// DLQEntry é o que vai para o tópico de DLQ: a mensagem original e o motivo.
type DLQEntry struct {
	MatchID string          `json:"matchId,omitempty"`
	Error   string          `json:"error"`
	Payload json.RawMessage `json:"payload"`
	Ts      time.Time       `json:"ts"`
}

// Processor consome match_completed do Kafka e aplica cada resultado.
// O offset só é commitado depois do resultado aplicado ou enviado à DLQ.
// Callbacks de métricas podem ser usadas para monitoramento de cada etapa
type Processor struct {
	Log      *zap.Logger
	Reader   MessageReader
	Handler  Resolver
	DLQ      MessageWriter // nil: falhas só são logadas
	DLQTopic string

	OnConsumed func()                // métricas (counter++)
	OnHandled  func(handler.Outcome) // métricas por resultado
	OnDLQ      func()                // métricas
	OnError    func(string)          // métricas por fase
}

// Run inicia o loop principal de consumo até ctx terminar.
func (p *Processor) Run(ctx context.Context) error {
	for {
		m, err := p.Reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("kafka read failed", zap.Error(err))
			p.fail("read")
			time.Sleep(500 * time.Millisecond)
			continue
		}
		if p.OnConsumed != nil {
			p.OnConsumed()
		}

		p.process(ctx, m)

		if err := p.Reader.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("kafka commit failed", zap.Error(err))
			p.fail("commit")
		}
	}
}

func (p *Processor) process(ctx context.Context, m kafka.Message) {
	var ev events.MatchCompleted
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		p.Log.Warn("invalid message", zap.Error(err))
		p.fail("decode")
		p.deadLetter(ctx, "", m.Value, err)
		return
	}

	out, err := p.Handler.Handle(ctx, ev)
	if err != nil {
		p.Log.Error("apply match result failed", zap.String("match_id", ev.MatchID), zap.Error(err))
		p.fail("handle")
		p.deadLetter(ctx, ev.MatchID, m.Value, err)
		return
	}
	if p.OnHandled != nil {
		p.OnHandled(out)
	}
}

func (p *Processor) deadLetter(ctx context.Context, matchID string, payload []byte, cause error) {
	if p.DLQ == nil {
		return
	}
	raw := json.RawMessage(payload)
	if !json.Valid(payload) {
		raw, _ = json.Marshal(string(payload))
	}
	msg, err := sharedkafka.JSONMessage(p.DLQTopic, matchID, DLQEntry{
		MatchID: matchID, Error: cause.Error(), Payload: raw, Ts: time.Now().UTC(),
	})
	if err == nil {
		err = p.DLQ.WriteMessages(ctx, msg)
	}
	if err != nil {
		p.Log.Error("dlq publish failed", zap.String("match_id", matchID), zap.Error(err))
		p.fail("dlq")
		return
	}
	if p.OnDLQ != nil {
		p.OnDLQ()
	}
}

func (p *Processor) fail(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}

// IsStopped indica o fim normal do loop.
func IsStopped(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
