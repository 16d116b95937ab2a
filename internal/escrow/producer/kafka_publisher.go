package producer

import (
	"context"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	sharedkafka "github.com/radieske/match-escrow/internal/shared/kafka"
	"github.com/radieske/match-escrow/pkg/contracts/events"
	"github.com/radieske/match-escrow/pkg/contracts/topics"
)

// MessageWriter é o subconjunto de *kafka.Writer usado aqui.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publica os eventos do escrow. A chave é sempre o match id,
// então os eventos de uma partida chegam em ordem.
type KafkaPublisher struct {
	writer MessageWriter
	log    *zap.Logger
}

func NewKafkaPublisher(w MessageWriter, log *zap.Logger) *KafkaPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &KafkaPublisher{writer: w, log: log}
}

func (p *KafkaPublisher) publish(ctx context.Context, topic, matchID string, payload any) error {
	msg, err := sharedkafka.JSONMessage(topic, matchID, payload)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Error("failed to publish escrow event", zap.String("topic", topic), zap.String("match_id", matchID), zap.Error(err))
		return err
	}
	p.log.Debug("published escrow event", zap.String("topic", topic), zap.String("match_id", matchID))
	return nil
}

func (p *KafkaPublisher) PublishBetPlaced(ctx context.Context, e events.BetPlaced) error {
	return p.publish(ctx, topics.BetPlaced, e.MatchID, e)
}

func (p *KafkaPublisher) PublishStatusChanged(ctx context.Context, e events.MatchStatusChanged) error {
	return p.publish(ctx, topics.MatchStatus, e.MatchID, e)
}

func (p *KafkaPublisher) PublishSettled(ctx context.Context, e events.MatchSettled) error {
	return p.publish(ctx, topics.MatchSettled, e.MatchID, e)
}

// Close finaliza o writer e libera recursos associados.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
