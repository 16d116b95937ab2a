package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Writer = kafka.Writer

// Brokers separa a lista "host1:9092,host2:9092" vinda do ambiente.
func Brokers(csv string) []string {
	var out []string
	for _, b := range strings.Split(csv, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// NewWriter cria um writer sem tópico fixo: cada mensagem informa o seu.
// Mensagens com a mesma chave caem na mesma partição (ordem por partida).
func NewWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
		ReadTimeout:            10 * time.Second,
		WriteTimeout:           10 * time.Second,
	}
}

func NewReader(brokers []string, topic string, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
	})
}

// EnsureTopics cria os tópicos via controller do cluster. Usado só em local/dev;
// tópico já existente não é erro.
func EnsureTopics(ctx context.Context, brokers []string, log *zap.Logger, topics ...string) error {
	if len(brokers) == 0 {
		return fmt.Errorf("kafka brokers not provided")
	}
	conn, err := kafka.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		return fmt.Errorf("dial kafka: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("kafka controller: %w", err)
	}
	cconn, err := kafka.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("dial kafka controller: %w", err)
	}
	defer cconn.Close()

	for _, t := range topics {
		err := cconn.CreateTopics(kafka.TopicConfig{Topic: t, NumPartitions: 1, ReplicationFactor: 1})
		switch {
		case err == nil:
			log.Info("kafka topic created", zap.String("topic", t))
		case strings.Contains(err.Error(), "already exists"):
		default:
			log.Warn("failed to create kafka topic", zap.String("topic", t), zap.Error(err))
		}
	}
	return nil
}

// JSONMessage monta a mensagem com o payload serializado.
func JSONMessage(topic, key string, payload any) (kafka.Message, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal %s: %w", topic, err)
	}
	return kafka.Message{Topic: topic, Key: []byte(key), Value: b, Time: time.Now().UTC()}, nil
}
