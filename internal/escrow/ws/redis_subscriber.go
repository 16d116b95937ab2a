package ws

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/match-escrow/pkg/contracts/events"
	"github.com/radieske/match-escrow/pkg/contracts/topics"
)

// StartRedisSubscriber escuta o canal de atualizações ao vivo e repassa
// cada LiveUpdate para os clientes inscritos via Hub. Para quando ctx termina.
func StartRedisSubscriber(ctx context.Context, r *redis.Client, hub *Hub, log *zap.Logger) {
	sub := r.Subscribe(ctx, topics.LiveMatchChannel)
	go Relay(ctx, sub.Channel(), hub, log, func() { _ = sub.Close() })
}

// Relay consome mensagens do pub/sub até ctx terminar ou o canal fechar.
func Relay(ctx context.Context, ch <-chan *redis.Message, hub *Hub, log *zap.Logger, onDone func()) {
	if onDone != nil {
		defer onDone()
	}
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if msg == nil {
				continue
			}
			var upd events.LiveUpdate
			if err := json.Unmarshal([]byte(msg.Payload), &upd); err != nil {
				log.Warn("ws subscriber unmarshal error", zap.Error(err))
				continue
			}
			hub.Broadcast(upd)
		}
	}
}
