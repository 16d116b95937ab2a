package pubsub

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/match-escrow/pkg/contracts/events"
	"github.com/radieske/match-escrow/pkg/contracts/topics"
)

// Publisher é o que o broadcaster precisa do Redis.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// RedisBroadcaster repassa pools e status ao vivo para o canal lido pelo hub websocket.
// Implementa engine.EventSink.
type RedisBroadcaster struct {
	r       Publisher
	channel string
}

func NewRedisBroadcaster(r Publisher) *RedisBroadcaster {
	return &RedisBroadcaster{r: r, channel: topics.LiveMatchChannel}
}

func (b *RedisBroadcaster) publish(ctx context.Context, matchID, kind string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	msg, err := json.Marshal(events.LiveUpdate{MatchID: matchID, Type: kind, Payload: raw})
	if err != nil {
		return err
	}
	return b.r.Publish(ctx, b.channel, msg).Err()
}

func (b *RedisBroadcaster) PublishBetPlaced(ctx context.Context, e events.BetPlaced) error {
	return b.publish(ctx, e.MatchID, events.LiveBetPlaced, e)
}

func (b *RedisBroadcaster) PublishStatusChanged(ctx context.Context, e events.MatchStatusChanged) error {
	return b.publish(ctx, e.MatchID, events.LiveStatusChanged, e)
}

func (b *RedisBroadcaster) PublishSettled(ctx context.Context, e events.MatchSettled) error {
	return b.publish(ctx, e.MatchID, events.LiveSettled, e)
}
