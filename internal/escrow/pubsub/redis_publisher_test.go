package pubsub

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/match-escrow/internal/escrow/engine"
	"github.com/radieske/match-escrow/pkg/contracts/events"
	"github.com/radieske/match-escrow/pkg/contracts/topics"
)

type published struct {
	channel string
	body    []byte
}

type fakeRedis struct{ out []published }

func (f *fakeRedis) Publish(ctx context.Context, channel string, message any) *redis.IntCmd {
	f.out = append(f.out, published{channel: channel, body: message.([]byte)})
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(1)
	return cmd
}

var _ engine.EventSink = (*RedisBroadcaster)(nil)

func TestBroadcastEnvelope(t *testing.T) {
	f := &fakeRedis{}
	b := NewRedisBroadcaster(f)
	ctx := context.Background()

	require.NoError(t, b.PublishBetPlaced(ctx, events.BetPlaced{MatchID: "m1", Pools: []uint64{3, 1}}))
	require.NoError(t, b.PublishSettled(ctx, events.MatchSettled{MatchID: "m1", Status: "CANCELLED", Refunded: true}))
	require.Len(t, f.out, 2)

	var upd events.LiveUpdate
	require.NoError(t, json.Unmarshal(f.out[0].body, &upd))
	assert.Equal(t, topics.LiveMatchChannel, f.out[0].channel)
	assert.Equal(t, "m1", upd.MatchID)
	assert.Equal(t, events.LiveBetPlaced, upd.Type)

	var bp events.BetPlaced
	require.NoError(t, json.Unmarshal(upd.Payload, &bp))
	assert.Equal(t, []uint64{3, 1}, bp.Pools)

	require.NoError(t, json.Unmarshal(f.out[1].body, &upd))
	assert.Equal(t, events.LiveSettled, upd.Type)
}
