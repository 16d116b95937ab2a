package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache guarda a visão pública das partidas no Redis.
//
// Cada invalidação grava um piso de versão ao lado da visão; SetMatch com versão
// abaixo do piso é descartado, então uma leitura antiga que chega depois da
// invalidação não volta para o cache.
type Cache struct{ R *redis.Client }

func New(r *redis.Client) *Cache { return &Cache{R: r} }

// floorTTL precisa cobrir qualquer leitura em andamento.
const floorTTL = time.Hour

func keyMatch(matchID string) string { return "escrow:match:" + matchID }
func keyFloor(matchID string) string { return "escrow:match:" + matchID + ":floor" }

// KEYS[1]=visão KEYS[2]=piso ARGV[1]=payload ARGV[2]=versão ARGV[3]=ttl ms
var setIfFresh = redis.NewScript(`
local floor = tonumber(redis.call("GET", KEYS[2]) or "0")
if tonumber(ARGV[2]) < floor then
  return 0
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[3])
return 1
`)

// KEYS[1]=visão KEYS[2]=piso ARGV[1]=versão ARGV[2]=ttl ms
var raiseFloor = redis.NewScript(`
local floor = tonumber(redis.call("GET", KEYS[2]) or "0")
if tonumber(ARGV[1]) > floor then
  redis.call("SET", KEYS[2], ARGV[1], "PX", ARGV[2])
end
redis.call("DEL", KEYS[1])
return 1
`)

func (c *Cache) GetMatch(ctx context.Context, matchID string, dst any) (bool, error) {
	b, err := c.R.Get(ctx, keyMatch(matchID)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(b, dst)
}

// SetMatch grava v se version não estiver abaixo da última invalidação.
func (c *Cache) SetMatch(ctx context.Context, matchID string, version int64, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	keys := []string{keyMatch(matchID), keyFloor(matchID)}
	return setIfFresh.Run(ctx, c.R, keys, b, version, ttl.Milliseconds()).Err()
}

// InvalidateMatch apaga a visão e sobe o piso para version.
func (c *Cache) InvalidateMatch(ctx context.Context, matchID string, version int64) error {
	keys := []string{keyMatch(matchID), keyFloor(matchID)}
	return raiseFloor.Run(ctx, c.R, keys, version, floorTTL.Milliseconds()).Err()
}
