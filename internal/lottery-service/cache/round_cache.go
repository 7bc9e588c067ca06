package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// RoundCache guarda o último snapshot de cada rodada no Redis e o difunde via Pub/Sub
// Client: cliente Redis
// TTL: tempo de expiração do snapshot
// Channel: canal Pub/Sub escutado pelo /ws
type RoundCache struct {
	Client  *redis.Client
	TTL     time.Duration
	Channel string
}

// NewRoundCache cria o cache com TTL e canal configuráveis
func NewRoundCache(c *redis.Client, ttl time.Duration, channel string) *RoundCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RoundCache{Client: c, TTL: ttl, Channel: channel}
}

// Broadcast é o payload publicado no canal
type Broadcast struct {
	RoundID string `json:"roundId"`
	Seq     uint64 `json:"seq"`
	Payload any    `json:"payload"`
}

func key(roundID string) string    { return "lottery:round:" + roundID }
func seqKey(roundID string) string { return "lottery:round:" + roundID + ":seq" }

// storeIfNewer grava snapshot e seq e publica, a menos que já exista um seq maior ou igual.
// KEYS: snapshot, seq. ARGV: seq, snapshot, ttl(ms), canal, mensagem.
var storeIfNewer = redis.NewScript(`
local cur = redis.call('GET', KEYS[2])
if cur and tonumber(cur) >= tonumber(ARGV[1]) then
  return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
redis.call('SET', KEYS[2], ARGV[1], 'PX', ARGV[3])
redis.call('PUBLISH', ARGV[4], ARGV[5])
return 1
`)

// Store grava o snapshot e publica no canal numa única ida ao Redis.
// Snapshots com seq antigo (requisições concorrentes que chegaram fora de ordem) são descartados.
func (c *RoundCache) Store(ctx context.Context, roundID string, seq uint64, snapshot any) error {
	snap, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	msg, err := json.Marshal(Broadcast{RoundID: roundID, Seq: seq, Payload: json.RawMessage(snap)})
	if err != nil {
		return err
	}
	return storeIfNewer.Run(ctx, c.Client,
		[]string{key(roundID), seqKey(roundID)},
		seq, snap, c.TTL.Milliseconds(), c.Channel, msg,
	).Err()
}
