package infrastructure

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const idempotencyPrefix = "orderhub:idem:"

// RedisIdempotencyGuard 记录创建请求的 Idempotency-Key 与其产生的订单号，
// 让重放的创建请求拿回同一订单而不是下重单。
// 商品侧的 reduce-stock 接口不保证幂等，这层守卫是创建路径上唯一的重放防线。
type RedisIdempotencyGuard struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisIdempotencyGuard(client *redis.Client, ttl time.Duration) *RedisIdempotencyGuard {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisIdempotencyGuard{client: client, ttl: ttl}
}

// Seen 查询 key 是否已有对应订单。命中返回 (orderID, true)。
func (g *RedisIdempotencyGuard) Seen(ctx context.Context, key string) (int64, bool, error) {
	val, err := g.client.Get(ctx, idempotencyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errors.Wrap(err, "idempotency lookup")
	}
	orderID, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, errors.Wrap(err, "parse stored order id")
	}
	return orderID, true, nil
}

// Record 绑定 key 与订单号。NX 语义保证先写者胜出。
func (g *RedisIdempotencyGuard) Record(ctx context.Context, key string, orderID int64) error {
	err := g.client.SetNX(ctx, idempotencyPrefix+key, strconv.FormatInt(orderID, 10), g.ttl).Err()
	return errors.Wrap(err, "record idempotency key")
}
