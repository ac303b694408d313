package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache 是带 TTL 的键值缓存。任何后端错误都按未命中处理，调用方无需关心缓存是否可用
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Close() error
}

// envelope 记录写入时间与 TTL，读取时再校验一次，保证不会返回超过 TTL 的值
type envelope struct {
	StoredAt   time.Time       `json:"stored_at"`
	TTLSeconds float64         `json:"ttl_seconds"`
	Value      json.RawMessage `json:"value"`
}

// Redis 基于 go-redis 的实现
type Redis struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedis(addr, password string, db int) *Redis {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Warn("cache: redis ping failed", "addr", addr, "err", err)
	}

	return &Redis{client: rdb, now: time.Now}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	bs, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("cache: get error", "key", key, "err", err)
		}
		return nil, false
	}

	var env envelope
	if err := json.Unmarshal(bs, &env); err != nil {
		slog.Warn("cache: bad envelope", "key", key, "err", err)
		return nil, false
	}
	ttl := time.Duration(env.TTLSeconds * float64(time.Second))
	if r.now().Sub(env.StoredAt) >= ttl {
		return nil, false
	}
	return env.Value, true
}

// Set 值必须是合法 JSON；失败只记日志
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	bs, err := json.Marshal(envelope{
		StoredAt:   r.now().UTC(),
		TTLSeconds: ttl.Seconds(),
		Value:      json.RawMessage(value),
	})
	if err != nil {
		slog.Warn("cache: encode envelope error", "key", key, "err", err)
		return
	}
	if err := r.client.Set(ctx, key, bs, ttl).Err(); err != nil {
		slog.Warn("cache: set error", "key", key, "err", err)
	}
}

func (r *Redis) Close() error {
	return r.client.Close()
}

// Nop 未配置 Redis 时使用，永远未命中
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, bool)         { return nil, false }
func (Nop) Set(context.Context, string, []byte, time.Duration) {}
func (Nop) Close() error                                       { return nil }

// GetJSON 读取并反序列化；解码失败按未命中处理
func GetJSON[T any](ctx context.Context, c Cache, key string) (T, bool) {
	var v T
	bs, ok := c.Get(ctx, key)
	if !ok {
		return v, false
	}
	if err := json.Unmarshal(bs, &v); err != nil {
		slog.Warn("cache: decode error", "key", key, "err", err)
		return v, false
	}
	return v, true
}

func SetJSON(ctx context.Context, c Cache, key string, v any, ttl time.Duration) {
	bs, err := json.Marshal(v)
	if err != nil {
		slog.Warn("cache: encode error", "key", key, "err", err)
		return
	}
	c.Set(ctx, key, bs, ttl)
}
