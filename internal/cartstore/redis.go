package cartstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/airink/storefront-backend/internal/cart"
	"github.com/airink/storefront-backend/pkg/redis"
)

// KeyValue is the slice of the redis client used for local carts.
type KeyValue interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	CartKey(sessionID string) string
}

// RedisLocal keeps guest carts as JSON strings keyed by session id. Every
// write refreshes the TTL so abandoned carts expire on their own.
type RedisLocal struct {
	kv  KeyValue
	ttl time.Duration
}

// NewRedisLocal builds a LocalStore over kv.
func NewRedisLocal(kv KeyValue, ttl time.Duration) *RedisLocal {
	return &RedisLocal{kv: kv, ttl: ttl}
}

func (r *RedisLocal) Get(ctx context.Context, sessionID string) (*cart.Cart, error) {
	raw, err := r.kv.Get(ctx, r.kv.CartKey(sessionID))
	if err != nil {
		if redis.IsNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get cart: %w", err)
	}
	var c cart.Cart
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil, fmt.Errorf("decode local cart: %w", err)
	}
	return &c, nil
}

func (r *RedisLocal) Put(ctx context.Context, sessionID string, c *cart.Cart) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode local cart: %w", err)
	}
	if err := r.kv.Set(ctx, r.kv.CartKey(sessionID), string(payload), r.ttl); err != nil {
		return fmt.Errorf("redis set cart: %w", err)
	}
	return nil
}
