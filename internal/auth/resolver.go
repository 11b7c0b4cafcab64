// Package auth resolves bearer tokens to caller identities. Token issuance
// lives in the identity service; this package only reads the shared store.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/funddesk/funddesk/internal/shared"
)

// ErrTokenUnknown marks tokens that have expired or were never issued.
var ErrTokenUnknown = errors.New("auth: token unknown")

// Resolver maps a bearer token to an identity.
type Resolver interface {
	Resolve(ctx context.Context, token string) (shared.Identity, error)
}

const tokenKeyPrefix = "funddesk:token:"

// RedisResolver resolves tokens against the shared Redis token store.
type RedisResolver struct {
	client *redis.Client
}

// NewRedisResolver builds a resolver over the given client.
func NewRedisResolver(client *redis.Client) *RedisResolver {
	return &RedisResolver{client: client}
}

// Resolve looks the token up and decodes the stored identity.
func (r *RedisResolver) Resolve(ctx context.Context, token string) (shared.Identity, error) {
	raw, err := r.client.Get(ctx, tokenKeyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return shared.Identity{}, ErrTokenUnknown
	}
	if err != nil {
		return shared.Identity{}, fmt.Errorf("auth: resolve token: %w", err)
	}

	var id shared.Identity
	if err := json.Unmarshal([]byte(raw), &id); err != nil {
		return shared.Identity{}, fmt.Errorf("auth: decode identity: %w", err)
	}
	if id.Email == "" {
		return shared.Identity{}, ErrTokenUnknown
	}
	return id, nil
}
