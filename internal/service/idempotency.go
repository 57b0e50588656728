package service

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// IdempotencyGuard claims detection tokens so a repeated event for the same
// state transition is recorded at most once.
type IdempotencyGuard interface {
	// Claim reports true when the token was not seen within ttl.
	Claim(ctx context.Context, token string, ttl time.Duration) (bool, error)
	// Release forgets a token so a failed detection can be retried.
	Release(ctx context.Context, token string) error
}

const redisTokenPrefix = "penalty:detect:"

// RedisGuard stores tokens as expiring Redis keys so every replica shares them.
type RedisGuard struct {
	client *redis.Client
}

// NewRedisGuard builds a guard on top of an existing client.
func NewRedisGuard(client *redis.Client) *RedisGuard {
	return &RedisGuard{client: client}
}

func (g *RedisGuard) Claim(ctx context.Context, token string, ttl time.Duration) (bool, error) {
	return g.client.SetNX(ctx, redisTokenPrefix+token, time.Now().UTC().Format(time.RFC3339), ttl).Result()
}

func (g *RedisGuard) Release(ctx context.Context, token string) error {
	return g.client.Del(ctx, redisTokenPrefix+token).Err()
}

// MemoryGuard keeps tokens in process. The unique idempotency_key column still
// deduplicates across replicas.
type MemoryGuard struct {
	mu     sync.Mutex
	tokens map[string]time.Time
	now    func() time.Time
}

// NewMemoryGuard creates an empty guard.
func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{tokens: make(map[string]time.Time), now: time.Now}
}

func (g *MemoryGuard) Claim(_ context.Context, token string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	if expires, ok := g.tokens[token]; ok && now.Before(expires) {
		return false, nil
	}
	g.tokens[token] = now.Add(ttl)
	return true, nil
}

func (g *MemoryGuard) Release(_ context.Context, token string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.tokens, token)
	return nil
}
