package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const replayKeyPrefix = "replay:"

var ErrReplayedRequest = errors.New("request has already been used")

// ReplayGuard accepts each signed request at most once within ttl.
type ReplayGuard interface {
	Claim(ctx context.Context, req *Request, ttl time.Duration) error
}

// RequestDigest identifies a request by its signed payload.
func RequestDigest(req *Request) string {
	sum := sha256.Sum256(req.Serialize())
	return hex.EncodeToString(sum[:])
}

// MemoryReplayGuard remembers claimed requests in process. Expired entries
// are swept on Claim at most once per sweepInterval.
type MemoryReplayGuard struct {
	mu            sync.Mutex
	seen          map[string]time.Time
	now           func() time.Time
	nextSweep     time.Time
	sweepInterval time.Duration
}

func NewMemoryReplayGuard() *MemoryReplayGuard {
	return &MemoryReplayGuard{
		seen:          make(map[string]time.Time),
		now:           time.Now,
		sweepInterval: time.Minute,
	}
}

func (g *MemoryReplayGuard) Claim(ctx context.Context, req *Request, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	digest := RequestDigest(req)

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if now.After(g.nextSweep) {
		for k, expiry := range g.seen {
			if now.After(expiry) {
				delete(g.seen, k)
			}
		}
		g.nextSweep = now.Add(g.sweepInterval)
	}

	if expiry, ok := g.seen[digest]; ok && !now.After(expiry) {
		return ErrReplayedRequest
	}
	g.seen[digest] = now.Add(ttl)
	return nil
}

// Len reports how many claims are currently remembered.
func (g *MemoryReplayGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.seen)
}

// RedisReplayGuard shares claims between every process using the same redis.
type RedisReplayGuard struct {
	client redis.UniversalClient
}

func NewRedisReplayGuard(client redis.UniversalClient) *RedisReplayGuard {
	return &RedisReplayGuard{client: client}
}

func (g *RedisReplayGuard) Claim(ctx context.Context, req *Request, ttl time.Duration) error {
	ok, err := g.client.SetNX(ctx, replayKeyPrefix+RequestDigest(req), req.Signer.String(), ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to record request: %w", err)
	}
	if !ok {
		return ErrReplayedRequest
	}
	return nil
}
