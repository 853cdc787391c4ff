package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"

	"github.com/mezonai/vault/logx"
)

// Config is the [lock] section of the node config.
type Config struct {
	// Type is "local" or "redis"
	Type         string `ini:"type"`
	RedisAddr    string `ini:"redis_addr"`
	ExpiryMs     int    `ini:"expiry_ms"`
	Tries        int    `ini:"tries"`
	RetryDelayMs int    `ini:"retry_delay_ms"`
}

const (
	TypeLocal = "local"
	TypeRedis = "redis"
)

func DefaultConfig() Config {
	return Config{
		Type:         TypeLocal,
		ExpiryMs:     10_000,
		Tries:        32,
		RetryDelayMs: 100,
	}
}

// ErrLockLost is the cancellation cause seen by fn when the lock expired or
// could not be extended while fn ran.
var ErrLockLost = errors.New("lock lost")

// RedisLocker serializes keys across processes with the RedLock algorithm.
// The lock is extended while fn runs, every third of its expiry.
type RedisLocker struct {
	redsync     *redsync.Redsync
	expiry      time.Duration
	extendEvery time.Duration
	tries       int
	retryDelay  time.Duration
}

func NewRedisLocker(client redis.UniversalClient, cfg Config) *RedisLocker {
	def := DefaultConfig()
	if cfg.ExpiryMs <= 0 {
		cfg.ExpiryMs = def.ExpiryMs
	}
	if cfg.Tries <= 0 {
		cfg.Tries = def.Tries
	}
	if cfg.RetryDelayMs <= 0 {
		cfg.RetryDelayMs = def.RetryDelayMs
	}

	expiry := time.Duration(cfg.ExpiryMs) * time.Millisecond
	return &RedisLocker{
		redsync:     redsync.New(goredis.NewPool(client)),
		expiry:      expiry,
		extendEvery: max(expiry/3, 10*time.Millisecond),
		tries:       cfg.Tries,
		retryDelay:  time.Duration(cfg.RetryDelayMs) * time.Millisecond,
	}
}

func (rl *RedisLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	mutex := rl.redsync.NewMutex(
		"lock:"+key,
		redsync.WithExpiry(rl.expiry),
		redsync.WithTries(rl.tries),
		redsync.WithRetryDelay(rl.retryDelay),
	)

	if err := mutex.LockContext(ctx); err != nil {
		return fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}

	lockCtx, cancel := context.WithCancelCause(ctx)
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		rl.keepAlive(lockCtx, mutex, key, done, cancel)
	}()

	defer func() {
		close(done)
		<-stopped
		lost := errors.Is(context.Cause(lockCtx), ErrLockLost)
		cancel(nil)
		if lost {
			return
		}
		// unlock must run even if ctx was cancelled inside fn
		if ok, err := mutex.UnlockContext(context.WithoutCancel(ctx)); !ok || err != nil {
			logx.Warn("LOCK", fmt.Sprintf("Failed to release lock %s: ok=%v err=%v", key, ok, err))
		}
	}()

	return fn(lockCtx)
}

// keepAlive extends mutex until done is closed, cancelling ctx with ErrLockLost if it cannot
func (rl *RedisLocker) keepAlive(ctx context.Context, mutex *redsync.Mutex, key string, done <-chan struct{}, cancel context.CancelCauseFunc) {
	ticker := time.NewTicker(rl.extendEvery)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if time.Now().After(mutex.Until()) {
				logx.Warn("LOCK", fmt.Sprintf("Lock %s expired before it could be extended", key))
				cancel(fmt.Errorf("%w: %s expired", ErrLockLost, key))
				return
			}
			if ok, err := mutex.ExtendContext(ctx); !ok || err != nil {
				if ctx.Err() != nil {
					return
				}
				logx.Warn("LOCK", fmt.Sprintf("Failed to extend lock %s: ok=%v err=%v", key, ok, err))
				cancel(fmt.Errorf("%w: %s could not be extended", ErrLockLost, key))
				return
			}
		}
	}
}

// New builds the Locker selected by cfg. client is only used for TypeRedis.
func New(cfg Config, client redis.UniversalClient) (Locker, error) {
	switch cfg.Type {
	case "", TypeLocal:
		return NewKeyedMutex(), nil
	case TypeRedis:
		if client == nil {
			return nil, errors.New("redis lock requires a redis client")
		}
		return NewRedisLocker(client, cfg), nil
	default:
		return nil, fmt.Errorf("unsupported lock type: %s", cfg.Type)
	}
}
