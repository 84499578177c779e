package redis

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// Redis serializes admin dispense actions per visitor with a SetNX lock.
// The conditional update in the store is the correctness mechanism; the lock
// just keeps two admin stations from racing through the read-then-write UI flow.
type Redis struct {
	Client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{Client: client}
}

func (r *Redis) lockDuration() time.Duration {
	defaultDuration := 30 * time.Second

	ttlStr := os.Getenv("DISPENSE_LOCK_TTL_SECONDS")
	if ttlStr == "" {
		return defaultDuration
	}
	ttlSec, err := strconv.Atoi(ttlStr)
	if err != nil || ttlSec <= 0 {
		return defaultDuration
	}
	return time.Duration(ttlSec) * time.Second
}

// LockDispense acquires the per-visitor lock. Returns false when another
// dispense for the same visitor is in flight.
func (r *Redis) LockDispense(ctx context.Context, visitorQR, owner string) (bool, error) {
	key := "dispense_lock:" + visitorQR
	return r.Client.SetNX(ctx, key, owner, r.lockDuration()).Result()
}

// UnlockDispense releases the lock if this owner still holds it.
func (r *Redis) UnlockDispense(ctx context.Context, visitorQR, owner string) error {
	key := fmt.Sprintf("dispense_lock:%s", visitorQR)
	val, err := r.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil // already expired
	}
	if err != nil {
		return err
	}
	if val == owner {
		_, err := r.Client.Del(ctx, key).Result()
		return err
	}
	return nil
}
