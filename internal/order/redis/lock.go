package redis

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// Redis serializes payment creation per order: the gateway call plus the
// payment-id write are a check-then-act that must not run twice for the
// same order.
type Redis struct {
	Client *redis.Client
	Logger *log.Logger
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{
		Client: client,
		Logger: log.Default(),
	}
}

// getPaymentLockDuration returns the payment lock TTL from environment
// variables or the default value. The TTL is a safety net: locks are
// normally released when the checkout attempt finishes.
func (r *Redis) getPaymentLockDuration() time.Duration {
	defaultDuration := 2 * time.Minute

	lockTTLStr := os.Getenv("PAYMENT_LOCK_TTL_SECONDS")
	if lockTTLStr == "" {
		return defaultDuration
	}

	lockTTLSec, err := strconv.Atoi(lockTTLStr)
	if err != nil {
		r.Logger.Println("REDIS: Invalid PAYMENT_LOCK_TTL_SECONDS value '" + lockTTLStr + "', using default 2 minutes")
		return defaultDuration
	}

	return time.Duration(lockTTLSec) * time.Second
}

// LockPayment takes the per-order checkout lock. Returns false when
// another checkout attempt already holds it.
func (r *Redis) LockPayment(identifier string) (bool, error) {
	key := "payment_lock:" + identifier
	ok, err := r.Client.SetNX(context.Background(), key, identifier, r.getPaymentLockDuration()).Result()
	if err != nil {
		return false, fmt.Errorf("redis lock error: %w", err)
	}
	return ok, nil
}

// UnlockPayment releases the checkout lock. Unlocking an already expired
// or missing lock is a no-op.
func (r *Redis) UnlockPayment(identifier string) error {
	ctx := context.Background()
	key := "payment_lock:" + identifier
	_, err := r.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}
	_, err = r.Client.Del(ctx, key).Result()
	return err
}
