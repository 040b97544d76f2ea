package notifier

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// KeyedRateLimiter keeps one token bucket per key, such as a Telegram chat,
// on top of a global bucket for the provider.
type KeyedRateLimiter struct {
	mu       sync.Mutex
	perKey   map[string]*rate.Limiter
	global   *rate.Limiter
	keyRate  rate.Limit
	keyBurst int
}

// NewKeyedRateLimiter creates a limiter allowing globalRPS overall and keyRPS per key.
func NewKeyedRateLimiter(globalRPS float64, globalBurst int, keyRPS float64, keyBurst int) *KeyedRateLimiter {
	return &KeyedRateLimiter{
		perKey:   make(map[string]*rate.Limiter),
		global:   rate.NewLimiter(rate.Limit(globalRPS), globalBurst),
		keyRate:  rate.Limit(keyRPS),
		keyBurst: keyBurst,
	}
}

// Allow waits for a token of the key bucket and then of the global bucket.
func (k *KeyedRateLimiter) Allow(ctx context.Context, key string) error {
	if err := k.bucket(key).Wait(ctx); err != nil {
		return err
	}
	return k.global.Wait(ctx)
}

// Keys returns the number of buckets currently tracked.
func (k *KeyedRateLimiter) Keys() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.perKey)
}

func (k *KeyedRateLimiter) bucket(key string) *rate.Limiter {
	k.mu.Lock()
	defer k.mu.Unlock()
	l, ok := k.perKey[key]
	if !ok {
		l = rate.NewLimiter(k.keyRate, k.keyBurst)
		k.perKey[key] = l
	}
	return l
}
