package engine

import (
	"context"
	"strconv"
	"time"

	"SpikeWatch/pkg/cache"
)

// CooldownStoreTimeout bounds a single cooldown store round trip. Callers sit
// on hot paths (shard sweeps, dispatch), so a hung store must time out and
// fail open rather than stall detection.
const CooldownStoreTimeout = time.Second

// CooldownRegistry enforces a minimum interval between alert emissions for a
// (symbol, bucket) pair. The backing store decides the deployment scope: the
// in-memory store is per-process, the Redis store is shared across instances
// and survives restarts. Decisions compare stored timestamps against the
// caller's clock, so the store TTL is only garbage collection.
type CooldownRegistry struct {
	store cache.Store
}

// NewCooldownRegistry creates a registry over the given store.
func NewCooldownRegistry(store cache.Store) *CooldownRegistry {
	return &CooldownRegistry{store: store}
}

func cooldownKey(symbol, bucket string) string {
	return "cooldown:" + bucket + ":" + symbol
}

// Ready reports whether an alert for (symbol, bucket) may be emitted at now.
// A store error counts as ready: losing cooldown state must degrade to extra
// alerts, never to silence.
func (r *CooldownRegistry) Ready(ctx context.Context, symbol, bucket string, now time.Time, cooldown time.Duration) bool {
	if cooldown <= 0 {
		return true
	}
	b, err := r.store.Get(ctx, cooldownKey(symbol, bucket))
	if err != nil {
		return true
	}
	nanos, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return true
	}
	return now.Sub(time.Unix(0, nanos)) >= cooldown
}

// Mark records an emission at now.
func (r *CooldownRegistry) Mark(ctx context.Context, symbol, bucket string, now time.Time, cooldown time.Duration) error {
	if cooldown <= 0 {
		return nil
	}
	value := []byte(strconv.FormatInt(now.UnixNano(), 10))
	return r.store.Set(ctx, cooldownKey(symbol, bucket), value, cooldown)
}

// Allow combines Ready and Mark: it returns true and records the emission
// when the cooldown has elapsed, false otherwise.
func (r *CooldownRegistry) Allow(ctx context.Context, symbol, bucket string, now time.Time, cooldown time.Duration) bool {
	if !r.Ready(ctx, symbol, bucket, now, cooldown) {
		return false
	}
	_ = r.Mark(ctx, symbol, bucket, now, cooldown)
	return true
}
