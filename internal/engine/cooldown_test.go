package engine

import (
	"context"
	"testing"
	"time"

	"SpikeWatch/pkg/cache"
)

func TestCooldownBlocksWithinWindow(t *testing.T) {
	store := cache.NewMemoryStore()
	defer store.Close()
	reg := NewCooldownRegistry(store)
	ctx := context.Background()

	if !reg.Allow(ctx, "XYZ", "spike", testBase, 5*time.Minute) {
		t.Fatal("first emission must be allowed")
	}
	if reg.Allow(ctx, "XYZ", "spike", testBase.Add(time.Minute), 5*time.Minute) {
		t.Fatal("emission inside cooldown must be blocked")
	}
	if !reg.Allow(ctx, "XYZ", "spike", testBase.Add(6*time.Minute), 5*time.Minute) {
		t.Fatal("emission after cooldown must be allowed")
	}
}

func TestCooldownIsolatesSymbolsAndBuckets(t *testing.T) {
	store := cache.NewMemoryStore()
	defer store.Close()
	reg := NewCooldownRegistry(store)
	ctx := context.Background()

	if !reg.Allow(ctx, "XYZ", "spike", testBase, 5*time.Minute) {
		t.Fatal("first spike emission must be allowed")
	}
	if !reg.Allow(ctx, "ABCD", "spike", testBase, 5*time.Minute) {
		t.Fatal("other symbol must have its own cooldown")
	}
	if !reg.Allow(ctx, "XYZ", "rocket", testBase, 5*time.Minute) {
		t.Fatal("other bucket must have its own cooldown")
	}
	if reg.Allow(ctx, "XYZ", "spike", testBase.Add(time.Second), 5*time.Minute) {
		t.Fatal("original pair still inside cooldown")
	}
}

func TestCooldownZeroDisables(t *testing.T) {
	store := cache.NewMemoryStore()
	defer store.Close()
	reg := NewCooldownRegistry(store)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if !reg.Allow(ctx, "XYZ", "spike", testBase.Add(time.Duration(i)*time.Second), 0) {
			t.Fatalf("emission %d blocked with cooldown disabled", i)
		}
	}
}

type failingStore struct{}

func (failingStore) Set(context.Context, string, []byte, time.Duration) error {
	return context.DeadlineExceeded
}
func (failingStore) Get(context.Context, string) ([]byte, error) {
	return nil, context.DeadlineExceeded
}
func (failingStore) Delete(context.Context, ...string) error { return nil }
func (failingStore) Close() error                            { return nil }

func TestCooldownStoreFailureDegradesOpen(t *testing.T) {
	reg := NewCooldownRegistry(failingStore{})
	ctx := context.Background()

	// A broken store must never silence alerts.
	for i := 0; i < 3; i++ {
		if !reg.Allow(ctx, "XYZ", "rocket", testBase.Add(time.Duration(i)*time.Second), 5*time.Minute) {
			t.Fatalf("emission %d blocked by failing store", i)
		}
	}
}

func TestCooldownCorruptValueDegradesOpen(t *testing.T) {
	store := cache.NewMemoryStore()
	defer store.Close()
	reg := NewCooldownRegistry(store)
	ctx := context.Background()

	if err := store.Set(ctx, "cooldown:spike:XYZ", []byte("not-a-timestamp"), time.Minute); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	if !reg.Ready(ctx, "XYZ", "spike", testBase, 5*time.Minute) {
		t.Fatal("unparseable cooldown value must read as ready")
	}
}

// blockingStore hangs until the caller's context expires, like a stalled
// remote backend.
type blockingStore struct{}

func (blockingStore) Set(ctx context.Context, _ string, _ []byte, _ time.Duration) error {
	<-ctx.Done()
	return ctx.Err()
}
func (blockingStore) Get(ctx context.Context, _ string) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
func (blockingStore) Delete(context.Context, ...string) error { return nil }
func (blockingStore) Close() error                            { return nil }

func TestCooldownHungStoreBoundedByDeadline(t *testing.T) {
	reg := NewCooldownRegistry(blockingStore{})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	if !reg.Allow(ctx, "XYZ", "rocket", testBase, 5*time.Minute) {
		t.Fatal("hung store must fail open")
	}
	if elapsed := time.Since(start); elapsed >= CooldownStoreTimeout {
		t.Fatalf("store access took %v, not bounded by the caller deadline", elapsed)
	}
}
