package cart

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"goflare.io/market/models"
)

// newTestStore connects to the Redis named by REDIS_ADDR, skipping the test
// when none is configured.
func newTestStore(t *testing.T) Store {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set; skipping redis integration test")
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("ping redis: %v", err)
	}
	t.Cleanup(func() {
		rdb.FlushDB(context.Background())
		rdb.Close()
	})

	return NewStore(rdb, zap.NewNop())
}

func testCart(ownerID string, qty uint64) *models.Cart {
	return &models.Cart{
		OwnerID: ownerID,
		Items: []models.CartLine{{
			ProductID: "p1",
			Name:      "Shirt",
			UnitPrice: 100,
			Quantity:  qty,
		}},
	}
}

func TestStoreRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	got, err := store.Get(ctx, "owner-1")
	if err != nil || got != nil {
		t.Fatalf("expected (nil, nil) for an absent cart, got %+v, %v", got, err)
	}

	if err = store.Set(ctx, "owner-1", testCart("owner-1", 2)); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err = store.Get(ctx, "owner-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || len(got.Items) != 1 || got.Items[0].Quantity != 2 {
		t.Fatalf("unexpected cart %+v", got)
	}

	if err = store.Delete(ctx, "owner-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got, err = store.Get(ctx, "owner-1"); err != nil || got != nil {
		t.Fatalf("expected (nil, nil) after delete, got %+v, %v", got, err)
	}
}

func TestStoreSetEmptyDeletes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "owner-2", testCart("owner-2", 1)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Set(ctx, "owner-2", &models.Cart{OwnerID: "owner-2"}); err != nil {
		t.Fatalf("Set empty: %v", err)
	}
	if got, err := store.Get(ctx, "owner-2"); err != nil || got != nil {
		t.Fatalf("an empty cart must delete the record, got %+v, %v", got, err)
	}
}

func TestStoreUpdateCreatesAndMutates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	result, err := store.Update(ctx, "owner-3", func(current *models.Cart) (*models.Cart, error) {
		if current != nil {
			t.Fatalf("expected absent cart, got %+v", current)
		}
		return testCart("owner-3", 1), nil
	})
	if err != nil {
		t.Fatalf("Update create: %v", err)
	}
	if result.Items[0].Quantity != 1 {
		t.Fatalf("unexpected result %+v", result)
	}

	result, err = store.Update(ctx, "owner-3", func(current *models.Cart) (*models.Cart, error) {
		current.Items[0].Quantity += 2
		return current, nil
	})
	if err != nil {
		t.Fatalf("Update mutate: %v", err)
	}
	if result.Items[0].Quantity != 3 {
		t.Fatalf("expected quantity 3, got %d", result.Items[0].Quantity)
	}
}

func TestStoreUpdatePropagatesFnError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	wantErr := fmt.Errorf("line not found")
	_, err := store.Update(ctx, "owner-4", func(*models.Cart) (*models.Cart, error) {
		return nil, wantErr
	})
	if err != wantErr {
		t.Fatalf("fn errors must propagate unchanged, got %v", err)
	}
}

func TestStoreUpdateEmptyResultDeletes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "owner-5", testCart("owner-5", 1)); err != nil {
		t.Fatalf("Set: %v", err)
	}

	_, err := store.Update(ctx, "owner-5", func(current *models.Cart) (*models.Cart, error) {
		current.Items = nil
		return current, nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got, err := store.Get(ctx, "owner-5"); err != nil || got != nil {
		t.Fatalf("emptied cart must be deleted, got %+v, %v", got, err)
	}
}

func TestStoreUnreachableCacheYieldsCacheError(t *testing.T) {
	t.Parallel()

	// Port 1 refuses the dial; every call must come back as a CacheError
	// so callers can degrade instead of surfacing a transport error.
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	t.Cleanup(func() { rdb.Close() })
	store := NewStore(rdb, zap.NewNop())
	ctx := context.Background()

	var cacheErr *CacheError

	if _, err := store.Get(ctx, "owner-7"); !errors.As(err, &cacheErr) {
		t.Fatalf("Get: expected a CacheError, got %T: %v", err, err)
	}
	if err := store.Set(ctx, "owner-7", testCart("owner-7", 1)); !errors.As(err, &cacheErr) {
		t.Fatalf("Set: expected a CacheError, got %T: %v", err, err)
	}
	if err := store.Delete(ctx, "owner-7"); !errors.As(err, &cacheErr) {
		t.Fatalf("Delete: expected a CacheError, got %T: %v", err, err)
	}

	_, err := store.Update(ctx, "owner-7", func(c *models.Cart) (*models.Cart, error) {
		return c, nil
	})
	if !errors.As(err, &cacheErr) {
		t.Fatalf("Update: expected a CacheError, got %T: %v", err, err)
	}
	if cacheErr.Op != "update" {
		t.Fatalf("expected op %q, got %q", "update", cacheErr.Op)
	}
}

func TestStoreUpdateConcurrent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "owner-6", testCart("owner-6", 0)); err != nil {
		t.Fatalf("Set: %v", err)
	}

	const writers = 4
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Update(ctx, "owner-6", func(current *models.Cart) (*models.Cart, error) {
				current.Items[0].Quantity++
				return current, nil
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent update: %v", err)
		}
	}

	got, err := store.Get(ctx, "owner-6")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Items[0].Quantity != writers {
		t.Fatalf("lost update: expected quantity %d, got %d", writers, got.Items[0].Quantity)
	}
}
