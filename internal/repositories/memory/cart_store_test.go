package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	domain "github.com/foodbuddy/api/internal/domain"
	repositories "github.com/foodbuddy/api/internal/repositories"
)

func TestCartStoreGetMissingReportsNotFound(t *testing.T) {
	store := NewCartStore()

	_, err := store.Get(context.Background(), "user-1")
	if err == nil {
		t.Fatal("expected not found error")
	}
	var repoErr repositories.RepositoryError
	if !errors.As(err, &repoErr) || !repoErr.IsNotFound() {
		t.Fatalf("expected not-found repository error, got %v", err)
	}
}

func TestCartStoreUpdateCreatesAndReturnsCopy(t *testing.T) {
	store := NewCartStore()
	ctx := context.Background()

	updated, err := store.Update(ctx, "user-1", func(cart domain.Cart) (domain.Cart, error) {
		cart.Items = append(cart.Items, domain.CartItem{MenuItemID: "item-1", Quantity: 1})
		return cart, nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.UserID != "user-1" {
		t.Fatalf("expected user ID stamped, got %q", updated.UserID)
	}

	// Mutating the returned slice must not leak into the store.
	updated.Items[0].Quantity = 99

	got, err := store.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Items[0].Quantity != 1 {
		t.Fatalf("stored cart aliased caller slice, quantity = %d", got.Items[0].Quantity)
	}
}

func TestCartStoreUpdateErrorLeavesCartUntouched(t *testing.T) {
	store := NewCartStore()
	ctx := context.Background()

	if _, err := store.Update(ctx, "user-1", func(cart domain.Cart) (domain.Cart, error) {
		cart.Items = append(cart.Items, domain.CartItem{MenuItemID: "item-1", Quantity: 2})
		return cart, nil
	}); err != nil {
		t.Fatalf("seed update: %v", err)
	}

	boom := errors.New("boom")
	if _, err := store.Update(ctx, "user-1", func(cart domain.Cart) (domain.Cart, error) {
		return domain.Cart{}, boom
	}); !errors.Is(err, boom) {
		t.Fatalf("expected mutate error passed through, got %v", err)
	}

	got, err := store.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Items) != 1 || got.Items[0].Quantity != 2 {
		t.Fatalf("cart changed after failed mutate: %+v", got.Items)
	}
}

func TestCartStoreClear(t *testing.T) {
	store := NewCartStore()
	ctx := context.Background()

	if err := store.Clear(ctx, "user-1"); err == nil {
		t.Fatal("expected not found clearing absent cart")
	}

	if _, err := store.Update(ctx, "user-1", func(cart domain.Cart) (domain.Cart, error) {
		cart.Items = append(cart.Items, domain.CartItem{MenuItemID: "item-1", Quantity: 1})
		return cart, nil
	}); err != nil {
		t.Fatalf("seed update: %v", err)
	}

	if err := store.Clear(ctx, "user-1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := store.Get(ctx, "user-1"); err == nil {
		t.Fatal("expected cart gone after clear")
	}
}

func TestCartStoreSerialisesConcurrentUpdates(t *testing.T) {
	store := NewCartStore()
	ctx := context.Background()

	const workers = 32
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := store.Update(ctx, "user-1", func(cart domain.Cart) (domain.Cart, error) {
				if len(cart.Items) == 0 {
					cart.Items = []domain.CartItem{{MenuItemID: "item-1"}}
				}
				cart.Items[0].Quantity++
				return cart, nil
			})
			if err != nil {
				t.Errorf("update: %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := store.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Items[0].Quantity != workers {
		t.Fatalf("lost updates: quantity = %d, want %d", got.Items[0].Quantity, workers)
	}
}
