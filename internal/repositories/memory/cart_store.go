package memory

import (
	"context"
	"fmt"
	"sync"

	domain "github.com/foodbuddy/api/internal/domain"
)

// notFoundError implements repositories.RepositoryError for missing carts.
type notFoundError struct {
	userID string
}

func (e *notFoundError) Error() string {
	return fmt.Sprintf("carts.get: no cart for user %s", e.userID)
}

func (e *notFoundError) IsNotFound() bool    { return true }
func (e *notFoundError) IsConflict() bool    { return false }
func (e *notFoundError) IsUnavailable() bool { return false }

// CartStore keeps basket state in process memory. Mutations for the same user
// are serialised behind a per-user lock so read-modify-write cycles never
// interleave; distinct users proceed independently.
type CartStore struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
	carts map[string]domain.Cart
}

// NewCartStore constructs an empty memory-backed cart store.
func NewCartStore() *CartStore {
	return &CartStore{
		locks: make(map[string]*sync.Mutex),
		carts: make(map[string]domain.Cart),
	}
}

// Get returns a copy of the user's cart, or a not-found repository error when
// the user has never placed anything in a basket.
func (s *CartStore) Get(ctx context.Context, userID string) (domain.Cart, error) {
	if err := ctx.Err(); err != nil {
		return domain.Cart{}, err
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	cart, ok := s.carts[userID]
	if !ok {
		return domain.Cart{}, &notFoundError{userID: userID}
	}
	return cloneCart(cart), nil
}

// Update applies mutate to the user's current cart (or a fresh empty one)
// under the per-user lock and stores the result. Errors returned by mutate are
// passed through unchanged and leave the stored cart untouched.
func (s *CartStore) Update(ctx context.Context, userID string, mutate func(domain.Cart) (domain.Cart, error)) (domain.Cart, error) {
	if err := ctx.Err(); err != nil {
		return domain.Cart{}, err
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	current, ok := s.carts[userID]
	if !ok {
		current = domain.Cart{UserID: userID}
	}

	next, err := mutate(cloneCart(current))
	if err != nil {
		return domain.Cart{}, err
	}
	next.UserID = userID

	s.carts[userID] = cloneCart(next)
	return next, nil
}

// Clear drops the user's cart. Clearing an absent cart reports not found.
func (s *CartStore) Clear(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	if _, ok := s.carts[userID]; !ok {
		return &notFoundError{userID: userID}
	}
	delete(s.carts, userID)
	return nil
}

func (s *CartStore) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[userID] = lock
	}
	return lock
}

func cloneCart(cart domain.Cart) domain.Cart {
	out := cart
	if len(cart.Items) > 0 {
		out.Items = append([]domain.CartItem(nil), cart.Items...)
	}
	return out
}
