package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/foodbuddy/api/internal/domain"
	"github.com/foodbuddy/api/internal/repositories"
)

var (
	errCartStoreRequired = errors.New("cart service: store is required")
	errCartMenuRequired  = errors.New("cart service: menu repository is required")
	errCartClockRequired = errors.New("cart service: clock is required")
)

// ErrCartInvalidInput indicates the caller supplied invalid input.
var ErrCartInvalidInput = errors.New("cart service: invalid input")

// ErrCartUnavailable indicates the cart service cannot fulfil the request due to missing dependencies or backend issues.
var ErrCartUnavailable = errors.New("cart service: unavailable")

// ErrCartNotFound indicates the requested cart line does not exist.
var ErrCartNotFound = errors.New("cart service: not found")

// ErrCartItemUnavailable indicates the menu item cannot be ordered right now.
var ErrCartItemUnavailable = errors.New("cart service: item unavailable")

// CartServiceDeps wires the store, catalog and pricing dependencies for cart operations.
type CartServiceDeps struct {
	Store   repositories.CartStore
	Menu    repositories.MenuItemRepository
	Pricing PricingPolicy
	Clock   func() time.Time
	Logger  func(context.Context, string, map[string]any)
}

type cartService struct {
	store   repositories.CartStore
	menu    repositories.MenuItemRepository
	pricing PricingPolicy
	now     func() time.Time
	logger  func(context.Context, string, map[string]any)
}

// NewCartService constructs a CartService enforcing dependency validation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Store == nil {
		return nil, errCartStoreRequired
	}
	if deps.Menu == nil {
		return nil, errCartMenuRequired
	}
	if deps.Clock == nil {
		return nil, errCartClockRequired
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	service := &cartService{
		store:   deps.Store,
		menu:    deps.Menu,
		pricing: deps.Pricing,
		now:     func() time.Time { return deps.Clock().UTC() },
		logger:  logger,
	}
	return service, nil
}

// GetCart loads the current basket, re-resolving catalog prices so stale
// snapshots never reach the client.
func (s *cartService) GetCart(ctx context.Context, userID string) (Cart, error) {
	if s == nil || s.store == nil {
		return Cart{}, ErrCartUnavailable
	}

	uid := strings.TrimSpace(userID)
	if uid == "" {
		return Cart{}, ErrCartInvalidInput
	}

	cart, err := s.store.Get(ctx, uid)
	if err != nil {
		if isRepoNotFound(err) {
			return s.emptyCart(uid), nil
		}
		return Cart{}, s.translateRepoError(err)
	}

	refreshed, err := s.refreshPrices(ctx, cart.Items)
	if err != nil {
		return Cart{}, err
	}
	cart.Items = refreshed
	cart.Totals = s.pricing.Price(cart.Items)
	return cart, nil
}

func (s *cartService) AddItem(ctx context.Context, cmd AddCartItemCommand) (Cart, error) {
	if s == nil || s.store == nil {
		return Cart{}, ErrCartUnavailable
	}

	uid := strings.TrimSpace(cmd.UserID)
	if uid == "" {
		return Cart{}, ErrCartInvalidInput
	}
	itemID := strings.TrimSpace(cmd.MenuItemID)
	if itemID == "" {
		return Cart{}, fmt.Errorf("%w: menu_item_id is required", ErrCartInvalidInput)
	}
	quantity := cmd.Quantity
	if quantity <= 0 {
		quantity = 1
	}

	item, err := s.menu.FindByID(ctx, itemID)
	if err != nil {
		if isRepoNotFound(err) {
			return Cart{}, fmt.Errorf("%w: menu item %s", ErrCartNotFound, itemID)
		}
		return Cart{}, s.translateRepoError(err)
	}
	if !item.Available {
		return Cart{}, fmt.Errorf("%w: %s", ErrCartItemUnavailable, item.Name)
	}

	updated, err := s.store.Update(ctx, uid, func(cart domain.Cart) (domain.Cart, error) {
		now := s.now()
		idx := indexOfCartLine(cart.Items, itemID)
		if idx >= 0 {
			next := cart.Items[idx].Quantity + quantity
			if next > s.pricing.MaxItemQuantity {
				next = s.pricing.MaxItemQuantity
			}
			cart.Items[idx].Quantity = next
			cart.Items[idx].UnitPrice = item.Price
			cart.Items[idx].Name = item.Name
			if instructions := strings.TrimSpace(cmd.SpecialInstructions); instructions != "" {
				cart.Items[idx].SpecialInstructions = instructions
			}
		} else {
			if quantity > s.pricing.MaxItemQuantity {
				quantity = s.pricing.MaxItemQuantity
			}
			cart.Items = append(cart.Items, domain.CartItem{
				MenuItemID:          item.ID,
				Name:                item.Name,
				UnitPrice:           item.Price,
				Image:               item.Image,
				Quantity:            quantity,
				SpecialInstructions: strings.TrimSpace(cmd.SpecialInstructions),
				AddedAt:             now,
			})
		}
		cart.Totals = s.pricing.Price(cart.Items)
		cart.UpdatedAt = now
		return cart, nil
	})
	if err != nil {
		return Cart{}, s.translateRepoError(err)
	}
	return updated, nil
}

func (s *cartService) SetItemQuantity(ctx context.Context, cmd SetCartItemQuantityCommand) (Cart, error) {
	if s == nil || s.store == nil {
		return Cart{}, ErrCartUnavailable
	}

	uid := strings.TrimSpace(cmd.UserID)
	if uid == "" {
		return Cart{}, ErrCartInvalidInput
	}
	itemID := strings.TrimSpace(cmd.MenuItemID)
	if itemID == "" {
		return Cart{}, fmt.Errorf("%w: menu_item_id is required", ErrCartInvalidInput)
	}

	if cmd.Quantity <= 0 {
		return s.RemoveItem(ctx, uid, itemID)
	}

	quantity := cmd.Quantity
	if quantity > s.pricing.MaxItemQuantity {
		quantity = s.pricing.MaxItemQuantity
	}

	item, err := s.menu.FindByID(ctx, itemID)
	if err != nil {
		if isRepoNotFound(err) {
			return Cart{}, fmt.Errorf("%w: menu item %s", ErrCartNotFound, itemID)
		}
		return Cart{}, s.translateRepoError(err)
	}

	updated, err := s.store.Update(ctx, uid, func(cart domain.Cart) (domain.Cart, error) {
		idx := indexOfCartLine(cart.Items, itemID)
		if idx < 0 {
			return domain.Cart{}, ErrCartNotFound
		}
		cart.Items[idx].Quantity = quantity
		cart.Items[idx].UnitPrice = item.Price
		cart.Items[idx].Name = item.Name
		cart.Totals = s.pricing.Price(cart.Items)
		cart.UpdatedAt = s.now()
		return cart, nil
	})
	if err != nil {
		if errors.Is(err, ErrCartNotFound) {
			return Cart{}, err
		}
		return Cart{}, s.translateRepoError(err)
	}
	return updated, nil
}

func (s *cartService) RemoveItem(ctx context.Context, userID string, menuItemID string) (Cart, error) {
	if s == nil || s.store == nil {
		return Cart{}, ErrCartUnavailable
	}

	uid := strings.TrimSpace(userID)
	if uid == "" {
		return Cart{}, ErrCartInvalidInput
	}
	itemID := strings.TrimSpace(menuItemID)
	if itemID == "" {
		return Cart{}, ErrCartInvalidInput
	}

	updated, err := s.store.Update(ctx, uid, func(cart domain.Cart) (domain.Cart, error) {
		idx := indexOfCartLine(cart.Items, itemID)
		if idx < 0 {
			return domain.Cart{}, ErrCartNotFound
		}
		cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
		cart.Totals = s.pricing.Price(cart.Items)
		cart.UpdatedAt = s.now()
		return cart, nil
	})
	if err != nil {
		if errors.Is(err, ErrCartNotFound) {
			return Cart{}, err
		}
		return Cart{}, s.translateRepoError(err)
	}
	return updated, nil
}

func (s *cartService) ClearCart(ctx context.Context, userID string) error {
	if s == nil || s.store == nil {
		return ErrCartUnavailable
	}

	uid := strings.TrimSpace(userID)
	if uid == "" {
		return ErrCartInvalidInput
	}

	if err := s.store.Clear(ctx, uid); err != nil && !isRepoNotFound(err) {
		return s.translateRepoError(err)
	}
	return nil
}

func (s *cartService) emptyCart(userID string) domain.Cart {
	return domain.Cart{
		UserID:    userID,
		Items:     []domain.CartItem{},
		Totals:    s.pricing.Price(nil),
		UpdatedAt: s.now(),
	}
}

// refreshPrices re-resolves catalog data for every line. Lines whose menu item
// vanished keep their stored snapshot so the basket stays readable.
func (s *cartService) refreshPrices(ctx context.Context, items []domain.CartItem) ([]domain.CartItem, error) {
	if len(items) == 0 {
		return []domain.CartItem{}, nil
	}

	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.MenuItemID)
	}

	resolved, err := s.menu.FindByIDs(ctx, ids)
	if err != nil {
		return nil, s.translateRepoError(err)
	}

	out := make([]domain.CartItem, len(items))
	copy(out, items)
	for i := range out {
		menuItem, ok := resolved[out[i].MenuItemID]
		if !ok {
			continue
		}
		out[i].UnitPrice = menuItem.Price
		out[i].Name = menuItem.Name
		out[i].Image = menuItem.Image
	}
	return out, nil
}

func indexOfCartLine(items []domain.CartItem, menuItemID string) int {
	target := strings.TrimSpace(menuItemID)
	if target == "" {
		return -1
	}
	for i, item := range items {
		if strings.EqualFold(strings.TrimSpace(item.MenuItemID), target) {
			return i
		}
	}
	return -1
}

func (s *cartService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrCartNotFound
		case repoErr.IsUnavailable():
			return ErrCartUnavailable
		}
		return ErrCartUnavailable
	}
	return ErrCartUnavailable
}
