package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	pfirestore "github.com/foodbuddy/api/internal/platform/firestore"
	repositories "github.com/foodbuddy/api/internal/repositories"
)

// Registry bundles the Firestore-backed repositories behind the
// repositories.Registry contract.
type Registry struct {
	provider *pfirestore.Provider

	menuItems     *MenuItemRepository
	orders        *OrderRepository
	notifications *NotificationRepository
	users         *UserRepository
	health        repositories.HealthRepository
}

// NewRegistry wires every repository against the shared provider. Extra
// dependency probes are folded into the health repository next to the
// built-in Firestore probe.
func NewRegistry(provider *pfirestore.Provider, extraProbes ...repositories.DependencyProbe) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry requires firestore provider")
	}

	menuItems, err := NewMenuItemRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("build menu item repository: %w", err)
	}
	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("build order repository: %w", err)
	}
	notifications, err := NewNotificationRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("build notification repository: %w", err)
	}
	users, err := NewUserRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("build user repository: %w", err)
	}

	probes := append([]repositories.DependencyProbe{firestoreProbe(provider)}, extraProbes...)
	health, err := repositories.NewProbeHealthRepository(probes, time.Now)
	if err != nil {
		return nil, fmt.Errorf("build health repository: %w", err)
	}

	return &Registry{
		provider:      provider,
		menuItems:     menuItems,
		orders:        orders,
		notifications: notifications,
		users:         users,
		health:        health,
	}, nil
}

// Close releases the underlying Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}

// MenuItems returns the catalog repository.
func (r *Registry) MenuItems() repositories.MenuItemRepository { return r.menuItems }

// Orders returns the order repository.
func (r *Registry) Orders() repositories.OrderRepository { return r.orders }

// Notifications returns the notification repository.
func (r *Registry) Notifications() repositories.NotificationRepository { return r.notifications }

// Users returns the user repository.
func (r *Registry) Users() repositories.UserRepository { return r.users }

// Health returns the dependency probe repository.
func (r *Registry) Health() repositories.HealthRepository { return r.health }

func firestoreProbe(provider *pfirestore.Provider) repositories.DependencyProbe {
	return repositories.DependencyProbe{
		Name: "firestore",
		Check: func(ctx context.Context) error {
			_, err := provider.Client(ctx)
			return err
		},
	}
}

var _ repositories.Registry = (*Registry)(nil)
