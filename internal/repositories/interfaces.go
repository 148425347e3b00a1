package repositories

import (
	"context"
	"time"

	domain "github.com/foodbuddy/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	MenuItems() MenuItemRepository
	Orders() OrderRepository
	Notifications() NotificationRepository
	Users() UserRepository
	Health() HealthRepository
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// CartStore owns per-user in-memory basket state. Update must serialise
// concurrent mutations for the same user so read-modify-write cycles never
// interleave.
type CartStore interface {
	Get(ctx context.Context, userID string) (domain.Cart, error)
	Update(ctx context.Context, userID string, mutate func(domain.Cart) (domain.Cart, error)) (domain.Cart, error)
	Clear(ctx context.Context, userID string) error
}

// MenuItemRepository reads catalog entries carts and orders resolve against.
type MenuItemRepository interface {
	FindByID(ctx context.Context, menuItemID string) (domain.MenuItem, error)
	FindByIDs(ctx context.Context, menuItemIDs []string) (map[string]domain.MenuItem, error)
}

// OrderListFilter narrows order listings.
type OrderListFilter struct {
	UserID            string
	DeliveryPartnerID string
	Status            []domain.OrderStatus
	Unassigned        bool
	DateRange         domain.RangeQuery[time.Time]
	Pagination        domain.Pagination
}

// OrderRepository persists order documents. Update applies an optimistic
// precondition on the order's UpdatedAt so concurrent writers conflict instead
// of clobbering each other.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	Update(ctx context.Context, order domain.Order) (domain.Order, error)
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
	// AssignDeliveryPartner atomically sets the partner on an unassigned order
	// in one of the given statuses. It must return a RepositoryError with
	// IsConflict when the order is already assigned or outside those statuses,
	// even under concurrent attempts.
	AssignDeliveryPartner(ctx context.Context, orderID string, partnerID string, statuses []domain.OrderStatus, now time.Time) (domain.Order, error)
}

// NotificationRepository persists the append-only notification feed.
type NotificationRepository interface {
	Insert(ctx context.Context, notification domain.Notification) error
	ListByRecipient(ctx context.Context, recipientID string, pager domain.Pagination) (domain.CursorPage[domain.Notification], error)
	// MarkRead flips IsRead on the recipient's notification. Returns a
	// RepositoryError with IsNotFound when the notification does not exist or
	// belongs to someone else.
	MarkRead(ctx context.Context, recipientID string, notificationID string) (domain.Notification, error)
}

// UserRepository reads account records for recipient resolution.
type UserRepository interface {
	FindByID(ctx context.Context, userID string) (domain.User, error)
	ListIDsByRole(ctx context.Context, role domain.Role) ([]string, error)
}

// HealthRepository evaluates dependency probes for readiness reporting.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
