package domain

import (
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// CursorPage is the standard shape for paginated listing results.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// RangeQuery represents inclusive range filters for numeric or timestamp fields.
type RangeQuery[T comparable] struct {
	From *T
	To   *T
}

// Role enumerates the principal roles recognised by the platform.
type Role string

const (
	// RoleUser identifies an ordering customer.
	RoleUser Role = "user"
	// RoleAdmin identifies a platform operator.
	RoleAdmin Role = "admin"
	// RoleRestaurant identifies a restaurant owner fulfilling orders.
	RoleRestaurant Role = "restaurant"
	// RoleDelivery identifies a delivery partner.
	RoleDelivery Role = "delivery"
)

// User captures the account fields the ordering flows need.
type User struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	Role      Role
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MenuItem is the catalog entry carts and orders resolve against.
// Price is stored in the smallest currency unit.
type MenuItem struct {
	ID           string
	RestaurantID string
	Name         string
	Description  string
	Price        int64
	Image        string
	Category     string
	Available    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Cart aggregates the mutable basket state for a user.
type Cart struct {
	UserID    string
	Items     []CartItem
	Totals    CartTotals
	UpdatedAt time.Time
}

// CartItem stores a single menu item entry within a cart. Name, UnitPrice and
// Image are display snapshots refreshed from the catalog on every mutation.
type CartItem struct {
	MenuItemID          string
	Name                string
	UnitPrice           int64
	Image               string
	Quantity            int
	SpecialInstructions string
	AddedAt             time.Time
}

// CartTotals summarizes amounts recomputed after every cart mutation, in the
// smallest currency unit.
type CartTotals struct {
	Subtotal    int64
	Tax         int64
	DeliveryFee int64
	Total       int64
}

// OrderStatus enumerates valid lifecycle states for orders.
type OrderStatus string

const (
	// OrderStatusPending indicates the order is placed and awaits restaurant confirmation.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusConfirmed indicates the restaurant accepted the order.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusPreparing indicates the kitchen is working on the order.
	OrderStatusPreparing OrderStatus = "preparing"
	// OrderStatusReady indicates the order awaits pickup by a delivery partner.
	OrderStatusReady OrderStatus = "ready"
	// OrderStatusOutForDelivery indicates a delivery partner picked the order up.
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	// OrderStatusDelivered indicates the order reached the customer. Terminal.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled indicates the order was cancelled. Terminal.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Terminal reports whether no further status transitions are allowed.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// PaymentStatus enumerates payment settlement states for an order.
type PaymentStatus string

const (
	// PaymentStatusPending indicates payment has not settled yet.
	PaymentStatusPending PaymentStatus = "pending"
	// PaymentStatusPaid indicates payment settled successfully.
	PaymentStatusPaid PaymentStatus = "paid"
	// PaymentStatusFailed indicates the payment attempt failed.
	PaymentStatusFailed PaymentStatus = "failed"
	// PaymentStatusRefunded indicates the payment was returned to the customer.
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// PaymentMethod enumerates how a customer intends to pay.
type PaymentMethod string

const (
	// PaymentMethodCash settles on delivery.
	PaymentMethodCash PaymentMethod = "cash"
	// PaymentMethodCard settles through the card gateway.
	PaymentMethodCard PaymentMethod = "card"
	// PaymentMethodUPI settles through a UPI gateway flow.
	PaymentMethodUPI PaymentMethod = "upi"
	// PaymentMethodWallet settles from a stored wallet balance.
	PaymentMethodWallet PaymentMethod = "wallet"
)

// Order captures an immutable priced snapshot of a placed basket plus its
// lifecycle state.
type Order struct {
	ID                    string
	UserID                string
	RestaurantID          string
	Items                 []OrderItem
	Totals                OrderTotals
	Status                OrderStatus
	Payment               OrderPayment
	DeliveryAddress       Address
	DeliveryPartnerID     *string
	EstimatedDeliveryTime time.Time
	ActualDeliveryTime    *time.Time
	SpecialInstructions   string
	Review                *OrderReview
	CancelReason          *string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// OrderItem mirrors cart items at the time the order was placed. Prices are
// frozen here and never re-resolved.
type OrderItem struct {
	MenuItemID     string
	Name           string
	UnitPrice      int64
	Image          string
	Quantity       int
	Customizations []string
}

// OrderTotals holds rolled-up monetary fields in the smallest currency unit.
type OrderTotals struct {
	Subtotal    int64
	Tax         int64
	DeliveryFee int64
	Total       int64
}

// OrderPayment stores the settlement snapshot attached to an order.
type OrderPayment struct {
	Method   PaymentMethod
	Status   PaymentStatus
	IntentID *string
	RefundID *string
}

// Address is the structured delivery destination stored on orders.
type Address struct {
	Street       string
	City         string
	State        string
	ZipCode      string
	Phone        string
	Instructions string
}

// OrderReview stores the single post-delivery review attached to an order.
type OrderReview struct {
	Rating    int
	Comment   string
	CreatedAt time.Time
}

// NotificationType enumerates the events the notification feed records.
type NotificationType string

const (
	// NotificationTypeOrderPlaced is recorded when an order is created.
	NotificationTypeOrderPlaced NotificationType = "order_placed"
	// NotificationTypeOrderStatus is recorded on every status change.
	NotificationTypeOrderStatus NotificationType = "order_status"
	// NotificationTypePayment is recorded on payment settlement events.
	NotificationTypePayment NotificationType = "payment"
	// NotificationTypeRefund is recorded when a refund completes.
	NotificationTypeRefund NotificationType = "refund"
)

// Notification is a single feed entry for a recipient.
type Notification struct {
	ID             string
	RecipientID    string
	RecipientRole  Role
	Type           NotificationType
	Title          string
	Message        string
	RelatedOrderID *string
	IsRead         bool
	CreatedAt      time.Time
}

// Health status values reported by dependency probes.
const (
	// HealthStatusOK means the dependency answered within its budget.
	HealthStatusOK = "ok"
	// HealthStatusDegraded means the dependency answered with an error.
	HealthStatusDegraded = "degraded"
	// HealthStatusError means the dependency timed out or was cancelled.
	HealthStatusError = "error"
)

// SystemHealthCheck describes the outcome of an individual dependency probe.
type SystemHealthCheck struct {
	Status    string
	Detail    string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency status for health endpoints.
type SystemHealthReport struct {
	Status      string
	Checks      map[string]SystemHealthCheck
	Version     string
	CommitSHA   string
	Environment string
	Uptime      time.Duration
	GeneratedAt time.Time
}

// DeliveryStats aggregates a partner's completed work for a day.
type DeliveryStats struct {
	Date            string
	DeliveredOrders int
	Earnings        int64
}
