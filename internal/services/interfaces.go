package services

import (
	"context"
	"time"

	domain "github.com/foodbuddy/api/internal/domain"
	"github.com/foodbuddy/api/internal/repositories"
)

// Shared domain aliases keep service signatures terse.
type (
	Pagination       = domain.Pagination
	SortOrder        = domain.SortOrder
	Cart             = domain.Cart
	CartItem         = domain.CartItem
	CartTotals       = domain.CartTotals
	MenuItem         = domain.MenuItem
	Order            = domain.Order
	OrderItem        = domain.OrderItem
	OrderTotals      = domain.OrderTotals
	OrderPayment     = domain.OrderPayment
	OrderStatus      = domain.OrderStatus
	OrderReview      = domain.OrderReview
	PaymentStatus    = domain.PaymentStatus
	PaymentMethod    = domain.PaymentMethod
	Address          = domain.Address
	Role             = domain.Role
	User             = domain.User
	Notification     = domain.Notification
	NotificationType = domain.NotificationType
	DeliveryStats    = domain.DeliveryStats
	PricingPolicy    = domain.PricingPolicy
)

// OrderListFilter narrows order listings; re-exported from the repository layer.
type OrderListFilter = repositories.OrderListFilter

// ServiceLogger records structured service events; wired to zap in main.
type ServiceLogger func(ctx context.Context, event string, fields map[string]any)

// CartService owns the per-user basket. Mutations re-resolve catalog prices
// and recompute totals before returning the updated cart.
type CartService interface {
	GetCart(ctx context.Context, userID string) (Cart, error)
	AddItem(ctx context.Context, cmd AddCartItemCommand) (Cart, error)
	SetItemQuantity(ctx context.Context, cmd SetCartItemQuantityCommand) (Cart, error)
	RemoveItem(ctx context.Context, userID string, menuItemID string) (Cart, error)
	ClearCart(ctx context.Context, userID string) error
}

// AddCartItemCommand adds or increments a menu item in the user's cart.
type AddCartItemCommand struct {
	UserID              string
	MenuItemID          string
	Quantity            int
	SpecialInstructions string
}

// SetCartItemQuantityCommand overwrites a line's quantity. Zero or negative
// quantities remove the line.
type SetCartItemQuantityCommand struct {
	UserID     string
	MenuItemID string
	Quantity   int
}

// OrderService builds priced order snapshots and drives the order lifecycle.
type OrderService interface {
	Create(ctx context.Context, cmd CreateOrderCommand) (Order, error)
	CreateFromCart(ctx context.Context, cmd CheckoutCartCommand) (Order, error)
	GetOrder(ctx context.Context, orderID string) (Order, error)
	ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error)
	TransitionStatus(ctx context.Context, cmd OrderStatusTransitionCommand) (Order, error)
	ForceStatus(ctx context.Context, cmd ForceOrderStatusCommand) (Order, error)
	Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error)
	MarkPaid(ctx context.Context, cmd MarkOrderPaidCommand) (Order, error)
	MarkRefunded(ctx context.Context, cmd MarkOrderRefundedCommand) (Order, error)
	AttachPaymentIntent(ctx context.Context, orderID string, intentID string) (Order, error)
	AttachReview(ctx context.Context, cmd AttachReviewCommand) (Order, error)
}

// CreateOrderLine is a requested order line before catalog resolution.
type CreateOrderLine struct {
	MenuItemID string
	Quantity   int
	// UnitPrice is the client-supplied fallback used only when the catalog
	// cannot resolve the item.
	UnitPrice      int64
	Name           string
	Image          string
	Customizations []string
}

// CreateOrderCommand places an order from explicit request lines.
type CreateOrderCommand struct {
	UserID          string
	RestaurantID    string
	Items           []CreateOrderLine
	DeliveryAddress *Address
	// RawAddress carries a bare single-string address when no structured
	// address was supplied.
	RawAddress          string
	PaymentMethod       PaymentMethod
	SpecialInstructions string
}

// CheckoutCartCommand places an order from the user's current basket.
type CheckoutCartCommand struct {
	UserID              string
	DeliveryAddress     *Address
	RawAddress          string
	PaymentMethod       PaymentMethod
	SpecialInstructions string
}

// OrderStatusTransitionCommand drives one step of the order state machine.
type OrderStatusTransitionCommand struct {
	OrderID      string
	TargetStatus OrderStatus
	ActorID      string
	ActorRole    Role
	Reason       string
}

// ForceOrderStatusCommand is the audited admin escape hatch. The transition
// table is bypassed; terminal states still refuse changes.
type ForceOrderStatusCommand struct {
	OrderID      string
	TargetStatus OrderStatus
	ActorID      string
	Reason       string
}

// CancelOrderCommand cancels an order on behalf of its owner.
type CancelOrderCommand struct {
	OrderID string
	UserID  string
	Reason  string
}

// MarkOrderPaidCommand records settled payment and confirms the order.
type MarkOrderPaidCommand struct {
	OrderID  string
	IntentID string
	ActorID  string
}

// MarkOrderRefundedCommand records a completed refund and cancels the order.
type MarkOrderRefundedCommand struct {
	OrderID  string
	RefundID string
	ActorID  string
	Reason   string
}

// AttachReviewCommand attaches the single post-delivery review.
type AttachReviewCommand struct {
	OrderID string
	UserID  string
	Rating  int
	Comment string
}

// DeliveryService exposes the delivery partner workflows.
type DeliveryService interface {
	ListAvailable(ctx context.Context, pager Pagination) (domain.CursorPage[Order], error)
	ListTasks(ctx context.Context, partnerID string, pager Pagination) (domain.CursorPage[Order], error)
	ListHistory(ctx context.Context, partnerID string, pager Pagination) (domain.CursorPage[Order], error)
	Stats(ctx context.Context, partnerID string, day time.Time) (DeliveryStats, error)
	Accept(ctx context.Context, cmd DeliveryActionCommand) (Order, error)
	Pickup(ctx context.Context, cmd DeliveryActionCommand) (Order, error)
	Deliver(ctx context.Context, cmd DeliveryActionCommand) (Order, error)
}

// DeliveryActionCommand identifies the order a partner is acting on.
type DeliveryActionCommand struct {
	OrderID   string
	PartnerID string
}

// PaymentService reconciles orders with the payment gateway.
type PaymentService interface {
	CreateIntent(ctx context.Context, cmd CreatePaymentIntentCommand) (PaymentIntentResult, error)
	ConfirmPayment(ctx context.Context, cmd ConfirmPaymentCommand) (Order, error)
	Refund(ctx context.Context, cmd RefundPaymentCommand) (Order, error)
}

// CreatePaymentIntentCommand starts a gateway payment for an order.
type CreatePaymentIntentCommand struct {
	OrderID string
	UserID  string
}

// PaymentIntentResult carries the gateway handle back to the client. Amount is
// the actual charged amount; AmountAdjusted flags a gateway-minimum clamp so
// the discrepancy is never silent.
type PaymentIntentResult struct {
	IntentID       string
	ClientSecret   string
	Amount         int64
	Currency       string
	AmountAdjusted bool
}

// ConfirmPaymentCommand reconciles a gateway payment with its order.
type ConfirmPaymentCommand struct {
	OrderID  string
	IntentID string
	ActorID  string
}

// RefundPaymentCommand returns a settled payment to the customer.
type RefundPaymentCommand struct {
	OrderID string
	ActorID string
	Reason  string
}

// Notifier is the narrow dispatch surface order flows depend on. Dispatch
// failures are logged by implementations and never propagate.
type Notifier interface {
	Notify(ctx context.Context, cmd NotifyCommand)
	NotifyRole(ctx context.Context, role Role, cmd NotifyCommand)
}

// NotifyCommand describes a single notification to record and dispatch.
type NotifyCommand struct {
	RecipientID    string
	RecipientRole  Role
	Type           NotificationType
	Title          string
	Message        string
	RelatedOrderID string
}

// NotificationService persists the feed and exposes it to recipients.
type NotificationService interface {
	Notifier
	List(ctx context.Context, recipientID string, pager Pagination) (domain.CursorPage[Notification], error)
	MarkRead(ctx context.Context, recipientID string, notificationID string) (Notification, error)
}

// OrderEventMessage is the wire payload published for order lifecycle events.
type OrderEventMessage struct {
	EventType  string    `json:"eventType"`
	OrderID    string    `json:"orderId"`
	UserID     string    `json:"userId"`
	Status     string    `json:"status,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// OrderEventPublisher pushes order events to the message bus.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, message OrderEventMessage) (string, error)
}

// SystemService reports operational health for probes.
type SystemService interface {
	Health(ctx context.Context) (domain.SystemHealthReport, error)
}
