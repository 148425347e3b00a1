package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	domain "github.com/foodbuddy/api/internal/domain"
	"github.com/foodbuddy/api/internal/repositories"
)

var (
	errOrderRepositoryRequired = errors.New("order service: repository is required")
	errOrderMenuRequired       = errors.New("order service: menu repository is required")
	errOrderClockRequired      = errors.New("order service: clock is required")
)

// ErrOrderInvalidInput indicates the caller supplied invalid input.
var ErrOrderInvalidInput = errors.New("order service: invalid input")

// ErrOrderNotFound indicates the requested order does not exist.
var ErrOrderNotFound = errors.New("order service: not found")

// ErrOrderUnavailable indicates the persistence layer cannot fulfil the request.
var ErrOrderUnavailable = errors.New("order service: unavailable")

// ErrOrderConflict indicates the order was modified concurrently.
var ErrOrderConflict = errors.New("order service: conflict")

// ErrOrderInvalidTransition indicates the requested status change is not
// permitted from the order's current state.
var ErrOrderInvalidTransition = errors.New("order service: invalid transition")

// ErrOrderItemUnavailable indicates a referenced menu item is missing or disabled.
var ErrOrderItemUnavailable = errors.New("order service: item unavailable")

// ErrOrderCartEmpty indicates checkout was attempted with an empty basket.
var ErrOrderCartEmpty = errors.New("order service: cart is empty")

// ErrOrderAlreadyReviewed indicates the order already carries a review.
var ErrOrderAlreadyReviewed = errors.New("order service: already reviewed")

const (
	orderIDPrefix       = "ord_"
	maxReviewCommentLen = 1000
	placeholderStreet   = "No address provided"
	placeholderCity     = "Unknown"
	placeholderState    = "Unknown"
	placeholderZip      = "000000"
)

// orderTransitions enumerates the legal status moves. Terminal states have no
// outgoing edges.
var orderTransitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusPending:        {domain.OrderStatusConfirmed, domain.OrderStatusCancelled},
	domain.OrderStatusConfirmed:      {domain.OrderStatusPreparing, domain.OrderStatusCancelled},
	domain.OrderStatusPreparing:      {domain.OrderStatusReady},
	domain.OrderStatusReady:          {domain.OrderStatusOutForDelivery},
	domain.OrderStatusOutForDelivery: {domain.OrderStatusDelivered},
}

// transitionActors restricts who may request each target status through the
// regular transition path. Admins pass every check.
var transitionActors = map[domain.OrderStatus][]domain.Role{
	domain.OrderStatusConfirmed:      {domain.RoleAdmin},
	domain.OrderStatusPreparing:      {domain.RoleRestaurant, domain.RoleAdmin},
	domain.OrderStatusReady:          {domain.RoleRestaurant, domain.RoleAdmin},
	domain.OrderStatusOutForDelivery: {domain.RoleDelivery, domain.RoleAdmin},
	domain.OrderStatusDelivered:      {domain.RoleDelivery, domain.RoleAdmin},
}

// OrderServiceDeps wires persistence, catalog, cart and messaging dependencies
// for order operations.
type OrderServiceDeps struct {
	Repository  repositories.OrderRepository
	Menu        repositories.MenuItemRepository
	Carts       CartService
	Notifier    Notifier
	Publisher   OrderEventPublisher
	Pricing     PricingPolicy
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(context.Context, string, map[string]any)
}

type orderService struct {
	repo      repositories.OrderRepository
	menu      repositories.MenuItemRepository
	carts     CartService
	notifier  Notifier
	publisher OrderEventPublisher
	pricing   PricingPolicy
	sanitizer *bluemonday.Policy
	newID     func() string
	now       func() time.Time
	logger    func(context.Context, string, map[string]any)
}

// NewOrderService constructs an OrderService enforcing dependency validation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Repository == nil {
		return nil, errOrderRepositoryRequired
	}
	if deps.Menu == nil {
		return nil, errOrderMenuRequired
	}
	if deps.Clock == nil {
		return nil, errOrderClockRequired
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return orderIDPrefix + ulid.Make().String() }
	}

	service := &orderService{
		repo:      deps.Repository,
		menu:      deps.Menu,
		carts:     deps.Carts,
		notifier:  deps.Notifier,
		publisher: deps.Publisher,
		pricing:   deps.Pricing,
		sanitizer: bluemonday.StrictPolicy(),
		newID:     idGen,
		now:       func() time.Time { return deps.Clock().UTC() },
		logger:    logger,
	}
	return service, nil
}

// Create validates the request lines against the catalog, freezes prices and
// persists the order. Line prices are never re-resolved after this point.
func (s *orderService) Create(ctx context.Context, cmd CreateOrderCommand) (Order, error) {
	if s == nil || s.repo == nil {
		return Order{}, ErrOrderUnavailable
	}

	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return Order{}, fmt.Errorf("%w: user_id is required", ErrOrderInvalidInput)
	}
	restaurantID := strings.TrimSpace(cmd.RestaurantID)
	if restaurantID == "" {
		return Order{}, fmt.Errorf("%w: restaurant_id is required", ErrOrderInvalidInput)
	}
	if len(cmd.Items) == 0 {
		return Order{}, fmt.Errorf("%w: items must not be empty", ErrOrderInvalidInput)
	}

	method := cmd.PaymentMethod
	if strings.TrimSpace(string(method)) == "" {
		method = domain.PaymentMethodCash
	}
	if !validPaymentMethod(method) {
		return Order{}, fmt.Errorf("%w: unsupported payment method %q", ErrOrderInvalidInput, method)
	}

	lines, err := s.resolveLines(ctx, cmd.Items)
	if err != nil {
		return Order{}, err
	}

	now := s.now()

	paymentStatus := domain.PaymentStatusPaid
	if method == domain.PaymentMethodCash {
		paymentStatus = domain.PaymentStatusPending
	}

	order := domain.Order{
		ID:           strings.TrimSpace(s.newID()),
		UserID:       userID,
		RestaurantID: restaurantID,
		Items:        lines,
		Totals:       orderLineTotals(lines, s.pricing),
		Status:       domain.OrderStatusPending,
		Payment: domain.OrderPayment{
			Method: method,
			Status: paymentStatus,
		},
		DeliveryAddress:       normalizeAddress(cmd.DeliveryAddress, cmd.RawAddress),
		EstimatedDeliveryTime: now.Add(time.Duration(s.pricing.EstimatedMinutes) * time.Minute),
		SpecialInstructions:   strings.TrimSpace(cmd.SpecialInstructions),
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if order.ID == "" {
		order.ID = orderIDPrefix + ulid.Make().String()
	}

	if err := s.repo.Insert(ctx, order); err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	saved := order

	s.logger(ctx, "order.created", map[string]any{
		"orderID": saved.ID,
		"userID":  saved.UserID,
		"total":   saved.Totals.Total,
		"method":  string(saved.Payment.Method),
	})

	s.notify(ctx, NotifyCommand{
		RecipientID:    saved.UserID,
		RecipientRole:  domain.RoleUser,
		Type:           domain.NotificationTypeOrderPlaced,
		Title:          "Order Placed",
		Message:        fmt.Sprintf("Your order %s has been placed.", saved.ID),
		RelatedOrderID: saved.ID,
	})
	s.notifyRole(ctx, domain.RoleAdmin, NotifyCommand{
		RecipientRole:  domain.RoleAdmin,
		Type:           domain.NotificationTypeOrderPlaced,
		Title:          "New Order",
		Message:        fmt.Sprintf("Order %s was placed by user %s.", saved.ID, saved.UserID),
		RelatedOrderID: saved.ID,
	})
	s.publishEvent(ctx, "order.created", saved)

	return saved, nil
}

// CreateFromCart snapshots the user's basket into an order and clears the
// basket afterwards. A failed clear never fails the checkout.
func (s *orderService) CreateFromCart(ctx context.Context, cmd CheckoutCartCommand) (Order, error) {
	if s == nil || s.repo == nil || s.carts == nil {
		return Order{}, ErrOrderUnavailable
	}

	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return Order{}, fmt.Errorf("%w: user_id is required", ErrOrderInvalidInput)
	}

	cart, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrCartInvalidInput) {
			return Order{}, ErrOrderInvalidInput
		}
		return Order{}, ErrOrderUnavailable
	}
	if len(cart.Items) == 0 {
		return Order{}, ErrOrderCartEmpty
	}

	ids := make([]string, 0, len(cart.Items))
	for _, item := range cart.Items {
		ids = append(ids, item.MenuItemID)
	}
	resolved, err := s.menu.FindByIDs(ctx, ids)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	restaurantID := ""
	requestLines := make([]CreateOrderLine, 0, len(cart.Items))
	for _, item := range cart.Items {
		line := CreateOrderLine{
			MenuItemID: item.MenuItemID,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			Name:       item.Name,
			Image:      item.Image,
		}
		if instructions := strings.TrimSpace(item.SpecialInstructions); instructions != "" {
			line.Customizations = []string{instructions}
		}
		if menuItem, ok := resolved[item.MenuItemID]; ok && restaurantID == "" {
			restaurantID = menuItem.RestaurantID
		}
		requestLines = append(requestLines, line)
	}
	if restaurantID == "" {
		return Order{}, fmt.Errorf("%w: basket items reference no known restaurant", ErrOrderItemUnavailable)
	}

	order, err := s.Create(ctx, CreateOrderCommand{
		UserID:              userID,
		RestaurantID:        restaurantID,
		Items:               requestLines,
		DeliveryAddress:     cmd.DeliveryAddress,
		RawAddress:          cmd.RawAddress,
		PaymentMethod:       cmd.PaymentMethod,
		SpecialInstructions: cmd.SpecialInstructions,
	})
	if err != nil {
		return Order{}, err
	}

	if clearErr := s.carts.ClearCart(ctx, userID); clearErr != nil {
		s.logger(ctx, "order.cart_clear_failed", map[string]any{
			"orderID": order.ID,
			"userID":  userID,
			"error":   clearErr.Error(),
		})
	}

	return order, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string) (Order, error) {
	if s == nil || s.repo == nil {
		return Order{}, ErrOrderUnavailable
	}

	id := strings.TrimSpace(orderID)
	if id == "" {
		return Order{}, ErrOrderInvalidInput
	}

	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error) {
	if s == nil || s.repo == nil {
		return domain.CursorPage[Order]{}, ErrOrderUnavailable
	}

	page, err := s.repo.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[Order]{}, s.mapRepositoryError(err)
	}
	if page.Items == nil {
		page.Items = []Order{}
	}
	return page, nil
}

// TransitionStatus applies one step of the state machine. The target must be
// reachable from the current status and the actor's role must be allowed to
// request it.
func (s *orderService) TransitionStatus(ctx context.Context, cmd OrderStatusTransitionCommand) (Order, error) {
	if s == nil || s.repo == nil {
		return Order{}, ErrOrderUnavailable
	}

	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, ErrOrderInvalidInput
	}
	target := cmd.TargetStatus
	if !validOrderStatus(target) {
		return Order{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, target)
	}

	if !actorAllowed(cmd.ActorRole, target) {
		return Order{}, fmt.Errorf("%w: role %s may not set status %s", ErrOrderInvalidTransition, cmd.ActorRole, target)
	}

	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	if !canTransition(order.Status, target) {
		return Order{}, fmt.Errorf("%w: %s -> %s", ErrOrderInvalidTransition, order.Status, target)
	}
	if err := checkActorScope(order, cmd.ActorRole, strings.TrimSpace(cmd.ActorID)); err != nil {
		return Order{}, err
	}

	updated, err := s.applyStatusTransition(order, target, s.now())
	if err != nil {
		return Order{}, err
	}

	saved, err := s.repo.Update(ctx, updated)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	s.logger(ctx, "order.status_changed", map[string]any{
		"orderID": saved.ID,
		"from":    string(order.Status),
		"to":      string(saved.Status),
		"actorID": strings.TrimSpace(cmd.ActorID),
	})

	s.notifyStatusChange(ctx, saved)
	s.publishEvent(ctx, "order.status_changed", saved)

	return saved, nil
}

// ForceStatus is the admin escape hatch: it bypasses the transition table but
// still refuses to move terminal orders, and every use is logged with the
// acting admin.
func (s *orderService) ForceStatus(ctx context.Context, cmd ForceOrderStatusCommand) (Order, error) {
	if s == nil || s.repo == nil {
		return Order{}, ErrOrderUnavailable
	}

	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, ErrOrderInvalidInput
	}
	target := cmd.TargetStatus
	if !validOrderStatus(target) {
		return Order{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, target)
	}

	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	if order.Status.Terminal() {
		return Order{}, fmt.Errorf("%w: order is %s", ErrOrderInvalidTransition, order.Status)
	}

	now := s.now()
	order.Status = target
	if target == domain.OrderStatusDelivered && order.ActualDeliveryTime == nil {
		order.ActualDeliveryTime = valuePtr(now)
	}
	if target == domain.OrderStatusCancelled {
		if reason := strings.TrimSpace(cmd.Reason); reason != "" {
			order.CancelReason = &reason
		}
	}

	saved, err := s.repo.Update(ctx, order)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	s.logger(ctx, "order.status_forced", map[string]any{
		"orderID": saved.ID,
		"to":      string(saved.Status),
		"adminID": strings.TrimSpace(cmd.ActorID),
		"reason":  strings.TrimSpace(cmd.Reason),
	})

	s.notifyStatusChange(ctx, saved)
	s.publishEvent(ctx, "order.status_forced", saved)

	return saved, nil
}

// Cancel lets the owning user abandon an order that has not entered the
// kitchen. No refund is triggered here; refunds go through payments.
func (s *orderService) Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error) {
	if s == nil || s.repo == nil {
		return Order{}, ErrOrderUnavailable
	}

	orderID := strings.TrimSpace(cmd.OrderID)
	userID := strings.TrimSpace(cmd.UserID)
	if orderID == "" || userID == "" {
		return Order{}, ErrOrderInvalidInput
	}

	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	if order.UserID != userID {
		return Order{}, ErrOrderNotFound
	}
	if order.Status != domain.OrderStatusPending && order.Status != domain.OrderStatusConfirmed {
		return Order{}, fmt.Errorf("%w: cannot cancel order in status %s", ErrOrderInvalidTransition, order.Status)
	}

	order.Status = domain.OrderStatusCancelled
	order.CancelReason = optionalString(cmd.Reason)

	saved, err := s.repo.Update(ctx, order)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	s.logger(ctx, "order.cancelled", map[string]any{
		"orderID": saved.ID,
		"userID":  userID,
	})
	s.publishEvent(ctx, "order.cancelled", saved)

	return saved, nil
}

// MarkPaid records settled payment and confirms the order. Payment
// reconciliation calls it after the gateway reports success; a manual admin
// confirm goes through TransitionStatus instead.
func (s *orderService) MarkPaid(ctx context.Context, cmd MarkOrderPaidCommand) (Order, error) {
	if s == nil || s.repo == nil {
		return Order{}, ErrOrderUnavailable
	}

	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, ErrOrderInvalidInput
	}

	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	if order.Status.Terminal() {
		return Order{}, fmt.Errorf("%w: order is %s", ErrOrderInvalidTransition, order.Status)
	}

	order.Payment.Status = domain.PaymentStatusPaid
	if intentID := strings.TrimSpace(cmd.IntentID); intentID != "" {
		order.Payment.IntentID = &intentID
	}
	if order.Status == domain.OrderStatusPending {
		order.Status = domain.OrderStatusConfirmed
	}

	saved, err := s.repo.Update(ctx, order)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	s.logger(ctx, "order.paid", map[string]any{
		"orderID": saved.ID,
		"actorID": strings.TrimSpace(cmd.ActorID),
	})

	s.notify(ctx, NotifyCommand{
		RecipientID:    saved.UserID,
		RecipientRole:  domain.RoleUser,
		Type:           domain.NotificationTypePayment,
		Title:          "Payment Received",
		Message:        fmt.Sprintf("Payment for order %s was received. Your order is confirmed.", saved.ID),
		RelatedOrderID: saved.ID,
	})
	s.notifyRole(ctx, domain.RoleAdmin, NotifyCommand{
		RecipientRole:  domain.RoleAdmin,
		Type:           domain.NotificationTypePayment,
		Title:          "Order Paid",
		Message:        fmt.Sprintf("Order %s is paid and confirmed.", saved.ID),
		RelatedOrderID: saved.ID,
	})
	s.publishEvent(ctx, "order.paid", saved)

	return saved, nil
}

// MarkRefunded records a completed gateway refund and cancels the order.
func (s *orderService) MarkRefunded(ctx context.Context, cmd MarkOrderRefundedCommand) (Order, error) {
	if s == nil || s.repo == nil {
		return Order{}, ErrOrderUnavailable
	}

	orderID := strings.TrimSpace(cmd.OrderID)
	refundID := strings.TrimSpace(cmd.RefundID)
	if orderID == "" || refundID == "" {
		return Order{}, ErrOrderInvalidInput
	}

	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	order.Payment.Status = domain.PaymentStatusRefunded
	order.Payment.RefundID = &refundID
	order.Status = domain.OrderStatusCancelled
	if reason := strings.TrimSpace(cmd.Reason); reason != "" {
		order.CancelReason = &reason
	}

	saved, err := s.repo.Update(ctx, order)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	s.logger(ctx, "order.refunded", map[string]any{
		"orderID":  saved.ID,
		"refundID": refundID,
		"actorID":  strings.TrimSpace(cmd.ActorID),
	})

	s.notify(ctx, NotifyCommand{
		RecipientID:    saved.UserID,
		RecipientRole:  domain.RoleUser,
		Type:           domain.NotificationTypeRefund,
		Title:          "Refund Processed",
		Message:        fmt.Sprintf("Your payment for order %s has been refunded.", saved.ID),
		RelatedOrderID: saved.ID,
	})
	s.notifyRole(ctx, domain.RoleAdmin, NotifyCommand{
		RecipientRole:  domain.RoleAdmin,
		Type:           domain.NotificationTypeRefund,
		Title:          "Order Refunded",
		Message:        fmt.Sprintf("Order %s was refunded and cancelled.", saved.ID),
		RelatedOrderID: saved.ID,
	})
	s.publishEvent(ctx, "order.refunded", saved)

	return saved, nil
}

// AttachPaymentIntent stores the gateway handle without touching status.
func (s *orderService) AttachPaymentIntent(ctx context.Context, orderID string, intentID string) (Order, error) {
	if s == nil || s.repo == nil {
		return Order{}, ErrOrderUnavailable
	}

	id := strings.TrimSpace(orderID)
	intent := strings.TrimSpace(intentID)
	if id == "" || intent == "" {
		return Order{}, ErrOrderInvalidInput
	}

	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	order.Payment.IntentID = &intent

	saved, err := s.repo.Update(ctx, order)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	return saved, nil
}

// AttachReview records the owner's single post-delivery review. A second
// attempt fails rather than overwriting.
func (s *orderService) AttachReview(ctx context.Context, cmd AttachReviewCommand) (Order, error) {
	if s == nil || s.repo == nil {
		return Order{}, ErrOrderUnavailable
	}

	orderID := strings.TrimSpace(cmd.OrderID)
	userID := strings.TrimSpace(cmd.UserID)
	if orderID == "" || userID == "" {
		return Order{}, ErrOrderInvalidInput
	}
	if cmd.Rating < 1 || cmd.Rating > 5 {
		return Order{}, fmt.Errorf("%w: rating must be between 1 and 5", ErrOrderInvalidInput)
	}

	comment := strings.TrimSpace(s.sanitizer.Sanitize(cmd.Comment))
	if len(comment) > maxReviewCommentLen {
		return Order{}, fmt.Errorf("%w: comment must be %d characters or fewer", ErrOrderInvalidInput, maxReviewCommentLen)
	}

	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	if order.UserID != userID {
		return Order{}, ErrOrderNotFound
	}
	if order.Status != domain.OrderStatusDelivered {
		return Order{}, fmt.Errorf("%w: reviews require a delivered order", ErrOrderInvalidTransition)
	}
	if order.Review != nil {
		return Order{}, ErrOrderAlreadyReviewed
	}

	order.Review = &domain.OrderReview{
		Rating:    cmd.Rating,
		Comment:   comment,
		CreatedAt: s.now(),
	}

	saved, err := s.repo.Update(ctx, order)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	s.logger(ctx, "order.reviewed", map[string]any{
		"orderID": saved.ID,
		"rating":  cmd.Rating,
	})

	return saved, nil
}

// resolveLines turns request lines into frozen order lines. Known catalog
// items supply the price; unresolvable items fall back to the caller's inline
// snapshot when one was provided.
func (s *orderService) resolveLines(ctx context.Context, requested []CreateOrderLine) ([]domain.OrderItem, error) {
	ids := make([]string, 0, len(requested))
	for _, line := range requested {
		id := strings.TrimSpace(line.MenuItemID)
		if id == "" {
			return nil, fmt.Errorf("%w: menu_item_id is required on every line", ErrOrderInvalidInput)
		}
		ids = append(ids, id)
	}

	resolved, err := s.menu.FindByIDs(ctx, ids)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}

	lines := make([]domain.OrderItem, 0, len(requested))
	for _, line := range requested {
		quantity := line.Quantity
		if quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity must be greater than zero", ErrOrderInvalidInput)
		}
		if quantity > s.pricing.MaxItemQuantity {
			quantity = s.pricing.MaxItemQuantity
		}

		id := strings.TrimSpace(line.MenuItemID)
		menuItem, ok := resolved[id]
		switch {
		case ok && !menuItem.Available:
			return nil, fmt.Errorf("%w: %s", ErrOrderItemUnavailable, menuItem.Name)
		case ok:
			lines = append(lines, domain.OrderItem{
				MenuItemID:     id,
				Name:           menuItem.Name,
				UnitPrice:      menuItem.Price,
				Image:          menuItem.Image,
				Quantity:       quantity,
				Customizations: cloneStrings(line.Customizations),
			})
		case line.UnitPrice > 0 && strings.TrimSpace(line.Name) != "":
			lines = append(lines, domain.OrderItem{
				MenuItemID:     id,
				Name:           strings.TrimSpace(line.Name),
				UnitPrice:      line.UnitPrice,
				Image:          strings.TrimSpace(line.Image),
				Quantity:       quantity,
				Customizations: cloneStrings(line.Customizations),
			})
		default:
			return nil, fmt.Errorf("%w: menu item %s", ErrOrderItemUnavailable, id)
		}
	}
	return lines, nil
}

// checkActorScope ties role-gated transitions to the specific participant:
// a delivery actor must be the assigned partner and a restaurant actor must
// own the order. Admins act on any order.
func checkActorScope(order domain.Order, role domain.Role, actorID string) error {
	switch role {
	case domain.RoleDelivery:
		if order.DeliveryPartnerID == nil || *order.DeliveryPartnerID != actorID {
			return fmt.Errorf("%w: order is not assigned to this delivery partner", ErrOrderInvalidTransition)
		}
	case domain.RoleRestaurant:
		if order.RestaurantID != actorID {
			return fmt.Errorf("%w: order belongs to another restaurant", ErrOrderInvalidTransition)
		}
	}
	return nil
}

func (s *orderService) applyStatusTransition(order domain.Order, target domain.OrderStatus, now time.Time) (domain.Order, error) {
	switch target {
	case domain.OrderStatusConfirmed:
		// A manual confirm settles payment the same way reconciliation does.
		order.Payment.Status = domain.PaymentStatusPaid
	case domain.OrderStatusOutForDelivery:
		if order.DeliveryPartnerID == nil {
			return domain.Order{}, fmt.Errorf("%w: no delivery partner assigned", ErrOrderInvalidTransition)
		}
	case domain.OrderStatusDelivered:
		if order.DeliveryPartnerID == nil {
			return domain.Order{}, fmt.Errorf("%w: no delivery partner assigned", ErrOrderInvalidTransition)
		}
		order.ActualDeliveryTime = valuePtr(now)
	}
	order.Status = target
	return order, nil
}

// statusNotices maps each status to the customer-facing message sent on entry.
var statusNotices = map[domain.OrderStatus]struct {
	Title   string
	Message string
}{
	domain.OrderStatusConfirmed:      {"Order Confirmed", "Your order %s has been confirmed."},
	domain.OrderStatusPreparing:      {"Order In The Kitchen", "Your order %s is being prepared."},
	domain.OrderStatusReady:          {"Order Ready", "Your order %s is ready for pickup."},
	domain.OrderStatusOutForDelivery: {"Out For Delivery", "Your order %s is on its way."},
	domain.OrderStatusDelivered:      {"Order Delivered", "Your order %s has been delivered. Enjoy!"},
	domain.OrderStatusCancelled:      {"Order Cancelled", "Your order %s has been cancelled."},
}

func (s *orderService) notifyStatusChange(ctx context.Context, order domain.Order) {
	notice, ok := statusNotices[order.Status]
	if !ok {
		return
	}

	s.notify(ctx, NotifyCommand{
		RecipientID:    order.UserID,
		RecipientRole:  domain.RoleUser,
		Type:           domain.NotificationTypeOrderStatus,
		Title:          notice.Title,
		Message:        fmt.Sprintf(notice.Message, order.ID),
		RelatedOrderID: order.ID,
	})

	switch order.Status {
	case domain.OrderStatusConfirmed:
		s.notifyRole(ctx, domain.RoleAdmin, NotifyCommand{
			RecipientRole:  domain.RoleAdmin,
			Type:           domain.NotificationTypeOrderStatus,
			Title:          "Order Confirmed",
			Message:        fmt.Sprintf("Order %s has been confirmed.", order.ID),
			RelatedOrderID: order.ID,
		})
	case domain.OrderStatusReady:
		s.notifyRole(ctx, domain.RoleDelivery, NotifyCommand{
			RecipientRole:  domain.RoleDelivery,
			Type:           domain.NotificationTypeOrderStatus,
			Title:          "Pickup Available",
			Message:        fmt.Sprintf("Order %s is ready for pickup.", order.ID),
			RelatedOrderID: order.ID,
		})
	case domain.OrderStatusDelivered:
		s.notify(ctx, NotifyCommand{
			RecipientID:    order.RestaurantID,
			RecipientRole:  domain.RoleRestaurant,
			Type:           domain.NotificationTypeOrderStatus,
			Title:          "Order Delivered",
			Message:        fmt.Sprintf("Order %s reached the customer.", order.ID),
			RelatedOrderID: order.ID,
		})
		if order.DeliveryPartnerID != nil {
			s.notify(ctx, NotifyCommand{
				RecipientID:    *order.DeliveryPartnerID,
				RecipientRole:  domain.RoleDelivery,
				Type:           domain.NotificationTypeOrderStatus,
				Title:          "Delivery Complete",
				Message:        fmt.Sprintf("Delivery for order %s is complete.", order.ID),
				RelatedOrderID: order.ID,
			})
		}
	}
}

func (s *orderService) notify(ctx context.Context, cmd NotifyCommand) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, cmd)
}

func (s *orderService) notifyRole(ctx context.Context, role domain.Role, cmd NotifyCommand) {
	if s.notifier == nil {
		return
	}
	s.notifier.NotifyRole(ctx, role, cmd)
}

func (s *orderService) publishEvent(ctx context.Context, eventType string, order domain.Order) {
	if s.publisher == nil {
		return
	}
	message := OrderEventMessage{
		EventType:  eventType,
		OrderID:    order.ID,
		UserID:     order.UserID,
		Status:     string(order.Status),
		OccurredAt: s.now(),
	}
	if _, err := s.publisher.PublishOrderEvent(ctx, message); err != nil {
		s.logger(ctx, "order.event_publish_failed", map[string]any{
			"orderID":   order.ID,
			"eventType": eventType,
			"error":     err.Error(),
		})
	}
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrOrderNotFound
		case repoErr.IsConflict():
			return ErrOrderConflict
		case repoErr.IsUnavailable():
			return ErrOrderUnavailable
		}
		return ErrOrderUnavailable
	}
	return ErrOrderUnavailable
}

func canTransition(from, to domain.OrderStatus) bool {
	for _, candidate := range orderTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

func actorAllowed(role domain.Role, target domain.OrderStatus) bool {
	if role == domain.RoleAdmin {
		return true
	}
	for _, candidate := range transitionActors[target] {
		if candidate == role {
			return true
		}
	}
	return false
}

func validOrderStatus(status domain.OrderStatus) bool {
	switch status {
	case domain.OrderStatusPending, domain.OrderStatusConfirmed, domain.OrderStatusPreparing,
		domain.OrderStatusReady, domain.OrderStatusOutForDelivery,
		domain.OrderStatusDelivered, domain.OrderStatusCancelled:
		return true
	}
	return false
}

func validPaymentMethod(method domain.PaymentMethod) bool {
	switch method {
	case domain.PaymentMethodCash, domain.PaymentMethodCard, domain.PaymentMethodUPI, domain.PaymentMethodWallet:
		return true
	}
	return false
}

// normalizeAddress accepts a structured address, a bare street string, or
// nothing at all. Missing pieces get placeholder values rather than rejecting
// the order.
func normalizeAddress(addr *domain.Address, raw string) domain.Address {
	if addr != nil {
		out := *addr
		out.Street = strings.TrimSpace(out.Street)
		out.City = strings.TrimSpace(out.City)
		out.State = strings.TrimSpace(out.State)
		out.ZipCode = strings.TrimSpace(out.ZipCode)
		if out.Street == "" {
			out.Street = placeholderStreet
		}
		if out.City == "" {
			out.City = placeholderCity
		}
		if out.State == "" {
			out.State = placeholderState
		}
		if out.ZipCode == "" {
			out.ZipCode = placeholderZip
		}
		return out
	}
	if street := strings.TrimSpace(raw); street != "" {
		return domain.Address{
			Street:  street,
			City:    placeholderCity,
			State:   placeholderState,
			ZipCode: placeholderZip,
		}
	}
	return domain.Address{
		Street:  placeholderStreet,
		City:    placeholderCity,
		State:   placeholderState,
		ZipCode: placeholderZip,
	}
}

func orderLineTotals(lines []domain.OrderItem, pricing domain.PricingPolicy) domain.OrderTotals {
	cartLines := make([]domain.CartItem, 0, len(lines))
	for _, line := range lines {
		cartLines = append(cartLines, domain.CartItem{
			MenuItemID: line.MenuItemID,
			UnitPrice:  line.UnitPrice,
			Quantity:   line.Quantity,
		})
	}
	return pricing.Price(cartLines).OrderTotals()
}

func cloneStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
