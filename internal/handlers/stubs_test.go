package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	domain "github.com/foodbuddy/api/internal/domain"
	"github.com/foodbuddy/api/internal/platform/auth"
	"github.com/foodbuddy/api/internal/services"
)

var handlerTestTime = time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)

func userIdentity(uid string, roles ...string) *auth.Identity {
	if len(roles) == 0 {
		roles = []string{auth.RoleUser}
	}
	return &auth.Identity{UID: uid, Email: uid + "@example.com", Roles: roles}
}

func authedRequest(method, target, body string, identity *auth.Identity) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if identity != nil {
		req = req.WithContext(auth.WithIdentity(req.Context(), identity))
	}
	return req
}

type stubCartService struct {
	getFunc    func(ctx context.Context, userID string) (services.Cart, error)
	addFunc    func(ctx context.Context, cmd services.AddCartItemCommand) (services.Cart, error)
	setFunc    func(ctx context.Context, cmd services.SetCartItemQuantityCommand) (services.Cart, error)
	removeFunc func(ctx context.Context, userID, menuItemID string) (services.Cart, error)
	clearFunc  func(ctx context.Context, userID string) error
}

func (s *stubCartService) GetCart(ctx context.Context, userID string) (services.Cart, error) {
	if s.getFunc != nil {
		return s.getFunc(ctx, userID)
	}
	return services.Cart{UserID: userID, Items: []services.CartItem{}}, nil
}

func (s *stubCartService) AddItem(ctx context.Context, cmd services.AddCartItemCommand) (services.Cart, error) {
	if s.addFunc != nil {
		return s.addFunc(ctx, cmd)
	}
	return services.Cart{UserID: cmd.UserID}, nil
}

func (s *stubCartService) SetItemQuantity(ctx context.Context, cmd services.SetCartItemQuantityCommand) (services.Cart, error) {
	if s.setFunc != nil {
		return s.setFunc(ctx, cmd)
	}
	return services.Cart{UserID: cmd.UserID}, nil
}

func (s *stubCartService) RemoveItem(ctx context.Context, userID, menuItemID string) (services.Cart, error) {
	if s.removeFunc != nil {
		return s.removeFunc(ctx, userID, menuItemID)
	}
	return services.Cart{UserID: userID}, nil
}

func (s *stubCartService) ClearCart(ctx context.Context, userID string) error {
	if s.clearFunc != nil {
		return s.clearFunc(ctx, userID)
	}
	return nil
}

type stubOrderService struct {
	createFunc         func(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error)
	createFromCartFunc func(ctx context.Context, cmd services.CheckoutCartCommand) (services.Order, error)
	getFunc            func(ctx context.Context, orderID string) (services.Order, error)
	listFunc           func(ctx context.Context, filter services.OrderListFilter) (domain.CursorPage[services.Order], error)
	transitionFunc     func(ctx context.Context, cmd services.OrderStatusTransitionCommand) (services.Order, error)
	forceFunc          func(ctx context.Context, cmd services.ForceOrderStatusCommand) (services.Order, error)
	cancelFunc         func(ctx context.Context, cmd services.CancelOrderCommand) (services.Order, error)
	reviewFunc         func(ctx context.Context, cmd services.AttachReviewCommand) (services.Order, error)
}

func (s *stubOrderService) Create(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error) {
	if s.createFunc != nil {
		return s.createFunc(ctx, cmd)
	}
	return services.Order{ID: "ord-1", UserID: cmd.UserID}, nil
}

func (s *stubOrderService) CreateFromCart(ctx context.Context, cmd services.CheckoutCartCommand) (services.Order, error) {
	if s.createFromCartFunc != nil {
		return s.createFromCartFunc(ctx, cmd)
	}
	return services.Order{ID: "ord-1", UserID: cmd.UserID}, nil
}

func (s *stubOrderService) GetOrder(ctx context.Context, orderID string) (services.Order, error) {
	if s.getFunc != nil {
		return s.getFunc(ctx, orderID)
	}
	return services.Order{}, services.ErrOrderNotFound
}

func (s *stubOrderService) ListOrders(ctx context.Context, filter services.OrderListFilter) (domain.CursorPage[services.Order], error) {
	if s.listFunc != nil {
		return s.listFunc(ctx, filter)
	}
	return domain.CursorPage[services.Order]{Items: []services.Order{}}, nil
}

func (s *stubOrderService) TransitionStatus(ctx context.Context, cmd services.OrderStatusTransitionCommand) (services.Order, error) {
	if s.transitionFunc != nil {
		return s.transitionFunc(ctx, cmd)
	}
	return services.Order{ID: cmd.OrderID, Status: cmd.TargetStatus}, nil
}

func (s *stubOrderService) ForceStatus(ctx context.Context, cmd services.ForceOrderStatusCommand) (services.Order, error) {
	if s.forceFunc != nil {
		return s.forceFunc(ctx, cmd)
	}
	return services.Order{ID: cmd.OrderID, Status: cmd.TargetStatus}, nil
}

func (s *stubOrderService) Cancel(ctx context.Context, cmd services.CancelOrderCommand) (services.Order, error) {
	if s.cancelFunc != nil {
		return s.cancelFunc(ctx, cmd)
	}
	return services.Order{ID: cmd.OrderID, Status: domain.OrderStatusCancelled}, nil
}

func (s *stubOrderService) MarkPaid(ctx context.Context, cmd services.MarkOrderPaidCommand) (services.Order, error) {
	return services.Order{}, services.ErrOrderNotFound
}

func (s *stubOrderService) MarkRefunded(ctx context.Context, cmd services.MarkOrderRefundedCommand) (services.Order, error) {
	return services.Order{}, services.ErrOrderNotFound
}

func (s *stubOrderService) AttachPaymentIntent(ctx context.Context, orderID, intentID string) (services.Order, error) {
	return services.Order{}, services.ErrOrderNotFound
}

func (s *stubOrderService) AttachReview(ctx context.Context, cmd services.AttachReviewCommand) (services.Order, error) {
	if s.reviewFunc != nil {
		return s.reviewFunc(ctx, cmd)
	}
	return services.Order{ID: cmd.OrderID}, nil
}

type stubDeliveryService struct {
	availableFunc func(ctx context.Context, pager services.Pagination) (domain.CursorPage[services.Order], error)
	tasksFunc     func(ctx context.Context, partnerID string, pager services.Pagination) (domain.CursorPage[services.Order], error)
	historyFunc   func(ctx context.Context, partnerID string, pager services.Pagination) (domain.CursorPage[services.Order], error)
	statsFunc     func(ctx context.Context, partnerID string, day time.Time) (services.DeliveryStats, error)
	acceptFunc    func(ctx context.Context, cmd services.DeliveryActionCommand) (services.Order, error)
	pickupFunc    func(ctx context.Context, cmd services.DeliveryActionCommand) (services.Order, error)
	deliverFunc   func(ctx context.Context, cmd services.DeliveryActionCommand) (services.Order, error)
}

func (s *stubDeliveryService) ListAvailable(ctx context.Context, pager services.Pagination) (domain.CursorPage[services.Order], error) {
	if s.availableFunc != nil {
		return s.availableFunc(ctx, pager)
	}
	return domain.CursorPage[services.Order]{Items: []services.Order{}}, nil
}

func (s *stubDeliveryService) ListTasks(ctx context.Context, partnerID string, pager services.Pagination) (domain.CursorPage[services.Order], error) {
	if s.tasksFunc != nil {
		return s.tasksFunc(ctx, partnerID, pager)
	}
	return domain.CursorPage[services.Order]{Items: []services.Order{}}, nil
}

func (s *stubDeliveryService) ListHistory(ctx context.Context, partnerID string, pager services.Pagination) (domain.CursorPage[services.Order], error) {
	if s.historyFunc != nil {
		return s.historyFunc(ctx, partnerID, pager)
	}
	return domain.CursorPage[services.Order]{Items: []services.Order{}}, nil
}

func (s *stubDeliveryService) Stats(ctx context.Context, partnerID string, day time.Time) (services.DeliveryStats, error) {
	if s.statsFunc != nil {
		return s.statsFunc(ctx, partnerID, day)
	}
	return services.DeliveryStats{}, nil
}

func (s *stubDeliveryService) Accept(ctx context.Context, cmd services.DeliveryActionCommand) (services.Order, error) {
	if s.acceptFunc != nil {
		return s.acceptFunc(ctx, cmd)
	}
	return services.Order{ID: cmd.OrderID}, nil
}

func (s *stubDeliveryService) Pickup(ctx context.Context, cmd services.DeliveryActionCommand) (services.Order, error) {
	if s.pickupFunc != nil {
		return s.pickupFunc(ctx, cmd)
	}
	return services.Order{ID: cmd.OrderID}, nil
}

func (s *stubDeliveryService) Deliver(ctx context.Context, cmd services.DeliveryActionCommand) (services.Order, error) {
	if s.deliverFunc != nil {
		return s.deliverFunc(ctx, cmd)
	}
	return services.Order{ID: cmd.OrderID}, nil
}

type stubPaymentService struct {
	intentFunc  func(ctx context.Context, cmd services.CreatePaymentIntentCommand) (services.PaymentIntentResult, error)
	confirmFunc func(ctx context.Context, cmd services.ConfirmPaymentCommand) (services.Order, error)
	refundFunc  func(ctx context.Context, cmd services.RefundPaymentCommand) (services.Order, error)
}

func (s *stubPaymentService) CreateIntent(ctx context.Context, cmd services.CreatePaymentIntentCommand) (services.PaymentIntentResult, error) {
	if s.intentFunc != nil {
		return s.intentFunc(ctx, cmd)
	}
	return services.PaymentIntentResult{IntentID: "pi_1", ClientSecret: "secret_1", Amount: 2459, Currency: "inr"}, nil
}

func (s *stubPaymentService) ConfirmPayment(ctx context.Context, cmd services.ConfirmPaymentCommand) (services.Order, error) {
	if s.confirmFunc != nil {
		return s.confirmFunc(ctx, cmd)
	}
	return services.Order{ID: cmd.OrderID}, nil
}

func (s *stubPaymentService) Refund(ctx context.Context, cmd services.RefundPaymentCommand) (services.Order, error) {
	if s.refundFunc != nil {
		return s.refundFunc(ctx, cmd)
	}
	return services.Order{ID: cmd.OrderID}, nil
}

type stubNotificationService struct {
	listFunc func(ctx context.Context, recipientID string, pager services.Pagination) (domain.CursorPage[services.Notification], error)
	markFunc func(ctx context.Context, recipientID, notificationID string) (services.Notification, error)
}

func (s *stubNotificationService) Notify(ctx context.Context, cmd services.NotifyCommand) {}

func (s *stubNotificationService) NotifyRole(ctx context.Context, role services.Role, cmd services.NotifyCommand) {
}

func (s *stubNotificationService) List(ctx context.Context, recipientID string, pager services.Pagination) (domain.CursorPage[services.Notification], error) {
	if s.listFunc != nil {
		return s.listFunc(ctx, recipientID, pager)
	}
	return domain.CursorPage[services.Notification]{Items: []services.Notification{}}, nil
}

func (s *stubNotificationService) MarkRead(ctx context.Context, recipientID, notificationID string) (services.Notification, error) {
	if s.markFunc != nil {
		return s.markFunc(ctx, recipientID, notificationID)
	}
	return services.Notification{ID: notificationID, RecipientID: recipientID, IsRead: true}, nil
}

type stubSystemService struct {
	healthFunc func(ctx context.Context) (domain.SystemHealthReport, error)
}

func (s *stubSystemService) Health(ctx context.Context) (domain.SystemHealthReport, error) {
	if s.healthFunc != nil {
		return s.healthFunc(ctx)
	}
	return domain.SystemHealthReport{Status: domain.HealthStatusOK, GeneratedAt: handlerTestTime}, nil
}
