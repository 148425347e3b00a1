package services

import (
	"context"
	"sync"
	"time"

	domain "github.com/foodbuddy/api/internal/domain"
	"github.com/foodbuddy/api/internal/payments"
	"github.com/foodbuddy/api/internal/repositories"
)

// repositoryErrorStub satisfies repositories.RepositoryError for tests.
type repositoryErrorStub struct {
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *repositoryErrorStub) Error() string       { return "repository error stub" }
func (e *repositoryErrorStub) IsNotFound() bool    { return e.notFound }
func (e *repositoryErrorStub) IsConflict() bool    { return e.conflict }
func (e *repositoryErrorStub) IsUnavailable() bool { return e.unavailable }

type stubOrderRepository struct {
	insertFunc func(ctx context.Context, order domain.Order) error
	updateFunc func(ctx context.Context, order domain.Order) (domain.Order, error)
	findFunc   func(ctx context.Context, orderID string) (domain.Order, error)
	listFunc   func(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error)
	assignFunc func(ctx context.Context, orderID string, partnerID string, statuses []domain.OrderStatus, now time.Time) (domain.Order, error)
}

func (s *stubOrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if s.insertFunc != nil {
		return s.insertFunc(ctx, order)
	}
	return nil
}

func (s *stubOrderRepository) Update(ctx context.Context, order domain.Order) (domain.Order, error) {
	if s.updateFunc != nil {
		return s.updateFunc(ctx, order)
	}
	return order, nil
}

func (s *stubOrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if s.findFunc != nil {
		return s.findFunc(ctx, orderID)
	}
	return domain.Order{}, &repositoryErrorStub{notFound: true}
}

func (s *stubOrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if s.listFunc != nil {
		return s.listFunc(ctx, filter)
	}
	return domain.CursorPage[domain.Order]{}, nil
}

func (s *stubOrderRepository) AssignDeliveryPartner(ctx context.Context, orderID string, partnerID string, statuses []domain.OrderStatus, now time.Time) (domain.Order, error) {
	if s.assignFunc != nil {
		return s.assignFunc(ctx, orderID, partnerID, statuses, now)
	}
	return domain.Order{}, &repositoryErrorStub{notFound: true}
}

type stubMenuRepository struct {
	items       map[string]domain.MenuItem
	findFunc    func(ctx context.Context, menuItemID string) (domain.MenuItem, error)
	findAllFunc func(ctx context.Context, menuItemIDs []string) (map[string]domain.MenuItem, error)
}

func (s *stubMenuRepository) FindByID(ctx context.Context, menuItemID string) (domain.MenuItem, error) {
	if s.findFunc != nil {
		return s.findFunc(ctx, menuItemID)
	}
	if item, ok := s.items[menuItemID]; ok {
		return item, nil
	}
	return domain.MenuItem{}, &repositoryErrorStub{notFound: true}
}

func (s *stubMenuRepository) FindByIDs(ctx context.Context, menuItemIDs []string) (map[string]domain.MenuItem, error) {
	if s.findAllFunc != nil {
		return s.findAllFunc(ctx, menuItemIDs)
	}
	out := make(map[string]domain.MenuItem, len(menuItemIDs))
	for _, id := range menuItemIDs {
		if item, ok := s.items[id]; ok {
			out[id] = item
		}
	}
	return out, nil
}

type stubCartStore struct {
	mu         sync.Mutex
	carts      map[string]domain.Cart
	getFunc    func(ctx context.Context, userID string) (domain.Cart, error)
	updateFunc func(ctx context.Context, userID string, mutate func(domain.Cart) (domain.Cart, error)) (domain.Cart, error)
	clearFunc  func(ctx context.Context, userID string) error
}

func (s *stubCartStore) Get(ctx context.Context, userID string) (domain.Cart, error) {
	if s.getFunc != nil {
		return s.getFunc(ctx, userID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cart, ok := s.carts[userID]
	if !ok {
		return domain.Cart{}, &repositoryErrorStub{notFound: true}
	}
	return cart, nil
}

func (s *stubCartStore) Update(ctx context.Context, userID string, mutate func(domain.Cart) (domain.Cart, error)) (domain.Cart, error) {
	if s.updateFunc != nil {
		return s.updateFunc(ctx, userID, mutate)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.carts == nil {
		s.carts = map[string]domain.Cart{}
	}
	current, ok := s.carts[userID]
	if !ok {
		current = domain.Cart{UserID: userID}
	}
	next, err := mutate(current)
	if err != nil {
		return domain.Cart{}, err
	}
	next.UserID = userID
	s.carts[userID] = next
	return next, nil
}

func (s *stubCartStore) Clear(ctx context.Context, userID string) error {
	if s.clearFunc != nil {
		return s.clearFunc(ctx, userID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.carts[userID]; !ok {
		return &repositoryErrorStub{notFound: true}
	}
	delete(s.carts, userID)
	return nil
}

type stubCartService struct {
	getFunc    func(ctx context.Context, userID string) (Cart, error)
	addFunc    func(ctx context.Context, cmd AddCartItemCommand) (Cart, error)
	setFunc    func(ctx context.Context, cmd SetCartItemQuantityCommand) (Cart, error)
	removeFunc func(ctx context.Context, userID string, menuItemID string) (Cart, error)
	clearFunc  func(ctx context.Context, userID string) error
}

func (s *stubCartService) GetCart(ctx context.Context, userID string) (Cart, error) {
	if s.getFunc != nil {
		return s.getFunc(ctx, userID)
	}
	return Cart{UserID: userID}, nil
}

func (s *stubCartService) AddItem(ctx context.Context, cmd AddCartItemCommand) (Cart, error) {
	if s.addFunc != nil {
		return s.addFunc(ctx, cmd)
	}
	return Cart{}, nil
}

func (s *stubCartService) SetItemQuantity(ctx context.Context, cmd SetCartItemQuantityCommand) (Cart, error) {
	if s.setFunc != nil {
		return s.setFunc(ctx, cmd)
	}
	return Cart{}, nil
}

func (s *stubCartService) RemoveItem(ctx context.Context, userID string, menuItemID string) (Cart, error) {
	if s.removeFunc != nil {
		return s.removeFunc(ctx, userID, menuItemID)
	}
	return Cart{}, nil
}

func (s *stubCartService) ClearCart(ctx context.Context, userID string) error {
	if s.clearFunc != nil {
		return s.clearFunc(ctx, userID)
	}
	return nil
}

// roleNotice records a single fan-out request handed to NotifyRole.
type roleNotice struct {
	role domain.Role
	cmd  NotifyCommand
}

// recordingNotifier captures dispatched notifications for assertions.
type recordingNotifier struct {
	mu     sync.Mutex
	direct []NotifyCommand
	roles  []roleNotice
}

func (n *recordingNotifier) Notify(ctx context.Context, cmd NotifyCommand) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.direct = append(n.direct, cmd)
}

func (n *recordingNotifier) NotifyRole(ctx context.Context, role domain.Role, cmd NotifyCommand) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.roles = append(n.roles, roleNotice{role: role, cmd: cmd})
}

type stubPublisher struct {
	mu     sync.Mutex
	events []OrderEventMessage
	err    error
}

func (p *stubPublisher) PublishOrderEvent(ctx context.Context, message OrderEventMessage) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.events = append(p.events, message)
	return "msg-1", nil
}

type stubNotificationRepository struct {
	insertFunc func(ctx context.Context, notification domain.Notification) error
	listFunc   func(ctx context.Context, recipientID string, pager domain.Pagination) (domain.CursorPage[domain.Notification], error)
	markFunc   func(ctx context.Context, recipientID string, notificationID string) (domain.Notification, error)
}

func (s *stubNotificationRepository) Insert(ctx context.Context, notification domain.Notification) error {
	if s.insertFunc != nil {
		return s.insertFunc(ctx, notification)
	}
	return nil
}

func (s *stubNotificationRepository) ListByRecipient(ctx context.Context, recipientID string, pager domain.Pagination) (domain.CursorPage[domain.Notification], error) {
	if s.listFunc != nil {
		return s.listFunc(ctx, recipientID, pager)
	}
	return domain.CursorPage[domain.Notification]{}, nil
}

func (s *stubNotificationRepository) MarkRead(ctx context.Context, recipientID string, notificationID string) (domain.Notification, error) {
	if s.markFunc != nil {
		return s.markFunc(ctx, recipientID, notificationID)
	}
	return domain.Notification{}, &repositoryErrorStub{notFound: true}
}

type stubUserRepository struct {
	findFunc func(ctx context.Context, userID string) (domain.User, error)
	roleFunc func(ctx context.Context, role domain.Role) ([]string, error)
}

func (s *stubUserRepository) FindByID(ctx context.Context, userID string) (domain.User, error) {
	if s.findFunc != nil {
		return s.findFunc(ctx, userID)
	}
	return domain.User{}, &repositoryErrorStub{notFound: true}
}

func (s *stubUserRepository) ListIDsByRole(ctx context.Context, role domain.Role) ([]string, error) {
	if s.roleFunc != nil {
		return s.roleFunc(ctx, role)
	}
	return nil, nil
}

type stubHealthRepository struct {
	collectFunc func(ctx context.Context) (domain.SystemHealthReport, error)
}

func (s *stubHealthRepository) Collect(ctx context.Context) (domain.SystemHealthReport, error) {
	if s.collectFunc != nil {
		return s.collectFunc(ctx)
	}
	return domain.SystemHealthReport{}, nil
}

type stubPaymentOrders struct {
	getFunc          func(ctx context.Context, orderID string) (Order, error)
	attachFunc       func(ctx context.Context, orderID string, intentID string) (Order, error)
	markPaidFunc     func(ctx context.Context, cmd MarkOrderPaidCommand) (Order, error)
	markRefundedFunc func(ctx context.Context, cmd MarkOrderRefundedCommand) (Order, error)
}

func (s *stubPaymentOrders) GetOrder(ctx context.Context, orderID string) (Order, error) {
	if s.getFunc != nil {
		return s.getFunc(ctx, orderID)
	}
	return Order{}, ErrOrderNotFound
}

func (s *stubPaymentOrders) AttachPaymentIntent(ctx context.Context, orderID string, intentID string) (Order, error) {
	if s.attachFunc != nil {
		return s.attachFunc(ctx, orderID, intentID)
	}
	return Order{}, nil
}

func (s *stubPaymentOrders) MarkPaid(ctx context.Context, cmd MarkOrderPaidCommand) (Order, error) {
	if s.markPaidFunc != nil {
		return s.markPaidFunc(ctx, cmd)
	}
	return Order{}, nil
}

func (s *stubPaymentOrders) MarkRefunded(ctx context.Context, cmd MarkOrderRefundedCommand) (Order, error) {
	if s.markRefundedFunc != nil {
		return s.markRefundedFunc(ctx, cmd)
	}
	return Order{}, nil
}

type stubGateway struct {
	createFunc   func(ctx context.Context, req payments.CreateIntentRequest) (payments.Intent, error)
	retrieveFunc func(ctx context.Context, intentID string) (payments.IntentDetails, error)
	refundFunc   func(ctx context.Context, req payments.RefundRequest) (payments.Refund, error)

	refundCalls int
}

func (s *stubGateway) CreateIntent(ctx context.Context, req payments.CreateIntentRequest) (payments.Intent, error) {
	if s.createFunc != nil {
		return s.createFunc(ctx, req)
	}
	return payments.Intent{ID: "pi_stub", ClientSecret: "secret_stub", Amount: req.Amount, Currency: req.Currency, Status: payments.StatusPending}, nil
}

func (s *stubGateway) RetrieveIntent(ctx context.Context, intentID string) (payments.IntentDetails, error) {
	if s.retrieveFunc != nil {
		return s.retrieveFunc(ctx, intentID)
	}
	return payments.IntentDetails{IntentID: intentID, Status: payments.StatusSucceeded, RawStatus: "succeeded"}, nil
}

func (s *stubGateway) CreateRefund(ctx context.Context, req payments.RefundRequest) (payments.Refund, error) {
	s.refundCalls++
	if s.refundFunc != nil {
		return s.refundFunc(ctx, req)
	}
	return payments.Refund{ID: "re_stub", IntentID: req.IntentID, Status: "succeeded"}, nil
}

var testClockTime = time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)

func testClock() time.Time { return testClockTime }

var testPricing = PricingPolicy{
	Currency:         "inr",
	TaxRateBP:        800,
	DeliveryFee:      299,
	MaxItemQuantity:  10,
	EstimatedMinutes: 45,
}
