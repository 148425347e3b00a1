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
	errDeliveryRepositoryRequired = errors.New("delivery service: repository is required")
	errDeliveryOrdersRequired     = errors.New("delivery service: order service is required")
	errDeliveryClockRequired      = errors.New("delivery service: clock is required")
)

// ErrDeliveryInvalidInput indicates the caller supplied invalid input.
var ErrDeliveryInvalidInput = errors.New("delivery service: invalid input")

// ErrDeliveryNotFound indicates the requested order does not exist.
var ErrDeliveryNotFound = errors.New("delivery service: not found")

// ErrDeliveryUnavailable indicates the persistence layer cannot fulfil the request.
var ErrDeliveryUnavailable = errors.New("delivery service: unavailable")

// ErrDeliveryConflict indicates the order was already claimed by another partner.
var ErrDeliveryConflict = errors.New("delivery service: conflict")

// ErrDeliveryInvalidState indicates the order's status does not permit the action.
var ErrDeliveryInvalidState = errors.New("delivery service: invalid state")

// acceptableStatuses are the states an unassigned order may be claimed from.
var acceptableStatuses = []domain.OrderStatus{
	domain.OrderStatusConfirmed,
	domain.OrderStatusPreparing,
	domain.OrderStatusReady,
}

// DeliveryServiceDeps wires persistence and the order state machine for
// delivery partner workflows.
type DeliveryServiceDeps struct {
	Repository       repositories.OrderRepository
	Orders           OrderService
	EarningsPerOrder int64
	Clock            func() time.Time
	Logger           func(context.Context, string, map[string]any)
}

type deliveryService struct {
	repo     repositories.OrderRepository
	orders   OrderService
	earnings int64
	now      func() time.Time
	logger   func(context.Context, string, map[string]any)
}

// NewDeliveryService constructs a DeliveryService enforcing dependency validation.
func NewDeliveryService(deps DeliveryServiceDeps) (DeliveryService, error) {
	if deps.Repository == nil {
		return nil, errDeliveryRepositoryRequired
	}
	if deps.Orders == nil {
		return nil, errDeliveryOrdersRequired
	}
	if deps.Clock == nil {
		return nil, errDeliveryClockRequired
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	service := &deliveryService{
		repo:     deps.Repository,
		orders:   deps.Orders,
		earnings: deps.EarningsPerOrder,
		now:      func() time.Time { return deps.Clock().UTC() },
		logger:   logger,
	}
	return service, nil
}

// ListAvailable returns claimable orders: unassigned and in a claimable state.
func (s *deliveryService) ListAvailable(ctx context.Context, pager Pagination) (domain.CursorPage[Order], error) {
	if s == nil || s.repo == nil {
		return domain.CursorPage[Order]{}, ErrDeliveryUnavailable
	}

	page, err := s.repo.List(ctx, repositories.OrderListFilter{
		Status:     acceptableStatuses,
		Unassigned: true,
		Pagination: pager,
	})
	if err != nil {
		return domain.CursorPage[Order]{}, s.translateRepoError(err)
	}
	if page.Items == nil {
		page.Items = []Order{}
	}
	return page, nil
}

// ListTasks returns the partner's in-flight assignments.
func (s *deliveryService) ListTasks(ctx context.Context, partnerID string, pager Pagination) (domain.CursorPage[Order], error) {
	if s == nil || s.repo == nil {
		return domain.CursorPage[Order]{}, ErrDeliveryUnavailable
	}

	pid := strings.TrimSpace(partnerID)
	if pid == "" {
		return domain.CursorPage[Order]{}, ErrDeliveryInvalidInput
	}

	page, err := s.repo.List(ctx, repositories.OrderListFilter{
		DeliveryPartnerID: pid,
		Status: []domain.OrderStatus{
			domain.OrderStatusConfirmed,
			domain.OrderStatusPreparing,
			domain.OrderStatusReady,
			domain.OrderStatusOutForDelivery,
		},
		Pagination: pager,
	})
	if err != nil {
		return domain.CursorPage[Order]{}, s.translateRepoError(err)
	}
	if page.Items == nil {
		page.Items = []Order{}
	}
	return page, nil
}

// ListHistory returns the partner's completed deliveries.
func (s *deliveryService) ListHistory(ctx context.Context, partnerID string, pager Pagination) (domain.CursorPage[Order], error) {
	if s == nil || s.repo == nil {
		return domain.CursorPage[Order]{}, ErrDeliveryUnavailable
	}

	pid := strings.TrimSpace(partnerID)
	if pid == "" {
		return domain.CursorPage[Order]{}, ErrDeliveryInvalidInput
	}

	page, err := s.repo.List(ctx, repositories.OrderListFilter{
		DeliveryPartnerID: pid,
		Status:            []domain.OrderStatus{domain.OrderStatusDelivered},
		Pagination:        pager,
	})
	if err != nil {
		return domain.CursorPage[Order]{}, s.translateRepoError(err)
	}
	if page.Items == nil {
		page.Items = []Order{}
	}
	return page, nil
}

// Stats aggregates a partner's deliveries completed on the given day.
func (s *deliveryService) Stats(ctx context.Context, partnerID string, day time.Time) (DeliveryStats, error) {
	if s == nil || s.repo == nil {
		return DeliveryStats{}, ErrDeliveryUnavailable
	}

	pid := strings.TrimSpace(partnerID)
	if pid == "" {
		return DeliveryStats{}, ErrDeliveryInvalidInput
	}

	dayStart := day.UTC().Truncate(24 * time.Hour)
	dayEnd := dayStart.Add(24 * time.Hour)

	page, err := s.repo.List(ctx, repositories.OrderListFilter{
		DeliveryPartnerID: pid,
		Status:            []domain.OrderStatus{domain.OrderStatusDelivered},
		DateRange: domain.RangeQuery[time.Time]{
			From: &dayStart,
			To:   &dayEnd,
		},
	})
	if err != nil {
		return DeliveryStats{}, s.translateRepoError(err)
	}

	stats := DeliveryStats{
		Date:            dayStart.Format("2006-01-02"),
		DeliveredOrders: len(page.Items),
		Earnings:        int64(len(page.Items)) * s.earnings,
	}
	return stats, nil
}

// Accept claims an unassigned order for the partner. The assignment is a
// compare-and-set at the repository; the first claim wins, later claims
// surface a conflict.
func (s *deliveryService) Accept(ctx context.Context, cmd DeliveryActionCommand) (Order, error) {
	if s == nil || s.repo == nil {
		return Order{}, ErrDeliveryUnavailable
	}

	orderID := strings.TrimSpace(cmd.OrderID)
	partnerID := strings.TrimSpace(cmd.PartnerID)
	if orderID == "" || partnerID == "" {
		return Order{}, ErrDeliveryInvalidInput
	}

	order, err := s.repo.AssignDeliveryPartner(ctx, orderID, partnerID, acceptableStatuses, s.now())
	if err != nil {
		return Order{}, s.translateRepoError(err)
	}

	s.logger(ctx, "delivery.accepted", map[string]any{
		"orderID":   order.ID,
		"partnerID": partnerID,
	})
	return order, nil
}

// Pickup moves an assigned ready order out for delivery.
func (s *deliveryService) Pickup(ctx context.Context, cmd DeliveryActionCommand) (Order, error) {
	return s.advance(ctx, cmd, domain.OrderStatusOutForDelivery)
}

// Deliver completes an assigned out-for-delivery order.
func (s *deliveryService) Deliver(ctx context.Context, cmd DeliveryActionCommand) (Order, error) {
	return s.advance(ctx, cmd, domain.OrderStatusDelivered)
}

func (s *deliveryService) advance(ctx context.Context, cmd DeliveryActionCommand, target domain.OrderStatus) (Order, error) {
	if s == nil || s.repo == nil || s.orders == nil {
		return Order{}, ErrDeliveryUnavailable
	}

	orderID := strings.TrimSpace(cmd.OrderID)
	partnerID := strings.TrimSpace(cmd.PartnerID)
	if orderID == "" || partnerID == "" {
		return Order{}, ErrDeliveryInvalidInput
	}

	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.translateRepoError(err)
	}
	if order.DeliveryPartnerID == nil || *order.DeliveryPartnerID != partnerID {
		return Order{}, fmt.Errorf("%w: order is not assigned to this partner", ErrDeliveryInvalidState)
	}

	updated, err := s.orders.TransitionStatus(ctx, OrderStatusTransitionCommand{
		OrderID:      orderID,
		TargetStatus: target,
		ActorID:      partnerID,
		ActorRole:    domain.RoleDelivery,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrOrderInvalidTransition):
			return Order{}, fmt.Errorf("%w: %v", ErrDeliveryInvalidState, err)
		case errors.Is(err, ErrOrderNotFound):
			return Order{}, ErrDeliveryNotFound
		case errors.Is(err, ErrOrderConflict):
			return Order{}, ErrDeliveryConflict
		}
		return Order{}, ErrDeliveryUnavailable
	}
	return updated, nil
}

func (s *deliveryService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrDeliveryNotFound
		case repoErr.IsConflict():
			return ErrDeliveryConflict
		case repoErr.IsUnavailable():
			return ErrDeliveryUnavailable
		}
		return ErrDeliveryUnavailable
	}
	return ErrDeliveryUnavailable
}
