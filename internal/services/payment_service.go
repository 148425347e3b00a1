package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/foodbuddy/api/internal/domain"
	"github.com/foodbuddy/api/internal/payments"
)

var (
	errPaymentOrdersRequired  = errors.New("payment service: order service is required")
	errPaymentGatewayRequired = errors.New("payment service: gateway is required")
	errPaymentClockRequired   = errors.New("payment service: clock is required")
)

// ErrPaymentInvalidInput indicates the caller supplied invalid input.
var ErrPaymentInvalidInput = errors.New("payment service: invalid input")

// ErrPaymentNotFound indicates the referenced order does not exist.
var ErrPaymentNotFound = errors.New("payment service: not found")

// ErrPaymentUnavailable indicates the persistence layer cannot fulfil the request.
var ErrPaymentUnavailable = errors.New("payment service: unavailable")

// ErrPaymentGateway indicates an opaque upstream failure from the payment provider.
var ErrPaymentGateway = errors.New("payment service: gateway error")

// ErrPaymentNotSucceeded indicates the gateway does not report the intent as
// succeeded. The gateway's reported status is included in the message.
var ErrPaymentNotSucceeded = errors.New("payment service: payment not succeeded")

// ErrPaymentAlreadyRefunded indicates the order's payment was refunded before.
var ErrPaymentAlreadyRefunded = errors.New("payment service: already refunded")

// ErrPaymentNotRefundable indicates the order is not paid or carries no intent.
var ErrPaymentNotRefundable = errors.New("payment service: not refundable")

const refundKeyPrefix = "refund_"

// PaymentServiceDeps wires the order state machine and the gateway for
// payment reconciliation.
type PaymentServiceDeps struct {
	Orders PaymentOrders
	// Gateway is the external payment provider adapter.
	Gateway payments.Gateway
	// MinimumCharge is the smallest amount the gateway accepts, in minor units.
	MinimumCharge int64
	Currency      string
	Clock         func() time.Time
	Logger        func(context.Context, string, map[string]any)
}

// PaymentOrders is the narrow order surface payment reconciliation needs.
type PaymentOrders interface {
	GetOrder(ctx context.Context, orderID string) (Order, error)
	AttachPaymentIntent(ctx context.Context, orderID string, intentID string) (Order, error)
	MarkPaid(ctx context.Context, cmd MarkOrderPaidCommand) (Order, error)
	MarkRefunded(ctx context.Context, cmd MarkOrderRefundedCommand) (Order, error)
}

type paymentService struct {
	orders    PaymentOrders
	gateway   payments.Gateway
	minCharge int64
	currency  string
	now       func() time.Time
	logger    func(context.Context, string, map[string]any)
}

// NewPaymentService constructs a PaymentService enforcing dependency validation.
func NewPaymentService(deps PaymentServiceDeps) (PaymentService, error) {
	if deps.Orders == nil {
		return nil, errPaymentOrdersRequired
	}
	if deps.Gateway == nil {
		return nil, errPaymentGatewayRequired
	}
	if deps.Clock == nil {
		return nil, errPaymentClockRequired
	}

	currency := strings.ToLower(strings.TrimSpace(deps.Currency))
	if currency == "" {
		currency = "inr"
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	service := &paymentService{
		orders:    deps.Orders,
		gateway:   deps.Gateway,
		minCharge: deps.MinimumCharge,
		currency:  currency,
		now:       func() time.Time { return deps.Clock().UTC() },
		logger:    logger,
	}
	return service, nil
}

// CreateIntent opens a gateway intent for the order total. Amounts below the
// gateway minimum are clamped up, and the adjustment is surfaced in the
// result rather than hidden from the client.
func (s *paymentService) CreateIntent(ctx context.Context, cmd CreatePaymentIntentCommand) (PaymentIntentResult, error) {
	if s == nil || s.orders == nil {
		return PaymentIntentResult{}, ErrPaymentUnavailable
	}

	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return PaymentIntentResult{}, ErrPaymentInvalidInput
	}

	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return PaymentIntentResult{}, s.translateOrderError(err)
	}
	if userID := strings.TrimSpace(cmd.UserID); userID != "" && order.UserID != userID {
		return PaymentIntentResult{}, ErrPaymentNotFound
	}

	amount := order.Totals.Total
	adjusted := false
	if amount < s.minCharge {
		amount = s.minCharge
		adjusted = true
	}

	intent, err := s.gateway.CreateIntent(ctx, payments.CreateIntentRequest{
		Amount:   amount,
		Currency: s.currency,
		Metadata: map[string]string{
			"orderId": order.ID,
			"userId":  order.UserID,
		},
	})
	if err != nil {
		s.logger(ctx, "payment.intent_create_failed", map[string]any{
			"orderID": order.ID,
			"error":   err.Error(),
		})
		return PaymentIntentResult{}, fmt.Errorf("%w: %v", ErrPaymentGateway, err)
	}

	if _, err := s.orders.AttachPaymentIntent(ctx, order.ID, intent.ID); err != nil {
		return PaymentIntentResult{}, s.translateOrderError(err)
	}

	s.logger(ctx, "payment.intent_created", map[string]any{
		"orderID":  order.ID,
		"intentID": intent.ID,
		"amount":   amount,
		"adjusted": adjusted,
	})

	return PaymentIntentResult{
		IntentID:       intent.ID,
		ClientSecret:   intent.ClientSecret,
		Amount:         amount,
		Currency:       s.currency,
		AmountAdjusted: adjusted,
	}, nil
}

// ConfirmPayment reconciles the gateway intent with the order. The order is
// only mutated after the gateway reports the intent as succeeded.
func (s *paymentService) ConfirmPayment(ctx context.Context, cmd ConfirmPaymentCommand) (Order, error) {
	if s == nil || s.orders == nil {
		return Order{}, ErrPaymentUnavailable
	}

	orderID := strings.TrimSpace(cmd.OrderID)
	intentID := strings.TrimSpace(cmd.IntentID)
	if orderID == "" || intentID == "" {
		return Order{}, ErrPaymentInvalidInput
	}

	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return Order{}, s.translateOrderError(err)
	}
	if order.Payment.IntentID != nil && *order.Payment.IntentID != intentID {
		return Order{}, fmt.Errorf("%w: intent does not belong to this order", ErrPaymentInvalidInput)
	}

	details, err := s.gateway.RetrieveIntent(ctx, intentID)
	if err != nil {
		s.logger(ctx, "payment.confirm_lookup_failed", map[string]any{
			"orderID":  orderID,
			"intentID": intentID,
			"error":    err.Error(),
		})
		return Order{}, fmt.Errorf("%w: %v", ErrPaymentGateway, err)
	}
	if details.Status != payments.StatusSucceeded {
		return Order{}, fmt.Errorf("%w: gateway reports %s", ErrPaymentNotSucceeded, details.RawStatus)
	}

	confirmed, err := s.orders.MarkPaid(ctx, MarkOrderPaidCommand{
		OrderID:  orderID,
		IntentID: intentID,
		ActorID:  strings.TrimSpace(cmd.ActorID),
	})
	if err != nil {
		return Order{}, s.translateOrderError(err)
	}

	s.logger(ctx, "payment.confirmed", map[string]any{
		"orderID":  confirmed.ID,
		"intentID": intentID,
	})
	return confirmed, nil
}

// Refund returns a settled payment. The gateway idempotency key is derived
// from the order id, so a retried call never double-refunds at the gateway;
// the AlreadyRefunded check is only a secondary guard.
func (s *paymentService) Refund(ctx context.Context, cmd RefundPaymentCommand) (Order, error) {
	if s == nil || s.orders == nil {
		return Order{}, ErrPaymentUnavailable
	}

	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, ErrPaymentInvalidInput
	}

	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return Order{}, s.translateOrderError(err)
	}
	if order.Payment.Status == domain.PaymentStatusRefunded {
		return Order{}, ErrPaymentAlreadyRefunded
	}
	if order.Payment.Status != domain.PaymentStatusPaid || order.Payment.IntentID == nil {
		return Order{}, ErrPaymentNotRefundable
	}

	refund, err := s.gateway.CreateRefund(ctx, payments.RefundRequest{
		IntentID:       *order.Payment.IntentID,
		Reason:         strings.TrimSpace(cmd.Reason),
		IdempotencyKey: refundKeyPrefix + order.ID,
		Metadata: map[string]string{
			"orderId": order.ID,
			"userId":  order.UserID,
		},
	})
	if err != nil {
		s.logger(ctx, "payment.refund_failed", map[string]any{
			"orderID": order.ID,
			"error":   err.Error(),
		})
		return Order{}, fmt.Errorf("%w: %v", ErrPaymentGateway, err)
	}

	refunded, err := s.orders.MarkRefunded(ctx, MarkOrderRefundedCommand{
		OrderID:  order.ID,
		RefundID: refund.ID,
		ActorID:  strings.TrimSpace(cmd.ActorID),
		Reason:   strings.TrimSpace(cmd.Reason),
	})
	if err != nil {
		return Order{}, s.translateOrderError(err)
	}

	s.logger(ctx, "payment.refunded", map[string]any{
		"orderID":  refunded.ID,
		"refundID": refund.ID,
	})
	return refunded, nil
}

func (s *paymentService) translateOrderError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrOrderNotFound):
		return ErrPaymentNotFound
	case errors.Is(err, ErrOrderInvalidInput):
		return ErrPaymentInvalidInput
	case errors.Is(err, ErrOrderInvalidTransition):
		return fmt.Errorf("%w: %v", ErrPaymentInvalidInput, err)
	}
	return ErrPaymentUnavailable
}
