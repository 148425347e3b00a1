package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	domain "github.com/foodbuddy/api/internal/domain"
	"github.com/foodbuddy/api/internal/payments"
)

func newPaymentServiceForTest(t *testing.T, orders PaymentOrders, gateway payments.Gateway, minCharge int64) PaymentService {
	t.Helper()
	service, err := NewPaymentService(PaymentServiceDeps{
		Orders:        orders,
		Gateway:       gateway,
		MinimumCharge: minCharge,
		Currency:      "INR",
		Clock:         testClock,
	})
	if err != nil {
		t.Fatalf("NewPaymentService: %v", err)
	}
	return service
}

func paidOrder(intentID string) Order {
	order := Order{
		ID:     "ord-1",
		UserID: "user-1",
		Status: domain.OrderStatusConfirmed,
		Totals: OrderTotals{Total: 2459},
		Payment: domain.OrderPayment{
			Method: domain.PaymentMethodCard,
			Status: domain.PaymentStatusPaid,
		},
	}
	if intentID != "" {
		order.Payment.IntentID = &intentID
	}
	return order
}

func TestPaymentServiceCreateIntentClampsBelowMinimum(t *testing.T) {
	order := paidOrder("")
	order.Payment.Status = domain.PaymentStatusPending
	attachedIntent := ""
	orders := &stubPaymentOrders{
		getFunc: func(ctx context.Context, orderID string) (Order, error) { return order, nil },
		attachFunc: func(ctx context.Context, orderID string, intentID string) (Order, error) {
			attachedIntent = intentID
			return order, nil
		},
	}
	var captured payments.CreateIntentRequest
	gateway := &stubGateway{createFunc: func(ctx context.Context, req payments.CreateIntentRequest) (payments.Intent, error) {
		captured = req
		return payments.Intent{ID: "pi_1", ClientSecret: "secret_1", Amount: req.Amount, Currency: req.Currency}, nil
	}}
	service := newPaymentServiceForTest(t, orders, gateway, 5000)

	result, err := service.CreateIntent(context.Background(), CreatePaymentIntentCommand{OrderID: "ord-1", UserID: "user-1"})
	if err != nil {
		t.Fatalf("CreateIntent: %v", err)
	}
	if result.Amount != 5000 || !result.AmountAdjusted {
		t.Fatalf("result = %+v, want clamped amount 5000 with adjustment flag", result)
	}
	if result.Currency != "inr" {
		t.Fatalf("currency = %q, want inr", result.Currency)
	}
	if captured.Amount != 5000 {
		t.Fatalf("gateway amount = %d, want 5000", captured.Amount)
	}
	if captured.Metadata["orderId"] != "ord-1" || captured.Metadata["userId"] != "user-1" {
		t.Fatalf("metadata = %+v", captured.Metadata)
	}
	if attachedIntent != "pi_1" {
		t.Fatalf("attached intent = %q, want pi_1", attachedIntent)
	}
}

func TestPaymentServiceCreateIntentNoAdjustmentAboveMinimum(t *testing.T) {
	order := paidOrder("")
	orders := &stubPaymentOrders{
		getFunc:    func(ctx context.Context, orderID string) (Order, error) { return order, nil },
		attachFunc: func(ctx context.Context, orderID string, intentID string) (Order, error) { return order, nil },
	}
	service := newPaymentServiceForTest(t, orders, &stubGateway{}, 50)

	result, err := service.CreateIntent(context.Background(), CreatePaymentIntentCommand{OrderID: "ord-1"})
	if err != nil {
		t.Fatalf("CreateIntent: %v", err)
	}
	if result.Amount != 2459 || result.AmountAdjusted {
		t.Fatalf("result = %+v, want order total without adjustment", result)
	}
}

func TestPaymentServiceCreateIntentForeignOrder(t *testing.T) {
	orders := &stubPaymentOrders{getFunc: func(ctx context.Context, orderID string) (Order, error) {
		return paidOrder(""), nil
	}}
	service := newPaymentServiceForTest(t, orders, &stubGateway{}, 50)

	_, err := service.CreateIntent(context.Background(), CreatePaymentIntentCommand{OrderID: "ord-1", UserID: "intruder"})
	if !errors.Is(err, ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}
}

func TestPaymentServiceCreateIntentGatewayFailure(t *testing.T) {
	orders := &stubPaymentOrders{getFunc: func(ctx context.Context, orderID string) (Order, error) {
		return paidOrder(""), nil
	}}
	gateway := &stubGateway{createFunc: func(ctx context.Context, req payments.CreateIntentRequest) (payments.Intent, error) {
		return payments.Intent{}, errors.New("gateway timeout")
	}}
	service := newPaymentServiceForTest(t, orders, gateway, 50)

	_, err := service.CreateIntent(context.Background(), CreatePaymentIntentCommand{OrderID: "ord-1"})
	if !errors.Is(err, ErrPaymentGateway) {
		t.Fatalf("expected ErrPaymentGateway, got %v", err)
	}
}

func TestPaymentServiceConfirmPaymentMarksPaid(t *testing.T) {
	order := paidOrder("pi_1")
	order.Payment.Status = domain.PaymentStatusPending
	var paidCmd MarkOrderPaidCommand
	orders := &stubPaymentOrders{
		getFunc: func(ctx context.Context, orderID string) (Order, error) { return order, nil },
		markPaidFunc: func(ctx context.Context, cmd MarkOrderPaidCommand) (Order, error) {
			paidCmd = cmd
			confirmed := order
			confirmed.Payment.Status = domain.PaymentStatusPaid
			return confirmed, nil
		},
	}
	service := newPaymentServiceForTest(t, orders, &stubGateway{}, 50)

	confirmed, err := service.ConfirmPayment(context.Background(), ConfirmPaymentCommand{OrderID: "ord-1", IntentID: "pi_1"})
	if err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}
	if confirmed.Payment.Status != domain.PaymentStatusPaid {
		t.Fatalf("payment = %s, want paid", confirmed.Payment.Status)
	}
	if paidCmd.OrderID != "ord-1" || paidCmd.IntentID != "pi_1" {
		t.Fatalf("mark paid command = %+v", paidCmd)
	}
}

func TestPaymentServiceConfirmPaymentRejectsMismatchedIntent(t *testing.T) {
	orders := &stubPaymentOrders{getFunc: func(ctx context.Context, orderID string) (Order, error) {
		return paidOrder("pi_1"), nil
	}}
	service := newPaymentServiceForTest(t, orders, &stubGateway{}, 50)

	_, err := service.ConfirmPayment(context.Background(), ConfirmPaymentCommand{OrderID: "ord-1", IntentID: "pi_other"})
	if !errors.Is(err, ErrPaymentInvalidInput) {
		t.Fatalf("expected ErrPaymentInvalidInput, got %v", err)
	}
}

func TestPaymentServiceConfirmPaymentRequiresSucceededIntent(t *testing.T) {
	marked := false
	orders := &stubPaymentOrders{
		getFunc: func(ctx context.Context, orderID string) (Order, error) { return paidOrder("pi_1"), nil },
		markPaidFunc: func(ctx context.Context, cmd MarkOrderPaidCommand) (Order, error) {
			marked = true
			return Order{}, nil
		},
	}
	gateway := &stubGateway{retrieveFunc: func(ctx context.Context, intentID string) (payments.IntentDetails, error) {
		return payments.IntentDetails{IntentID: intentID, Status: payments.StatusPending, RawStatus: "requires_payment_method"}, nil
	}}
	service := newPaymentServiceForTest(t, orders, gateway, 50)

	_, err := service.ConfirmPayment(context.Background(), ConfirmPaymentCommand{OrderID: "ord-1", IntentID: "pi_1"})
	if !errors.Is(err, ErrPaymentNotSucceeded) {
		t.Fatalf("expected ErrPaymentNotSucceeded, got %v", err)
	}
	if !strings.Contains(err.Error(), "requires_payment_method") {
		t.Fatalf("gateway status missing from error: %v", err)
	}
	if marked {
		t.Fatal("order must not be marked paid for an unsettled intent")
	}
}

func TestPaymentServiceRefundUsesDerivedIdempotencyKey(t *testing.T) {
	order := paidOrder("pi_1")
	var refundedCmd MarkOrderRefundedCommand
	orders := &stubPaymentOrders{
		getFunc: func(ctx context.Context, orderID string) (Order, error) { return order, nil },
		markRefundedFunc: func(ctx context.Context, cmd MarkOrderRefundedCommand) (Order, error) {
			refundedCmd = cmd
			refunded := order
			refunded.Payment.Status = domain.PaymentStatusRefunded
			refunded.Status = domain.OrderStatusCancelled
			return refunded, nil
		},
	}
	var captured payments.RefundRequest
	gateway := &stubGateway{refundFunc: func(ctx context.Context, req payments.RefundRequest) (payments.Refund, error) {
		captured = req
		return payments.Refund{ID: "re_1", IntentID: req.IntentID, Status: "succeeded"}, nil
	}}
	service := newPaymentServiceForTest(t, orders, gateway, 50)

	refunded, err := service.Refund(context.Background(), RefundPaymentCommand{OrderID: "ord-1", Reason: "restaurant closed"})
	if err != nil {
		t.Fatalf("Refund: %v", err)
	}
	if captured.IdempotencyKey != "refund_ord-1" {
		t.Fatalf("idempotency key = %q, want refund_ord-1", captured.IdempotencyKey)
	}
	if captured.IntentID != "pi_1" {
		t.Fatalf("intent = %q, want pi_1", captured.IntentID)
	}
	if refundedCmd.RefundID != "re_1" || refundedCmd.Reason != "restaurant closed" {
		t.Fatalf("mark refunded command = %+v", refundedCmd)
	}
	if refunded.Payment.Status != domain.PaymentStatusRefunded {
		t.Fatalf("payment = %s, want refunded", refunded.Payment.Status)
	}
}

func TestPaymentServiceRefundAlreadyRefunded(t *testing.T) {
	order := paidOrder("pi_1")
	order.Payment.Status = domain.PaymentStatusRefunded
	orders := &stubPaymentOrders{getFunc: func(ctx context.Context, orderID string) (Order, error) {
		return order, nil
	}}
	gateway := &stubGateway{}
	service := newPaymentServiceForTest(t, orders, gateway, 50)

	_, err := service.Refund(context.Background(), RefundPaymentCommand{OrderID: "ord-1"})
	if !errors.Is(err, ErrPaymentAlreadyRefunded) {
		t.Fatalf("expected ErrPaymentAlreadyRefunded, got %v", err)
	}
	if gateway.refundCalls != 0 {
		t.Fatalf("gateway refund called %d times, want 0", gateway.refundCalls)
	}
}

func TestPaymentServiceRefundRequiresSettledCardPayment(t *testing.T) {
	cases := []struct {
		name  string
		order Order
	}{
		{"pending cash order", Order{ID: "ord-1", UserID: "user-1", Payment: domain.OrderPayment{Method: domain.PaymentMethodCash, Status: domain.PaymentStatusPending}}},
		{"paid without intent", paidOrder("")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			orders := &stubPaymentOrders{getFunc: func(ctx context.Context, orderID string) (Order, error) {
				return tc.order, nil
			}}
			service := newPaymentServiceForTest(t, orders, &stubGateway{}, 50)

			if _, err := service.Refund(context.Background(), RefundPaymentCommand{OrderID: "ord-1"}); !errors.Is(err, ErrPaymentNotRefundable) {
				t.Fatalf("expected ErrPaymentNotRefundable, got %v", err)
			}
		})
	}
}

func TestPaymentServiceTranslatesOrderErrors(t *testing.T) {
	cases := []struct {
		name string
		in   error
		want error
	}{
		{"not found", ErrOrderNotFound, ErrPaymentNotFound},
		{"invalid input", ErrOrderInvalidInput, ErrPaymentInvalidInput},
		{"invalid transition", ErrOrderInvalidTransition, ErrPaymentInvalidInput},
		{"unavailable", ErrOrderUnavailable, ErrPaymentUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			orders := &stubPaymentOrders{getFunc: func(ctx context.Context, orderID string) (Order, error) {
				return Order{}, tc.in
			}}
			service := newPaymentServiceForTest(t, orders, &stubGateway{}, 50)

			if _, err := service.CreateIntent(context.Background(), CreatePaymentIntentCommand{OrderID: "ord-1"}); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}
