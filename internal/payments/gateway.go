package payments

import (
	"context"
	"time"
)

// Status enumerates the normalised gateway states for a payment intent.
type Status string

const (
	// StatusPending indicates the payment is awaiting customer action or gateway confirmation.
	StatusPending Status = "pending"
	// StatusSucceeded indicates the gateway reports the payment as successfully captured.
	StatusSucceeded Status = "succeeded"
	// StatusFailed indicates the gateway reports a terminal failure.
	StatusFailed Status = "failed"
	// StatusRefunded indicates the payment has been refunded.
	StatusRefunded Status = "refunded"
)

// CreateIntentRequest captures the payload required to open a payment intent.
// Amount is in the smallest currency unit.
type CreateIntentRequest struct {
	Amount         int64
	Currency       string
	Metadata       map[string]string
	IdempotencyKey string
}

// Intent is the gateway handle handed back to the client for completion.
type Intent struct {
	ID           string
	ClientSecret string
	Amount       int64
	Currency     string
	Status       Status
}

// RefundRequest defines a gateway refund attempt. The idempotency key makes a
// retried request a no-op at the gateway.
type RefundRequest struct {
	IntentID       string
	Reason         string
	Metadata       map[string]string
	IdempotencyKey string
}

// Refund is the gateway's record of a completed refund.
type Refund struct {
	ID       string
	IntentID string
	Amount   int64
	Status   string
}

// IntentDetails normalises the gateway's view of an intent for reconciliation.
type IntentDetails struct {
	IntentID   string
	Status     Status
	RawStatus  string
	Amount     int64
	Currency   string
	CapturedAt *time.Time
	RefundedAt *time.Time
}

// Gateway defines the contract payment reconciliation depends on.
type Gateway interface {
	CreateIntent(ctx context.Context, req CreateIntentRequest) (Intent, error)
	RetrieveIntent(ctx context.Context, intentID string) (IntentDetails, error)
	CreateRefund(ctx context.Context, req RefundRequest) (Refund, error)
}
