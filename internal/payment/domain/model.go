package domain

import (
	"context"
	"errors"
)

// Handled webhook event types. Anything else is logged and acknowledged
// without side effects: the provider expects a 200 on receipt.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventPaymentSucceeded    = "payment_intent.succeeded"
	EventSubscriptionCreated = "customer.subscription.created"
)

// Payment status the provider reports on a completed checkout session.
const PaymentStatusPaid = "paid"

// Service is the payment core: webhook ingestion with idempotent order
// fulfillment, checkout session creation, and catalog validation.
type Service interface {
	ProcessWebhook(ctx context.Context, payload []byte, signatureHeader string) error
	CreateCheckout(ctx context.Context, userID, productID string, quantity int64) (string, error)
	ValidateCatalog(ctx context.Context) (*ValidationReport, error)
}

// ValidationReport is the result of checking the configured catalog
// against the provider's records.
type ValidationReport struct {
	Products map[string]EntityCheck `json:"products"`
	Prices   map[string]EntityCheck `json:"prices"`
	AllValid bool                   `json:"all_valid"`
}

type EntityCheck struct {
	ID     string `json:"id"`
	Exists bool   `json:"exists"`
}

var (
	// ErrNotConfigured means payment-provider credentials are missing;
	// surfaced as service-unavailable rather than a request error.
	ErrNotConfigured = errors.New("payment_not_configured")

	ErrMissingSignature = errors.New("missing_webhook_signature")
	ErrInvalidSignature = errors.New("invalid_webhook_signature")
	ErrInvalidPayload   = errors.New("invalid_webhook_payload")

	// ErrUpstreamUnavailable is a transient failure reaching the payment
	// provider; callers retry, they do not treat it as a payment failure.
	ErrUpstreamUnavailable = errors.New("payment_upstream_unavailable")

	ErrInvalidQuantity = errors.New("invalid_quantity")
)
