package domain

import "context"

// DefaultWindowDays is the entitlement window applied when the caller
// does not specify one.
const DefaultWindowDays = 30

// Service answers entitlement queries over fulfilled orders.
type Service interface {
	// HasPaid reports whether the user holds a fulfilled order for the
	// product created within the last windowDays days. windowDays <= 0
	// falls back to DefaultWindowDays.
	HasPaid(ctx context.Context, userID, productID string, windowDays int) (bool, error)
}
