package domain

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// FulfillmentUpdate carries the fields resolved when a session turns
// out paid: the expanded line items and the catalog attribution. A
// pending order is stored before expansion, so fulfillment must write
// these, not just flip the flag.
type FulfillmentUpdate struct {
	PaymentStatus     string
	ProductID         string
	ProviderProductID *string
	Items             datatypes.JSON
	AmountTotal       *string
	Currency          *string
	CustomerID        *string
}

type Repository interface {
	// InsertPaymentLog inserts the log row unless a row with the same
	// event_id already exists; the bool reports whether the insert won.
	InsertPaymentLog(ctx context.Context, db *gorm.DB, log *PaymentLog) (bool, error)
	FindPaymentLog(ctx context.Context, db *gorm.DB, eventID string) (*PaymentLog, error)
	MarkLogProcessed(ctx context.Context, db *gorm.DB, id string, errMessage *string) error

	CreateOrder(ctx context.Context, db *gorm.DB, order *Order) error
	FindBySessionID(ctx context.Context, db *gorm.DB, sessionID string) (*Order, error)
	FulfillOrder(ctx context.Context, db *gorm.DB, sessionID string, update FulfillmentUpdate) error
	ListByUser(ctx context.Context, db *gorm.DB, userID string) ([]Order, error)

	// HasFulfilledSince reports whether any fulfilled order exists for
	// the user/product pair created at or after the cutoff.
	HasFulfilledSince(ctx context.Context, db *gorm.DB, userID, productID string, since time.Time) (bool, error)
}
