package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Order tracks one provider checkout session through fulfillment.
// session_id is provider-assigned and unique: at most one order per
// checkout session, and an order moves fulfilled=false -> true exactly once.
type Order struct {
	ID                uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	SessionID         string         `json:"session_id" gorm:"type:text;not null;uniqueIndex"`
	UserID            string         `json:"user_id" gorm:"type:text;not null;index:ix_orders_entitlement,priority:1"`
	ProductID         string         `json:"product_id" gorm:"type:text;not null;index:ix_orders_entitlement,priority:2"`
	ProviderProductID *string        `json:"provider_product_id,omitempty" gorm:"type:text"`
	CustomerID        *string        `json:"customer_id,omitempty" gorm:"type:text"`
	Items             datatypes.JSON `json:"items,omitempty" gorm:"type:jsonb"`
	Fulfilled         bool           `json:"fulfilled" gorm:"not null;default:false;index:ix_orders_entitlement,priority:3"`
	PaymentStatus     *string        `json:"payment_status,omitempty" gorm:"type:text"`
	AmountTotal       *string        `json:"amount_total,omitempty" gorm:"type:text"`
	Currency          *string        `json:"currency,omitempty" gorm:"type:text"`
	CreatedAt         time.Time      `json:"created_at" gorm:"not null;index:ix_orders_entitlement,priority:4"`
	UpdatedAt         time.Time      `json:"updated_at" gorm:"not null"`
}

func (Order) TableName() string { return "orders" }

// PaymentLog is the durable idempotency ledger: one row per distinct
// inbound webhook event, keyed by the provider event id.
type PaymentLog struct {
	ID           uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	EventType    string         `json:"event_type" gorm:"type:text;not null;index"`
	EventID      string         `json:"event_id" gorm:"type:text;not null;uniqueIndex"`
	SessionID    *string        `json:"session_id,omitempty" gorm:"type:text;index"`
	UserID       *string        `json:"user_id,omitempty" gorm:"type:text;index"`
	RawEvent     datatypes.JSON `json:"raw_event,omitempty" gorm:"type:jsonb"`
	Processed    bool           `json:"processed" gorm:"not null;default:false"`
	ErrorMessage *string        `json:"error_message,omitempty" gorm:"type:text"`
	CreatedAt    time.Time      `json:"created_at" gorm:"not null"`
}

func (PaymentLog) TableName() string { return "payment_logs" }

var (
	ErrNotFound = errors.New("order_not_found")
)
