package domain

import (
	"context"
	"errors"
	"time"
)

// Product maps an internal product identifier to the payment provider's
// product and price ids. Reference data: owned by configuration, read-only
// at runtime.
type Product struct {
	ID                string    `json:"id" gorm:"type:text;primaryKey"`
	Name              string    `json:"name" gorm:"type:text;not null"`
	ProviderProductID string    `json:"provider_product_id" gorm:"type:text;not null;uniqueIndex"`
	ProviderPriceID   string    `json:"provider_price_id" gorm:"type:text;not null;uniqueIndex"`
	PriceAmount       string    `json:"price_amount" gorm:"type:text;not null"`
	Currency          string    `json:"currency" gorm:"type:text;not null;default:usd"`
	Active            bool      `json:"active" gorm:"not null;default:true"`
	CreatedAt         time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt         time.Time `json:"updated_at" gorm:"not null"`
}

func (Product) TableName() string { return "products" }

type Service interface {
	Get(ctx context.Context, id string) (*Product, error)
	List(ctx context.Context) ([]Product, error)

	// ResolveProviderProduct maps a provider-side product id back to the
	// internal catalog id; returns "" when the product is not in the
	// catalog (callers decide whether that is an error).
	ResolveProviderProduct(ctx context.Context, providerProductID string) (string, error)
}

var (
	ErrUnknownProduct = errors.New("unknown_product")
)
