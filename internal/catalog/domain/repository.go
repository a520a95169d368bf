package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Upsert(ctx context.Context, db *gorm.DB, product *Product) error
	FindByID(ctx context.Context, db *gorm.DB, id string) (*Product, error)
	FindByProviderProductID(ctx context.Context, db *gorm.DB, providerProductID string) (*Product, error)
	FindAll(ctx context.Context, db *gorm.DB) ([]Product, error)
}
