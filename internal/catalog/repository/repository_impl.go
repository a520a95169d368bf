package repository

import (
	"context"

	"github.com/commercekit/paywall/internal/catalog/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, product *domain.Product) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO products (
			id, name, provider_product_id, provider_price_id,
			price_amount, currency, active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			provider_product_id = excluded.provider_product_id,
			provider_price_id = excluded.provider_price_id,
			price_amount = excluded.price_amount,
			currency = excluded.currency,
			active = excluded.active,
			updated_at = excluded.updated_at`,
		product.ID,
		product.Name,
		product.ProviderProductID,
		product.ProviderPriceID,
		product.PriceAmount,
		product.Currency,
		product.Active,
		product.CreatedAt,
		product.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id string) (*domain.Product, error) {
	var item domain.Product
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM products WHERE id = ? AND active = ? LIMIT 1`,
		id,
		true,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == "" {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindByProviderProductID(ctx context.Context, db *gorm.DB, providerProductID string) (*domain.Product, error) {
	var item domain.Product
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM products WHERE provider_product_id = ? LIMIT 1`,
		providerProductID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == "" {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindAll(ctx context.Context, db *gorm.DB) ([]domain.Product, error) {
	var items []domain.Product
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM products WHERE active = ? ORDER BY id`,
		true,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
