package catalog

import (
	"context"
	"time"

	"github.com/commercekit/paywall/internal/catalog/domain"
	"github.com/commercekit/paywall/internal/config"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SeedFromConfig upserts the configured catalog entries. The catalog is
// reference data owned by configuration; runtime code never writes it.
func SeedFromConfig(db *gorm.DB, cfg config.Config, log *zap.Logger, repo domain.Repository) error {
	now := time.Now().UTC()
	entries := []domain.Product{
		{
			ID:                "1",
			Name:              "Product 1",
			ProviderProductID: cfg.Stripe.ProductID1,
			ProviderPriceID:   cfg.Stripe.PriceID1,
			PriceAmount:       "0",
			Currency:          "usd",
			Active:            true,
			CreatedAt:         now,
			UpdatedAt:         now,
		},
		{
			ID:                "2",
			Name:              "Product 2",
			ProviderProductID: cfg.Stripe.ProductID2,
			ProviderPriceID:   cfg.Stripe.PriceID2,
			PriceAmount:       "0",
			Currency:          "usd",
			Active:            true,
			CreatedAt:         now,
			UpdatedAt:         now,
		},
	}

	for _, entry := range entries {
		if entry.ProviderProductID == "" || entry.ProviderPriceID == "" {
			log.Warn("catalog entry not configured, skipping seed", zap.String("product_id", entry.ID))
			continue
		}
		if err := repo.Upsert(context.Background(), db, &entry); err != nil {
			return err
		}
	}
	return nil
}
