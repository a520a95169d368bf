package service

import (
	"context"
	"time"

	"github.com/commercekit/paywall/internal/entitlement/domain"
	orderdomain "github.com/commercekit/paywall/internal/order/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Orders orderdomain.Repository
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	orders orderdomain.Repository
}

func NewService(p Params) domain.Service {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("entitlement.service"),
		orders: p.Orders,
	}
}

func (s *Service) HasPaid(ctx context.Context, userID, productID string, windowDays int) (bool, error) {
	if windowDays <= 0 {
		windowDays = domain.DefaultWindowDays
	}
	since := time.Now().UTC().AddDate(0, 0, -windowDays)
	return s.orders.HasFulfilledSince(ctx, s.db, userID, productID, since)
}
