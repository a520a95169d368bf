package service

import (
	"context"
	"strings"

	"github.com/commercekit/paywall/internal/catalog/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo domain.Repository
}

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("catalog.service"),
		repo: p.Repo,
	}
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.ErrUnknownProduct
	}
	product, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, domain.ErrUnknownProduct
	}
	return product, nil
}

func (s *Service) List(ctx context.Context) ([]domain.Product, error) {
	return s.repo.FindAll(ctx, s.db)
}

func (s *Service) ResolveProviderProduct(ctx context.Context, providerProductID string) (string, error) {
	providerProductID = strings.TrimSpace(providerProductID)
	if providerProductID == "" {
		return "", nil
	}
	product, err := s.repo.FindByProviderProductID(ctx, s.db, providerProductID)
	if err != nil {
		return "", err
	}
	if product == nil {
		return "", nil
	}
	return product.ID, nil
}
