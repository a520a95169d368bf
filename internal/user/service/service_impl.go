package service

import (
	"context"
	"strings"
	"time"

	"github.com/commercekit/paywall/internal/user/domain"
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

func NewService(p Params) domain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("user.service"),
		repo: p.Repo,
	}
}

func (s *Service) EnsureUser(ctx context.Context, id, email string) (*domain.User, error) {
	now := time.Now().UTC()
	user := &domain.User{
		ID:        id,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if trimmed := strings.TrimSpace(email); trimmed != "" {
		user.Email = &trimmed
	}
	if err := s.repo.Upsert(ctx, s.db, user); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, s.db, id)
}

func (s *Service) Get(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrNotFound
	}
	return user, nil
}

func (s *Service) List(ctx context.Context) ([]domain.User, error) {
	return s.repo.FindAll(ctx, s.db)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	user, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return err
	}
	if user == nil {
		return domain.ErrNotFound
	}
	return s.repo.Delete(ctx, s.db, id)
}
