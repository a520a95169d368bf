package domain

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// User mirrors one identity-provider subject. The id is the provider's
// subject claim, not a locally generated key.
type User struct {
	ID        string    `json:"id" gorm:"type:text;primaryKey"`
	Email     *string   `json:"email,omitempty" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null"`
}

func (User) TableName() string { return "users" }

type Repository interface {
	Upsert(ctx context.Context, db *gorm.DB, user *User) error
	FindByID(ctx context.Context, db *gorm.DB, id string) (*User, error)
	FindAll(ctx context.Context, db *gorm.DB) ([]User, error)
	Delete(ctx context.Context, db *gorm.DB, id string) error
}

type Service interface {
	// EnsureUser records the subject on first sight and refreshes the
	// email when the token carries a newer one.
	EnsureUser(ctx context.Context, id, email string) (*User, error)
	Get(ctx context.Context, id string) (*User, error)
	List(ctx context.Context) ([]User, error)
	Delete(ctx context.Context, id string) error
}

var (
	ErrNotFound = errors.New("user_not_found")
)
