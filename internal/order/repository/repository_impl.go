package repository

import (
	"context"
	"time"

	"github.com/commercekit/paywall/internal/order/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertPaymentLog(ctx context.Context, db *gorm.DB, log *domain.PaymentLog) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO payment_logs (
			id, event_type, event_id, session_id, user_id, raw_event,
			processed, error_message, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (event_id) DO NOTHING`,
		log.ID,
		log.EventType,
		log.EventID,
		log.SessionID,
		log.UserID,
		log.RawEvent,
		log.Processed,
		log.ErrorMessage,
		log.CreatedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindPaymentLog(ctx context.Context, db *gorm.DB, eventID string) (*domain.PaymentLog, error) {
	var item domain.PaymentLog
	err := db.WithContext(ctx).Raw(
		`SELECT id, event_type, event_id, session_id, user_id, raw_event,
			processed, error_message, created_at
		 FROM payment_logs
		 WHERE event_id = ?
		 LIMIT 1`,
		eventID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.EventID == "" {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) MarkLogProcessed(ctx context.Context, db *gorm.DB, id string, errMessage *string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE payment_logs
		 SET processed = ?, error_message = ?
		 WHERE id = ?`,
		errMessage == nil,
		errMessage,
		id,
	).Error
}

func (r *repo) CreateOrder(ctx context.Context, db *gorm.DB, order *domain.Order) error {
	return db.WithContext(ctx).Create(order).Error
}

func (r *repo) FindBySessionID(ctx context.Context, db *gorm.DB, sessionID string) (*domain.Order, error) {
	var item domain.Order
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM orders WHERE session_id = ? LIMIT 1`,
		sessionID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.SessionID == "" {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FulfillOrder(ctx context.Context, db *gorm.DB, sessionID string, update domain.FulfillmentUpdate) error {
	return db.WithContext(ctx).Exec(
		`UPDATE orders
		 SET fulfilled = ?, payment_status = ?, product_id = ?,
			provider_product_id = COALESCE(?, provider_product_id),
			items = COALESCE(?, items),
			amount_total = COALESCE(?, amount_total),
			currency = COALESCE(?, currency),
			customer_id = COALESCE(?, customer_id),
			updated_at = ?
		 WHERE session_id = ? AND fulfilled = ?`,
		true,
		update.PaymentStatus,
		update.ProductID,
		update.ProviderProductID,
		update.Items,
		update.AmountTotal,
		update.Currency,
		update.CustomerID,
		time.Now().UTC(),
		sessionID,
		false,
	).Error
}

func (r *repo) ListByUser(ctx context.Context, db *gorm.DB, userID string) ([]domain.Order, error) {
	var items []domain.Order
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM orders WHERE user_id = ? ORDER BY created_at DESC`,
		userID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) HasFulfilledSince(ctx context.Context, db *gorm.DB, userID, productID string, since time.Time) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM orders
		 WHERE user_id = ? AND product_id = ? AND fulfilled = ? AND created_at >= ?`,
		userID,
		productID,
		true,
		since,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
