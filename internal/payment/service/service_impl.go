package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	catalogdomain "github.com/commercekit/paywall/internal/catalog/domain"
	"github.com/commercekit/paywall/internal/config"
	"github.com/commercekit/paywall/internal/metrics"
	orderdomain "github.com/commercekit/paywall/internal/order/domain"
	paymentdomain "github.com/commercekit/paywall/internal/payment/domain"
	"github.com/commercekit/paywall/internal/payment/stripe"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// UnknownProductID buckets paid sessions whose line item does not map to
// the catalog. Payment received takes priority over catalog consistency.
const UnknownProductID = "unknown"

// Provider is the outbound surface of the payment provider this service
// depends on.
type Provider interface {
	CreateCheckoutSession(ctx context.Context, params stripe.CheckoutParams) (*stripe.CheckoutSessionDetail, error)
	RetrieveCheckoutSession(ctx context.Context, sessionID string) (*stripe.CheckoutSessionDetail, error)
	ProductExists(ctx context.Context, productID string) (bool, error)
	PriceExists(ctx context.Context, priceID string) (bool, error)
}

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Cfg      config.Config
	Orders   orderdomain.Repository
	Catalog  catalogdomain.Service
	Provider Provider
	Metrics  *metrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	cfg      config.StripeConfig
	orders   orderdomain.Repository
	catalog  catalogdomain.Service
	provider Provider
	metrics  *metrics.Metrics
}

func NewService(p Params) paymentdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("payment.service"),
		cfg:      p.Cfg.Stripe,
		orders:   p.Orders,
		catalog:  p.Catalog,
		provider: p.Provider,
		metrics:  p.Metrics,
	}
}

// ProcessWebhook authenticates and applies one inbound provider event.
// The signature check runs before anything else reads the payload; the
// payment_logs ledger makes re-delivery of the same event id a no-op.
func (s *Service) ProcessWebhook(ctx context.Context, payload []byte, signatureHeader string) error {
	if !s.cfg.Configured() {
		return paymentdomain.ErrNotConfigured
	}

	if err := stripe.VerifySignature(payload, signatureHeader, s.cfg.WebhookSecret); err != nil {
		s.log.Warn("webhook signature rejected", zap.Error(err))
		return err
	}

	if !json.Valid(payload) {
		return paymentdomain.ErrInvalidPayload
	}
	event, err := stripe.ParseEvent(payload)
	if err != nil {
		return err
	}

	entry := &orderdomain.PaymentLog{
		ID:        uuid.New(),
		EventType: event.Type,
		EventID:   event.ID,
		RawEvent:  datatypes.JSON(payload),
		CreatedAt: time.Now().UTC(),
	}
	if event.Type == paymentdomain.EventCheckoutCompleted {
		if session, err := stripe.DecodeCheckoutSession(event); err == nil {
			entry.SessionID = &session.ID
			if session.ClientReferenceID != "" {
				ref := session.ClientReferenceID
				entry.UserID = &ref
			}
		}
	}

	inserted, err := s.orders.InsertPaymentLog(ctx, s.db, entry)
	if err != nil {
		return fmt.Errorf("record payment log: %w", err)
	}
	if !inserted {
		existing, err := s.orders.FindPaymentLog(ctx, s.db, event.ID)
		if err != nil {
			return fmt.Errorf("load payment log: %w", err)
		}
		if existing != nil && existing.Processed {
			s.log.Info("duplicate webhook event, skipping",
				zap.String("event_id", event.ID),
				zap.String("event_type", event.Type),
			)
			s.metrics.RecordWebhookEvent(event.Type, "duplicate")
			return nil
		}
		if existing != nil {
			// Re-delivery of an event whose first processing failed;
			// reuse the existing ledger row.
			entry = existing
		}
	}

	if err := s.applyEvent(ctx, entry, event); err != nil {
		s.failLog(ctx, entry, err)
		s.metrics.RecordWebhookEvent(event.Type, "failed")
		return err
	}

	s.metrics.RecordWebhookEvent(event.Type, "processed")
	return nil
}

func (s *Service) applyEvent(ctx context.Context, entry *orderdomain.PaymentLog, event *stripe.Event) error {
	switch event.Type {
	case paymentdomain.EventCheckoutCompleted:
		return s.fulfillCheckout(ctx, entry, event)
	case paymentdomain.EventPaymentSucceeded, paymentdomain.EventSubscriptionCreated:
		return s.orders.MarkLogProcessed(ctx, s.db, entry.ID.String(), nil)
	default:
		s.log.Info("unhandled webhook event type, acknowledging",
			zap.String("event_type", event.Type),
			zap.String("event_id", event.ID),
		)
		return s.orders.MarkLogProcessed(ctx, s.db, entry.ID.String(), nil)
	}
}

func (s *Service) fulfillCheckout(ctx context.Context, entry *orderdomain.PaymentLog, event *stripe.Event) error {
	session, err := stripe.DecodeCheckoutSession(event)
	if err != nil {
		return err
	}

	existing, err := s.orders.FindBySessionID(ctx, s.db, session.ID)
	if err != nil {
		return fmt.Errorf("load order: %w", err)
	}
	if existing != nil && existing.Fulfilled {
		s.log.Info("order already fulfilled, skipping",
			zap.String("session_id", session.ID),
		)
		return s.orders.MarkLogProcessed(ctx, s.db, entry.ID.String(), nil)
	}

	paid := session.PaymentStatus == paymentdomain.PaymentStatusPaid

	productID := UnknownProductID
	var providerProductID *string
	var items datatypes.JSON
	if paid {
		detail, err := s.provider.RetrieveCheckoutSession(ctx, session.ID)
		if err != nil {
			return fmt.Errorf("expand checkout session: %w", err)
		}
		if pid := detail.ProviderProductID(); pid != "" {
			providerProductID = &pid
			mapped, err := s.catalog.ResolveProviderProduct(ctx, pid)
			if err != nil {
				return fmt.Errorf("resolve product: %w", err)
			}
			if mapped != "" {
				productID = mapped
			} else {
				s.log.Warn("paid session for unmapped provider product",
					zap.String("session_id", session.ID),
					zap.String("provider_product_id", pid),
				)
			}
		}
		if raw, err := json.Marshal(detail.LineItems.Data); err == nil {
			items = datatypes.JSON(raw)
		}
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if existing != nil {
			if paid {
				update := orderdomain.FulfillmentUpdate{
					PaymentStatus:     session.PaymentStatus,
					ProductID:         productID,
					ProviderProductID: providerProductID,
					Items:             items,
				}
				if session.AmountTotal > 0 {
					amount := fmt.Sprintf("%d", session.AmountTotal)
					update.AmountTotal = &amount
				}
				if session.Currency != "" {
					currency := session.Currency
					update.Currency = &currency
				}
				if session.Customer != "" {
					customer := session.Customer
					update.CustomerID = &customer
				}
				if err := s.orders.FulfillOrder(ctx, tx, session.ID, update); err != nil {
					return fmt.Errorf("fulfill order: %w", err)
				}
			}
			return s.orders.MarkLogProcessed(ctx, tx, entry.ID.String(), nil)
		}

		now := time.Now().UTC()
		amount := ""
		if session.AmountTotal > 0 {
			amount = fmt.Sprintf("%d", session.AmountTotal)
		}
		row := &orderdomain.Order{
			ID:                uuid.New(),
			SessionID:         session.ID,
			UserID:            session.ClientReferenceID,
			ProductID:         productID,
			ProviderProductID: providerProductID,
			Items:             items,
			Fulfilled:         paid,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if session.PaymentStatus != "" {
			status := session.PaymentStatus
			row.PaymentStatus = &status
		}
		if session.Customer != "" {
			customer := session.Customer
			row.CustomerID = &customer
		}
		if amount != "" {
			row.AmountTotal = &amount
		}
		if session.Currency != "" {
			currency := session.Currency
			row.Currency = &currency
		}

		if err := s.orders.CreateOrder(ctx, tx, row); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		return s.orders.MarkLogProcessed(ctx, tx, entry.ID.String(), nil)
	})
}

// failLog records the failure on the ledger row best-effort; the caller
// still surfaces the error for a transport-level retry.
func (s *Service) failLog(ctx context.Context, entry *orderdomain.PaymentLog, cause error) {
	message := cause.Error()
	if err := s.orders.MarkLogProcessed(ctx, s.db, entry.ID.String(), &message); err != nil {
		s.log.Error("failed to record webhook failure",
			zap.String("event_id", entry.EventID),
			zap.Error(err),
		)
	}
}

// CreateCheckout creates a provider-hosted checkout session for the
// given catalog product. Quantity is bounded 1..10.
func (s *Service) CreateCheckout(ctx context.Context, userID, productID string, quantity int64) (string, error) {
	if !s.cfg.Configured() {
		return "", paymentdomain.ErrNotConfigured
	}
	if quantity < 1 || quantity > 10 {
		return "", paymentdomain.ErrInvalidQuantity
	}

	product, err := s.catalog.Get(ctx, productID)
	if err != nil {
		return "", err
	}

	session, err := s.provider.CreateCheckoutSession(ctx, stripe.CheckoutParams{
		PriceID:           product.ProviderPriceID,
		Quantity:          quantity,
		ClientReferenceID: userID,
		SuccessURL:        s.cfg.SuccessURL,
		CancelURL:         s.cfg.CancelURL,
		Metadata: map[string]string{
			"product_id":          product.ID,
			"provider_product_id": product.ProviderProductID,
			"user_id":             userID,
		},
	})
	if err != nil {
		return "", err
	}

	s.log.Info("checkout session created",
		zap.String("session_id", session.ID),
		zap.String("user_id", userID),
		zap.String("product_id", productID),
	)
	return session.URL, nil
}

// ValidateCatalog checks every configured catalog entry against the
// provider's product and price records.
func (s *Service) ValidateCatalog(ctx context.Context) (*paymentdomain.ValidationReport, error) {
	if !s.cfg.Configured() {
		return nil, paymentdomain.ErrNotConfigured
	}

	products, err := s.catalog.List(ctx)
	if err != nil {
		return nil, err
	}

	report := &paymentdomain.ValidationReport{
		Products: make(map[string]paymentdomain.EntityCheck, len(products)),
		Prices:   make(map[string]paymentdomain.EntityCheck, len(products)),
		AllValid: true,
	}
	for _, product := range products {
		productOK, err := s.provider.ProductExists(ctx, product.ProviderProductID)
		if err != nil {
			return nil, err
		}
		priceOK, err := s.provider.PriceExists(ctx, product.ProviderPriceID)
		if err != nil {
			return nil, err
		}
		report.Products[product.ID] = paymentdomain.EntityCheck{ID: product.ProviderProductID, Exists: productOK}
		report.Prices[product.ID] = paymentdomain.EntityCheck{ID: product.ProviderPriceID, Exists: priceOK}
		if !productOK || !priceOK {
			report.AllValid = false
		}
	}
	return report, nil
}
