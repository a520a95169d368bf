package service_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	catalogdomain "github.com/commercekit/paywall/internal/catalog/domain"
	"github.com/commercekit/paywall/internal/config"
	orderdomain "github.com/commercekit/paywall/internal/order/domain"
	orderrepository "github.com/commercekit/paywall/internal/order/repository"
	paymentdomain "github.com/commercekit/paywall/internal/payment/domain"
	"github.com/commercekit/paywall/internal/payment/service"
	"github.com/commercekit/paywall/internal/payment/stripe"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const webhookSecret = "whsec_test"

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&orderdomain.Order{}, &orderdomain.PaymentLog{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type fakeCatalog struct {
	products map[string]catalogdomain.Product
	byProv   map[string]string
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		products: map[string]catalogdomain.Product{
			"1": {ID: "1", ProviderProductID: "prod_1", ProviderPriceID: "price_1"},
			"2": {ID: "2", ProviderProductID: "prod_2", ProviderPriceID: "price_2"},
		},
		byProv: map[string]string{"prod_1": "1", "prod_2": "2"},
	}
}

func (f *fakeCatalog) Get(ctx context.Context, id string) (*catalogdomain.Product, error) {
	product, ok := f.products[id]
	if !ok {
		return nil, catalogdomain.ErrUnknownProduct
	}
	return &product, nil
}

func (f *fakeCatalog) List(ctx context.Context) ([]catalogdomain.Product, error) {
	items := make([]catalogdomain.Product, 0, len(f.products))
	for _, id := range []string{"1", "2"} {
		items = append(items, f.products[id])
	}
	return items, nil
}

func (f *fakeCatalog) ResolveProviderProduct(ctx context.Context, providerProductID string) (string, error) {
	return f.byProv[providerProductID], nil
}

type fakeProvider struct {
	retrieveCalls  int
	retrieveErr    error
	sessionProduct string
	createParams   *stripe.CheckoutParams
	missingPrices  map[string]bool
}

func (f *fakeProvider) CreateCheckoutSession(ctx context.Context, params stripe.CheckoutParams) (*stripe.CheckoutSessionDetail, error) {
	f.createParams = &params
	return &stripe.CheckoutSessionDetail{ID: "cs_new", URL: "https://pay.example.com/cs_new"}, nil
}

func (f *fakeProvider) RetrieveCheckoutSession(ctx context.Context, sessionID string) (*stripe.CheckoutSessionDetail, error) {
	f.retrieveCalls++
	if f.retrieveErr != nil {
		return nil, f.retrieveErr
	}
	raw := fmt.Sprintf(`{
		"id": %q,
		"payment_status": "paid",
		"line_items": {"data": [{"price": {"id": "price_x", "product": %q}, "quantity": 1}]}
	}`, sessionID, f.sessionProduct)
	if f.sessionProduct == "" {
		raw = fmt.Sprintf(`{"id": %q, "payment_status": "paid"}`, sessionID)
	}
	var detail stripe.CheckoutSessionDetail
	if err := json.Unmarshal([]byte(raw), &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

func (f *fakeProvider) ProductExists(ctx context.Context, productID string) (bool, error) {
	return true, nil
}

func (f *fakeProvider) PriceExists(ctx context.Context, priceID string) (bool, error) {
	return !f.missingPrices[priceID], nil
}

func testConfig() config.Config {
	return config.Config{
		Stripe: config.StripeConfig{
			SecretKey:     "sk_test",
			WebhookSecret: webhookSecret,
			SuccessURL:    "https://app.example.com/success",
			CancelURL:     "https://app.example.com/cancel",
		},
	}
}

func newTestService(t *testing.T, db *gorm.DB, provider *fakeProvider) paymentdomain.Service {
	t.Helper()
	return service.NewService(service.Params{
		DB:       db,
		Log:      zap.NewNop(),
		Cfg:      testConfig(),
		Orders:   orderrepository.Provide(),
		Catalog:  newFakeCatalog(),
		Provider: provider,
	})
}

func sign(payload []byte) string {
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write([]byte(fmt.Sprintf("1700000000.%s", payload)))
	return "t=1700000000,v1=" + hex.EncodeToString(mac.Sum(nil))
}

func checkoutEvent(t *testing.T, eventID, sessionID, userID, paymentStatus string) []byte {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"id":      eventID,
		"type":    "checkout.session.completed",
		"created": 1700000000,
		"data": map[string]any{
			"object": map[string]any{
				"id":                  sessionID,
				"client_reference_id": userID,
				"customer":            "cus_1",
				"payment_status":      paymentStatus,
				"amount_total":        2900,
				"currency":            "usd",
			},
		},
	})
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return payload
}

func TestProcessWebhookFulfillsPaidCheckout(t *testing.T) {
	db := setupTestDB(t)
	provider := &fakeProvider{sessionProduct: "prod_1"}
	svc := newTestService(t, db, provider)

	payload := checkoutEvent(t, "evt_1", "cs_1", "user-1", "paid")
	if err := svc.ProcessWebhook(context.Background(), payload, sign(payload)); err != nil {
		t.Fatalf("ProcessWebhook: %v", err)
	}

	var order orderdomain.Order
	if err := db.First(&order, "session_id = ?", "cs_1").Error; err != nil {
		t.Fatalf("order not created: %v", err)
	}
	if !order.Fulfilled || order.ProductID != "1" || order.UserID != "user-1" {
		t.Fatalf("unexpected order: %+v", order)
	}

	var log orderdomain.PaymentLog
	if err := db.First(&log, "event_id = ?", "evt_1").Error; err != nil {
		t.Fatalf("payment log not created: %v", err)
	}
	if !log.Processed || log.ErrorMessage != nil {
		t.Fatalf("expected processed log, got %+v", log)
	}
}

func TestProcessWebhookDuplicateEventIsNoOp(t *testing.T) {
	db := setupTestDB(t)
	provider := &fakeProvider{sessionProduct: "prod_1"}
	svc := newTestService(t, db, provider)

	payload := checkoutEvent(t, "evt_1", "cs_1", "user-1", "paid")
	signature := sign(payload)

	if err := svc.ProcessWebhook(context.Background(), payload, signature); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if err := svc.ProcessWebhook(context.Background(), payload, signature); err != nil {
		t.Fatalf("redelivery should be acknowledged, got %v", err)
	}

	if provider.retrieveCalls != 1 {
		t.Fatalf("expected one session expansion, got %d", provider.retrieveCalls)
	}

	var orderCount int64
	db.Model(&orderdomain.Order{}).Count(&orderCount)
	if orderCount != 1 {
		t.Fatalf("expected one order, got %d", orderCount)
	}
	var logCount int64
	db.Model(&orderdomain.PaymentLog{}).Count(&logCount)
	if logCount != 1 {
		t.Fatalf("expected one payment log, got %d", logCount)
	}
}

func TestProcessWebhookRejectedSignatureWritesNothing(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db, &fakeProvider{})

	payload := checkoutEvent(t, "evt_1", "cs_1", "user-1", "paid")
	err := svc.ProcessWebhook(context.Background(), payload, "t=1700000000,v1=deadbeef")
	if !errors.Is(err, paymentdomain.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}

	err = svc.ProcessWebhook(context.Background(), payload, "")
	if !errors.Is(err, paymentdomain.ErrMissingSignature) {
		t.Fatalf("expected ErrMissingSignature, got %v", err)
	}

	var logCount int64
	db.Model(&orderdomain.PaymentLog{}).Count(&logCount)
	if logCount != 0 {
		t.Fatalf("rejected events must not be logged, got %d rows", logCount)
	}
}

func TestProcessWebhookUnmappedProductFulfillsAsUnknown(t *testing.T) {
	db := setupTestDB(t)
	provider := &fakeProvider{sessionProduct: "prod_mystery"}
	svc := newTestService(t, db, provider)

	payload := checkoutEvent(t, "evt_1", "cs_1", "user-1", "paid")
	if err := svc.ProcessWebhook(context.Background(), payload, sign(payload)); err != nil {
		t.Fatalf("ProcessWebhook: %v", err)
	}

	var order orderdomain.Order
	if err := db.First(&order, "session_id = ?", "cs_1").Error; err != nil {
		t.Fatalf("order not created: %v", err)
	}
	if !order.Fulfilled || order.ProductID != service.UnknownProductID {
		t.Fatalf("expected fulfilled unknown-product order, got %+v", order)
	}
}

func TestProcessWebhookUnpaidSessionStaysPending(t *testing.T) {
	db := setupTestDB(t)
	provider := &fakeProvider{sessionProduct: "prod_1"}
	svc := newTestService(t, db, provider)

	payload := checkoutEvent(t, "evt_1", "cs_1", "user-1", "unpaid")
	if err := svc.ProcessWebhook(context.Background(), payload, sign(payload)); err != nil {
		t.Fatalf("ProcessWebhook: %v", err)
	}

	if provider.retrieveCalls != 0 {
		t.Fatalf("unpaid session must not be expanded, got %d calls", provider.retrieveCalls)
	}
	var order orderdomain.Order
	if err := db.First(&order, "session_id = ?", "cs_1").Error; err != nil {
		t.Fatalf("pending order not created: %v", err)
	}
	if order.Fulfilled {
		t.Fatalf("unpaid session must not fulfill: %+v", order)
	}
}

func TestProcessWebhookPaidAfterPendingResolvesProduct(t *testing.T) {
	db := setupTestDB(t)
	provider := &fakeProvider{sessionProduct: "prod_1"}
	svc := newTestService(t, db, provider)

	pending := checkoutEvent(t, "evt_1", "cs_1", "user-1", "unpaid")
	if err := svc.ProcessWebhook(context.Background(), pending, sign(pending)); err != nil {
		t.Fatalf("pending delivery: %v", err)
	}

	paid := checkoutEvent(t, "evt_2", "cs_1", "user-1", "paid")
	if err := svc.ProcessWebhook(context.Background(), paid, sign(paid)); err != nil {
		t.Fatalf("paid delivery: %v", err)
	}

	var order orderdomain.Order
	if err := db.First(&order, "session_id = ?", "cs_1").Error; err != nil {
		t.Fatalf("order not found: %v", err)
	}
	if !order.Fulfilled {
		t.Fatalf("expected paid delivery to fulfill, got %+v", order)
	}
	if order.ProductID != "1" {
		t.Fatalf("fulfillment must carry the resolved product, got %q", order.ProductID)
	}
	if order.ProviderProductID == nil || *order.ProviderProductID != "prod_1" {
		t.Fatalf("expected provider product id recorded, got %+v", order.ProviderProductID)
	}

	var orderCount int64
	db.Model(&orderdomain.Order{}).Count(&orderCount)
	if orderCount != 1 {
		t.Fatalf("paid delivery must fulfill in place, got %d orders", orderCount)
	}
}

func TestProcessWebhookLogOnlyEvent(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db, &fakeProvider{})

	payload := []byte(`{"id":"evt_pi","type":"payment_intent.succeeded","created":1700000000,"data":{"object":{"id":"pi_1"}}}`)
	if err := svc.ProcessWebhook(context.Background(), payload, sign(payload)); err != nil {
		t.Fatalf("ProcessWebhook: %v", err)
	}

	var log orderdomain.PaymentLog
	if err := db.First(&log, "event_id = ?", "evt_pi").Error; err != nil {
		t.Fatalf("payment log not created: %v", err)
	}
	if !log.Processed {
		t.Fatalf("log-only event should be marked processed: %+v", log)
	}
	var orderCount int64
	db.Model(&orderdomain.Order{}).Count(&orderCount)
	if orderCount != 0 {
		t.Fatalf("log-only event must not create orders, got %d", orderCount)
	}
}

func TestProcessWebhookUnhandledTypeAcknowledged(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db, &fakeProvider{})

	payload := []byte(`{"id":"evt_x","type":"invoice.finalized","created":1700000000,"data":{"object":{"id":"in_1"}}}`)
	if err := svc.ProcessWebhook(context.Background(), payload, sign(payload)); err != nil {
		t.Fatalf("unhandled type should be acknowledged, got %v", err)
	}

	var log orderdomain.PaymentLog
	if err := db.First(&log, "event_id = ?", "evt_x").Error; err != nil {
		t.Fatalf("payment log not created: %v", err)
	}
	if !log.Processed {
		t.Fatalf("unhandled event should be marked processed: %+v", log)
	}
}

func TestProcessWebhookRetryAfterTransientFailure(t *testing.T) {
	db := setupTestDB(t)
	provider := &fakeProvider{
		sessionProduct: "prod_1",
		retrieveErr:    fmt.Errorf("%w: provider returned 502", paymentdomain.ErrUpstreamUnavailable),
	}
	svc := newTestService(t, db, provider)

	payload := checkoutEvent(t, "evt_1", "cs_1", "user-1", "paid")
	signature := sign(payload)

	err := svc.ProcessWebhook(context.Background(), payload, signature)
	if !errors.Is(err, paymentdomain.ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}

	var log orderdomain.PaymentLog
	if err := db.First(&log, "event_id = ?", "evt_1").Error; err != nil {
		t.Fatalf("payment log not created: %v", err)
	}
	if log.Processed || log.ErrorMessage == nil {
		t.Fatalf("failed event should carry its error, got %+v", log)
	}

	provider.retrieveErr = nil
	if err := svc.ProcessWebhook(context.Background(), payload, signature); err != nil {
		t.Fatalf("redelivery after transient failure: %v", err)
	}

	var order orderdomain.Order
	if err := db.First(&order, "session_id = ?", "cs_1").Error; err != nil {
		t.Fatalf("order not created on retry: %v", err)
	}
	if !order.Fulfilled {
		t.Fatalf("expected retry to fulfill, got %+v", order)
	}
}

func TestProcessWebhookInvalidPayload(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db, &fakeProvider{})

	payload := []byte(`not json at all`)
	err := svc.ProcessWebhook(context.Background(), payload, sign(payload))
	if !errors.Is(err, paymentdomain.ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload, got %v", err)
	}
}

func TestProcessWebhookNotConfigured(t *testing.T) {
	db := setupTestDB(t)
	svc := service.NewService(service.Params{
		DB:       db,
		Log:      zap.NewNop(),
		Cfg:      config.Config{},
		Orders:   orderrepository.Provide(),
		Catalog:  newFakeCatalog(),
		Provider: &fakeProvider{},
	})

	err := svc.ProcessWebhook(context.Background(), []byte(`{}`), "t=1,v1=x")
	if !errors.Is(err, paymentdomain.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if _, err := svc.CreateCheckout(context.Background(), "user-1", "1", 1); !errors.Is(err, paymentdomain.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestCreateCheckout(t *testing.T) {
	db := setupTestDB(t)
	provider := &fakeProvider{}
	svc := newTestService(t, db, provider)

	url, err := svc.CreateCheckout(context.Background(), "user-1", "1", 2)
	if err != nil {
		t.Fatalf("CreateCheckout: %v", err)
	}
	if url != "https://pay.example.com/cs_new" {
		t.Fatalf("unexpected checkout url %q", url)
	}
	if provider.createParams == nil {
		t.Fatal("provider was not called")
	}
	if provider.createParams.PriceID != "price_1" || provider.createParams.Quantity != 2 {
		t.Fatalf("unexpected params: %+v", provider.createParams)
	}
	if provider.createParams.ClientReferenceID != "user-1" {
		t.Fatalf("expected user id as client reference, got %q", provider.createParams.ClientReferenceID)
	}
	if provider.createParams.Metadata["product_id"] != "1" {
		t.Fatalf("unexpected metadata: %v", provider.createParams.Metadata)
	}
}

func TestCreateCheckoutQuantityBounds(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db, &fakeProvider{})

	for _, quantity := range []int64{0, -1, 11} {
		if _, err := svc.CreateCheckout(context.Background(), "user-1", "1", quantity); !errors.Is(err, paymentdomain.ErrInvalidQuantity) {
			t.Fatalf("quantity %d: expected ErrInvalidQuantity, got %v", quantity, err)
		}
	}
}

func TestCreateCheckoutUnknownProduct(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db, &fakeProvider{})

	if _, err := svc.CreateCheckout(context.Background(), "user-1", "99", 1); !errors.Is(err, catalogdomain.ErrUnknownProduct) {
		t.Fatalf("expected ErrUnknownProduct, got %v", err)
	}
}

func TestValidateCatalog(t *testing.T) {
	db := setupTestDB(t)
	provider := &fakeProvider{missingPrices: map[string]bool{"price_2": true}}
	svc := newTestService(t, db, provider)

	report, err := svc.ValidateCatalog(context.Background())
	if err != nil {
		t.Fatalf("ValidateCatalog: %v", err)
	}
	if report.AllValid {
		t.Fatal("expected report to flag missing price")
	}
	if !report.Products["1"].Exists || !report.Prices["1"].Exists {
		t.Fatalf("product 1 should be valid: %+v", report)
	}
	if report.Prices["2"].Exists {
		t.Fatalf("price 2 should be missing: %+v", report)
	}
}
