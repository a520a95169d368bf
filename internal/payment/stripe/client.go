package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	paymentdomain "github.com/commercekit/paywall/internal/payment/domain"
	"github.com/google/uuid"
)

const defaultBaseURL = "https://api.stripe.com"

// Client is a minimal REST client for the provider operations this
// service needs: checkout sessions and catalog lookups.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 12 * time.Second},
	}
}

// CheckoutParams describes one checkout session to create.
type CheckoutParams struct {
	PriceID           string
	Quantity          int64
	ClientReferenceID string
	SuccessURL        string
	CancelURL         string
	Metadata          map[string]string
}

// CheckoutSessionDetail is the provider's view of a session, expanded
// with its line items so fulfillment can resolve the product.
type CheckoutSessionDetail struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	PaymentStatus string `json:"payment_status"`
	AmountTotal   int64  `json:"amount_total"`
	Currency      string `json:"currency"`
	Customer      string `json:"customer"`
	LineItems     struct {
		Data []struct {
			Price struct {
				ID      string `json:"id"`
				Product string `json:"product"`
			} `json:"price"`
			Quantity int64 `json:"quantity"`
		} `json:"data"`
	} `json:"line_items"`
}

// ProviderProductID returns the provider product id of the first line
// item, or "" when the session carries none.
func (d *CheckoutSessionDetail) ProviderProductID() string {
	if len(d.LineItems.Data) == 0 {
		return ""
	}
	return d.LineItems.Data[0].Price.Product
}

func (c *Client) CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSessionDetail, error) {
	values := url.Values{}
	values.Set("mode", "subscription")
	values.Set("line_items[0][price]", params.PriceID)
	values.Set("line_items[0][quantity]", strconv.FormatInt(params.Quantity, 10))
	values.Set("client_reference_id", params.ClientReferenceID)
	values.Set("success_url", params.SuccessURL)
	values.Set("cancel_url", params.CancelURL)
	for key, value := range params.Metadata {
		values.Set(fmt.Sprintf("metadata[%s]", key), value)
	}

	// Fresh key per attempt: an abandoned checkout retried inside the
	// provider's idempotency window must yield a new session, not a
	// replay of the original.
	idempotencyKey := "checkout-" + uuid.NewString()

	var session CheckoutSessionDetail
	if err := c.doRequest(ctx, http.MethodPost, "/v1/checkout/sessions", values, idempotencyKey, &session); err != nil {
		return nil, err
	}
	if session.ID == "" {
		return nil, fmt.Errorf("%w: empty session in response", paymentdomain.ErrUpstreamUnavailable)
	}
	return &session, nil
}

func (c *Client) RetrieveCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSessionDetail, error) {
	values := url.Values{}
	values.Set("expand[]", "line_items")

	var session CheckoutSessionDetail
	path := "/v1/checkout/sessions/" + url.PathEscape(sessionID) + "?" + values.Encode()
	if err := c.doRequest(ctx, http.MethodGet, path, nil, "", &session); err != nil {
		return nil, err
	}
	if session.ID == "" {
		return nil, fmt.Errorf("%w: empty session in response", paymentdomain.ErrUpstreamUnavailable)
	}
	return &session, nil
}

// ProductExists checks whether the given provider product id resolves.
func (c *Client) ProductExists(ctx context.Context, productID string) (bool, error) {
	return c.entityExists(ctx, "/v1/products/"+url.PathEscape(productID))
}

// PriceExists checks whether the given provider price id resolves.
func (c *Client) PriceExists(ctx context.Context, priceID string) (bool, error) {
	return c.entityExists(ctx, "/v1/prices/"+url.PathEscape(priceID))
}

func (c *Client) entityExists(ctx context.Context, path string) (bool, error) {
	var out struct {
		ID string `json:"id"`
	}
	err := c.doRequest(ctx, http.MethodGet, path, nil, "", &out)
	if err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) && apiErr.status == http.StatusNotFound {
			return false, nil
		}
		return false, err
	}
	return out.ID != "", nil
}

type apiError struct {
	status  int
	message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("stripe: %d %s", e.status, e.message)
}

func (c *Client) doRequest(
	ctx context.Context,
	method string,
	path string,
	values url.Values,
	idempotencyKey string,
	out any,
) error {
	if c.apiKey == "" {
		return paymentdomain.ErrNotConfigured
	}

	var bodyReader *strings.Reader
	if values != nil {
		bodyReader = strings.NewReader(values.Encode())
	} else {
		bodyReader = strings.NewReader("")
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("%w: %v", paymentdomain.ErrUpstreamUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if values != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", paymentdomain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: provider returned %d", paymentdomain.ErrUpstreamUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var providerErr struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&providerErr)
		return &apiError{status: resp.StatusCode, message: strings.TrimSpace(providerErr.Error.Message)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", paymentdomain.ErrUpstreamUnavailable, err)
	}
	return nil
}
