package server

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const maxWebhookBodyBytes = 1 << 20

type createCheckoutRequest struct {
	Quantity int64 `json:"quantity"`
}

func (s *Server) CreateCheckout(c *gin.Context) {
	productID := c.Param("product_id")

	req := createCheckoutRequest{Quantity: 1}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	url, err := s.paymentSvc.CreateCheckout(c.Request.Context(), currentUserID(c), productID, req.Quantity)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (s *Server) OrderStatus(c *gin.Context) {
	productID := c.Param("product_id")
	if _, err := s.catalogSvc.Get(c.Request.Context(), productID); err != nil {
		AbortWithError(c, err)
		return
	}

	windowDays := 0
	if raw := c.Query("window_days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			AbortWithError(c, newValidationError("window_days", "invalid_window_days", "invalid window_days"))
			return
		}
		windowDays = parsed
	}

	hasPaid, err := s.entitlementSvc.HasPaid(c.Request.Context(), currentUserID(c), productID, windowDays)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"hasPaid": hasPaid})
}

// PaymentWebhook receives provider events. The raw body is read before
// any binding so the signature covers exactly the delivered bytes.
func (s *Server) PaymentWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.paymentSvc.ProcessWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (s *Server) ListOrders(c *gin.Context) {
	orders, err := s.orders.ListByUser(c.Request.Context(), s.db, currentUserID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": orders})
}

func (s *Server) ValidateCatalog(c *gin.Context) {
	report, err := s.paymentSvc.ValidateCatalog(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}
