package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/reignacare/service-booking/internal/application"
	"github.com/reignacare/service-booking/internal/platform/auth"
	"github.com/reignacare/service-booking/internal/platform/middleware"
	"github.com/reignacare/service-booking/internal/platform/response"
)

const (
	// stripeSignatureHeader carries the webhook signature.
	stripeSignatureHeader = "Stripe-Signature"
	// maxWebhookBodyBytes caps the unauthenticated webhook body.
	maxWebhookBodyBytes = 65536
)

// SettlementService is the part of *application.SettlementService the payment routes use.
type SettlementService interface {
	InitiatePayment(ctx context.Context, bookingID, clientID uint64) (*application.PaymentIntentDTO, error)
	CreateCheckoutSession(ctx context.Context, bookingID, clientID uint64) (*application.CheckoutSessionDTO, error)
	ConfirmPayment(ctx context.Context, bookingID, clientID uint64, intentID string) (*application.SettlementResultDTO, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

// PaymentHandler handles HTTP requests for booking payments.
type PaymentHandler struct {
	service SettlementService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(service SettlementService) *PaymentHandler {
	return &PaymentHandler{service: service}
}

// RegisterRoutes registers payment routes. The webhook is unauthenticated; its
// signature is checked by the service.
func (h *PaymentHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	payments := r.Group("/api/v1/payments")
	payments.POST("/stripe/webhook", h.StripeWebhook)

	client := payments.Group("/bookings")
	client.Use(middleware.AuthMiddleware(jwtManager), middleware.RequireRole(auth.RoleClient))
	{
		client.POST("/:id/intent", h.CreateIntent)
		client.POST("/:id/checkout", h.CreateCheckout)
		client.POST("/:id/confirm", h.ConfirmPayment)
	}
}

// CreateIntent handles POST /api/v1/payments/bookings/:id/intent.
func (h *PaymentHandler) CreateIntent(c *gin.Context) {
	bookingID, ok := parseID(c)
	if !ok {
		return
	}
	clientID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	result, err := h.service.InitiatePayment(c.Request.Context(), bookingID, clientID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// CreateCheckout handles POST /api/v1/payments/bookings/:id/checkout.
func (h *PaymentHandler) CreateCheckout(c *gin.Context) {
	bookingID, ok := parseID(c)
	if !ok {
		return
	}
	clientID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	result, err := h.service.CreateCheckoutSession(c.Request.Context(), bookingID, clientID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// ConfirmPayment handles POST /api/v1/payments/bookings/:id/confirm.
func (h *PaymentHandler) ConfirmPayment(c *gin.Context) {
	bookingID, ok := parseID(c)
	if !ok {
		return
	}
	clientID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req application.ConfirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.ConfirmPayment(c.Request.Context(), bookingID, clientID, req.PaymentIntentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// StripeWebhook handles POST /api/v1/payments/stripe/webhook. The body is read
// raw; any re-encoding would break the signature.
func (h *PaymentHandler) StripeWebhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes)
	payload, err := c.GetRawData()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, response.Envelope{Error: "webhook body too large"})
			return
		}
		response.BadRequest(c, "unreadable body")
		return
	}

	if err := h.service.HandleWebhook(c.Request.Context(), payload, c.GetHeader(stripeSignatureHeader)); err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
