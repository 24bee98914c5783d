package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/reignacare/service-booking/internal/application"
	"github.com/reignacare/service-booking/internal/platform/auth"
	"github.com/reignacare/service-booking/internal/platform/middleware"
	"github.com/reignacare/service-booking/internal/platform/response"
)

// CarerService is the part of *application.BookingService the carer self-service routes use.
type CarerService interface {
	ListCarerNotifications(ctx context.Context, carerID uint64) ([]application.NotificationDTO, error)
	WeeklyEarnings(ctx context.Context, carerID uint64, now time.Time) (*application.WeeklyEarningsDTO, error)
	UpdateCarerPushToken(ctx context.Context, carerID uint64, token string) error
}

// CarerHandler handles the signed-in carer's own resources.
type CarerHandler struct {
	service CarerService
	now     func() time.Time
}

// NewCarerHandler creates a new CarerHandler.
func NewCarerHandler(service CarerService) *CarerHandler {
	return &CarerHandler{service: service, now: time.Now}
}

// RegisterRoutes registers carer routes.
func (h *CarerHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	me := r.Group("/api/v1/carers/me")
	me.Use(middleware.AuthMiddleware(jwtManager), middleware.RequireRole(auth.RoleCarer))
	{
		me.GET("/notifications", h.ListNotifications)
		me.GET("/earnings/weekly", h.WeeklyEarnings)
		me.PUT("/push-token", h.UpdatePushToken)
	}
}

// ListNotifications handles GET /api/v1/carers/me/notifications.
func (h *CarerHandler) ListNotifications(c *gin.Context) {
	carerID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	result, err := h.service.ListCarerNotifications(c.Request.Context(), carerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// WeeklyEarnings handles GET /api/v1/carers/me/earnings/weekly.
func (h *CarerHandler) WeeklyEarnings(c *gin.Context) {
	carerID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	result, err := h.service.WeeklyEarnings(c.Request.Context(), carerID, h.now())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// UpdatePushToken handles PUT /api/v1/carers/me/push-token.
func (h *CarerHandler) UpdatePushToken(c *gin.Context) {
	carerID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req application.PushTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.service.UpdateCarerPushToken(c.Request.Context(), carerID, req.Token); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"updated": true})
}
