package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/reignacare/service-booking/internal/application"
	"github.com/reignacare/service-booking/internal/platform/auth"
	"github.com/reignacare/service-booking/internal/platform/middleware"
	"github.com/reignacare/service-booking/internal/platform/response"
)

// AdminService is the part of *application.BookingService the admin routes use.
type AdminService interface {
	ListAllBookings(ctx context.Context, page, limit int) ([]application.BookingDTO, int64, error)
	GetBookingStats(ctx context.Context) (*application.BookingStatsDTO, error)
	OverrideStatus(ctx context.Context, bookingID, adminID uint64, requested string) (*application.BookingDTO, error)
}

// AdminBookingHandler handles admin HTTP requests for booking management.
type AdminBookingHandler struct {
	service AdminService
}

// NewAdminBookingHandler creates a new AdminBookingHandler.
func NewAdminBookingHandler(service AdminService) *AdminBookingHandler {
	return &AdminBookingHandler{service: service}
}

// RegisterRoutes registers admin booking routes.
func (h *AdminBookingHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)
	adminRole := middleware.RequireRole(auth.RoleAdmin)

	admin := r.Group("/api/v1/admin")
	admin.Use(authMW, adminRole)
	{
		admin.GET("/bookings", h.ListBookings)
		admin.GET("/stats/bookings", h.BookingStats)
		admin.PUT("/bookings/:id/status", h.OverrideStatus)
	}
}

// ListBookings handles GET /api/v1/admin/bookings.
func (h *AdminBookingHandler) ListBookings(c *gin.Context) {
	page, limit := parsePagination(c)

	bookings, total, err := h.service.ListAllBookings(c.Request.Context(), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, bookings, total, page, limit)
}

// BookingStats handles GET /api/v1/admin/stats/bookings.
func (h *AdminBookingHandler) BookingStats(c *gin.Context) {
	stats, err := h.service.GetBookingStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, stats)
}

// OverrideStatus handles PUT /api/v1/admin/bookings/:id/status.
func (h *AdminBookingHandler) OverrideStatus(c *gin.Context) {
	bookingID, ok := parseID(c)
	if !ok {
		return
	}
	adminID, _ := middleware.GetUserID(c)

	var req application.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.OverrideStatus(c.Request.Context(), bookingID, adminID, req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}
