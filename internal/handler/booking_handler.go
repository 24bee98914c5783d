package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/reignacare/service-booking/internal/application"
	"github.com/reignacare/service-booking/internal/platform/auth"
	"github.com/reignacare/service-booking/internal/platform/domain"
	"github.com/reignacare/service-booking/internal/platform/middleware"
	"github.com/reignacare/service-booking/internal/platform/response"
)

// BookingService is the part of *application.BookingService the booking routes use.
type BookingService interface {
	CreateBooking(ctx context.Context, clientID uint64, req application.CreateBookingRequest) (*application.BookingDTO, error)
	Transition(ctx context.Context, bookingID, carerID uint64, requested string) (*application.BookingDTO, error)
	GetBooking(ctx context.Context, actor auth.Actor, bookingID uint64) (*application.BookingDTO, error)
	ListClientBookings(ctx context.Context, clientID uint64, page, limit int) (*domain.PaginatedResult[application.BookingDTO], error)
	ListCarerBookings(ctx context.Context, carerID uint64, page, limit int) (*domain.PaginatedResult[application.BookingDTO], error)
	LatestCarerBooking(ctx context.Context, carerID uint64) (*application.BookingDTO, error)
}

// BookingHandler handles HTTP requests for booking operations.
type BookingHandler struct {
	service BookingService
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(service BookingService) *BookingHandler {
	return &BookingHandler{service: service}
}

// RegisterRoutes registers all booking routes on the given router group.
func (h *BookingHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)

	bookings := r.Group("/api/v1/bookings")
	bookings.Use(authMW)
	{
		bookings.POST("", middleware.RequireRole(auth.RoleClient), h.CreateBooking)
		bookings.GET("/client", middleware.RequireRole(auth.RoleClient), h.ListClientBookings)
		bookings.GET("/carer", middleware.RequireRole(auth.RoleCarer), h.ListCarerBookings)
		bookings.GET("/carer/latest", middleware.RequireRole(auth.RoleCarer), h.LatestCarerBooking)
		bookings.GET("/:id", h.GetBooking)
		bookings.PUT("/:id/status", middleware.RequireRole(auth.RoleCarer), h.UpdateStatus)
	}
}

// CreateBooking handles POST /api/v1/bookings.
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req application.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.CreateBooking(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// ListClientBookings handles GET /api/v1/bookings/client.
func (h *BookingHandler) ListClientBookings(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	page, limit := parsePagination(c)
	result, err := h.service.ListClientBookings(c.Request.Context(), userID, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, result.Items, result.Total, result.Page, result.Limit)
}

// ListCarerBookings handles GET /api/v1/bookings/carer.
func (h *BookingHandler) ListCarerBookings(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	page, limit := parsePagination(c)
	result, err := h.service.ListCarerBookings(c.Request.Context(), userID, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, result.Items, result.Total, result.Page, result.Limit)
}

// LatestCarerBooking handles GET /api/v1/bookings/carer/latest. Data is null when the carer has no bookings.
func (h *BookingHandler) LatestCarerBooking(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	result, err := h.service.LatestCarerBooking(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// GetBooking handles GET /api/v1/bookings/:id.
func (h *BookingHandler) GetBooking(c *gin.Context) {
	bookingID, ok := parseID(c)
	if !ok {
		return
	}

	actor, ok := middleware.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	result, err := h.service.GetBooking(c.Request.Context(), actor, bookingID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// UpdateStatus handles PUT /api/v1/bookings/:id/status.
func (h *BookingHandler) UpdateStatus(c *gin.Context) {
	bookingID, ok := parseID(c)
	if !ok {
		return
	}

	carerID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req application.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.Transition(c.Request.Context(), bookingID, carerID, req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// parseID reads the :id path parameter, writing 400 when it is not a positive integer.
func parseID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		response.BadRequest(c, "invalid booking ID")
		return 0, false
	}
	return id, true
}

// parsePagination extracts page and limit query parameters with defaults.
func parsePagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	return page, limit
}
