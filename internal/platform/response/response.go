// Package response writes the JSON envelope shared by all HTTP handlers.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/reignacare/service-booking/internal/platform/domain"
)

// Envelope is the body of every JSON response.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

// Meta carries pagination details.
type Meta struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"total_pages"`
}

// Success writes a 200 response.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

// Created writes a 201 response.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Envelope{Success: true, Data: data})
}

// Paginated writes a 200 response with pagination metadata.
func Paginated(c *gin.Context, data interface{}, total int64, page, limit int) {
	totalPages := 0
	if limit > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	c.JSON(http.StatusOK, Envelope{
		Success: true,
		Data:    data,
		Meta:    &Meta{Total: total, Page: page, Limit: limit, TotalPages: totalPages},
	})
}

// BadRequest writes a 400 response with the given message.
func BadRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, Envelope{Error: message})
}

// Unauthorized writes a 401 response.
func Unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, Envelope{Error: message})
}

// Forbidden writes a 403 response.
func Forbidden(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusForbidden, Envelope{Error: message})
}

// Error maps a domain error to its HTTP status. Unknown errors become a generic 500.
func Error(c *gin.Context, err error) {
	status := StatusFor(err)
	message := "internal server error"
	if status != http.StatusInternalServerError {
		message = err.Error()
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, Envelope{Error: message})
}

// StatusFor returns the HTTP status code for err.
func StatusFor(err error) int {
	switch domain.KindOf(err) {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindUnauthorized:
		return http.StatusUnauthorized
	case domain.KindInvalidTransition, domain.KindInvalidSignature, domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindAlreadySettled, domain.KindConflict:
		return http.StatusConflict
	case domain.KindDependencyFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
