package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reignacare/service-booking/internal/platform/domain"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", domain.NewNotFoundError("Booking", "1"), http.StatusNotFound},
		{"forbidden", domain.NewForbiddenError("no"), http.StatusForbidden},
		{"invalid transition", domain.NewInvalidTransitionError("pending", "started"), http.StatusBadRequest},
		{"invalid signature", domain.NewInvalidSignatureError(errors.New("bad")), http.StatusBadRequest},
		{"already settled", domain.NewAlreadySettledError(1), http.StatusConflict},
		{"validation", domain.NewValidationError("bad"), http.StatusBadRequest},
		{"conflict", domain.NewConflictError("race"), http.StatusConflict},
		{"unauthorized", domain.NewUnauthorizedError("who"), http.StatusUnauthorized},
		{"dependency", domain.NewDependencyError("stripe", errors.New("down")), http.StatusBadGateway},
		{"wrapped", fmt.Errorf("outer: %w", domain.NewNotFoundError("Carer", "2")), http.StatusNotFound},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}

func TestError_HidesInternalMessages(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Error(c, errors.New("pq: connection refused"))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var body Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "internal server error", body.Error)
}

func TestPaginated_ComputesTotalPages(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Paginated(c, []int{1, 2}, 41, 1, 20)

	var body Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotNil(t, body.Meta)
	assert.Equal(t, 3, body.Meta.TotalPages)
	assert.Equal(t, int64(41), body.Meta.Total)
}
