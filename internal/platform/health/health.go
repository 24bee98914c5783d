// Package health exposes liveness and readiness probes.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler serves /health and /health/ready.
type Handler struct {
	db      *gorm.DB
	service string
	checks  map[string]func(ctx context.Context) error
}

// NewHandler creates a Handler checking the database and any extra named dependencies.
func NewHandler(db *gorm.DB, service string) *Handler {
	return &Handler{db: db, service: service, checks: map[string]func(ctx context.Context) error{}}
}

// AddCheck registers an extra readiness check.
func (h *Handler) AddCheck(name string, check func(ctx context.Context) error) {
	h.checks[name] = check
}

// RegisterRoutes mounts the probes on the root router.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Live)
	r.GET("/health/ready", h.Ready)
}

// Live always reports ok while the process serves requests.
func (h *Handler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": h.service})
}

// Ready reports whether every dependency answers within two seconds.
func (h *Handler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	results := gin.H{}
	healthy := true

	if h.db != nil {
		if err := pingDB(ctx, h.db); err != nil {
			results["database"] = err.Error()
			healthy = false
		} else {
			results["database"] = "ok"
		}
	}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			results[name] = err.Error()
			healthy = false
		} else {
			results[name] = "ok"
		}
	}

	status := http.StatusOK
	state := "ready"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "not_ready"
	}
	c.JSON(status, gin.H{"status": state, "service": h.service, "checks": results})
}

func pingDB(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
