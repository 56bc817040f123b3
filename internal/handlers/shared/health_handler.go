package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger is a dependency the health check pings.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	version string
	checks  map[string]Pinger
}

func NewHealthHandler(version string, checks map[string]Pinger) *HealthHandler {
	return &HealthHandler{version: version, checks: checks}
}

func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			results[name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	state := "healthy"
	if status != http.StatusOK {
		state = "degraded"
	}
	c.JSON(status, gin.H{
		"status":  state,
		"version": h.version,
		"checks":  results,
	})
}
