package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Check probes one dependency
type Check func(ctx context.Context) error

type HealthHandlers struct {
	service string
	checks  map[string]Check
	stats   func() map[string]interface{}
}

// NewHealthHandlers creates the health handlers. checks are run by Ready;
// stats, if set, is reported by Health.
func NewHealthHandlers(service string, checks map[string]Check, stats func() map[string]interface{}) *HealthHandlers {
	return &HealthHandlers{service: service, checks: checks, stats: stats}
}

func (h *HealthHandlers) Health(c *gin.Context) {
	body := gin.H{"status": "healthy", "service": h.service}
	if h.stats != nil {
		body["scheduler"] = h.stats()
	}
	c.JSON(http.StatusOK, body)
}

// Ready reports 503 when any dependency check fails
func (h *HealthHandlers) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	results := gin.H{}
	ready := true
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			results[name] = "unavailable"
			ready = false
			continue
		}
		results[name] = "ok"
	}

	if !ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "service": h.service, "checks": results})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "service": h.service, "checks": results})
}
