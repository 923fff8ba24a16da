package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"rentverse-backend/internal/middleware"
	"rentverse-backend/internal/models"
	"rentverse-backend/internal/services"
)

// ActivityService is the admin view of the activity log
type ActivityService interface {
	ListRecent(ctx context.Context, limit int) ([]models.ActivityLogView, error)
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// SecurityService covers IP bans and the anomaly status query
type SecurityService interface {
	BanIP(ctx context.Context, ipAddress string, adminID uuid.UUID, meta services.RequestMeta) (bool, error)
	IPStatus(ctx context.Context, ipAddress string) (*services.SourceStatus, error)
}

type AdminHandlers struct {
	activity      ActivityService
	security      SecurityService
	cleanupMaxAge time.Duration
	logger        *logrus.Logger
}

// NewAdminHandlers creates the admin handlers. cleanupMaxAge is the age
// threshold of the manual cleanup endpoint.
func NewAdminHandlers(activity ActivityService, security SecurityService, cleanupMaxAge time.Duration, logger *logrus.Logger) *AdminHandlers {
	return &AdminHandlers{
		activity:      activity,
		security:      security,
		cleanupMaxAge: cleanupMaxAge,
		logger:        logger,
	}
}

type BanIPRequest struct {
	IPAddress string `json:"ipAddress"`
}

func (h *AdminHandlers) ListLogs(c *gin.Context) {
	limit := services.DefaultActivityLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			badRequest(c, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	logs, err := h.activity.ListRecent(c.Request.Context(), limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Activity Logs retrieved successfully",
		"count":   len(logs),
		"logs":    logs,
	})
}

func (h *AdminHandlers) BanIP(c *gin.Context) {
	adminID, _ := middleware.GetUserID(c)

	var req BanIPRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.IPAddress == "" {
		badRequest(c, "IP Address is required")
		return
	}

	banned, err := h.security.BanIP(c.Request.Context(), req.IPAddress, adminID, requestMeta(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if !banned {
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "IP is already banned"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": fmt.Sprintf("IP %s has been banned.", req.IPAddress),
	})
}

func (h *AdminHandlers) CleanupLogs(c *gin.Context) {
	deleted, err := h.activity.Cleanup(c.Request.Context(), h.cleanupMaxAge)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"count":   deleted,
		"message": fmt.Sprintf("Cleaned up %d logs.", deleted),
	})
}

func (h *AdminHandlers) IPStatus(c *gin.Context) {
	status, err := h.security.IPStatus(c.Request.Context(), c.Param("ip"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": status})
}
