package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// BlockChecker reports whether an address is banned
type BlockChecker interface {
	IsBlocked(ctx context.Context, ipAddress string) bool
}

// BlockedIPGuard rejects requests from banned addresses
func BlockedIPGuard(checker BlockChecker, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if checker.IsBlocked(c.Request.Context(), ip) {
			logger.WithFields(logrus.Fields{
				"security_event": true,
				"event_type":     "BLOCKED_IP_REQUEST",
				"ip_address":     ip,
				"path":           c.Request.URL.Path,
			}).Warn("Request from blocked IP rejected")

			c.JSON(http.StatusForbidden, gin.H{
				"error": "Access denied",
				"code":  "IP_BLOCKED",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
