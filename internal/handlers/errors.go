package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"rentverse-backend/internal/services"
)

type apiError struct {
	status  int
	code    string
	message string
}

var errorTable = []struct {
	err error
	apiError
}{
	{services.ErrEmailRequired, apiError{http.StatusBadRequest, "VALIDATION_ERROR", "Email is required"}},
	{services.ErrPasswordTooShort, apiError{http.StatusBadRequest, "VALIDATION_ERROR", "Password must be at least 6 characters long"}},
	{services.ErrSignatureRequired, apiError{http.StatusBadRequest, "VALIDATION_ERROR", "Signature text is required"}},
	{services.ErrInvalidIP, apiError{http.StatusBadRequest, "VALIDATION_ERROR", "A valid IP address is required"}},
	{services.ErrInvalidCredentials, apiError{http.StatusBadRequest, "INVALID_CREDENTIALS", "Invalid email or password"}},
	{services.ErrUserExists, apiError{http.StatusBadRequest, "USER_EXISTS", "User already exists"}},
	{services.ErrNoChallenge, apiError{http.StatusBadRequest, "OTP_NOT_FOUND", "No verification code found. Please login again."}},
	{services.ErrChallengeExpired, apiError{http.StatusBadRequest, "OTP_EXPIRED", "Verification code has expired. Please login again."}},
	{services.ErrAttemptsExceeded, apiError{http.StatusBadRequest, "OTP_ATTEMPTS_EXCEEDED", "Too many failed attempts. Please login again."}},
	{services.ErrInvalidOTP, apiError{http.StatusBadRequest, "INVALID_OTP", "Invalid verification code"}},
	{services.ErrOTPDeliveryFailed, apiError{http.StatusInternalServerError, "OTP_DELIVERY_FAILED", "Failed to send verification code. Please try again."}},
	{services.ErrAgreementNotFound, apiError{http.StatusNotFound, "AGREEMENT_NOT_FOUND", "Agreement not found"}},
	{services.ErrLeaseNotFound, apiError{http.StatusNotFound, "LEASE_NOT_FOUND", "Lease not found"}},
	{services.ErrNotParty, apiError{http.StatusForbidden, "NOT_A_PARTY", "Unauthorized: You are not a party to this agreement."}},
	{services.ErrAlreadyFinalized, apiError{http.StatusBadRequest, "AGREEMENT_FINALIZED", "Agreement is already finalized"}},
	{services.ErrAlreadySigned, apiError{http.StatusBadRequest, "ALREADY_SIGNED", "You have already signed this agreement"}},
	{services.ErrAgreementExists, apiError{http.StatusConflict, "AGREEMENT_EXISTS", "Agreement already exists for this lease"}},
}

// respondError writes the taxonomy response for err. Unknown errors are
// logged and answered with a generic 500.
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	var cooldown *services.CooldownError
	if errors.As(err, &cooldown) {
		c.JSON(http.StatusBadRequest, gin.H{
			"success":       false,
			"error":         "Please wait before requesting a new code",
			"code":          "OTP_COOLDOWN",
			"message":       fmt.Sprintf("Please wait %d seconds before requesting a new code", cooldown.Seconds()),
			"remainingTime": cooldown.Seconds(),
		})
		return
	}

	for _, e := range errorTable {
		if errors.Is(err, e.err) {
			if e.status >= http.StatusInternalServerError {
				logger.WithError(err).WithField("path", c.Request.URL.Path).Error(e.message)
			}
			c.JSON(e.status, gin.H{"success": false, "error": e.message, "code": e.code})
			return
		}
	}

	logger.WithError(err).WithFields(logrus.Fields{
		"path":   c.Request.URL.Path,
		"method": c.Request.Method,
	}).Error("Unhandled error")
	c.JSON(http.StatusInternalServerError, gin.H{
		"success": false,
		"error":   "Internal server error",
		"code":    "INTERNAL_ERROR",
	})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": message, "code": "VALIDATION_ERROR"})
}
