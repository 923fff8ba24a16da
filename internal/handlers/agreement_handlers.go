package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"rentverse-backend/internal/middleware"
	"rentverse-backend/internal/models"
	"rentverse-backend/internal/services"
)

// SignatureService is the subset of services.SignatureService the handlers call
type SignatureService interface {
	Sign(ctx context.Context, leaseID, userID uuid.UUID, text string, meta services.RequestMeta) (*services.SignResult, error)
	SignatureStatus(ctx context.Context, leaseID, userID uuid.UUID) (*services.SignatureStatus, error)
	SignatureQR(ctx context.Context, leaseID, userID uuid.UUID, meta services.RequestMeta) (*services.SignatureQR, error)
	PendingForUser(ctx context.Context, userID uuid.UUID) ([]*models.RentalAgreement, error)
	Generate(ctx context.Context, leaseID, adminID uuid.UUID, meta services.RequestMeta) (*models.RentalAgreement, error)
	Cancel(ctx context.Context, leaseID, adminID uuid.UUID, reason string, meta services.RequestMeta) (*models.RentalAgreement, error)
	Reset(ctx context.Context, leaseID, adminID uuid.UUID, meta services.RequestMeta) (*models.RentalAgreement, error)
}

type AgreementHandlers struct {
	signatures SignatureService
	logger     *logrus.Logger
}

func NewAgreementHandlers(signatures SignatureService, logger *logrus.Logger) *AgreementHandlers {
	return &AgreementHandlers{signatures: signatures, logger: logger}
}

// SignRequest accepts either field name for the typed signature
type SignRequest struct {
	LeaseID       string `json:"leaseId"`
	Signature     string `json:"signature"`
	SignatureText string `json:"signatureText"`
}

type CancelRequest struct {
	Reason string `json:"reason"`
}

func (h *AgreementHandlers) Sign(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token", "code": "INVALID_TOKEN"})
		return
	}

	var req SignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request format")
		return
	}
	leaseID, err := uuid.Parse(strings.TrimSpace(req.LeaseID))
	if err != nil {
		badRequest(c, "A valid leaseId is required")
		return
	}
	text := req.Signature
	if strings.TrimSpace(text) == "" {
		text = req.SignatureText
	}

	res, err := h.signatures.Sign(c.Request.Context(), leaseID, userID, text, requestMeta(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"message":          "Agreement signed successfully",
		"status":           res.Status,
		"agreement":        res.Agreement,
		"signatureDetails": res.Details,
	})
}

func (h *AgreementHandlers) SignatureStatus(c *gin.Context) {
	userID, leaseID, ok := h.callerAndLease(c)
	if !ok {
		return
	}

	status, err := h.signatures.SignatureStatus(c.Request.Context(), leaseID, userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": status})
}

func (h *AgreementHandlers) SignatureQR(c *gin.Context) {
	userID, leaseID, ok := h.callerAndLease(c)
	if !ok {
		return
	}

	qr, err := h.signatures.SignatureQR(c.Request.Context(), leaseID, userID, requestMeta(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": qr})
}

// PendingSignatures lists the caller's agreements waiting on one signature
func (h *AgreementHandlers) PendingSignatures(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token", "code": "INVALID_TOKEN"})
		return
	}

	pending, err := h.signatures.PendingForUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if pending == nil {
		pending = []*models.RentalAgreement{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(pending), "data": pending})
}

func (h *AgreementHandlers) Generate(c *gin.Context) {
	adminID, leaseID, ok := h.callerAndLease(c)
	if !ok {
		return
	}

	agreement, err := h.signatures.Generate(c.Request.Context(), leaseID, adminID, requestMeta(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Agreement generated", "data": agreement})
}

func (h *AgreementHandlers) Cancel(c *gin.Context) {
	adminID, leaseID, ok := h.callerAndLease(c)
	if !ok {
		return
	}

	var req CancelRequest
	// the body is optional
	_ = c.ShouldBindJSON(&req)

	agreement, err := h.signatures.Cancel(c.Request.Context(), leaseID, adminID, req.Reason, requestMeta(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Agreement cancelled", "data": agreement})
}

func (h *AgreementHandlers) Reset(c *gin.Context) {
	adminID, leaseID, ok := h.callerAndLease(c)
	if !ok {
		return
	}

	agreement, err := h.signatures.Reset(c.Request.Context(), leaseID, adminID, requestMeta(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Signatures reset", "data": agreement})
}

func (h *AgreementHandlers) callerAndLease(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token", "code": "INVALID_TOKEN"})
		return uuid.Nil, uuid.Nil, false
	}
	leaseID, err := uuid.Parse(c.Param("leaseId"))
	if err != nil {
		badRequest(c, "Invalid lease ID")
		return uuid.Nil, uuid.Nil, false
	}
	return userID, leaseID, true
}
