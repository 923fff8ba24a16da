package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"rentverse-backend/internal/middleware"
	"rentverse-backend/internal/models"
	"rentverse-backend/internal/notify"
	"rentverse-backend/internal/services"
)

// AuthService is the subset of services.AuthService the handlers call
type AuthService interface {
	Register(ctx context.Context, in services.RegisterInput, meta services.RequestMeta) (*models.User, error)
	CheckEmail(ctx context.Context, email string) (*services.EmailCheck, error)
	Login(ctx context.Context, email, password string, meta services.RequestMeta) (*services.ChallengeIssued, error)
	VerifyOTP(ctx context.Context, email, code string, meta services.RequestMeta) (*services.Session, error)
	ResendOTP(ctx context.Context, email string, meta services.RequestMeta) (*services.ChallengeIssued, error)
}

type AuthHandlers struct {
	auth   AuthService
	logger *logrus.Logger
}

func NewAuthHandlers(auth AuthService, logger *logrus.Logger) *AuthHandlers {
	return &AuthHandlers{auth: auth, logger: logger}
}

type RegisterRequest struct {
	Email     string      `json:"email"`
	Password  string      `json:"password"`
	FirstName string      `json:"firstName"`
	LastName  string      `json:"lastName"`
	Role      models.Role `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type VerifyRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type EmailRequest struct {
	Email string `json:"email"`
}

func requestMeta(c *gin.Context) services.RequestMeta {
	return services.RequestMeta{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

// Register creates an account. The caller still has to log in with OTP.
func (h *AuthHandlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request format")
		return
	}

	user, err := h.auth.Register(c.Request.Context(), services.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      req.Role,
	}, requestMeta(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "User registered successfully. Please Login to verify.",
		"user": gin.H{
			"id":    user.ID,
			"email": user.Email,
		},
	})
}

// Login checks the password and sends a verification code
func (h *AuthHandlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" {
		badRequest(c, "Email and password are required")
		return
	}

	issued, err := h.auth.Login(c.Request.Context(), req.Email, req.Password, requestMeta(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": deliveryMessage(issued.DeliveryMethod),
		"data": gin.H{
			"requiresOTP":    true,
			"email":          issued.Email,
			"deliveryMethod": issued.DeliveryMethod,
		},
	})
}

// Verify exchanges a valid code for a session token
func (h *AuthHandlers) Verify(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.OTP == "" {
		badRequest(c, "Email and OTP are required")
		return
	}

	session, err := h.auth.VerifyOTP(c.Request.Context(), req.Email, req.OTP, requestMeta(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Login successful!",
		"data": gin.H{
			"token": session.Token,
			"user":  session.User,
		},
	})
}

func (h *AuthHandlers) ResendOTP(c *gin.Context) {
	var req EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" {
		badRequest(c, "Email is required")
		return
	}

	issued, err := h.auth.ResendOTP(c.Request.Context(), req.Email, requestMeta(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"message":        deliveryMessage(issued.DeliveryMethod),
		"deliveryMethod": issued.DeliveryMethod,
	})
}

// CheckEmail never fails for an unknown address
func (h *AuthHandlers) CheckEmail(c *gin.Context) {
	var req EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" {
		badRequest(c, "Email is required")
		return
	}

	check, err := h.auth.CheckEmail(c.Request.Context(), req.Email)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	message := "Email not registered"
	if check.Exists {
		message = "Email found"
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"exists":   check.Exists,
			"isActive": check.IsActive,
			"role":     check.Role,
			"message":  message,
			"user":     check.User,
		},
	})
}

// Me echoes the decoded token claims
func (h *AuthHandlers) Me(c *gin.Context) {
	claims, ok := middleware.GetClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token", "code": "INVALID_TOKEN"})
		return
	}

	data := gin.H{"id": claims.UserID, "role": claims.Role}
	if claims.IssuedAt != nil {
		data["iat"] = claims.IssuedAt.Unix()
	}
	if claims.ExpiresAt != nil {
		data["exp"] = claims.ExpiresAt.Unix()
	}
	c.JSON(http.StatusOK, gin.H{
		"message":   "You have accessed a protected route!",
		"your_data": data,
	})
}

func deliveryMessage(method string) string {
	if method == notify.ChannelConsole {
		return "Verification code generated (check terminal for code in development)"
	}
	return "Verification code sent to your email"
}
