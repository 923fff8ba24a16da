package handlers

import (
	"github.com/gin-gonic/gin"

	"rentverse-backend/internal/middleware"
)

// Routes groups everything mounted under an API prefix
type Routes struct {
	Auth        *AuthHandlers
	Agreements  *AgreementHandlers
	Admin       *AdminHandlers
	AuthMW      *middleware.AuthMiddleware
	RateLimiter *middleware.RateLimiter
}

// Register mounts the API on group
func (r *Routes) Register(group *gin.RouterGroup) {
	auth := group.Group("/auth")
	{
		public := auth.Group("")
		if r.RateLimiter != nil {
			public.Use(r.RateLimiter.Middleware())
		}
		public.POST("/register", r.Auth.Register)
		public.POST("/login", r.Auth.Login)
		public.POST("/verify", r.Auth.Verify)
		public.POST("/resend-otp", r.Auth.ResendOTP)
		public.POST("/check-email", r.Auth.CheckEmail)

		auth.GET("/me", r.AuthMW.AuthRequired(), r.Auth.Me)
	}

	agreements := group.Group("/agreements")
	agreements.Use(r.AuthMW.AuthRequired())
	{
		agreements.POST("/sign", r.Agreements.Sign)
		agreements.GET("/signature-status/:leaseId", r.Agreements.SignatureStatus)
		agreements.GET("/signature-qr/:leaseId", r.Agreements.SignatureQR)
		agreements.GET("/pending-signatures", r.Agreements.PendingSignatures)
	}

	admin := group.Group("/admin")
	admin.Use(r.AuthMW.AuthRequired(), r.AuthMW.AdminOnly())
	{
		admin.GET("/logs", r.Admin.ListLogs)
		admin.POST("/ban-ip", r.Admin.BanIP)
		admin.DELETE("/logs/cleanup", r.Admin.CleanupLogs)
		admin.GET("/security/ip-status/:ip", r.Admin.IPStatus)

		admin.POST("/agreements/:leaseId/generate", r.Agreements.Generate)
		admin.POST("/agreements/:leaseId/cancel", r.Agreements.Cancel)
		admin.POST("/agreements/:leaseId/reset", r.Agreements.Reset)
	}
}
