package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"rentverse-backend/internal/config"
	"rentverse-backend/internal/events"
	"rentverse-backend/internal/handlers"
	"rentverse-backend/internal/metrics"
	"rentverse-backend/internal/middleware"
	"rentverse-backend/internal/migration"
	"rentverse-backend/internal/models"
	"rentverse-backend/internal/notify"
	"rentverse-backend/internal/repository"
	"rentverse-backend/internal/scheduler"
	"rentverse-backend/internal/services"
	"rentverse-backend/internal/store"
	"rentverse-backend/internal/templates"
)

const serviceName = "rentverse-backend"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	if cfg.IsRelease() {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(logrus.DebugLevel)
	}

	sqlDB, db, err := initDatabase(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database")
	}
	defer sqlDB.Close()

	redisClient := initRedis(cfg, logger)
	defer func() {
		if redisClient != nil {
			redisClient.Close()
		}
	}()

	var (
		challenges store.Store[models.OTPChallenge]
		windows    store.Store[models.FailureWindow]
	)
	if redisClient != nil {
		challenges = store.NewRedisStore[models.OTPChallenge](redisClient, "rentverse:otp:")
		windows = store.NewRedisStore[models.FailureWindow](redisClient, "rentverse:failed_logins:")
		logger.Info("Using Redis for OTP challenges and failed-login windows")
	} else {
		challenges = store.NewMemoryStore[models.OTPChallenge]()
		windows = store.NewMemoryStore[models.FailureWindow]()
		logger.Info("Using in-process store for OTP challenges and failed-login windows")
	}

	var (
		natsClient *events.Client
		publisher  *events.Publisher
	)
	if cfg.NATS.URL != "" {
		natsClient, err = events.NewClient(events.Config{URL: cfg.NATS.URL, Name: serviceName}, logger)
		if err != nil {
			logger.WithError(err).Warn("Failed to initialize NATS, activity streaming disabled")
		} else {
			publisher = events.NewPublisher(natsClient, logger)
			logger.Info("NATS client initialized for activity streaming")
		}
	}
	defer func() {
		if natsClient != nil {
			natsClient.Close()
		}
	}()

	mailer := notify.NewFromConfig(context.Background(), &notify.Config{
		FromAddress:        cfg.Email.FromAddress,
		FromName:           cfg.Email.FromName,
		SendGridAPIKey:     cfg.Email.SendGridAPIKey,
		SMTPHost:           cfg.Email.SMTPHost,
		SMTPPort:           cfg.Email.SMTPPort,
		SMTPUsername:       cfg.Email.SMTPUsername,
		SMTPPassword:       cfg.Email.SMTPPassword,
		SMTPFrom:           cfg.Email.SMTPFrom,
		AWSRegion:          cfg.Email.AWSRegion,
		AWSAccessKeyID:     cfg.Email.AWSAccessKeyID,
		AWSSecretAccessKey: cfg.Email.AWSSecretAccessKey,
		SESFrom:            cfg.Email.SESFrom,
		ConsoleFallback:    !cfg.IsRelease(),
	}, &notify.FailoverConfig{MaxRetries: cfg.Email.MaxRetries, RetryDelay: time.Second}, logger)

	renderer, err := templates.NewRenderer()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load email templates")
	}

	userRepo := repository.NewUserRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	agreementRepo := repository.NewAgreementRepository(db)
	blockedRepo := repository.NewBlockedIPRepository(db)

	var activityPublisher services.ActivityPublisher
	if publisher != nil {
		activityPublisher = publisher
	}
	activityService := services.NewActivityService(activityRepo, activityPublisher, logger)
	detector := services.NewAnomalyDetector(windows, mailer, renderer, userRepo, activityService, cfg.Security, logger)
	tokens := services.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpiryHours, cfg.JWT.Issuer)
	authService := services.NewAuthService(
		userRepo, challenges, services.NewPasswordHasher(), tokens, mailer, renderer,
		detector, activityService, cfg.OTP, logger,
	)
	signatureService := services.NewSignatureService(agreementRepo, activityService, logger)
	securityService := services.NewSecurityService(blockedRepo, detector, activityService, logger)

	maintenance := scheduler.NewScheduler(detector, activityService, cfg.Security, cfg.Retention, logger)
	if err := maintenance.Start(); err != nil {
		logger.WithError(err).Warn("Failed to start maintenance scheduler (continuing without scheduled jobs)")
	}

	checks := map[string]handlers.Check{
		"database": sqlDB.PingContext,
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	router := setupRouter(cfg, logger, &handlers.Routes{
		Auth:        handlers.NewAuthHandlers(authService, logger),
		Agreements:  handlers.NewAgreementHandlers(signatureService, logger),
		Admin:       handlers.NewAdminHandlers(activityService, securityService, time.Duration(cfg.Retention.LogRetentionDays)*24*time.Hour, logger),
		AuthMW:      middleware.NewAuthMiddleware(authService),
		RateLimiter: middleware.NewRateLimiter(cfg.RateLimit.AuthRequestsPerMinute, cfg.RateLimit.AuthBurst),
	}, handlers.NewHealthHandlers(serviceName, checks, maintenance.GetStats), securityService)

	srv := &http.Server{
		Addr:              cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.WithField("addr", srv.Addr).Info("Starting rentverse-backend")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down rentverse-backend...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}
	maintenance.Stop()

	logger.Info("rentverse-backend stopped")
}

// initDatabase opens the pool, applies migrations and wraps it in gorm
func initDatabase(cfg *config.Config, logger *logrus.Logger) (*sql.DB, *gorm.DB, error) {
	sqlDB, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, nil, err
	}

	if err := migration.Run(sqlDB); err != nil {
		sqlDB.Close()
		return nil, nil, err
	}
	logger.Info("Database migrations applied")

	level := gormlogger.Warn
	if !cfg.IsRelease() {
		level = gormlogger.Info
	}
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(level),
	})
	if err != nil {
		sqlDB.Close()
		return nil, nil, err
	}

	logger.WithFields(logrus.Fields{
		"host":     cfg.Database.Host,
		"database": cfg.Database.Name,
	}).Info("Database connection established")
	return sqlDB, db, nil
}

// initRedis returns nil when Redis is disabled or unreachable
func initRedis(cfg *config.Config, logger *logrus.Logger) *redis.Client {
	if !cfg.Redis.Enabled {
		logger.Info("Redis not configured, using in-process state")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Warn("Failed to connect to Redis, using in-process state")
		client.Close()
		return nil
	}

	logger.Info("Redis connection established")
	return client
}

func setupRouter(cfg *config.Config, logger *logrus.Logger, routes *handlers.Routes, health *handlers.HealthHandlers, blocker middleware.BlockChecker) *gin.Engine {
	if cfg.IsRelease() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogging(logger))
	router.Use(metrics.Middleware())
	router.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.BlockedIPGuard(blocker, logger))
	router.Use(middleware.Recovery(logger))

	router.GET("/health", health.Health)
	router.GET("/ready", health.Ready)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	routes.Register(router.Group("/api"))
	routes.Register(router.Group("/api/v1"))

	return router
}
