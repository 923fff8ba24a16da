package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	OTP       OTPConfig       `mapstructure:"otp"`
	Security  SecurityConfig  `mapstructure:"security"`
	Email     EmailConfig     `mapstructure:"email"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Retention RetentionConfig `mapstructure:"retention"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN builds a lib/pq connection string
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpiryHours int    `mapstructure:"expiry_hours"`
	Issuer      string `mapstructure:"issuer"`
}

type OTPConfig struct {
	Length             int `mapstructure:"length"`
	TTLMinutes         int `mapstructure:"ttl_minutes"`
	ResendCooldownSecs int `mapstructure:"resend_cooldown_seconds"`
	MaxAttempts        int `mapstructure:"max_attempts"`
}

func (o OTPConfig) TTL() time.Duration {
	return time.Duration(o.TTLMinutes) * time.Minute
}

func (o OTPConfig) ResendCooldown() time.Duration {
	return time.Duration(o.ResendCooldownSecs) * time.Second
}

// SecurityConfig drives the failed-login anomaly detector
type SecurityConfig struct {
	FailedAttemptsThreshold int    `mapstructure:"failed_attempts_threshold"`
	CriticalThreshold       int    `mapstructure:"critical_threshold"`
	WindowMinutes           int    `mapstructure:"window_minutes"`
	AlertCooldownMinutes    int    `mapstructure:"alert_cooldown_minutes"`
	RetentionHours          int    `mapstructure:"retention_hours"`
	SweepSchedule           string `mapstructure:"sweep_schedule"`
	AlertRecipient          string `mapstructure:"alert_recipient"`
}

func (s SecurityConfig) Window() time.Duration {
	return time.Duration(s.WindowMinutes) * time.Minute
}

func (s SecurityConfig) AlertCooldown() time.Duration {
	return time.Duration(s.AlertCooldownMinutes) * time.Minute
}

func (s SecurityConfig) Retention() time.Duration {
	return time.Duration(s.RetentionHours) * time.Hour
}

type EmailConfig struct {
	FromAddress        string `mapstructure:"from_address"`
	FromName           string `mapstructure:"from_name"`
	SendGridAPIKey     string `mapstructure:"sendgrid_api_key"`
	SMTPHost           string `mapstructure:"smtp_host"`
	SMTPPort           int    `mapstructure:"smtp_port"`
	SMTPUsername       string `mapstructure:"smtp_username"`
	SMTPPassword       string `mapstructure:"smtp_password"`
	SMTPFrom           string `mapstructure:"smtp_from"`
	AWSRegion          string `mapstructure:"aws_region"`
	AWSAccessKeyID     string `mapstructure:"aws_access_key_id"`
	AWSSecretAccessKey string `mapstructure:"aws_secret_access_key"`
	SESFrom            string `mapstructure:"ses_from"`
	MaxRetries         int    `mapstructure:"max_retries"`
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type RetentionConfig struct {
	LogRetentionDays int    `mapstructure:"log_retention_days"`
	CleanupEnabled   bool   `mapstructure:"cleanup_enabled"`
	CleanupSchedule  string `mapstructure:"cleanup_schedule"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	AuthRequestsPerMinute int `mapstructure:"auth_requests_per_minute"`
	AuthBurst             int `mapstructure:"auth_burst"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "5000")
	v.SetDefault("server.mode", "debug")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "dev")
	v.SetDefault("database.password", "devpass")
	v.SetDefault("database.name", "rentverse")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("jwt.secret", "super-secret-key-123")
	v.SetDefault("jwt.expiry_hours", 24)
	v.SetDefault("jwt.issuer", "rentverse-backend")

	v.SetDefault("otp.length", 6)
	v.SetDefault("otp.ttl_minutes", 10)
	v.SetDefault("otp.resend_cooldown_seconds", 60)
	v.SetDefault("otp.max_attempts", 5)

	v.SetDefault("security.failed_attempts_threshold", 10)
	v.SetDefault("security.critical_threshold", 20)
	v.SetDefault("security.window_minutes", 15)
	v.SetDefault("security.alert_cooldown_minutes", 30)
	v.SetDefault("security.retention_hours", 24)
	v.SetDefault("security.sweep_schedule", "0 0 * * * *")
	v.SetDefault("security.alert_recipient", "admin@rentverse.com")

	v.SetDefault("email.from_address", "security@rentverse.com")
	v.SetDefault("email.from_name", "Rentverse Security")
	v.SetDefault("email.smtp_host", "smtp.gmail.com")
	v.SetDefault("email.smtp_port", 587)
	v.SetDefault("email.max_retries", 0)

	v.SetDefault("retention.log_retention_days", 30)
	v.SetDefault("retention.cleanup_enabled", true)
	v.SetDefault("retention.cleanup_schedule", "0 0 3 * * *")

	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000"})

	v.SetDefault("rate_limit.auth_requests_per_minute", 30)
	v.SetDefault("rate_limit.auth_burst", 10)
}

// envBindings maps the deployment's environment variable names onto keys
var envBindings = map[string]string{
	"SERVER_HOST":           "server.host",
	"PORT":                  "server.port",
	"GIN_MODE":              "server.mode",
	"DB_HOST":               "database.host",
	"DB_PORT":               "database.port",
	"DB_USER":               "database.user",
	"DB_PASSWORD":           "database.password",
	"DB_NAME":               "database.name",
	"DB_SSLMODE":            "database.sslmode",
	"REDIS_HOST":            "redis.host",
	"REDIS_PORT":            "redis.port",
	"REDIS_PASSWORD":        "redis.password",
	"JWT_SECRET":            "jwt.secret",
	"ADMIN_EMAIL":           "security.alert_recipient",
	"EMAIL_FROM":            "email.from_address",
	"SENDGRID_API_KEY":      "email.sendgrid_api_key",
	"SMTP_HOST":             "email.smtp_host",
	"EMAIL_USER":            "email.smtp_username",
	"EMAIL_PASS":            "email.smtp_password",
	"AWS_REGION":            "email.aws_region",
	"AWS_ACCESS_KEY_ID":     "email.aws_access_key_id",
	"AWS_SECRET_ACCESS_KEY": "email.aws_secret_access_key",
	"SES_FROM":              "email.ses_from",
	"NATS_URL":              "nats.url",
}

var intEnvBindings = map[string]string{
	"SMTP_PORT":                   "email.smtp_port",
	"REDIS_DB":                    "redis.db",
	"OTP_TTL_MINUTES":             "otp.ttl_minutes",
	"SECURITY_THRESHOLD":          "security.failed_attempts_threshold",
	"SECURITY_WINDOW_MINUTES":     "security.window_minutes",
	"SECURITY_ALERT_COOLDOWN_MIN": "security.alert_cooldown_minutes",
	"LOG_RETENTION_DAYS":          "retention.log_retention_days",
}

// LoadConfig reads defaults, then the environment
func LoadConfig() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for env, key := range envBindings {
		if val := os.Getenv(env); val != "" {
			v.Set(key, val)
		}
	}
	for env, key := range intEnvBindings {
		if val := os.Getenv(env); val != "" {
			n, err := strconv.Atoi(val)
			if err != nil {
				return nil, fmt.Errorf("%s must be an integer: %w", env, err)
			}
			v.Set(key, n)
		}
	}
	if os.Getenv("REDIS_HOST") != "" {
		v.Set("redis.enabled", true)
	}
	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		v.Set("cors.allowed_origins", strings.Split(origins, ","))
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsRelease reports whether gin runs in release mode
func (c *Config) IsRelease() bool {
	return c.Server.Mode == "release"
}

func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.IsRelease() && c.JWT.Secret == "super-secret-key-123" {
		return errors.New("JWT_SECRET must be changed in release mode")
	}
	if c.OTP.Length < 4 || c.OTP.Length > 9 {
		return fmt.Errorf("otp length must be between 4 and 9, got %d", c.OTP.Length)
	}
	if c.OTP.MaxAttempts <= 0 || c.OTP.TTLMinutes <= 0 {
		return errors.New("otp max attempts and ttl must be positive")
	}
	if c.Security.FailedAttemptsThreshold <= 0 || c.Security.WindowMinutes <= 0 {
		return errors.New("security threshold and window must be positive")
	}
	if c.Retention.LogRetentionDays <= 0 {
		return errors.New("log retention days must be positive")
	}
	return nil
}
