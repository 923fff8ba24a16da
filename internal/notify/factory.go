package notify

import (
	"context"

	"github.com/sirupsen/logrus"
)

// NewFromConfig ranks the configured channels SendGrid, SMTP, SES and wraps
// each one in a circuit breaker.
func NewFromConfig(ctx context.Context, cfg *Config, failover *FailoverConfig, logger *logrus.Logger) *FailoverProvider {
	var providers []Provider

	if cfg.SendGridEnabled() {
		providers = append(providers, WithBreaker(NewSendGridProvider(cfg), logger))
	}
	if cfg.SMTPEnabled() {
		providers = append(providers, WithBreaker(NewSMTPProvider(cfg), logger))
	}
	if cfg.SESEnabled() {
		sesProvider, err := NewSESProvider(ctx, cfg)
		if err != nil {
			logger.WithError(err).Warn("SES provider unavailable, continuing without it")
		} else {
			providers = append(providers, WithBreaker(sesProvider, logger))
		}
	}

	if len(providers) == 0 && cfg.ConsoleFallback {
		providers = append(providers, NewConsoleProvider(logger))
	}

	chain := NewFailoverProvider(providers, failover, logger)
	logger.WithField("providers", chain.GetName()).Info("Email delivery chain configured")
	return chain
}
