package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrNoProviders is returned when the failover chain is empty
var ErrNoProviders = errors.New("no email providers configured")

// FailoverConfig configures retries within each provider
type FailoverConfig struct {
	MaxRetries int
	RetryDelay time.Duration
}

// FailoverProvider tries providers in rank order and returns the first success
type FailoverProvider struct {
	providers  []Provider
	maxRetries int
	retryDelay time.Duration
	logger     *logrus.Logger
}

// NewFailoverProvider builds a chain; the first provider is primary
func NewFailoverProvider(providers []Provider, cfg *FailoverConfig, logger *logrus.Logger) *FailoverProvider {
	if cfg == nil {
		cfg = &FailoverConfig{}
	}
	if logger == nil {
		logger = logrus.New()
	}

	valid := make([]Provider, 0, len(providers))
	for _, p := range providers {
		if p != nil {
			valid = append(valid, p)
		}
	}

	return &FailoverProvider{
		providers:  valid,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		logger:     logger,
	}
}

// Send delivers message through the first provider that succeeds
func (f *FailoverProvider) Send(ctx context.Context, message *Message) (*SendResult, error) {
	if len(f.providers) == 0 {
		return failed("failover", ErrNoProviders)
	}

	start := time.Now()
	var lastErr error
	var allErrors []string

	for i, provider := range f.providers {
		name := provider.GetName()

		for attempt := 0; attempt <= f.maxRetries; attempt++ {
			if err := ctx.Err(); err != nil {
				return failed("failover", err)
			}
			if attempt > 0 {
				select {
				case <-ctx.Done():
					return failed("failover", ctx.Err())
				case <-time.After(f.retryDelay):
				}
			}

			result, err := provider.Send(ctx, message)
			if err == nil && result != nil && result.Success {
				if result.ProviderData == nil {
					result.ProviderData = make(map[string]interface{})
				}
				result.ProviderName = name
				result.ProviderData["failover_attempts"] = i + 1
				result.ProviderData["failover_total_duration"] = time.Since(start).String()
				if i > 0 {
					f.logger.WithFields(logrus.Fields{
						"provider": name,
						"position": i + 1,
					}).Warn("Email delivered by fallback provider")
				}
				return result, nil
			}

			if err == nil && result != nil {
				err = result.Error
			}
			if err == nil {
				err = errors.New("send failed without error")
			}
			lastErr = err
			allErrors = append(allErrors, fmt.Sprintf("%s: %v", name, err))
			f.logger.WithError(err).WithFields(logrus.Fields{
				"provider": name,
				"attempt":  attempt + 1,
			}).Warn("Email provider failed")
		}
	}

	summary := strings.Join(allErrors, "; ")
	result := &SendResult{
		ProviderName: "failover",
		Success:      false,
		Error:        lastErr,
		ProviderData: map[string]interface{}{
			"all_errors": allErrors,
			"duration":   time.Since(start).String(),
		},
	}
	return result, fmt.Errorf("all email providers failed: %s", summary)
}

// GetName returns the chain in rank order, e.g. failover(sendgrid->smtp)
func (f *FailoverProvider) GetName() string {
	names := make([]string, len(f.providers))
	for i, p := range f.providers {
		names[i] = p.GetName()
	}
	if len(names) == 0 {
		return "failover(none)"
	}
	return fmt.Sprintf("failover(%s)", strings.Join(names, "->"))
}

func (f *FailoverProvider) SupportsChannel() string {
	return "EMAIL"
}

// Providers returns the configured chain
func (f *FailoverProvider) Providers() []Provider {
	return f.providers
}
