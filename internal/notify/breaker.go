package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// BreakerProvider stops calling a channel that keeps failing so the chain
// moves on to the next one without waiting on timeouts.
type BreakerProvider struct {
	next Provider
	cb   *gobreaker.CircuitBreaker
}

// WithBreaker wraps p in a circuit breaker
func WithBreaker(p Provider, logger *logrus.Logger) *BreakerProvider {
	settings := gobreaker.Settings{
		Name:        fmt.Sprintf("email-%s", p.GetName()),
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5 ||
				(counts.Requests >= 10 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if logger == nil {
				return
			}
			logger.WithFields(logrus.Fields{
				"circuit_breaker": name,
				"from":            from.String(),
				"to":              to.String(),
			}).Warn("Circuit breaker state changed")
		},
	}

	return &BreakerProvider{
		next: p,
		cb:   gobreaker.NewCircuitBreaker(settings),
	}
}

func (b *BreakerProvider) Send(ctx context.Context, message *Message) (*SendResult, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		result, err := b.next.Send(ctx, message)
		if err != nil {
			return result, err
		}
		if result == nil || !result.Success {
			return result, fmt.Errorf("%s reported failure", b.next.GetName())
		}
		return result, nil
	})
	if err != nil {
		return failed(b.next.GetName(), err)
	}
	return out.(*SendResult), nil
}

func (b *BreakerProvider) GetName() string {
	return b.next.GetName()
}

func (b *BreakerProvider) SupportsChannel() string {
	return b.next.SupportsChannel()
}

// State exposes the breaker state for health reporting
func (b *BreakerProvider) State() gobreaker.State {
	return b.cb.State()
}
