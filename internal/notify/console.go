package notify

import (
	"context"

	"github.com/sirupsen/logrus"
)

// ConsoleProvider writes messages to the log. Only wired in debug mode when
// no real channel is configured.
type ConsoleProvider struct {
	logger *logrus.Logger
}

func NewConsoleProvider(logger *logrus.Logger) *ConsoleProvider {
	return &ConsoleProvider{logger: logger}
}

func (p *ConsoleProvider) Send(_ context.Context, message *Message) (*SendResult, error) {
	p.logger.WithFields(logrus.Fields{
		"to":      message.To,
		"subject": message.Subject,
		"body":    message.Body,
	}).Warn("Email delivery disabled, message written to log")

	return &SendResult{
		ProviderName: ChannelConsole,
		Success:      true,
	}, nil
}

func (p *ConsoleProvider) GetName() string {
	return ChannelConsole
}

func (p *ConsoleProvider) SupportsChannel() string {
	return "EMAIL"
}
