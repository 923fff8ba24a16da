// Package notify delivers transactional email through a ranked list of
// channels, falling back to the next channel when one fails.
package notify

import (
	"context"
)

// Channel names reported as the delivery method
const (
	ChannelSendGrid = "sendgrid"
	ChannelSMTP     = "smtp"
	ChannelSES      = "ses"
	ChannelConsole  = "console"
)

// Provider is a single delivery channel
type Provider interface {
	Send(ctx context.Context, message *Message) (*SendResult, error)
	GetName() string
	SupportsChannel() string
}

// Message is an outgoing email
type Message struct {
	To       string
	Subject  string
	Body     string
	BodyHTML string
	From     string
	FromName string
	ReplyTo  string
	Headers  map[string]string
	Metadata map[string]interface{}
}

// SendResult describes the outcome of a delivery attempt
type SendResult struct {
	ProviderID   string
	ProviderName string
	Success      bool
	Error        error
	ProviderData map[string]interface{}
}

func failed(provider string, err error) (*SendResult, error) {
	return &SendResult{
		ProviderName: provider,
		Success:      false,
		Error:        err,
	}, err
}

// Config holds credentials for every supported channel. A channel is enabled
// when its credentials are present.
type Config struct {
	FromAddress string
	FromName    string

	SendGridAPIKey string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	SESFrom            string

	// ConsoleFallback writes messages to the log when no channel is configured
	ConsoleFallback bool
}

func (c *Config) SendGridEnabled() bool {
	return c.SendGridAPIKey != ""
}

func (c *Config) SMTPEnabled() bool {
	return c.SMTPHost != "" && c.SMTPUsername != "" && c.SMTPPassword != ""
}

func (c *Config) SESEnabled() bool {
	return c.AWSRegion != "" && c.SESFrom != ""
}
