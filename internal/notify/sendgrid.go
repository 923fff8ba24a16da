package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendGridProvider is the primary transactional channel
type SendGridProvider struct {
	client   *sendgrid.Client
	from     string
	fromName string
}

func NewSendGridProvider(cfg *Config) *SendGridProvider {
	return &SendGridProvider{
		client:   sendgrid.NewSendClient(cfg.SendGridAPIKey),
		from:     cfg.FromAddress,
		fromName: cfg.FromName,
	}
}

func (p *SendGridProvider) Send(ctx context.Context, message *Message) (*SendResult, error) {
	from := mail.NewEmail(p.fromName, p.from)
	if message.From != "" {
		from = mail.NewEmail(message.FromName, message.From)
	}
	to := mail.NewEmail("", message.To)

	m := mail.NewSingleEmail(from, message.Subject, to, message.Body, message.BodyHTML)
	if message.ReplyTo != "" {
		m.SetReplyTo(mail.NewEmail("", message.ReplyTo))
	}
	for k, v := range message.Headers {
		m.SetHeader(k, v)
	}

	// Codes and alerts must not be rewritten by tracking links
	tracking := mail.NewTrackingSettings()
	click := mail.NewClickTrackingSetting()
	click.SetEnable(false)
	click.SetEnableText(false)
	tracking.SetClickTracking(click)
	open := mail.NewOpenTrackingSetting()
	open.SetEnable(false)
	tracking.SetOpenTracking(open)
	m.SetTrackingSettings(tracking)

	response, err := p.client.SendWithContext(ctx, m)
	if err != nil {
		return failed(ChannelSendGrid, err)
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return failed(ChannelSendGrid, fmt.Errorf("SendGrid API error: %d", response.StatusCode))
	}

	var messageID string
	if ids, ok := response.Headers["X-Message-Id"]; ok && len(ids) > 0 {
		messageID = ids[0]
	}
	return &SendResult{
		ProviderID:   messageID,
		ProviderName: ChannelSendGrid,
		Success:      true,
		ProviderData: map[string]interface{}{
			"status_code": response.StatusCode,
		},
	}, nil
}

func (p *SendGridProvider) GetName() string {
	return ChannelSendGrid
}

func (p *SendGridProvider) SupportsChannel() string {
	return "EMAIL"
}
