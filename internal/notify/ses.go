package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// SESProvider is the optional last-resort channel
type SESProvider struct {
	client   *ses.Client
	from     string
	fromName string
}

// NewSESProvider uses static credentials when given, otherwise the default chain
func NewSESProvider(ctx context.Context, cfg *Config) (*SESProvider, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.AWSRegion),
	}
	if cfg.AWSAccessKeyID != "" && cfg.AWSSecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &SESProvider{
		client:   ses.NewFromConfig(awsCfg),
		from:     cfg.SESFrom,
		fromName: cfg.FromName,
	}, nil
}

func utf8Content(s string) *types.Content {
	return &types.Content{Charset: aws.String("UTF-8"), Data: aws.String(s)}
}

func (p *SESProvider) Send(ctx context.Context, message *Message) (*SendResult, error) {
	source := p.from
	if p.fromName != "" {
		source = fmt.Sprintf("%s <%s>", p.fromName, p.from)
	}

	body := &types.Body{}
	if message.BodyHTML != "" {
		body.Html = utf8Content(message.BodyHTML)
	}
	if message.Body != "" {
		body.Text = utf8Content(message.Body)
	}

	input := &ses.SendEmailInput{
		Source:      aws.String(source),
		Destination: &types.Destination{ToAddresses: []string{message.To}},
		Message: &types.Message{
			Subject: utf8Content(message.Subject),
			Body:    body,
		},
	}
	if message.ReplyTo != "" {
		input.ReplyToAddresses = []string{message.ReplyTo}
	}

	out, err := p.client.SendEmail(ctx, input)
	if err != nil {
		return failed(ChannelSES, fmt.Errorf("SES send failed: %w", err))
	}

	return &SendResult{
		ProviderID:   aws.ToString(out.MessageId),
		ProviderName: ChannelSES,
		Success:      true,
	}, nil
}

func (p *SESProvider) GetName() string {
	return ChannelSES
}

func (p *SESProvider) SupportsChannel() string {
	return "EMAIL"
}
