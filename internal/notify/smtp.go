package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
)

// SMTPProvider sends through an SMTP relay such as Gmail. Port 465 uses
// implicit TLS; any other port goes through STARTTLS via smtp.SendMail.
type SMTPProvider struct {
	host     string
	port     int
	username string
	password string
	from     string
	fromName string
}

func NewSMTPProvider(cfg *Config) *SMTPProvider {
	from := cfg.SMTPFrom
	if from == "" {
		from = cfg.SMTPUsername
	}
	return &SMTPProvider{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		from:     from,
		fromName: cfg.FromName,
	}
}

func (p *SMTPProvider) buildMessage(message *Message) []byte {
	from := p.from
	if p.fromName != "" {
		from = fmt.Sprintf("%q <%s>", p.fromName, p.from)
	}

	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + message.To + "\r\n")
	b.WriteString("Subject: " + message.Subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	if message.ReplyTo != "" {
		b.WriteString("Reply-To: " + message.ReplyTo + "\r\n")
	}
	for k, v := range message.Headers {
		b.WriteString(k + ": " + v + "\r\n")
	}

	body := message.Body
	if message.BodyHTML != "" {
		b.WriteString("Content-Type: text/html; charset=utf-8\r\n")
		body = message.BodyHTML
	} else {
		b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	}
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

func (p *SMTPProvider) Send(ctx context.Context, message *Message) (*SendResult, error) {
	addr := net.JoinHostPort(p.host, strconv.Itoa(p.port))
	auth := smtp.PlainAuth("", p.username, p.password, p.host)
	data := p.buildMessage(message)

	if p.port != 465 {
		if err := smtp.SendMail(addr, auth, p.from, []string{message.To}, data); err != nil {
			return failed(ChannelSMTP, err)
		}
		return p.sent(message), nil
	}

	dialer := &tls.Dialer{Config: &tls.Config{ServerName: p.host}}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return failed(ChannelSMTP, err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, p.host)
	if err != nil {
		return failed(ChannelSMTP, err)
	}
	defer client.Quit()

	if err := client.Auth(auth); err != nil {
		return failed(ChannelSMTP, err)
	}
	if err := client.Mail(p.from); err != nil {
		return failed(ChannelSMTP, err)
	}
	if err := client.Rcpt(message.To); err != nil {
		return failed(ChannelSMTP, err)
	}
	w, err := client.Data()
	if err != nil {
		return failed(ChannelSMTP, err)
	}
	if _, err := w.Write(data); err != nil {
		return failed(ChannelSMTP, err)
	}
	if err := w.Close(); err != nil {
		return failed(ChannelSMTP, err)
	}
	return p.sent(message), nil
}

func (p *SMTPProvider) sent(message *Message) *SendResult {
	return &SendResult{
		ProviderName: ChannelSMTP,
		Success:      true,
		ProviderData: map[string]interface{}{
			"host": p.host,
		},
	}
}

func (p *SMTPProvider) GetName() string {
	return ChannelSMTP
}

func (p *SMTPProvider) SupportsChannel() string {
	return "EMAIL"
}
