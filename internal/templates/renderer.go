package templates

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"
)

//go:embed *.html
var templateFS embed.FS

// Email is a rendered message
type Email struct {
	Subject string
	HTML    string
	Text    string
}

// OTPData fills otp_code.html
type OTPData struct {
	Name          string
	Code          string
	ExpiryMinutes int
	Year          int
}

// AlertData fills security_alert.html
type AlertData struct {
	AlertID       string
	IPAddress     string
	AttemptCount  int
	Email         string
	UserAgent     string
	Timestamp     time.Time
	Severity      string
	WindowMinutes int
	Year          int
}

// Critical switches the alert styling
func (a AlertData) Critical() bool {
	return a.Severity == "CRITICAL"
}

// Renderer renders the embedded email templates
type Renderer struct {
	templates map[string]*template.Template
}

func NewRenderer() (*Renderer, error) {
	r := &Renderer{templates: make(map[string]*template.Template)}

	for _, name := range []string{"otp_code", "security_alert"} {
		tmpl, err := template.ParseFS(templateFS, name+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		r.templates[name] = tmpl
	}
	return r, nil
}

func (r *Renderer) execute(name string, data interface{}) (string, error) {
	tmpl, ok := r.templates[name]
	if !ok {
		return "", fmt.Errorf("template %s not loaded", name)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}
	return buf.String(), nil
}

// OTP renders the verification code email
func (r *Renderer) OTP(data OTPData) (*Email, error) {
	if data.Year == 0 {
		data.Year = time.Now().Year()
	}
	html, err := r.execute("otp_code", data)
	if err != nil {
		return nil, err
	}

	text := fmt.Sprintf(`Hello %s,

Your Rentverse verification code is: %s

This code expires in %d minutes. If you did not try to sign in, you can ignore this email.

Rentverse Security`, data.Name, data.Code, data.ExpiryMinutes)

	return &Email{
		Subject: "Your Verification Code - Rentverse",
		HTML:    html,
		Text:    text,
	}, nil
}

// SecurityAlert renders the operator alert for repeated failed logins
func (r *Renderer) SecurityAlert(data AlertData) (*Email, error) {
	if data.Year == 0 {
		data.Year = time.Now().Year()
	}
	html, err := r.execute("security_alert", data)
	if err != nil {
		return nil, err
	}

	text := fmt.Sprintf(`SECURITY ALERT (%s)

Alert ID: %s
Source IP: %s
Failed attempts: %d in the last %d minutes
Target email: %s
User agent: %s
Detected at: %s

Review the activity log and consider banning the source address.`,
		data.Severity, data.AlertID, data.IPAddress, data.AttemptCount, data.WindowMinutes,
		data.Email, data.UserAgent, data.Timestamp.UTC().Format(time.RFC1123))

	return &Email{
		Subject: fmt.Sprintf("Security Alert: %d Failed Login Attempts from %s", data.AttemptCount, data.IPAddress),
		HTML:    html,
		Text:    text,
	}, nil
}
