// Package email sends trainer notifications over SMTP.
package email

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"mime"
	"mime/multipart"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strings"
)

var ErrNotConfigured = errors.New("email not configured")

type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
	// AppURL is the base URL used for links in notification emails.
	AppURL string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type Service struct {
	config Config
	server string
	auth   smtp.Auth
	send   sendFunc
}

func NewService(config Config) *Service {
	var auth smtp.Auth
	if config.Username != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}
	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
		send:   smtp.SendMail,
	}
}

func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

func (s *Service) link(path string) string {
	return strings.TrimRight(s.config.AppURL, "/") + path
}

// deliver sends a multipart/alternative message with a plain text and an HTML part.
func (s *Service) deliver(to, subject, text, html string) error {
	if !s.IsConfigured() {
		return ErrNotConfigured
	}
	from := (&mail.Address{Name: s.config.FromName, Address: s.config.From}).String()
	if s.config.FromName == "" {
		from = s.config.From
	}

	var body bytes.Buffer
	parts := multipart.NewWriter(&body)
	for _, part := range []struct{ contentType, content string }{
		{"text/plain; charset=UTF-8", text},
		{"text/html; charset=UTF-8", html},
	} {
		w, err := parts.CreatePart(textproto.MIMEHeader{"Content-Type": {part.contentType}})
		if err != nil {
			return err
		}
		if _, err := w.Write([]byte(part.content)); err != nil {
			return err
		}
	}
	if err := parts.Close(); err != nil {
		return err
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", parts.Boundary())
	msg.Write(body.Bytes())

	return s.send(s.server, s.auth, s.config.From, []string{to}, msg.Bytes())
}

type SummaryReadyData struct {
	AppName     string
	TrainerName string
	ClientName  string
	SummaryURL  string
}

type WelcomeData struct {
	AppName     string
	TrainerName string
	LoginURL    string
}

// SendSummaryReadyEmail tells a trainer their client's intake summary has been generated.
func (s *Service) SendSummaryReadyEmail(to, trainerName, clientName string, clientID int64) error {
	data := SummaryReadyData{
		AppName:     "SmartGains",
		TrainerName: trainerName,
		ClientName:  clientName,
		SummaryURL:  s.link(fmt.Sprintf("/clients/%d/summaries", clientID)),
	}
	html, err := render(summaryReadyEmail, data)
	if err != nil {
		return fmt.Errorf("render summary email: %w", err)
	}
	text := fmt.Sprintf("Hi %s,\r\n\r\nThe intake summary for %s is ready: %s\r\n", trainerName, clientName, data.SummaryURL)
	return s.deliver(to, "Intake summary ready for "+clientName, text, html)
}

// SendWelcomeEmail greets a newly registered trainer.
func (s *Service) SendWelcomeEmail(to, trainerName string) error {
	data := WelcomeData{
		AppName:     "SmartGains",
		TrainerName: trainerName,
		LoginURL:    s.link("/login"),
	}
	html, err := render(welcomeEmail, data)
	if err != nil {
		return fmt.Errorf("render welcome email: %w", err)
	}
	text := fmt.Sprintf("Welcome, %s! Sign in at %s\r\n", trainerName, data.LoginURL)
	return s.deliver(to, "Welcome to SmartGains", text, html)
}

var (
	summaryReadyEmail = template.Must(template.New("summary").Parse(summaryReadyEmailTemplate))
	welcomeEmail      = template.Must(template.New("welcome").Parse(welcomeEmailTemplate))
)

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const summaryReadyEmailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.AppName}} intake summary</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #1a8f5a; padding-bottom: 10px; margin-bottom: 20px; }
        .button { display: inline-block; padding: 12px 24px; background: #1a8f5a; color: white; text-decoration: none; border-radius: 4px; margin: 20px 0; }
        .link { word-break: break-all; color: #1a8f5a; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.AppName}}</h1>
    </div>

    <p>Hi {{.TrainerName}},</p>

    <p>The intake summary for <strong>{{.ClientName}}</strong> is ready to review.</p>

    <p>
        <a href="{{.SummaryURL}}" class="button">View Summary</a>
    </p>

    <p class="link">{{.SummaryURL}}</p>
</body>
</html>`

const welcomeEmailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Welcome to {{.AppName}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #1a8f5a; padding-bottom: 10px; margin-bottom: 20px; }
        .button { display: inline-block; padding: 12px 24px; background: #1a8f5a; color: white; text-decoration: none; border-radius: 4px; margin: 20px 0; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.AppName}}</h1>
    </div>

    <h2>Welcome, {{.TrainerName}}!</h2>

    <p>Your trainer account is ready. Add your first client and start an intake form.</p>

    <p>
        <a href="{{.LoginURL}}" class="button">Sign In</a>
    </p>
</body>
</html>`
