// Package notify renders and sends account and pricing emails.
package notify

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"pricing-service/config"
	"pricing-service/internal/models"
	"pricing-service/internal/util"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

//go:embed templates/*.html
var templateFS embed.FS

// Template names
const (
	TemplateWelcome       = "welcome"
	TemplateResetPassword = "reset-password"
	TemplatePriceUpdate   = "price-update"
	TemplateWeeklyReport  = "weekly-report"
)

var subjects = map[string]string{
	TemplateWelcome:       "Welcome to Autoprofitor!",
	TemplateResetPassword: "Reset Your Password",
	TemplatePriceUpdate:   "Price Optimization Complete",
	TemplateWeeklyReport:  "Your Weekly Pricing Report",
}

// Sender delivers one rendered HTML message
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// SMTPSender sends through an SMTP relay
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		from:   cfg.User,
	}
}

// Send dials per message. gomail has no context support, so ctx is only
// checked before dialing.
func (s *SMTPSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", m.FormatAddress(s.from, "Autoprofitor"))
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)

	return s.dialer.DialAndSend(m)
}

// Mailer renders templates and hands them to a Sender
type Mailer struct {
	sender      Sender
	templates   *template.Template
	frontendURL string
	logger      *zap.Logger
}

// NewMailer parses the embedded templates
func NewMailer(sender Sender, frontendURL string) (*Mailer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}
	return &Mailer{
		sender:      sender,
		templates:   tmpl,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		logger:      util.GetLogger(),
	}, nil
}

type emailData struct {
	Name          string
	Link          string
	ProductCount  int
	FailedCount   int
	AverageChange float64
	Summary       models.PerformanceSummary
}

// Render returns the subject and HTML body for a template
func (m *Mailer) Render(name string, data interface{}) (string, string, error) {
	subject, ok := subjects[name]
	if !ok {
		return "", "", fmt.Errorf("unknown email template: %s", name)
	}

	var buf bytes.Buffer
	if err := m.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", "", fmt.Errorf("failed to render %s: %w", name, err)
	}
	return subject, buf.String(), nil
}

func (m *Mailer) send(ctx context.Context, to, name string, data emailData) error {
	ctx, span := util.StartSpan(ctx, "Mailer.Send")
	defer span.End()

	subject, body, err := m.Render(name, data)
	if err != nil {
		return err
	}

	if err := m.sender.Send(ctx, to, subject, body); err != nil {
		util.EmailsSentTotal.WithLabelValues(name, "failed").Inc()
		m.logger.Error("Email sending failed",
			zap.String("template", name),
			zap.String("to", to),
			zap.Error(err))
		return fmt.Errorf("send %s email: %w", name, err)
	}

	util.EmailsSentTotal.WithLabelValues(name, "sent").Inc()
	m.logger.Info("Email sent", zap.String("template", name), zap.String("to", to))
	return nil
}

func (m *Mailer) SendWelcome(ctx context.Context, to, name string) error {
	return m.send(ctx, to, TemplateWelcome, emailData{
		Name: name,
		Link: m.frontendURL + "/connect-store",
	})
}

func (m *Mailer) SendPasswordReset(ctx context.Context, to, name, resetLink string) error {
	return m.send(ctx, to, TemplateResetPassword, emailData{
		Name: name,
		Link: resetLink,
	})
}

func (m *Mailer) SendPriceUpdate(ctx context.Context, to, name string, productCount, failedCount int, averageChange float64) error {
	return m.send(ctx, to, TemplatePriceUpdate, emailData{
		Name:          name,
		Link:          m.frontendURL + "/products",
		ProductCount:  productCount,
		FailedCount:   failedCount,
		AverageChange: averageChange,
	})
}

func (m *Mailer) SendWeeklyReport(ctx context.Context, to, name string, summary models.PerformanceSummary) error {
	return m.send(ctx, to, TemplateWeeklyReport, emailData{
		Name:    name,
		Link:    m.frontendURL + "/dashboard",
		Summary: summary,
	})
}
