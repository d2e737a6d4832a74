// Package mail delivers the sign-in code email through a configurable provider.
package mail

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/aurachatapp/aurachat-premium/internal/config"
)

// Message is a single outbound email with plain-text and HTML bodies.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Mailer sends emails. Implementations must honour ctx cancellation.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New picks the provider named by cfg.MailProvider.
func New(cfg *config.Config, log *zap.Logger) (Mailer, error) {
	switch cfg.MailProvider {
	case "log":
		return NewLogMailer(log), nil
	case "smtp":
		return NewSMTPMailer(SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
			FromName: cfg.MailFromName,
		}), nil
	case "sendgrid":
		if cfg.SendGridAPIKey == "" {
			return nil, fmt.Errorf("SENDGRID_API_KEY is required for the sendgrid mail provider")
		}
		return NewSendGridMailer(cfg.SendGridAPIKey, cfg.MailFrom, cfg.MailFromName), nil
	default:
		return nil, fmt.Errorf("unknown mail provider %q", cfg.MailProvider)
	}
}
