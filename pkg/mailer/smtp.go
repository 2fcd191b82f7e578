package mailer

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/noah-isme/attendease-api/pkg/config"
)

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPSender delivers through an authenticated SMTP relay (Gmail by default).
type SMTPSender struct {
	dialer  dialer
	from    string
	appName string
	logger  *zap.Logger
}

// NewSMTPSender builds a sender from mail configuration.
func NewSMTPSender(cfg config.MailConfig, logger *zap.Logger) *SMTPSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SMTPSender{
		dialer:  gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:    cfg.From,
		appName: cfg.AppName,
		logger:  logger,
	}
}

// Send renders msg and delivers it. gomail has no context support, so ctx is
// only checked before dialing.
func (s *SMTPSender) Send(ctx context.Context, msg *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := msg.Render(s.appName); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.from, s.appName)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", subjectWithPrefix(s.appName, msg.Subject))
	if msg.Text != "" {
		m.SetBody("text/plain", msg.Text)
	}
	if msg.HTML != "" {
		if msg.Text != "" {
			m.AddAlternative("text/html", msg.HTML)
		} else {
			m.SetBody("text/html", msg.HTML)
		}
	}

	if err := s.dialer.DialAndSend(m); err != nil {
		s.logger.Error("smtp delivery failed", zap.String("to", msg.To), zap.String("template", msg.Template), zap.Error(err))
		return fmt.Errorf("smtp send: %w", err)
	}
	s.logger.Info("email sent", zap.String("to", msg.To), zap.String("template", msg.Template))
	return nil
}
