package mailer

import (
	"go.uber.org/zap"

	"github.com/noah-isme/attendease-api/pkg/config"
)

// New picks the driver named in cfg.Driver.
func New(cfg config.MailConfig, logger *zap.Logger) Sender {
	if cfg.Driver == config.MailDriverSMTP {
		return NewSMTPSender(cfg, logger)
	}
	return NewConsoleSender(cfg.AppName, logger)
}
