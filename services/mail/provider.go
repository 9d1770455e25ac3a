package mail

import (
	"github.com/trustbridge/auth/config"
	"github.com/trustbridge/auth/services/logging"
	"go.uber.org/fx"
)

func NewMailer(cfg *config.Config, logger *logging.Service) (Mailer, error) {
	if !cfg.Mail.Enabled {
		return NopMailer{}, nil
	}
	return NewService(&cfg.Mail, logger)
}

var Options = fx.Options(
	fx.Provide(NewMailer),
)
