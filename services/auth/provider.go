package auth

import (
	"github.com/trustbridge/auth/config"
	"github.com/trustbridge/auth/services/events"
	"github.com/trustbridge/auth/services/logging"
	"github.com/trustbridge/auth/services/mail"
	"github.com/trustbridge/auth/services/refreshtoken"
	"github.com/trustbridge/auth/services/revocation"
	"github.com/trustbridge/auth/services/tokens"
	"github.com/trustbridge/auth/services/wallet"
	"go.uber.org/fx"
)

func NewAuthService(
	cfg *config.Config,
	wallets *wallet.Service,
	codec *tokens.Service,
	store *refreshtoken.Service,
	revocationStore revocation.Store,
	publisher events.Publisher,
	mailer mail.Mailer,
	logger *logging.Service,
) *Service {
	return NewService(cfg, wallets, codec, store, revocationStore, publisher, mailer, logger)
}

var Options = fx.Options(
	fx.Provide(NewAuthService),
)
