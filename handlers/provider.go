package handlers

import (
	"github.com/trustbridge/auth/config"
	"github.com/trustbridge/auth/server"
	"github.com/trustbridge/auth/services/revocation"
	"github.com/trustbridge/auth/services/tokens"
	"go.uber.org/fx"
)

var Options = fx.Options(
	fx.Provide(NewAuthHandler),
	fx.Invoke(func(
		srv *server.Server,
		cfg *config.Config,
		handler *AuthHandler,
		codec *tokens.Service,
		revoked revocation.Store,
	) {
		RegisterRoutes(srv.Echo(), cfg, handler, codec, revoked)
	}),
)
