package handlers

import (
	"github.com/labstack/echo/v4"
	"github.com/trustbridge/auth/config"
	"github.com/trustbridge/auth/middleware/jwt"
	"github.com/trustbridge/auth/middleware/ratelimit"
	"github.com/trustbridge/auth/services/revocation"
	"github.com/trustbridge/auth/services/tokens"
)

// RegisterRoutes mounts the auth API. Credential-presenting endpoints sit
// behind a per-IP rate limit; session-management endpoints require a valid
// bearer token.
func RegisterRoutes(
	e *echo.Echo,
	cfg *config.Config,
	handler *AuthHandler,
	codec *tokens.Service,
	revoked revocation.Store,
) {
	group := e.Group("/api/auth")

	var limited echo.MiddlewareFunc
	if cfg.RateLimit.Enabled {
		limited = ratelimit.Middleware(&ratelimit.Config{
			Rate:   cfg.RateLimit.Rate,
			Period: cfg.RateLimit.Period,
		})
	} else {
		limited = func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	group.GET("/nonce/:walletAddress", handler.Nonce)
	group.POST("/login", handler.Login, limited)
	group.POST("/login/password", handler.LoginPassword, limited)
	group.POST("/register", handler.Register, limited)
	group.POST("/refresh", handler.Refresh)

	protected := jwt.RequireJWT(codec, revoked)
	group.POST("/logout", handler.Logout, protected)
	group.POST("/logout/all", handler.LogoutAll, protected)
	group.POST("/logout/device/:deviceId", handler.LogoutDevice, protected)
	group.GET("/devices", handler.Devices, protected)
	group.GET("/me", handler.Me, protected)
}
