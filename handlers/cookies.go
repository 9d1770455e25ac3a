package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/trustbridge/auth/config"
)

// setRefreshCookie delivers the refresh token out-of-band: HTTP-only and
// scoped to the auth path prefix so ordinary page scripts never see it.
func setRefreshCookie(c echo.Context, cfg *config.Config, token string, expiresAt time.Time) {
	c.SetCookie(&http.Cookie{
		Name:     cfg.RefreshToken.CookieName,
		Value:    token,
		Path:     cfg.RefreshToken.CookiePath,
		Expires:  expiresAt,
		MaxAge:   int(time.Until(expiresAt).Seconds()),
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteStrictMode,
	})
}

func clearRefreshCookie(c echo.Context, cfg *config.Config) {
	c.SetCookie(&http.Cookie{
		Name:     cfg.RefreshToken.CookieName,
		Value:    "",
		Path:     cfg.RefreshToken.CookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteStrictMode,
	})
}

func refreshCookieValue(c echo.Context, cfg *config.Config) string {
	cookie, err := c.Cookie(cfg.RefreshToken.CookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}
