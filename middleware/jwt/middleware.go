package jwt

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/trustbridge/auth/services/revocation"
	"github.com/trustbridge/auth/services/tokens"
)

const (
	WalletAddressKey = "_jwt_wallet_address"
	ClaimsKey        = "_jwt_claims"
	TokenKey         = "_jwt_token"
)

// RequireJWT validates the bearer access token and rejects tokens on the
// revocation list before the handler runs.
func RequireJWT(codec *tokens.Service, revoked revocation.Store) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Authorization header required")
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization header format")
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Access token required")
			}

			claims, err := codec.Verify(tokenString, tokens.KindAccess)
			if err != nil {
				switch err {
				case tokens.ErrExpiredToken:
					return echo.NewHTTPError(http.StatusUnauthorized, "Access token has expired")
				case tokens.ErrMalformedToken:
					return echo.NewHTTPError(http.StatusUnauthorized, "Malformed access token")
				case tokens.ErrInvalidSignature:
					return echo.NewHTTPError(http.StatusUnauthorized, "Invalid access token signature")
				default:
					return echo.NewHTTPError(http.StatusUnauthorized, "Invalid access token")
				}
			}

			isRevoked, err := revoked.IsRevoked(c.Request().Context(), tokenString)
			if err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "Failed to check token status")
			}
			if isRevoked {
				return echo.NewHTTPError(http.StatusUnauthorized, "Access token has been revoked")
			}

			c.Set(WalletAddressKey, claims.WalletAddress)
			c.Set(ClaimsKey, claims)
			c.Set(TokenKey, tokenString)

			return next(c)
		}
	}
}

func GetWalletAddress(c echo.Context) string {
	if walletAddress, ok := c.Get(WalletAddressKey).(string); ok {
		return walletAddress
	}
	return ""
}

func GetClaims(c echo.Context) *tokens.Claims {
	if claims, ok := c.Get(ClaimsKey).(*tokens.Claims); ok {
		return claims
	}
	return nil
}

func GetToken(c echo.Context) string {
	if token, ok := c.Get(TokenKey).(string); ok {
		return token
	}
	return ""
}
