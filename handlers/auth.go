package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/trustbridge/auth/config"
	"github.com/trustbridge/auth/middleware/jwt"
	"github.com/trustbridge/auth/services/auth"
	"github.com/trustbridge/auth/services/logging"
	"github.com/trustbridge/auth/services/wallet"
	"github.com/trustbridge/auth/session"
	"go.uber.org/zap"
)

type AuthHandler struct {
	config  *config.Config
	auth    *auth.Service
	wallets *wallet.Service
	logger  *logging.Service
}

func NewAuthHandler(cfg *config.Config, authService *auth.Service, wallets *wallet.Service, logger *logging.Service) *AuthHandler {
	return &AuthHandler{
		config:  cfg,
		auth:    authService,
		wallets: wallets,
		logger:  logger,
	}
}

// Nonce returns a fresh single-use challenge for the wallet, creating the
// user record on first contact.
func (h *AuthHandler) Nonce(c echo.Context) error {
	walletAddress := c.Param("walletAddress")
	if walletAddress == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "wallet address is required")
	}

	nonce, err := h.wallets.RequestNonce(c.Request().Context(), walletAddress)
	if err != nil {
		return h.mapError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{
		"nonce":   nonce,
		"message": wallet.ChallengeMessage(h.config.App.Name, nonce),
	})
}

type loginRequest struct {
	WalletAddress string `json:"walletAddress"`
	Signature     string `json:"signature"`
	DeviceID      string `json:"deviceId"`
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.WalletAddress == "" || req.Signature == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "walletAddress and signature are required")
	}

	device := session.Describe(c.Request(), req.DeviceID)
	result, err := h.auth.Login(c.Request().Context(), req.WalletAddress, req.Signature, device, c.Request().Header.Get("Origin"))
	if errors.Is(err, wallet.ErrUserNotFound) {
		// No nonce was ever requested for this wallet.
		return echo.NewHTTPError(http.StatusBadRequest, "request a nonce first")
	}
	if err != nil {
		return h.mapError(c, err)
	}

	setRefreshCookie(c, h.config, result.RefreshToken, result.RefreshExpiresAt)
	return c.JSON(http.StatusOK, map[string]any{
		"message":       "authenticated",
		"walletAddress": result.User.WalletAddress,
		"accessToken":   result.AccessToken,
		"deviceId":      result.DeviceID,
	})
}

type registerRequest struct {
	Email         string `json:"email"`
	Name          string `json:"name"`
	Password      string `json:"password"`
	WalletAddress string `json:"walletAddress"`
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Email == "" || req.Password == "" || req.WalletAddress == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email, password and walletAddress are required")
	}
	if len(req.Password) < h.config.Auth.MinPasswordLength {
		return echo.NewHTTPError(http.StatusBadRequest, "password too short")
	}

	user, err := h.auth.Register(c.Request().Context(), req.Email, req.Name, req.Password, req.WalletAddress)
	if err != nil {
		return h.mapError(c, err)
	}

	return c.JSON(http.StatusCreated, map[string]string{
		"walletAddress": user.WalletAddress,
		"email":         user.Email,
	})
}

type passwordLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	DeviceID string `json:"deviceId"`
}

func (h *AuthHandler) LoginPassword(c echo.Context) error {
	var req passwordLoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email and password are required")
	}

	device := session.Describe(c.Request(), req.DeviceID)
	result, err := h.auth.LoginPassword(c.Request().Context(), req.Email, req.Password, device, c.Request().Header.Get("Origin"))
	if err != nil {
		return h.mapError(c, err)
	}

	setRefreshCookie(c, h.config, result.RefreshToken, result.RefreshExpiresAt)
	return c.JSON(http.StatusOK, map[string]any{
		"message":       "authenticated",
		"walletAddress": result.User.WalletAddress,
		"accessToken":   result.AccessToken,
		"deviceId":      result.DeviceID,
	})
}

func (h *AuthHandler) Refresh(c echo.Context) error {
	presented := refreshCookieValue(c, h.config)
	device := session.Describe(c.Request(), "")

	result, err := h.auth.Refresh(
		c.Request().Context(),
		presented,
		c.Request().Header.Get("Content-Type"),
		device,
		c.Request().Header.Get("Origin"),
	)
	if err != nil {
		return h.mapError(c, err)
	}

	setRefreshCookie(c, h.config, result.RefreshToken, result.RefreshExpiresAt)
	return c.JSON(http.StatusOK, map[string]string{
		"accessToken": result.AccessToken,
	})
}

func (h *AuthHandler) Logout(c echo.Context) error {
	err := h.auth.Logout(c.Request().Context(), auth.LogoutParams{
		Identity:     jwt.GetWalletAddress(c),
		RefreshToken: refreshCookieValue(c, h.config),
		AccessToken:  jwt.GetToken(c),
	})
	if err != nil {
		return h.mapError(c, err)
	}

	clearRefreshCookie(c, h.config)
	return c.JSON(http.StatusOK, map[string]string{"message": "logged out"})
}

func (h *AuthHandler) LogoutAll(c echo.Context) error {
	err := h.auth.LogoutAll(c.Request().Context(), jwt.GetWalletAddress(c), jwt.GetToken(c))
	if err != nil {
		return h.mapError(c, err)
	}

	clearRefreshCookie(c, h.config)
	return c.JSON(http.StatusOK, map[string]string{"message": "logged out everywhere"})
}

func (h *AuthHandler) LogoutDevice(c echo.Context) error {
	deviceID := c.Param("deviceId")
	if deviceID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "device id is required")
	}

	identity := jwt.GetWalletAddress(c)
	current, err := h.auth.LogoutDevice(c.Request().Context(), identity, deviceID, refreshCookieValue(c, h.config))
	if err != nil {
		return h.mapError(c, err)
	}

	// Ending the current device's session also invalidates the cookie held
	// by this client.
	if current {
		clearRefreshCookie(c, h.config)
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "device logged out"})
}

func (h *AuthHandler) Devices(c echo.Context) error {
	devices, err := h.auth.ActiveDevices(c.Request().Context(), jwt.GetWalletAddress(c))
	if err != nil {
		return h.mapError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"devices": devices})
}

func (h *AuthHandler) Me(c echo.Context) error {
	user, err := h.wallets.FindByWallet(c.Request().Context(), jwt.GetWalletAddress(c))
	if err != nil {
		return h.mapError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"walletAddress": user.WalletAddress,
		"email":         user.Email,
		"name":          user.Name,
		"lastLogin":     user.LastLogin,
	})
}

// mapError translates service failures into HTTP statuses with minimal
// bodies. Reuse-class failures also clear the session cookie.
func (h *AuthHandler) mapError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, auth.ErrInvalidRequest):
		return echo.NewHTTPError(http.StatusBadRequest, "unsupported content type")
	case errors.Is(err, auth.ErrInvalidOrigin):
		return echo.NewHTTPError(http.StatusForbidden, "origin not allowed")
	case errors.Is(err, auth.ErrOriginMismatch):
		clearRefreshCookie(c, h.config)
		return echo.NewHTTPError(http.StatusForbidden, "token origin mismatch")
	case errors.Is(err, auth.ErrTokenReuse):
		clearRefreshCookie(c, h.config)
		return echo.NewHTTPError(http.StatusUnauthorized, "refresh token reuse detected")
	case errors.Is(err, auth.ErrInvalidRefreshToken):
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid refresh token")
	case errors.Is(err, auth.ErrRefreshTokenExpired):
		clearRefreshCookie(c, h.config)
		return echo.NewHTTPError(http.StatusUnauthorized, "refresh token expired")
	case errors.Is(err, auth.ErrInvalidTokenType):
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	case errors.Is(err, wallet.ErrInvalidSignature):
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid signature")
	case errors.Is(err, wallet.ErrInvalidCredentials):
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, wallet.ErrEmailTaken):
		return echo.NewHTTPError(http.StatusBadRequest, "email already registered")
	default:
		// Unknown users during the nonce flow and store failures alike are
		// internal anomalies, not client errors.
		h.logger.Error("request failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
