package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/trustbridge/auth/config"
	"github.com/trustbridge/auth/services/events"
	"github.com/trustbridge/auth/services/logging"
	"github.com/trustbridge/auth/services/mail"
	"github.com/trustbridge/auth/services/refreshtoken"
	"github.com/trustbridge/auth/services/revocation"
	"github.com/trustbridge/auth/services/tokens"
	"github.com/trustbridge/auth/services/wallet"
	"github.com/trustbridge/auth/session"
	"go.uber.org/zap"
)

// Service is the rotation engine: it owns login, refresh, and logout
// semantics and coordinates the token codec, token store, limiter, and
// security side channels (events, alert mail, access-token revocation).
type Service struct {
	config     *config.Config
	wallets    *wallet.Service
	tokens     *tokens.Service
	store      *refreshtoken.Service
	revocation revocation.Store
	events     events.Publisher
	mailer     mail.Mailer
	logger     *logging.Service
}

func NewService(
	cfg *config.Config,
	wallets *wallet.Service,
	codec *tokens.Service,
	store *refreshtoken.Service,
	revocationStore revocation.Store,
	publisher events.Publisher,
	mailer mail.Mailer,
	logger *logging.Service,
) *Service {
	return &Service{
		config:     cfg,
		wallets:    wallets,
		tokens:     codec,
		store:      store,
		revocation: revocationStore,
		events:     publisher,
		mailer:     mailer,
		logger:     logger,
	}
}

// Result is what a successful login or refresh hands back to the transport
// layer. The refresh token travels out-of-band (cookie), never in a body.
type Result struct {
	User             *wallet.User
	AccessToken      string
	RefreshToken     string
	RefreshExpiresAt time.Time
	DeviceID         string
}

// DeviceSession is one active device as shown to the user.
type DeviceSession struct {
	Device    string    `json:"device"`
	DeviceID  string    `json:"deviceId"`
	UserAgent string    `json:"userAgent"`
	IPAddress string    `json:"ipAddress"`
	LastSeen  time.Time `json:"lastSeen"`
}

// Login verifies a signed wallet challenge and seeds a new refresh-token
// family. The session cap is enforced here and only here.
func (s *Service) Login(ctx context.Context, walletAddress, signature string, device session.DeviceInfo, origin string) (*Result, error) {
	user, err := s.wallets.VerifyChallenge(ctx, walletAddress, signature)
	if err != nil {
		return nil, err
	}
	return s.startSession(ctx, user, device, origin)
}

// LoginPassword is the email/password variant of Login.
func (s *Service) LoginPassword(ctx context.Context, email, password string, device session.DeviceInfo, origin string) (*Result, error) {
	user, err := s.wallets.VerifyPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return s.startSession(ctx, user, device, origin)
}

// Register creates a user with a password credential. It does not start a
// session; the client logs in afterwards.
func (s *Service) Register(ctx context.Context, email, name, password, walletAddress string) (*wallet.User, error) {
	return s.wallets.Register(ctx, email, name, password, walletAddress)
}

func (s *Service) startSession(ctx context.Context, user *wallet.User, device session.DeviceInfo, origin string) (*Result, error) {
	accessToken, err := s.tokens.Issue(user.WalletAddress, tokens.KindAccess, "")
	if err != nil {
		return nil, err
	}
	refreshValue, err := s.tokens.Issue(user.WalletAddress, tokens.KindRefresh, origin)
	if err != nil {
		return nil, err
	}

	record, err := s.store.Create(ctx, refreshtoken.CreateParams{
		Token:         refreshValue,
		UserID:        user.WalletAddress,
		Device:        device,
		IssuingOrigin: origin,
	})
	if err != nil {
		return nil, err
	}

	evicted, err := s.store.EnforceTokenLimit(ctx, user.WalletAddress)
	if err != nil {
		return nil, err
	}
	if evicted > 0 {
		s.publish(ctx, events.SecurityEvent{
			Type:      events.EventTokensEvicted,
			UserID:    user.WalletAddress,
			DeviceID:  device.DeviceID,
			IPAddress: device.IPAddress,
		})
	}

	s.publish(ctx, events.SecurityEvent{
		Type:      events.EventLogin,
		UserID:    user.WalletAddress,
		Family:    record.Family,
		DeviceID:  device.DeviceID,
		IPAddress: device.IPAddress,
		Origin:    origin,
	})
	s.logger.Info("session started",
		zap.String("walletAddress", user.WalletAddress),
		zap.String("deviceID", device.DeviceID))

	return &Result{
		User:             user,
		AccessToken:      accessToken,
		RefreshToken:     refreshValue,
		RefreshExpiresAt: record.ExpiresAt,
		DeviceID:         device.DeviceID,
	}, nil
}

// Refresh rotates a presented refresh token. Check order matters: request
// shape and origin are rejected before any store access, and reuse is
// checked before the weaker not-found and expired signals, because a
// superseded token resurfacing is the strongest theft indicator.
func (s *Service) Refresh(ctx context.Context, presentedToken, contentType string, device session.DeviceInfo, origin string) (*Result, error) {
	if !acceptableContentType(contentType) {
		return nil, ErrInvalidRequest
	}
	if !s.originAllowed(origin) {
		return nil, ErrInvalidOrigin
	}
	if presentedToken == "" {
		return nil, ErrInvalidRefreshToken
	}

	record, err := s.store.FindAny(ctx, presentedToken)
	if errors.Is(err, refreshtoken.ErrTokenNotFound) {
		return nil, ErrInvalidRefreshToken
	}
	if err != nil {
		return nil, err
	}

	if record.ReplacedByToken != nil && !record.IsRevoked {
		s.handleReuse(ctx, record, device, origin)
		return nil, ErrTokenReuse
	}
	if record.IsRevoked {
		return nil, ErrInvalidRefreshToken
	}
	if !record.ExpiresAt.After(time.Now()) {
		if err := s.store.Revoke(ctx, record.Token); err != nil {
			return nil, err
		}
		return nil, ErrRefreshTokenExpired
	}

	if _, err := s.tokens.Verify(presentedToken, tokens.KindRefresh); err != nil {
		return nil, ErrInvalidTokenType
	}

	// Origin pinning: a token minted for one origin presented from another
	// is treated exactly like reuse.
	if record.IssuingOrigin != "" && len(s.config.RefreshToken.AllowedOrigins) > 0 && record.IssuingOrigin != origin {
		s.handleReuse(ctx, record, device, origin)
		return nil, ErrOriginMismatch
	}

	accessToken, err := s.tokens.Issue(record.UserID, tokens.KindAccess, "")
	if err != nil {
		return nil, err
	}
	refreshValue, err := s.tokens.Issue(record.UserID, tokens.KindRefresh, origin)
	if err != nil {
		return nil, err
	}

	// The device identity persists across rotations; only the volatile
	// fields (user agent, IP) reflect the current request.
	device.DeviceID = record.DeviceID
	next, err := s.store.Create(ctx, refreshtoken.CreateParams{
		Token:         refreshValue,
		UserID:        record.UserID,
		Family:        record.Family,
		PreviousToken: record.Token,
		Device:        device,
		IssuingOrigin: origin,
	})
	if errors.Is(err, refreshtoken.ErrTokenSuperseded) {
		// Lost a race against a concurrent rotation of the same token;
		// the second presentation is reported as reuse.
		refreshed, findErr := s.store.FindAny(ctx, record.Token)
		if findErr == nil {
			s.handleReuse(ctx, refreshed, device, origin)
		}
		return nil, ErrTokenReuse
	}
	if err != nil {
		return nil, err
	}

	return &Result{
		AccessToken:      accessToken,
		RefreshToken:     refreshValue,
		RefreshExpiresAt: next.ExpiresAt,
		DeviceID:         next.DeviceID,
	}, nil
}

// LogoutParams identifies the session being ended. AccessToken, when set,
// is added to the revocation list so it dies with the session instead of
// riding out its remaining lifetime.
type LogoutParams struct {
	Identity     string
	RefreshToken string
	AccessToken  string
}

// Logout revokes the presented refresh token. A token belonging to a
// different identity than the caller is a security violation and forces
// family-wide revocation.
func (s *Service) Logout(ctx context.Context, params LogoutParams) error {
	if params.RefreshToken != "" {
		record, err := s.store.FindAny(ctx, params.RefreshToken)
		if err == nil {
			if record.UserID != params.Identity {
				s.logger.Warn("logout with foreign refresh token",
					zap.String("caller", params.Identity),
					zap.String("owner", record.UserID))
				if err := s.store.RevokeFamily(ctx, record.Family); err != nil {
					return err
				}
			} else if err := s.store.Revoke(ctx, record.Token); err != nil {
				return err
			}
		} else if !errors.Is(err, refreshtoken.ErrTokenNotFound) {
			return err
		}
	}

	if params.AccessToken != "" {
		expiresAt := time.Now().Add(s.tokens.AccessExpiry())
		if err := s.revocation.Revoke(ctx, params.AccessToken, expiresAt); err != nil {
			return err
		}
	}

	s.publish(ctx, events.SecurityEvent{
		Type:   events.EventLogout,
		UserID: params.Identity,
	})
	return nil
}

// LogoutAll ends every session the identity holds, on every device, and
// revokes the access token used to make the call.
func (s *Service) LogoutAll(ctx context.Context, identity, accessToken string) error {
	if err := s.store.RevokeAllForUser(ctx, identity); err != nil {
		return err
	}

	if accessToken != "" {
		expiresAt := time.Now().Add(s.tokens.AccessExpiry())
		if err := s.revocation.Revoke(ctx, accessToken, expiresAt); err != nil {
			return err
		}
	}

	s.publish(ctx, events.SecurityEvent{
		Type:   events.EventLogout,
		UserID: identity,
	})
	return nil
}

// LogoutDevice revokes every token the identity holds on one device. It
// reports whether presentedToken belonged to that device, so callers know
// the session they are acting from was among the ones ended.
func (s *Service) LogoutDevice(ctx context.Context, identity, deviceID, presentedToken string) (bool, error) {
	current := false
	if presentedToken != "" {
		record, err := s.store.FindAny(ctx, presentedToken)
		if err == nil && record.UserID == identity && record.DeviceID == deviceID {
			current = true
		}
	}
	revoked, err := s.store.RevokeDevice(ctx, identity, deviceID)
	if err != nil {
		return false, err
	}
	if revoked > 0 {
		s.publish(ctx, events.SecurityEvent{
			Type:     events.EventLogout,
			UserID:   identity,
			DeviceID: deviceID,
		})
	}
	return current, nil
}

// ActiveDevices lists the identity's distinct devices with active sessions.
func (s *Service) ActiveDevices(ctx context.Context, identity string) ([]DeviceSession, error) {
	records, err := s.store.ActiveDevices(ctx, identity)
	if err != nil {
		return nil, err
	}
	sessions := make([]DeviceSession, 0, len(records))
	for _, record := range records {
		sessions = append(sessions, DeviceSession{
			Device:    record.Device,
			DeviceID:  record.DeviceID,
			UserAgent: record.UserAgent,
			IPAddress: record.IPAddress,
			LastSeen:  record.CreatedAt,
		})
	}
	return sessions, nil
}

// IsAccessTokenRevoked lets the transport layer consult the revocation
// list when validating bearer tokens.
func (s *Service) IsAccessTokenRevoked(ctx context.Context, token string) (bool, error) {
	return s.revocation.IsRevoked(ctx, token)
}

func (s *Service) handleReuse(ctx context.Context, record *refreshtoken.RefreshToken, device session.DeviceInfo, origin string) {
	s.logger.Warn("refresh token reuse detected",
		zap.String("walletAddress", record.UserID),
		zap.String("family", record.Family),
		zap.String("ipAddress", device.IPAddress))

	if err := s.store.RevokeFamily(ctx, record.Family); err != nil {
		s.logger.Error("failed to revoke compromised family",
			zap.String("family", record.Family),
			zap.Error(err))
	}

	s.publish(ctx, events.SecurityEvent{
		Type:      events.EventTokenReuse,
		UserID:    record.UserID,
		Family:    record.Family,
		DeviceID:  device.DeviceID,
		IPAddress: device.IPAddress,
		Origin:    origin,
	})

	user, err := s.wallets.FindByWallet(ctx, record.UserID)
	if err != nil || user.Email == "" {
		return
	}
	body := fmt.Sprintf(
		"A previously used session token for your %s account was presented again from IP %s. "+
			"All sessions in that login lineage have been signed out. "+
			"If this wasn't you, consider rotating your credentials.",
		s.config.App.Name, device.IPAddress)
	if err := s.mailer.SendSecurityAlert(user.Email, "Suspicious session activity", body); err != nil {
		s.logger.Error("failed to send reuse alert", zap.Error(err))
	}
}

func (s *Service) publish(ctx context.Context, event events.SecurityEvent) {
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Error("failed to publish security event",
			zap.String("type", event.Type),
			zap.Error(err))
	}
}

func (s *Service) originAllowed(origin string) bool {
	allowed := s.config.RefreshToken.AllowedOrigins
	if len(allowed) == 0 {
		return true
	}
	for _, candidate := range allowed {
		if strings.EqualFold(candidate, origin) {
			return true
		}
	}
	return false
}

func acceptableContentType(contentType string) bool {
	mediaType := strings.TrimSpace(strings.ToLower(strings.SplitN(contentType, ";", 2)[0]))
	switch mediaType {
	case "application/json", "application/x-www-form-urlencoded":
		return true
	}
	return false
}
