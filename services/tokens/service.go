package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/trustbridge/auth/config"
	"github.com/trustbridge/auth/services/logging"
	"go.uber.org/zap"
)

var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrMalformedToken   = errors.New("malformed token")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrInvalidTokenType = errors.New("invalid token type")
)

// Kind distinguishes access tokens from refresh tokens. The two kinds are
// signed with different secrets.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

type Claims struct {
	WalletAddress string `json:"walletAddress"`
	TokenType     string `json:"type"`
	// Origin records the request origin the token was issued for. Refresh
	// tokens carry it so replays from a different origin can be rejected.
	Origin string `json:"origin,omitempty"`
	jwt.RegisteredClaims
}

type Service struct {
	config *config.Config
	logger *logging.Service
}

func NewService(cfg *config.Config, logger *logging.Service) *Service {
	return &Service{
		config: cfg,
		logger: logger,
	}
}

func (s *Service) AccessExpiry() time.Duration {
	return s.config.JWT.AccessExpiry
}

func (s *Service) RefreshExpiry() time.Duration {
	return s.config.JWT.RefreshExpiry
}

// Issue produces a signed token of the given kind for a wallet address.
// origin is only meaningful for refresh tokens and may be empty.
func (s *Service) Issue(walletAddress string, kind Kind, origin string) (string, error) {
	secret, expiry, err := s.kindParams(kind)
	if err != nil {
		return "", err
	}

	now := time.Now()
	claims := Claims{
		WalletAddress: walletAddress,
		TokenType:     string(kind),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    s.config.JWT.Issuer,
			Subject:   walletAddress,
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	if kind == KindRefresh {
		claims.Origin = origin
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(secret)
	if err != nil {
		s.logger.Error("failed to sign token",
			zap.String("kind", string(kind)),
			zap.Error(err))
		return "", fmt.Errorf("failed to sign %s token: %w", kind, err)
	}

	return tokenString, nil
}

// Verify checks signature, expiry (against the clock at call time) and kind.
func (s *Service) Verify(tokenString string, kind Kind) (*Claims, error) {
	secret, _, err := s.kindParams(kind)
	if err != nil {
		return nil, err
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() == "none" {
			return nil, errors.New("'none' algorithm is not allowed")
		}
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})

	if err != nil {
		s.logger.Warn("token validation failed", zap.Error(err))

		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrMalformedToken
		case errors.Is(err, jwt.ErrSignatureInvalid):
			return nil, ErrInvalidSignature
		default:
			return nil, ErrInvalidToken
		}
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.TokenType != string(kind) {
		s.logger.Warn("token kind mismatch",
			zap.String("expected", string(kind)),
			zap.String("got", claims.TokenType))
		return nil, ErrInvalidTokenType
	}

	return claims, nil
}

func (s *Service) kindParams(kind Kind) ([]byte, time.Duration, error) {
	switch kind {
	case KindAccess:
		return []byte(s.config.JWT.AccessSecret), s.config.JWT.AccessExpiry, nil
	case KindRefresh:
		return []byte(s.config.JWT.RefreshSecret), s.config.JWT.RefreshExpiry, nil
	default:
		return nil, 0, ErrInvalidTokenType
	}
}
