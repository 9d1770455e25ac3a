package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/trustbridge/auth/config"
	"github.com/trustbridge/auth/services/logging"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound       = errors.New("user not found or nonce missing")
	ErrInvalidSignature   = errors.New("invalid signature")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
)

type Service struct {
	db     *gorm.DB
	config *config.Config
	logger *logging.Service
}

func NewService(db *gorm.DB, cfg *config.Config, logger *logging.Service) *Service {
	return &Service{
		db:     db,
		config: cfg,
		logger: logger,
	}
}

// RequestNonce returns a fresh nonce for the wallet, creating the user on
// first contact. The wallet flow has no separate signup step, so unknown
// identities are auto-created here.
func (s *Service) RequestNonce(ctx context.Context, walletAddress string) (string, error) {
	nonce, err := generateNonce()
	if err != nil {
		return "", err
	}

	var user User
	err = s.db.WithContext(ctx).Where("wallet_address = ?", walletAddress).First(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		user = User{
			WalletAddress: walletAddress,
			Nonce:         nonce,
			CreatedAt:     time.Now(),
		}
		if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
			return "", fmt.Errorf("failed to create user: %w", err)
		}
		s.logger.Info("created user for wallet",
			zap.String("wallet_address", walletAddress))
	case err != nil:
		return "", fmt.Errorf("failed to look up user: %w", err)
	default:
		if err := s.rotateNonce(ctx, walletAddress, nonce); err != nil {
			return "", err
		}
	}

	return nonce, nil
}

// VerifyChallenge validates a signed challenge against the wallet's stored
// nonce. The nonce is rotated on every attempt, successful or not, so a
// captured signature can never be replayed.
func (s *Service) VerifyChallenge(ctx context.Context, walletAddress, signature string) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).Where("wallet_address = ?", walletAddress).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user.Nonce == "" {
		return nil, ErrUserNotFound
	}

	message := ChallengeMessage(s.config.App.Name, user.Nonce)
	valid := verifySignature(message, signature, walletAddress)

	// Single-use regardless of outcome: burn the nonce before reporting.
	newNonce, nonceErr := generateNonce()
	if nonceErr == nil {
		nonceErr = s.rotateNonce(ctx, walletAddress, newNonce)
	}
	if nonceErr != nil {
		return nil, nonceErr
	}

	if !valid {
		s.logger.Warn("signature verification failed",
			zap.String("wallet_address", walletAddress))
		return nil, ErrInvalidSignature
	}

	now := time.Now()
	if err := s.db.WithContext(ctx).Model(&User{}).
		Where("wallet_address = ?", walletAddress).
		Update("last_login", now).Error; err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}
	user.Nonce = newNonce
	user.LastLogin = &now

	return &user, nil
}

// Register creates a user for the password login path.
func (s *Service) Register(ctx context.Context, email, name, password, walletAddress string) (*User, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if count > 0 {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.config.Auth.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	nonce, err := generateNonce()
	if err != nil {
		return nil, err
	}

	user := User{
		WalletAddress: walletAddress,
		Nonce:         nonce,
		Email:         email,
		Name:          name,
		PasswordHash:  string(hash),
		CreatedAt:     time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("registered user", zap.String("email", email))

	return &user, nil
}

// VerifyPassword authenticates the password login path.
func (s *Service) VerifyPassword(ctx context.Context, email, password string) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if user.PasswordHash == "" ||
		bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	if err := s.db.WithContext(ctx).Model(&User{}).
		Where("wallet_address = ?", user.WalletAddress).
		Update("last_login", now).Error; err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}
	user.LastLogin = &now

	return &user, nil
}

// FindByWallet returns the user record for a wallet address.
func (s *Service) FindByWallet(ctx context.Context, walletAddress string) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).Where("wallet_address = ?", walletAddress).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	return &user, nil
}

func (s *Service) rotateNonce(ctx context.Context, walletAddress, nonce string) error {
	if err := s.db.WithContext(ctx).Model(&User{}).
		Where("wallet_address = ?", walletAddress).
		Update("nonce", nonce).Error; err != nil {
		return fmt.Errorf("failed to rotate nonce: %w", err)
	}
	return nil
}
