package refreshtoken

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/trustbridge/auth/config"
	"github.com/trustbridge/auth/services/logging"
	"github.com/trustbridge/auth/session"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrTokenNotFound   = errors.New("refresh token not found")
	ErrTokenSuperseded = errors.New("refresh token already superseded")
)

type Service struct {
	db     *gorm.DB
	config *config.Config
	logger *logging.Service
}

func NewService(db *gorm.DB, cfg *config.Config, logger *logging.Service) *Service {
	return &Service{db: db, config: cfg, logger: logger}
}

// CreateParams carries everything needed to persist a new family member.
// PreviousToken, when set, makes creation a rotation: the new record joins
// the previous token's family and the previous record is atomically marked
// as superseded.
type CreateParams struct {
	Token         string
	UserID        string
	Family        string
	PreviousToken string
	Device        session.DeviceInfo
	IssuingOrigin string
}

// Create persists a refresh token. For rotations the supersede of the
// previous token and the insert of the new one happen in one transaction;
// the compare-and-set on replaced_by_token guarantees at most one winner
// when the same token is rotated concurrently.
func (s *Service) Create(ctx context.Context, params CreateParams) (*RefreshToken, error) {
	record := &RefreshToken{
		Token:         params.Token,
		UserID:        params.UserID,
		Family:        params.Family,
		Device:        params.Device.Device,
		DeviceID:      params.Device.DeviceID,
		UserAgent:     params.Device.UserAgent,
		IPAddress:     params.Device.IPAddress,
		IssuingOrigin: params.IssuingOrigin,
		ExpiresAt:     time.Now().Add(s.config.JWT.RefreshExpiry),
	}
	if record.Family == "" {
		record.Family = uuid.NewString()
	}

	if params.PreviousToken == "" {
		if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
			return nil, err
		}
		return record, nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&RefreshToken{}).
			Where("token = ? AND replaced_by_token IS NULL", params.PreviousToken).
			Update("replaced_by_token", params.Token)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrTokenSuperseded
		}
		return tx.Create(record).Error
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// FindAny looks a token up regardless of its state. Callers that need to
// distinguish reuse from expiry inspect the returned record themselves.
func (s *Service) FindAny(ctx context.Context, token string) (*RefreshToken, error) {
	var record RefreshToken
	err := s.db.WithContext(ctx).Where("token = ?", token).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Revoke marks a single token revoked.
func (s *Service) Revoke(ctx context.Context, token string) error {
	return s.db.WithContext(ctx).Model(&RefreshToken{}).
		Where("token = ?", token).
		Update("is_revoked", true).Error
}

// RevokeFamily revokes every member of a rotation family. Called when a
// superseded token resurfaces: the whole descent chain is treated as stolen.
func (s *Service) RevokeFamily(ctx context.Context, family string) error {
	result := s.db.WithContext(ctx).Model(&RefreshToken{}).
		Where("family = ? AND is_revoked = ?", family, false).
		Update("is_revoked", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		s.logger.Warn("revoked refresh token family",
			zap.String("family", family),
			zap.Int64("count", result.RowsAffected))
	}
	return nil
}

// RevokeAllForUser revokes every token the user holds across all devices.
func (s *Service) RevokeAllForUser(ctx context.Context, userID string) error {
	return s.db.WithContext(ctx).Model(&RefreshToken{}).
		Where("user_id = ? AND is_revoked = ?", userID, false).
		Update("is_revoked", true).Error
}

// RevokeDevice revokes the user's tokens bound to one device.
func (s *Service) RevokeDevice(ctx context.Context, userID, deviceID string) (int64, error) {
	result := s.db.WithContext(ctx).Model(&RefreshToken{}).
		Where("user_id = ? AND device_id = ? AND is_revoked = ?", userID, deviceID, false).
		Update("is_revoked", true)
	return result.RowsAffected, result.Error
}

// CountActive returns how many tokens the user can still present.
func (s *Service) CountActive(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&RefreshToken{}).
		Where("user_id = ? AND is_revoked = ? AND replaced_by_token IS NULL AND expires_at > ?",
			userID, false, time.Now()).
		Count(&count).Error
	return count, err
}

// ActiveDevices lists the newest active token per device for a user.
func (s *Service) ActiveDevices(ctx context.Context, userID string) ([]RefreshToken, error) {
	var records []RefreshToken
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_revoked = ? AND replaced_by_token IS NULL AND expires_at > ?",
			userID, false, time.Now()).
		Order("created_at desc").
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(records))
	devices := make([]RefreshToken, 0, len(records))
	for _, record := range records {
		if seen[record.DeviceID] {
			continue
		}
		seen[record.DeviceID] = true
		devices = append(devices, record)
	}
	return devices, nil
}

// EnforceTokenLimit evicts the user's oldest active tokens until at most
// the configured cap remains. Called after a fresh login mints its token;
// rotations replace a token one-for-one and never enforce the cap.
func (s *Service) EnforceTokenLimit(ctx context.Context, userID string) (int, error) {
	max := s.config.RefreshToken.MaxActivePerUser
	if max <= 0 {
		return 0, nil
	}

	var active []RefreshToken
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_revoked = ? AND replaced_by_token IS NULL AND expires_at > ?",
			userID, false, time.Now()).
		Order("created_at asc, id asc").
		Find(&active).Error
	if err != nil {
		return 0, err
	}

	excess := len(active) - max
	if excess <= 0 {
		return 0, nil
	}

	ids := make([]uint, 0, excess)
	for _, record := range active[:excess] {
		ids = append(ids, record.ID)
	}
	err = s.db.WithContext(ctx).Model(&RefreshToken{}).
		Where("id IN ?", ids).
		Update("is_revoked", true).Error
	if err != nil {
		return 0, err
	}
	s.logger.Info("evicted oldest refresh tokens",
		zap.String("userID", userID),
		zap.Int("evicted", excess))
	return excess, nil
}

// CleanupExpired deletes tokens whose expiry has passed. Revoked but
// unexpired rows are kept so reuse of them is still detectable.
func (s *Service) CleanupExpired(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at < ?", time.Now()).
		Delete(&RefreshToken{})
	return result.RowsAffected, result.Error
}
