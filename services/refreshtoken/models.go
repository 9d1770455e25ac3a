package refreshtoken

import "time"

// RefreshToken is one member of a rotation family. A family is the chain of
// tokens descending from a single login; rotation links members through
// ReplacedByToken so reuse of a superseded token is detectable later.
type RefreshToken struct {
	ID              uint    `gorm:"primarykey"`
	Token           string  `gorm:"uniqueIndex;size:512;not null"`
	UserID          string  `gorm:"index;size:64;not null"`
	Family          string  `gorm:"index;size:36;not null"`
	ReplacedByToken *string `gorm:"size:512"`
	IsRevoked       bool    `gorm:"not null;default:false"`
	Device          string  `gorm:"size:16"`
	DeviceID        string  `gorm:"index;size:64"`
	UserAgent       string  `gorm:"size:512"`
	IPAddress       string  `gorm:"size:45"`
	IssuingOrigin   string  `gorm:"size:255"`
	ExpiresAt       time.Time
	CreatedAt       time.Time
}

func (RefreshToken) TableName() string {
	return "refresh_tokens"
}

// Active reports whether the token can still be presented for rotation.
func (t *RefreshToken) Active(now time.Time) bool {
	return !t.IsRevoked && t.ReplacedByToken == nil && t.ExpiresAt.After(now)
}
