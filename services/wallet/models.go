package wallet

import (
	"time"
)

// User is the identity record. WalletAddress is the primary identity key;
// the email/password columns serve the password login path.
type User struct {
	WalletAddress string     `json:"walletAddress" gorm:"primaryKey;size:64"`
	Nonce         string     `json:"-" gorm:"size:128"`
	Email         string     `json:"email,omitempty" gorm:"index;size:255"`
	Name          string     `json:"name,omitempty" gorm:"size:255"`
	PasswordHash  string     `json:"-" gorm:"size:255"`
	CreatedAt     time.Time  `json:"created_at"`
	LastLogin     *time.Time `json:"last_login,omitempty"`
}

func (User) TableName() string {
	return "users"
}
