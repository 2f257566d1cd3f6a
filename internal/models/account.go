package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/flowmail/flowmail/internal/enum"
	"github.com/flowmail/flowmail/internal/utils"
)

// Account is a registered user identity, local or Google-linked.
type Account struct {
	ID           string           `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	Username     string           `gorm:"column:username;type:varchar(255);uniqueIndex;not null" json:"username"`
	Email        string           `gorm:"column:email;type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash string           `gorm:"column:password_hash;type:varchar(255)" json:"-"`
	Role         enum.AccountRole `gorm:"column:role;type:varchar(50);default:user" json:"role"`

	// Google linkage; presence of a refresh token flips remote-provider
	// availability.
	GoogleID           string     `gorm:"column:google_id;type:varchar(255);index" json:"-"`
	GoogleAccessToken  string     `gorm:"column:google_access_token;type:text" json:"-"`
	GoogleRefreshToken string     `gorm:"column:google_refresh_token;type:text" json:"-"`
	GoogleTokenExpiry  *time.Time `gorm:"column:google_token_expiry;type:timestamp" json:"-"`

	// Push-notification watch state (opaque upstream cursor + expiry)
	WatchHistoryID  string     `gorm:"column:watch_history_id;type:varchar(255)" json:"-"`
	WatchExpiration *time.Time `gorm:"column:watch_expiration;type:timestamp" json:"-"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
}

func (Account) TableName() string {
	return "accounts"
}

func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = utils.GenerateNanoIDWithPrefix("acct", 16)
	}
	if a.Role == "" {
		a.Role = enum.AccountRoleUser
	}
	a.CreatedAt = utils.Now()
	return nil
}

// HasGmailCredential reports whether a minimally well-formed Google
// credential is on file.
func (a *Account) HasGmailCredential() bool {
	return a != nil && a.GoogleRefreshToken != ""
}
