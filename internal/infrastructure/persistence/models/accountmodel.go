package models

import "time"

// AccountModel is the database persistence model for integration accounts.
// One row per (uid, provider). Token and feed URL columns hold vault
// ciphertext, never plaintext.
type AccountModel struct {
	ID                    uint   `gorm:"primarykey"`
	UID                   string `gorm:"not null;size:64;uniqueIndex:idx_account_uid_provider"`
	Provider              string `gorm:"not null;size:32;uniqueIndex:idx_account_uid_provider"`
	EncryptedAccessToken  string `gorm:"type:text"`
	EncryptedRefreshToken string `gorm:"type:text"`
	EncryptedFeedURL      string `gorm:"type:text"`
	FeedURLHash           string `gorm:"size:64;index:idx_account_feed_hash"`
	TokenExpiresAt        *time.Time
	ConnectionStatus      string `gorm:"not null;size:16;index:idx_account_status"`

	LastSyncAt   *time.Time
	LastError    string `gorm:"type:text"`
	ErrorCount   int    `gorm:"default:0"`
	BackoffUntil *time.Time

	MirrorEnabled    bool   `gorm:"default:false"`
	MirrorCalendarID string `gorm:"size:255"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName specifies the table name for GORM
func (AccountModel) TableName() string {
	return "integration_accounts"
}
